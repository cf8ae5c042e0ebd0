package domain

// Stats is the read-only introspection view of the room. Producing it
// has no side effects.
type Stats struct {
	ParticipantCount  int  `json:"participant_count"`
	OwnerPresent      bool `json:"owner_present"`
	ChatMessageCount  int  `json:"chat_message_count"`
	WhiteboardEnabled bool `json:"whiteboard_enabled"`
}
