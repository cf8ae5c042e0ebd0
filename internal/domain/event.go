package domain

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"
)

type EventType string

// Server-to-client event names. The set is closed: the controller and
// the coordinator only ever emit these.
const (
	EventWelcome            EventType = "welcome"
	EventRosterEntryAdded   EventType = "roster-entry-added"
	EventRosterEntryRemoved EventType = "roster-entry-removed"
	EventRosterEntryUpdated EventType = "roster-entry-updated"
	EventChatAppended       EventType = "chat-appended"
	EventChatRemoved        EventType = "chat-removed"
	EventDraw               EventType = "draw"
	EventCanvasCleared      EventType = "canvas-cleared"
	EventPermissionChanged  EventType = "permission-changed"
	EventPeerAnnounced      EventType = "peer-announced"
	EventPeerRemoved        EventType = "peer-removed"
	EventPeerList           EventType = "peer-list"
	EventKicked             EventType = "kicked"
	EventSessionTerminated  EventType = "session-terminated"
	EventError              EventType = "error"
)

// PeerInfo is the rendezvous tuple the signaling relay exchanges.
// It never carries media; the peer library does the actual handshake
// out of band. Both sides of a pair learn of each other, so the media
// layer breaks the tie deterministically (lexicographic connection id)
// to decide who initiates.
type PeerInfo struct {
	PeerHandle  string `json:"peer_handle"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// SessionSnapshot is handed to the joiner alone so a late joiner is
// always consistent with current room state.
type SessionSnapshot struct {
	Roster            []RosterEntry      `json:"roster"`
	ChatLog           []*ChatMessage     `json:"chat_log"`
	WhiteboardEnabled bool               `json:"whiteboard_enabled"`
	Peers             []PeerInfo         `json:"peers"`
	ICEServers        []webrtc.ICEServer `json:"ice_servers,omitempty"`
}

// Event is the closed tagged variant sent to clients. Exactly the
// fields relevant to Type are populated; everything else stays empty.
type Event struct {
	Type     EventType `json:"type"`
	SenderID string    `json:"sender_id,omitempty"`

	// welcome
	ConnectionID string           `json:"connection_id,omitempty"`
	Role         Role             `json:"role,omitempty"`
	Snapshot     *SessionSnapshot `json:"snapshot,omitempty"`

	// roster changes
	Entry *RosterEntry `json:"entry,omitempty"`

	// chat
	Message   *ChatMessage `json:"message,omitempty"`
	MessageID string       `json:"message_id,omitempty"`

	// whiteboard
	Payload json.RawMessage `json:"payload,omitempty"`
	Enabled *bool           `json:"enabled,omitempty"`

	// signaling
	Peer       *PeerInfo  `json:"peer,omitempty"`
	Peers      []PeerInfo `json:"peers,omitempty"`
	PeerHandle string     `json:"peer_handle,omitempty"`

	// kicked / session-terminated / error
	Reason string `json:"reason,omitempty"`
}

type ClientMessageType string

// Client-to-server message names, validated at the boundary before any
// handler runs.
const (
	ClientChatSend      ClientMessageType = "chat"
	ClientChatDelete    ClientMessageType = "chat-delete"
	ClientDraw          ClientMessageType = "draw"
	ClientCanvasClear   ClientMessageType = "canvas-clear"
	ClientSetGlobalDraw ClientMessageType = "set-global-draw"
	ClientSetUserDraw   ClientMessageType = "set-user-draw"
	ClientKick          ClientMessageType = "kick"
	ClientPeerReady     ClientMessageType = "peer-ready"
	ClientPeerLeft      ClientMessageType = "peer-left"
	ClientLeave         ClientMessageType = "leave"
)

type ClientMessage struct {
	Type       ClientMessageType `json:"type"`
	Text       string            `json:"text,omitempty"`
	MessageID  string            `json:"message_id,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	Enabled    *bool             `json:"enabled,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	PeerHandle string            `json:"peer_handle,omitempty"`
}
