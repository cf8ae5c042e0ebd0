package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"-"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	AuthorRole Role      `json:"author_role"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewChatMessage snapshots the author's name and role at send time,
// so later role changes do not rewrite history.
func NewChatMessage(sessionID uuid.UUID, author *Connection, text string) *ChatMessage {
	msg := &ChatMessage{
		ID:        uuid.New(),
		SessionID: sessionID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if author != nil {
		msg.AuthorID = author.ID
		msg.AuthorName = author.DisplayName
		msg.AuthorRole = author.Role
	}
	return msg
}
