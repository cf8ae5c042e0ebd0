package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner       Role = "owner"
	RoleParticipant Role = "participant"
)

const eventBufferSize = 32

// Connection represents a live participant connection in the room.
// All mutable fields are guarded by the session coordinator's lock;
// the Events channel is the only thing touched from other goroutines.
type Connection struct {
	ID          string
	UserID      uuid.UUID
	DisplayName string
	Role        Role
	CanDraw     bool
	InCall      bool
	PeerHandle  string
	JoinedAt    time.Time
	Events      chan Event

	mu     sync.Mutex
	closed bool
}

func NewConnection(userID uuid.UUID, displayName string, role Role) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		DisplayName: displayName,
		Role:        role,
		CanDraw:     true,
		JoinedAt:    time.Now().UTC(),
		Events:      make(chan Event, eventBufferSize),
	}
}

// EnqueueEvent delivers best-effort: a full buffer drops the event
// rather than blocking the room lock on a slow consumer, and a closed
// connection swallows it.
func (c *Connection) EnqueueEvent(event Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}

// CloseEvents ends the event stream exactly once. The writer pump
// drains what is already buffered, then shuts the socket down.
func (c *Connection) CloseEvents() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Events)
}

// RosterEntry is the wire shape of a connection inside roster
// snapshots and roster change events.
type RosterEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	CanDraw     bool   `json:"can_draw"`
	InCall      bool   `json:"in_call"`
}

func (c *Connection) RosterEntry() RosterEntry {
	return RosterEntry{
		ID:          c.ID,
		DisplayName: c.DisplayName,
		Role:        c.Role,
		CanDraw:     c.CanDraw,
		InCall:      c.InCall,
	}
}
