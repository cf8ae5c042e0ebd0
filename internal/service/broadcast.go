package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/collabboard/internal/domain"
)

// SendChat appends a message to the chat log and fans it out to every
// connection, sender included. Any participant may chat; only the text
// itself is validated.
func (s *SessionService) SendChat(ctx context.Context, connID string, text string) error {
	const op = "service.session.chat"

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrChatMessageEmpty
	}
	if utf8.RuneCountInString(trimmed) > s.cfg.MaxChatMessageLength {
		return ErrChatMessageTooLong
	}

	s.mu.Lock()
	conn, ok := s.conns[connID]
	if !ok {
		s.mu.Unlock()
		return nil
	}

	msg := domain.NewChatMessage(s.sessionID, conn, trimmed)
	s.chatLog = append(s.chatLog, msg)
	s.broadcastLocked(domain.Event{
		Type:     domain.EventChatAppended,
		SenderID: conn.ID,
		Message:  msg,
	}, "")
	s.mu.Unlock()

	s.archiveSave(ctx, msg)
	return nil
}

// DeleteChat removes a message from the log. Owner only. Clients that
// already rendered the message learn of the removal solely through the
// chat-removed broadcast; there is no reconciliation pass.
func (s *SessionService) DeleteChat(ctx context.Context, connID string, messageID uuid.UUID) {
	const op = "service.session.chat.delete"

	s.mu.Lock()
	if !s.isOwnerLocked(connID) {
		s.mu.Unlock()
		s.log.Debug("chat delete denied", slog.String("op", op), slog.String("conn_id", connID))
		return
	}

	removed := false
	for i, msg := range s.chatLog {
		if msg.ID == messageID {
			s.chatLog = append(s.chatLog[:i], s.chatLog[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		s.mu.Unlock()
		return
	}

	s.broadcastLocked(domain.Event{
		Type:      domain.EventChatRemoved,
		SenderID:  connID,
		MessageID: messageID.String(),
	}, "")
	s.mu.Unlock()

	s.archiveMarkDeleted(ctx, messageID)
}

// Draw relays a whiteboard payload to everyone but the sender. The
// owner may always draw; a participant needs both the global flag and
// their own can_draw flag. Unauthorized attempts drop silently.
func (s *SessionService) Draw(connID string, payload json.RawMessage) {
	const op = "service.session.draw"

	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[connID]
	if !ok {
		return
	}

	authorized := conn.Role == domain.RoleOwner || (s.whiteboardEnabled && conn.CanDraw)
	if !authorized {
		s.log.Debug("draw denied", slog.String("op", op), slog.String("conn_id", connID))
		return
	}

	s.broadcastLocked(domain.Event{
		Type:     domain.EventDraw,
		SenderID: conn.ID,
		Payload:  payload,
	}, conn.ID)
}

// ClearCanvas is owner only and goes to every connection, the actor
// included, so each client wipes its local canvas in step.
func (s *SessionService) ClearCanvas(connID string) {
	const op = "service.session.canvas.clear"

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOwnerLocked(connID) {
		s.log.Debug("canvas clear denied", slog.String("op", op), slog.String("conn_id", connID))
		return
	}

	s.broadcastLocked(domain.Event{
		Type:     domain.EventCanvasCleared,
		SenderID: connID,
	}, "")
}

func (s *SessionService) SetGlobalDrawPermission(connID string, enabled bool) {
	const op = "service.session.permission.global"

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOwnerLocked(connID) {
		s.log.Debug("global draw permission denied", slog.String("op", op), slog.String("conn_id", connID))
		return
	}

	s.whiteboardEnabled = enabled
	s.broadcastLocked(domain.Event{
		Type:     domain.EventPermissionChanged,
		SenderID: connID,
		Enabled:  &enabled,
	}, "")

	s.log.Info("whiteboard flag changed", slog.String("op", op), slog.Bool("enabled", enabled))
}

func (s *SessionService) SetUserDrawPermission(connID string, targetID string, enabled bool) {
	const op = "service.session.permission.user"

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOwnerLocked(connID) {
		s.log.Debug("user draw permission denied", slog.String("op", op), slog.String("conn_id", connID))
		return
	}

	target, ok := s.conns[targetID]
	if !ok {
		s.reapVanishedLocked(targetID)
		return
	}

	target.CanDraw = enabled
	entry := target.RosterEntry()
	s.broadcastLocked(domain.Event{
		Type:     domain.EventRosterEntryUpdated,
		SenderID: connID,
		Entry:    &entry,
	}, "")

	s.log.Info("user draw permission changed",
		slog.String("op", op),
		slog.String("target_id", targetID),
		slog.Bool("enabled", enabled),
	)
}
