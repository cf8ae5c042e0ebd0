package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/collabboard/internal/config"
	"github.com/immxrtalbeast/collabboard/internal/domain"
	"github.com/immxrtalbeast/collabboard/internal/repository"
	"github.com/immxrtalbeast/collabboard/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

var (
	ErrDisplayNameRequired = errors.New("display name is required")
	ErrDisplayNameTooLong  = errors.New("display name is too long")
	ErrChatMessageEmpty    = errors.New("chat message cannot be empty")
	ErrChatMessageTooLong  = errors.New("chat message is too long")
	ErrPeerHandleRequired  = errors.New("peer handle is required")
)

// SessionService is the single authoritative owner of the room state.
// Every externally triggered operation runs to completion inside one
// critical section on mu, so no two operations can interleave between
// reading a precondition and writing the new state. Event channels are
// filled under the same lock, which keeps per-sender ordering intact
// for every receiver.
type SessionService struct {
	archive    repository.ChatArchiveRepository
	log        *slog.Logger
	cfg        config.SessionConfig
	iceServers []webrtc.ICEServer

	mu                sync.Mutex
	sessionID         uuid.UUID
	conns             map[string]*domain.Connection
	ownerID           string
	chatLog           []*domain.ChatMessage
	whiteboardEnabled bool
	peers             map[string]string
}

func NewSessionService(cfg *config.Config, archive repository.ChatArchiveRepository, log *slog.Logger) *SessionService {
	if log == nil {
		log = slog.Default()
	}

	iceServers := make([]webrtc.ICEServer, 0, len(cfg.WebRTC.STUNServers))
	for _, url := range cfg.WebRTC.STUNServers {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{url}})
	}

	return &SessionService{
		archive:           archive,
		log:               log,
		cfg:               cfg.Session,
		iceServers:        iceServers,
		sessionID:         uuid.New(),
		conns:             make(map[string]*domain.Connection),
		chatLog:           make([]*domain.ChatMessage, 0),
		whiteboardEnabled: cfg.Session.WhiteboardDefault,
		peers:             make(map[string]string),
	}
}

// Join admits a connection. The identity lookup already happened in
// the controller; nothing here suspends, so the claim check and the
// role assignment are one indivisible step under mu. A wrong or
// already-claimed code is not an error: the joiner becomes a
// participant.
func (s *SessionService) Join(ctx context.Context, user *domain.User, claimCode string) (*domain.Connection, *domain.SessionSnapshot, error) {
	const op = "service.session.join"

	if user == nil {
		return nil, nil, errors.New("user is required")
	}
	name := strings.TrimSpace(user.Name)
	if name == "" {
		return nil, nil, ErrDisplayNameRequired
	}
	if utf8.RuneCountInString(name) > s.cfg.MaxDisplayNameLength {
		return nil, nil, ErrDisplayNameTooLong
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	log := s.log.With(slog.String("op", op), slog.String("user_id", user.ID.String()))

	s.mu.Lock()
	defer s.mu.Unlock()

	role := domain.RoleParticipant
	if claimCode != "" && s.cfg.ClaimCode != "" && claimCode == s.cfg.ClaimCode && s.ownerID == "" {
		role = domain.RoleOwner
	}

	conn := domain.NewConnection(user.ID, name, role)
	conn.CanDraw = true
	s.conns[conn.ID] = conn
	if role == domain.RoleOwner {
		s.ownerID = conn.ID
	}

	entry := conn.RosterEntry()
	s.broadcastLocked(domain.Event{
		Type:     domain.EventRosterEntryAdded,
		SenderID: conn.ID,
		Entry:    &entry,
	}, conn.ID)

	log.Info("connection joined",
		slog.String("conn_id", conn.ID),
		slog.String("display_name", conn.DisplayName),
		slog.String("role", string(conn.Role)),
		slog.Int("roster_size", len(s.conns)),
	)

	return conn, s.snapshotLocked(), nil
}

// Leave is the explicit counterpart of a transport-level disconnect.
// Both converge on the same cleanup path.
func (s *SessionService) Leave(connID string) {
	s.terminate(connID, "left")
}

func (s *SessionService) Disconnect(connID string) {
	s.terminate(connID, "disconnected")
}

// Kick notifies the target, then forces its termination. A target that
// already vanished gets registry cleanup plus the roster broadcast, so
// kick is safe to race with a natural disconnect.
func (s *SessionService) Kick(actorID string, targetID string) {
	const op = "service.session.kick"

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOwnerLocked(actorID) {
		s.log.Debug("kick denied", slog.String("op", op), slog.String("conn_id", actorID))
		return
	}

	target, ok := s.conns[targetID]
	if !ok {
		s.reapVanishedLocked(targetID)
		return
	}

	target.EnqueueEvent(domain.Event{
		Type:   domain.EventKicked,
		Reason: "removed by the session owner",
	})
	s.terminateLocked(target, "kicked")
	s.log.Info("connection kicked", slog.String("op", op), slog.String("conn_id", targetID))
}

func (s *SessionService) Stats() domain.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.Stats{
		ParticipantCount:  len(s.conns),
		OwnerPresent:      s.ownerID != "",
		ChatMessageCount:  len(s.chatLog),
		WhiteboardEnabled: s.whiteboardEnabled,
	}
}

func (s *SessionService) terminate(connID string, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Map presence is the exactly-once guard: racing termination
	// triggers find the connection already gone and stop here.
	conn, ok := s.conns[connID]
	if !ok {
		return
	}
	s.terminateLocked(conn, reason)
}

func (s *SessionService) terminateLocked(conn *domain.Connection, reason string) {
	const op = "service.session.terminate"

	if conn.PeerHandle != "" {
		s.unregisterPeerLocked(conn)
	}

	if conn.ID == s.ownerID {
		s.resetLocked(conn, reason)
		return
	}

	delete(s.conns, conn.ID)
	conn.CloseEvents()
	s.broadcastLocked(domain.Event{
		Type:     domain.EventRosterEntryRemoved,
		SenderID: conn.ID,
	}, "")

	s.log.Info("connection terminated",
		slog.String("op", op),
		slog.String("conn_id", conn.ID),
		slog.String("reason", reason),
	)
}

// resetLocked is the cascading teardown: the owner's departure returns
// every remaining participant to a pre-join state and the room to its
// initial configuration. The whiteboard flag goes back to the
// configured default, not unconditionally to enabled.
func (s *SessionService) resetLocked(owner *domain.Connection, reason string) {
	const op = "service.session.reset"

	delete(s.conns, owner.ID)
	owner.CloseEvents()

	s.broadcastLocked(domain.Event{
		Type:   domain.EventSessionTerminated,
		Reason: reason,
	}, "")

	for _, conn := range s.conns {
		conn.CloseEvents()
	}

	s.conns = make(map[string]*domain.Connection)
	s.peers = make(map[string]string)
	s.chatLog = s.chatLog[:0]
	s.ownerID = ""
	s.whiteboardEnabled = s.cfg.WhiteboardDefault
	s.sessionID = uuid.New()

	s.log.Info("room reset after owner departure",
		slog.String("op", op),
		slog.String("reason", reason),
		slog.String("next_session_id", s.sessionID.String()),
	)
}

// reapVanishedLocked handles owner operations aimed at a connection
// that no longer exists: clean up whatever is left behind and announce
// the roster change as if termination had run normally.
func (s *SessionService) reapVanishedLocked(targetID string) {
	for handle, id := range s.peers {
		if id == targetID {
			delete(s.peers, handle)
			s.broadcastLocked(domain.Event{
				Type:       domain.EventPeerRemoved,
				PeerHandle: handle,
			}, "")
		}
	}
	s.broadcastLocked(domain.Event{
		Type:     domain.EventRosterEntryRemoved,
		SenderID: targetID,
	}, "")
}

func (s *SessionService) isOwnerLocked(connID string) bool {
	return connID != "" && connID == s.ownerID
}

func (s *SessionService) snapshotLocked() *domain.SessionSnapshot {
	roster := make([]domain.RosterEntry, 0, len(s.conns))
	peers := make([]domain.PeerInfo, 0, len(s.peers))
	for _, conn := range s.conns {
		roster = append(roster, conn.RosterEntry())
		if conn.PeerHandle != "" {
			peers = append(peers, domain.PeerInfo{
				PeerHandle:  conn.PeerHandle,
				DisplayName: conn.DisplayName,
				Role:        conn.Role,
			})
		}
	}

	chatLog := make([]*domain.ChatMessage, len(s.chatLog))
	copy(chatLog, s.chatLog)

	return &domain.SessionSnapshot{
		Roster:            roster,
		ChatLog:           chatLog,
		WhiteboardEnabled: s.whiteboardEnabled,
		Peers:             peers,
		ICEServers:        s.iceServers,
	}
}

// broadcastLocked enqueues to every connection except exclude. The
// enqueue is non-blocking: a receiver with a full buffer loses the
// event (delivery is at most once) instead of stalling the room.
func (s *SessionService) broadcastLocked(event domain.Event, exclude string) {
	for id, conn := range s.conns {
		if id == exclude {
			continue
		}
		if !conn.EnqueueEvent(event) {
			s.log.Debug("dropping event for slow consumer",
				slog.String("conn_id", id),
				slog.String("type", string(event.Type)),
			)
		}
	}
}

func (s *SessionService) archiveSave(ctx context.Context, msg *domain.ChatMessage) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Save(ctx, msg); err != nil {
		s.log.Warn("failed to archive chat message", slog.String("message_id", msg.ID.String()), sl.Err(err))
	}
}

func (s *SessionService) archiveMarkDeleted(ctx context.Context, id uuid.UUID) {
	if s.archive == nil {
		return
	}
	if err := s.archive.MarkDeleted(ctx, id); err != nil && !errors.Is(err, repository.ErrMessageNotFound) {
		s.log.Warn("failed to mark archived chat message deleted", slog.String("message_id", id.String()), sl.Err(err))
	}
}
