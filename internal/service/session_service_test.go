package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/collabboard/internal/config"
	"github.com/immxrtalbeast/collabboard/internal/domain"
	"github.com/immxrtalbeast/collabboard/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClaimCode = "test-secret"

func newTestService() *SessionService {
	cfg := &config.Config{
		Session: config.SessionConfig{
			ClaimCode:            testClaimCode,
			WhiteboardDefault:    true,
			MaxChatMessageLength: 100,
			MaxDisplayNameLength: 32,
		},
		WebRTC: config.WebRTCConfig{
			STUNServers: []string{"stun:stun.example.org:3478"},
		},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSessionService(cfg, repository.NewInMemoryChatArchive(), log)
}

func join(t *testing.T, s *SessionService, name string, claimCode string) (*domain.Connection, *domain.SessionSnapshot) {
	t.Helper()
	conn, snapshot, err := s.Join(context.Background(), domain.NewGuestUser(name), claimCode)
	require.NoError(t, err)
	require.NotNil(t, conn)
	require.NotNil(t, snapshot)
	return conn, snapshot
}

// drainEvents empties whatever is currently buffered for a connection.
func drainEvents(c *domain.Connection) []domain.Event {
	var out []domain.Event
	for {
		select {
		case event, ok := <-c.Events:
			if !ok {
				return out
			}
			out = append(out, event)
		default:
			return out
		}
	}
}

func eventsOfType(events []domain.Event, t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestJoinAssignsOwnerToFirstValidClaim(t *testing.T) {
	s := newTestService()

	owner, snapshot := join(t, s, "Ann", testClaimCode)
	assert.Equal(t, domain.RoleOwner, owner.Role)
	assert.True(t, owner.CanDraw)
	assert.True(t, snapshot.WhiteboardEnabled)
	assert.Len(t, snapshot.Roster, 1)
	require.Len(t, snapshot.ICEServers, 1)

	second, snapshot2 := join(t, s, "Bo", testClaimCode)
	assert.Equal(t, domain.RoleParticipant, second.Role, "second valid claim must not win a second owner")
	assert.Len(t, snapshot2.Roster, 2)

	wrong, _ := join(t, s, "Cy", "wrong-code")
	assert.Equal(t, domain.RoleParticipant, wrong.Role)
}

func TestConcurrentJoinsProduceSingleOwner(t *testing.T) {
	s := newTestService()

	const joiners = 50
	conns := make([]*domain.Connection, joiners)
	var wg sync.WaitGroup
	wg.Add(joiners)
	for i := 0; i < joiners; i++ {
		go func(i int) {
			defer wg.Done()
			conn, _, err := s.Join(context.Background(), domain.NewGuestUser("racer"), testClaimCode)
			if err != nil {
				t.Error(err)
				return
			}
			conns[i] = conn
		}(i)
	}
	wg.Wait()

	owners := 0
	for _, conn := range conns {
		if conn.Role == domain.RoleOwner {
			owners++
		}
	}
	assert.Equal(t, 1, owners)

	stats := s.Stats()
	assert.Equal(t, joiners, stats.ParticipantCount)
	assert.True(t, stats.OwnerPresent)
}

func TestJoinValidatesDisplayName(t *testing.T) {
	s := newTestService()

	_, _, err := s.Join(context.Background(), domain.NewGuestUser("   "), "")
	assert.ErrorIs(t, err, ErrDisplayNameRequired)

	_, _, err = s.Join(context.Background(), domain.NewGuestUser("this display name is far far too long for the limit"), "")
	assert.ErrorIs(t, err, ErrDisplayNameTooLong)
}

func TestJoinNotifiesExistingConnections(t *testing.T) {
	s := newTestService()

	owner, _ := join(t, s, "Ann", testClaimCode)
	drainEvents(owner)

	bo, _ := join(t, s, "Bo", "")

	added := eventsOfType(drainEvents(owner), domain.EventRosterEntryAdded)
	require.Len(t, added, 1)
	assert.Equal(t, bo.ID, added[0].Entry.ID)
	assert.Equal(t, "Bo", added[0].Entry.DisplayName)

	assert.Empty(t, eventsOfType(drainEvents(bo), domain.EventRosterEntryAdded),
		"the joiner gets the snapshot, not its own roster notice")
}

func TestOwnerOnlyOperationsAreSilentNoOpsForParticipants(t *testing.T) {
	s := newTestService()

	owner, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	drainEvents(owner)
	drainEvents(bo)

	s.ClearCanvas(bo.ID)
	s.SetGlobalDrawPermission(bo.ID, false)
	s.SetUserDrawPermission(bo.ID, owner.ID, false)
	s.Kick(bo.ID, owner.ID)

	assert.Empty(t, drainEvents(owner))
	assert.Empty(t, drainEvents(bo))

	stats := s.Stats()
	assert.Equal(t, 2, stats.ParticipantCount)
	assert.True(t, stats.OwnerPresent)
	assert.True(t, stats.WhiteboardEnabled)
	assert.True(t, owner.CanDraw)
}

func TestChatSendBroadcastsToEveryoneIncludingSender(t *testing.T) {
	s := newTestService()

	owner, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	drainEvents(owner)
	drainEvents(bo)

	require.NoError(t, s.SendChat(context.Background(), bo.ID, "  hi  "))

	for _, conn := range []*domain.Connection{owner, bo} {
		appended := eventsOfType(drainEvents(conn), domain.EventChatAppended)
		require.Len(t, appended, 1)
		assert.Equal(t, "Bo", appended[0].Message.AuthorName)
		assert.Equal(t, domain.RoleParticipant, appended[0].Message.AuthorRole)
		assert.Equal(t, "hi", appended[0].Message.Text)
	}

	assert.Equal(t, 1, s.Stats().ChatMessageCount)
}

func TestChatValidation(t *testing.T) {
	s := newTestService()
	owner, _ := join(t, s, "Ann", testClaimCode)

	assert.ErrorIs(t, s.SendChat(context.Background(), owner.ID, "   "), ErrChatMessageEmpty)

	long := make([]rune, 101)
	for i := range long {
		long[i] = 'x'
	}
	assert.ErrorIs(t, s.SendChat(context.Background(), owner.ID, string(long)), ErrChatMessageTooLong)
}

func TestChatDeleteRemovesMessageFromSnapshots(t *testing.T) {
	s := newTestService()

	owner, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	require.NoError(t, s.SendChat(context.Background(), bo.ID, "delete me"))

	appended := eventsOfType(drainEvents(owner), domain.EventChatAppended)
	require.Len(t, appended, 1)
	msgID := appended[0].Message.ID
	drainEvents(bo)

	s.DeleteChat(context.Background(), owner.ID, msgID)

	removed := eventsOfType(drainEvents(bo), domain.EventChatRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, msgID.String(), removed[0].MessageID)

	_, snapshot := join(t, s, "Cy", "")
	assert.Empty(t, snapshot.ChatLog)
	assert.Equal(t, 0, s.Stats().ChatMessageCount)
}

func TestChatDeleteByParticipantIsIgnored(t *testing.T) {
	s := newTestService()

	owner, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	require.NoError(t, s.SendChat(context.Background(), owner.ID, "stays"))

	appended := eventsOfType(drainEvents(bo), domain.EventChatAppended)
	require.Len(t, appended, 1)
	drainEvents(owner)

	s.DeleteChat(context.Background(), bo.ID, appended[0].Message.ID)

	assert.Empty(t, eventsOfType(drainEvents(owner), domain.EventChatRemoved))
	assert.Equal(t, 1, s.Stats().ChatMessageCount)
}

func TestDrawAuthorization(t *testing.T) {
	s := newTestService()

	owner, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	payload := json.RawMessage(`{"stroke":[1,2,3]}`)

	drainEvents(owner)
	drainEvents(bo)

	// Participant with permission: everyone but the sender gets it.
	s.Draw(bo.ID, payload)
	require.Len(t, eventsOfType(drainEvents(owner), domain.EventDraw), 1)
	assert.Empty(t, eventsOfType(drainEvents(bo), domain.EventDraw))

	// Revoked participant is silently dropped.
	s.SetUserDrawPermission(owner.ID, bo.ID, false)
	drainEvents(owner)
	drainEvents(bo)
	s.Draw(bo.ID, payload)
	assert.Empty(t, eventsOfType(drainEvents(owner), domain.EventDraw))

	// Whiteboard disabled blocks participants but never the owner.
	s.SetUserDrawPermission(owner.ID, bo.ID, true)
	s.SetGlobalDrawPermission(owner.ID, false)
	drainEvents(owner)
	drainEvents(bo)

	s.Draw(bo.ID, payload)
	assert.Empty(t, eventsOfType(drainEvents(owner), domain.EventDraw))

	s.Draw(owner.ID, payload)
	drawn := eventsOfType(drainEvents(bo), domain.EventDraw)
	require.Len(t, drawn, 1)
	assert.Equal(t, owner.ID, drawn[0].SenderID)
}

func TestPermissionBroadcastsIncludeActor(t *testing.T) {
	s := newTestService()

	owner, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	drainEvents(owner)
	drainEvents(bo)

	s.SetGlobalDrawPermission(owner.ID, false)
	for _, conn := range []*domain.Connection{owner, bo} {
		changed := eventsOfType(drainEvents(conn), domain.EventPermissionChanged)
		require.Len(t, changed, 1)
		require.NotNil(t, changed[0].Enabled)
		assert.False(t, *changed[0].Enabled)
	}

	s.ClearCanvas(owner.ID)
	for _, conn := range []*domain.Connection{owner, bo} {
		require.Len(t, eventsOfType(drainEvents(conn), domain.EventCanvasCleared), 1)
	}

	s.SetUserDrawPermission(owner.ID, bo.ID, false)
	for _, conn := range []*domain.Connection{owner, bo} {
		updated := eventsOfType(drainEvents(conn), domain.EventRosterEntryUpdated)
		require.Len(t, updated, 1)
		assert.Equal(t, bo.ID, updated[0].Entry.ID)
		assert.False(t, updated[0].Entry.CanDraw)
	}
}

func TestPeerRendezvous(t *testing.T) {
	s := newTestService()

	ann, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	drainEvents(ann)
	drainEvents(bo)

	existing := s.PeerReady(ann.ID, "peer-ann")
	assert.Empty(t, existing)

	existing = s.PeerReady(bo.ID, "peer-bo")
	require.Len(t, existing, 1)
	assert.Equal(t, "peer-ann", existing[0].PeerHandle)
	assert.Equal(t, "Ann", existing[0].DisplayName)
	assert.Equal(t, domain.RoleOwner, existing[0].Role)

	announced := eventsOfType(drainEvents(ann), domain.EventPeerAnnounced)
	require.Len(t, announced, 1)
	assert.Equal(t, "peer-bo", announced[0].Peer.PeerHandle)

	// The newcomer is not re-announced to itself.
	assert.Empty(t, eventsOfType(drainEvents(bo), domain.EventPeerAnnounced))
}

func TestPeerReadyIsIdempotent(t *testing.T) {
	s := newTestService()

	ann, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	s.PeerReady(ann.ID, "peer-ann")
	s.PeerReady(bo.ID, "peer-bo")
	drainEvents(ann)
	drainEvents(bo)

	existing := s.PeerReady(bo.ID, "peer-bo")
	require.Len(t, existing, 1)
	assert.Equal(t, "peer-ann", existing[0].PeerHandle)
	assert.Empty(t, eventsOfType(drainEvents(ann), domain.EventPeerAnnounced))
	assert.Empty(t, eventsOfType(drainEvents(ann), domain.EventPeerRemoved))
}

func TestPeerHandleCollisionIsRejected(t *testing.T) {
	s := newTestService()

	ann, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	s.PeerReady(ann.ID, "shared-handle")
	drainEvents(ann)

	existing := s.PeerReady(bo.ID, "shared-handle")
	assert.Nil(t, existing)
	assert.Empty(t, eventsOfType(drainEvents(ann), domain.EventPeerAnnounced))
	assert.Empty(t, bo.PeerHandle)
}

func TestPeerLeftOnlyForOwnHandle(t *testing.T) {
	s := newTestService()

	ann, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	s.PeerReady(ann.ID, "peer-ann")
	s.PeerReady(bo.ID, "peer-bo")
	drainEvents(ann)
	drainEvents(bo)

	// Bo cannot unregister Ann's handle.
	s.PeerLeft(bo.ID, "peer-ann")
	assert.Empty(t, eventsOfType(drainEvents(ann), domain.EventPeerRemoved))

	s.PeerLeft(bo.ID, "peer-bo")
	removed := eventsOfType(drainEvents(ann), domain.EventPeerRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, "peer-bo", removed[0].PeerHandle)
	assert.False(t, bo.InCall)
}

func TestParticipantDisconnectRemovesRosterEntry(t *testing.T) {
	s := newTestService()

	owner, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	s.PeerReady(bo.ID, "peer-bo")
	drainEvents(owner)

	s.Disconnect(bo.ID)

	events := drainEvents(owner)
	removedPeers := eventsOfType(events, domain.EventPeerRemoved)
	require.Len(t, removedPeers, 1, "registered peer handle is retired before the roster notice")
	removed := eventsOfType(events, domain.EventRosterEntryRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, bo.ID, removed[0].SenderID)

	stats := s.Stats()
	assert.Equal(t, 1, stats.ParticipantCount)
	assert.True(t, stats.OwnerPresent)
}

func TestTerminationIsIdempotent(t *testing.T) {
	s := newTestService()

	owner, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	drainEvents(owner)

	s.Disconnect(bo.ID)
	s.Leave(bo.ID)
	s.Disconnect(bo.ID)

	removed := eventsOfType(drainEvents(owner), domain.EventRosterEntryRemoved)
	assert.Len(t, removed, 1, "cleanup must run exactly once per connection")
}

func TestOwnerDepartureResetsRoom(t *testing.T) {
	s := newTestService()

	owner, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	cy, _ := join(t, s, "Cy", "")

	require.NoError(t, s.SendChat(context.Background(), bo.ID, "hello"))
	s.PeerReady(cy.ID, "peer-cy")
	s.SetGlobalDrawPermission(owner.ID, false)
	drainEvents(bo)
	drainEvents(cy)

	s.Disconnect(owner.ID)

	for _, conn := range []*domain.Connection{bo, cy} {
		terminated := eventsOfType(drainEvents(conn), domain.EventSessionTerminated)
		require.Len(t, terminated, 1)
		_, open := <-conn.Events
		assert.False(t, open, "event stream must be closed after teardown")
	}

	stats := s.Stats()
	assert.Equal(t, 0, stats.ParticipantCount)
	assert.False(t, stats.OwnerPresent)
	assert.Equal(t, 0, stats.ChatMessageCount)
	assert.True(t, stats.WhiteboardEnabled, "whiteboard flag returns to the configured default")

	_, snapshot := join(t, s, "Dee", "")
	assert.Len(t, snapshot.Roster, 1)
	assert.Empty(t, snapshot.ChatLog)
	assert.Empty(t, snapshot.Peers)
	assert.True(t, snapshot.WhiteboardEnabled)
}

func TestKickNotifiesTargetAndBroadcastsRemoval(t *testing.T) {
	s := newTestService()

	owner, _ := join(t, s, "Ann", testClaimCode)
	bo, _ := join(t, s, "Bo", "")
	drainEvents(owner)
	drainEvents(bo)

	s.Kick(owner.ID, bo.ID)

	boEvents := drainEvents(bo)
	require.Len(t, eventsOfType(boEvents, domain.EventKicked), 1)
	_, open := <-bo.Events
	assert.False(t, open)

	removed := eventsOfType(drainEvents(owner), domain.EventRosterEntryRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, bo.ID, removed[0].SenderID)
}

func TestKickVanishedTargetFallsBackToCleanup(t *testing.T) {
	s := newTestService()

	owner, _ := join(t, s, "Ann", testClaimCode)
	drainEvents(owner)

	ghostID := uuid.New().String()
	s.Kick(owner.ID, ghostID)

	removed := eventsOfType(drainEvents(owner), domain.EventRosterEntryRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, ghostID, removed[0].SenderID)
	assert.Equal(t, 1, s.Stats().ParticipantCount)
}

func TestSetUserDrawPermissionOnVanishedTarget(t *testing.T) {
	s := newTestService()

	owner, _ := join(t, s, "Ann", testClaimCode)
	drainEvents(owner)

	s.SetUserDrawPermission(owner.ID, "gone", true)

	removed := eventsOfType(drainEvents(owner), domain.EventRosterEntryRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, "gone", removed[0].SenderID)
}

// The end-to-end walk from the product scenario: claim, join, chat,
// revoke drawing, owner leaves, fresh room.
func TestFullSessionScenario(t *testing.T) {
	s := newTestService()

	ann, _ := join(t, s, "Ann", testClaimCode)
	require.Equal(t, domain.RoleOwner, ann.Role)

	bo, snapshot := join(t, s, "Bo", "")
	require.Equal(t, domain.RoleParticipant, bo.Role)
	require.Len(t, snapshot.Roster, 2)
	drainEvents(ann)
	drainEvents(bo)

	require.NoError(t, s.SendChat(context.Background(), bo.ID, "hi"))
	for _, conn := range []*domain.Connection{ann, bo} {
		appended := eventsOfType(drainEvents(conn), domain.EventChatAppended)
		require.Len(t, appended, 1)
		assert.Equal(t, "Bo", appended[0].Message.AuthorName)
		assert.Equal(t, "hi", appended[0].Message.Text)
	}

	s.SetUserDrawPermission(ann.ID, bo.ID, false)
	drainEvents(ann)
	drainEvents(bo)

	s.Draw(bo.ID, json.RawMessage(`{"stroke":[]}`))
	assert.Empty(t, eventsOfType(drainEvents(ann), domain.EventDraw))

	s.Disconnect(ann.ID)
	require.Len(t, eventsOfType(drainEvents(bo), domain.EventSessionTerminated), 1)

	_, fresh := join(t, s, "Eve", "")
	assert.Len(t, fresh.Roster, 1)
	assert.Empty(t, fresh.ChatLog)
	assert.True(t, fresh.WhiteboardEnabled)
}

func TestChatArchiveReceivesTraffic(t *testing.T) {
	archive := repository.NewInMemoryChatArchive()
	cfg := &config.Config{
		Session: config.SessionConfig{
			ClaimCode:            testClaimCode,
			WhiteboardDefault:    true,
			MaxChatMessageLength: 100,
			MaxDisplayNameLength: 32,
		},
	}
	s := NewSessionService(cfg, archive, slog.New(slog.NewTextHandler(io.Discard, nil)))

	owner, _ := join(t, s, "Ann", testClaimCode)
	require.NoError(t, s.SendChat(context.Background(), owner.ID, "kept"))
	require.NoError(t, s.SendChat(context.Background(), owner.ID, "dropped"))

	appended := eventsOfType(drainEvents(owner), domain.EventChatAppended)
	require.Len(t, appended, 2)
	s.DeleteChat(context.Background(), owner.ID, appended[1].Message.ID)

	archived, err := archive.ListBySession(context.Background(), appended[0].Message.SessionID)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "kept", archived[0].Text)
}
