package service

import (
	"log/slog"

	"github.com/immxrtalbeast/collabboard/internal/domain"
)

// PeerReady registers a media rendezvous handle for the calling
// connection and returns every other currently registered peer. Only
// the newcomer's arrival is pushed to the others; the caller learns of
// existing peers solely through the returned list. Both sides of a
// pair may now decide to dial, so the media layer is expected to break
// the tie deterministically (lexicographic connection id).
func (s *SessionService) PeerReady(connID string, peerHandle string) []domain.PeerInfo {
	const op = "service.session.peer.ready"

	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[connID]
	if !ok {
		return nil
	}

	// Re-registering the same handle is a no-op and must not
	// re-trigger the rendezvous broadcast.
	if conn.PeerHandle == peerHandle {
		return s.otherPeersLocked(connID)
	}

	if owner, taken := s.peers[peerHandle]; taken && owner != connID {
		s.log.Debug("peer handle already registered",
			slog.String("op", op),
			slog.String("peer_handle", peerHandle),
			slog.String("conn_id", connID),
		)
		return nil
	}

	// A connection swapping handles retires the old one first.
	if conn.PeerHandle != "" {
		s.unregisterPeerLocked(conn)
	}

	s.peers[peerHandle] = connID
	conn.PeerHandle = peerHandle
	conn.InCall = true

	s.broadcastLocked(domain.Event{
		Type: domain.EventPeerAnnounced,
		Peer: &domain.PeerInfo{
			PeerHandle:  peerHandle,
			DisplayName: conn.DisplayName,
			Role:        conn.Role,
		},
	}, connID)

	s.log.Info("peer registered",
		slog.String("op", op),
		slog.String("conn_id", connID),
		slog.String("peer_handle", peerHandle),
	)

	return s.otherPeersLocked(connID)
}

// PeerLeft unregisters the handle, but only if it belongs to the
// calling connection.
func (s *SessionService) PeerLeft(connID string, peerHandle string) {
	const op = "service.session.peer.left"

	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[connID]
	if !ok {
		return
	}
	if conn.PeerHandle != peerHandle {
		s.log.Debug("peer left ignored, handle not owned",
			slog.String("op", op),
			slog.String("conn_id", connID),
			slog.String("peer_handle", peerHandle),
		)
		return
	}

	s.unregisterPeerLocked(conn)
}

func (s *SessionService) unregisterPeerLocked(conn *domain.Connection) {
	handle := conn.PeerHandle
	delete(s.peers, handle)
	conn.PeerHandle = ""
	conn.InCall = false

	s.broadcastLocked(domain.Event{
		Type:       domain.EventPeerRemoved,
		PeerHandle: handle,
	}, conn.ID)
}

func (s *SessionService) otherPeersLocked(connID string) []domain.PeerInfo {
	peers := make([]domain.PeerInfo, 0, len(s.peers))
	for _, conn := range s.conns {
		if conn.ID == connID || conn.PeerHandle == "" {
			continue
		}
		peers = append(peers, domain.PeerInfo{
			PeerHandle:  conn.PeerHandle,
			DisplayName: conn.DisplayName,
			Role:        conn.Role,
		})
	}
	return peers
}
