package converter

import "github.com/immxrtalbeast/collabboard/internal/domain"

// WelcomeEvent packages the join result for the joiner alone: their
// connection id, assigned role, and the full room snapshot.
func WelcomeEvent(conn *domain.Connection, snapshot *domain.SessionSnapshot) domain.Event {
	return domain.Event{
		Type:         domain.EventWelcome,
		ConnectionID: conn.ID,
		Role:         conn.Role,
		Snapshot:     snapshot,
	}
}

// PeerListEvent is the direct reply to peer-ready: every other
// currently registered peer.
func PeerListEvent(peers []domain.PeerInfo) domain.Event {
	if peers == nil {
		peers = []domain.PeerInfo{}
	}
	return domain.Event{
		Type:  domain.EventPeerList,
		Peers: peers,
	}
}

func ErrorEvent(reason string) domain.Event {
	return domain.Event{
		Type:   domain.EventError,
		Reason: reason,
	}
}
