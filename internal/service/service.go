package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/collabboard/internal/domain"
)

type SessionInteractor interface {
	Join(ctx context.Context, user *domain.User, claimCode string) (*domain.Connection, *domain.SessionSnapshot, error)
	Leave(connID string)
	Disconnect(connID string)
	Kick(actorID string, targetID string)

	SendChat(ctx context.Context, connID string, text string) error
	DeleteChat(ctx context.Context, connID string, messageID uuid.UUID)

	Draw(connID string, payload json.RawMessage)
	ClearCanvas(connID string)
	SetGlobalDrawPermission(connID string, enabled bool)
	SetUserDrawPermission(connID string, targetID string, enabled bool)

	PeerReady(connID string, peerHandle string) []domain.PeerInfo
	PeerLeft(connID string, peerHandle string)

	Stats() domain.Stats
}

type UserInteractor interface {
	CreateUser(ctx context.Context, name string, email string) (*domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}
