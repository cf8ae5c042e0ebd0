package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/collabboard/internal/domain"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserEmailExists = errors.New("user with email already exists")
	ErrMessageNotFound = errors.New("chat message not found")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

// ChatArchiveRepository keeps an audit trail of chat traffic per
// coordinator session. The in-memory chat log stays authoritative for
// snapshots; the archive is write-behind and survives room resets.
type ChatArchiveRepository interface {
	Save(ctx context.Context, msg *domain.ChatMessage) error
	MarkDeleted(ctx context.Context, id uuid.UUID) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.ChatMessage, error)
}
