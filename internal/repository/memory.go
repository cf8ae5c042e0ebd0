package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/collabboard/internal/domain"
)

type InMemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]*domain.User
	emails map[string]uuid.UUID
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:  make(map[uuid.UUID]*domain.User),
		emails: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if user.Email != "" {
		if _, ok := r.emails[user.Email]; ok {
			return ErrUserEmailExists
		}
		r.emails[user.Email] = user.ID
	}

	r.users[user.ID] = user
	return nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	return user, nil
}

func (r *InMemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return ErrUserNotFound
	}

	r.users[user.ID] = user
	if user.Email != "" {
		r.emails[user.Email] = user.ID
	}
	return nil
}

type archiveEntry struct {
	msg     *domain.ChatMessage
	deleted bool
}

type InMemoryChatArchive struct {
	mu      sync.RWMutex
	order   []uuid.UUID
	entries map[uuid.UUID]*archiveEntry
}

func NewInMemoryChatArchive() *InMemoryChatArchive {
	return &InMemoryChatArchive{
		entries: make(map[uuid.UUID]*archiveEntry),
	}
}

func (r *InMemoryChatArchive) Save(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[msg.ID]; !ok {
		r.order = append(r.order, msg.ID)
	}
	r.entries[msg.ID] = &archiveEntry{msg: msg}
	return nil
}

func (r *InMemoryChatArchive) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return ErrMessageNotFound
	}

	entry.deleted = true
	return nil
}

func (r *InMemoryChatArchive) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.ChatMessage, 0, len(r.order))
	for _, id := range r.order {
		entry := r.entries[id]
		if entry.deleted || entry.msg.SessionID != sessionID {
			continue
		}
		result = append(result, entry.msg)
	}
	return result, nil
}
