package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/collabboard/internal/domain"
	"github.com/immxrtalbeast/collabboard/internal/repository/model"
	"gorm.io/gorm"
)

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	userModel := toModelUser(user)

	if err := r.db.WithContext(ctx).Create(userModel).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserEmailExists
		}
		return err
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user model.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toDomainUser(&user), nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	userModel := toModelUser(user)

	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userModel.ID).Updates(map[string]any{
		"name":       userModel.Name,
		"email":      userModel.Email,
		"is_guest":   userModel.IsGuest,
		"updated_at": userModel.UpdatedAt,
	})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrUserEmailExists
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

type PostgresChatArchive struct {
	db *gorm.DB
}

func NewPostgresChatArchive(db *gorm.DB) *PostgresChatArchive {
	return &PostgresChatArchive{db: db}
}

func (r *PostgresChatArchive) Save(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg == nil {
		return errors.New("message is nil")
	}

	return r.db.WithContext(ctx).Create(toModelChatMessage(msg)).Error
}

func (r *PostgresChatArchive) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.ChatMessage{}).Where("id = ?", id).Update("deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *PostgresChatArchive) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var messages []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND deleted = false", sessionID).
		Order("created_at asc").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	result := make([]*domain.ChatMessage, 0, len(messages))
	for i := range messages {
		result = append(result, toDomainChatMessage(&messages[i]))
	}
	return result, nil
}

func toModelUser(user *domain.User) *model.User {
	m := &model.User{
		ID:        user.ID,
		Name:      user.Name,
		IsGuest:   user.IsGuest,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if user.Email != "" {
		email := user.Email
		m.Email = &email
	}
	return m
}

func toDomainUser(m *model.User) *domain.User {
	user := &domain.User{
		ID:        m.ID,
		Name:      m.Name,
		IsGuest:   m.IsGuest,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Email != nil {
		user.Email = *m.Email
	}
	return user
}

func toModelChatMessage(msg *domain.ChatMessage) *model.ChatMessage {
	return &model.ChatMessage{
		ID:         msg.ID,
		SessionID:  msg.SessionID,
		AuthorID:   msg.AuthorID,
		AuthorName: msg.AuthorName,
		AuthorRole: string(msg.AuthorRole),
		Text:       msg.Text,
		CreatedAt:  msg.CreatedAt,
	}
}

func toDomainChatMessage(m *model.ChatMessage) *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:         m.ID,
		SessionID:  m.SessionID,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		AuthorRole: domain.Role(m.AuthorRole),
		Text:       m.Text,
		CreatedAt:  m.CreatedAt,
	}
}
