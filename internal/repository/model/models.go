package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:255;not null"`
	Email     *string   `gorm:"size:255;uniqueIndex:idx_users_email,where:email IS NOT NULL"`
	IsGuest   bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type ChatMessage struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionID  uuid.UUID `gorm:"type:uuid;index;not null"`
	AuthorID   string    `gorm:"size:64;not null"`
	AuthorName string    `gorm:"size:255;not null"`
	AuthorRole string    `gorm:"size:32;not null"`
	Text       string    `gorm:"type:text;not null"`
	Deleted    bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null"`
}
