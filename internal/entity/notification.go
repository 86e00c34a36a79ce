package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Notification struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"` // User who receives the notification
	ActorID    uuid.UUID `gorm:"type:uuid;not null" json:"actor_id"`      // User who reacted
	EntityType ItemType  `gorm:"size:20;not null" json:"entity_type"`
	EntityID   uint64    `gorm:"not null" json:"entity_id"`
	Type       string    `gorm:"size:50;not null" json:"type"` // 'like_post', 'like_comment', ...
	Message    string    `gorm:"type:text" json:"message"`
	IsRead     bool      `gorm:"default:false" json:"is_read"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
