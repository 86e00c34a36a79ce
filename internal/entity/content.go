package entity

import (
	"time"

	"github.com/google/uuid"
)

// ContentItem is the read model of a reactable item owned by the host
// application. Reactions only need to know that it exists and who wrote it.
type ContentItem struct {
	ItemType  ItemType   `gorm:"size:20;primaryKey" json:"item_type"`
	ItemID    uint64     `gorm:"primaryKey;autoIncrement:false" json:"item_id"`
	AuthorID  *uuid.UUID `gorm:"type:uuid;index" json:"author_id,omitempty"`
	Title     string     `gorm:"size:255" json:"title"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (c *ContentItem) TableName() string {
	return "content_items"
}

func (c *ContentItem) Subject() Subject {
	return Subject{Type: c.ItemType, ID: c.ItemID}
}
