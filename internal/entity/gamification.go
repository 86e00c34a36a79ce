package entity

import (
	"time"

	"github.com/google/uuid"
)

type PointLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;index:idx_point_logs_user_date,priority:1;not null" json:"user_id"`
	ActionType  string    `gorm:"size:50;not null;uniqueIndex:idx_point_logs_unique_actor,priority:2" json:"action_type"` // 'like_received'
	Points      int       `gorm:"not null" json:"points"`
	ReferenceID string    `gorm:"size:64;not null;uniqueIndex:idx_point_logs_unique_actor,priority:3" json:"reference_id"` // subject string, e.g. "post:42"
	ActorKey    string    `gorm:"size:100;not null;uniqueIndex:idx_point_logs_unique_actor,priority:1" json:"actor_key"`  // reactor who triggered the points
	CreatedAt   time.Time `gorm:"index:idx_point_logs_user_date,priority:2" json:"created_at"`
}

// The unique index on (actor_key, action_type, reference_id) keeps a
// like/unlike loop from awarding the same points twice.

type UserStats struct {
	UserID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	TotalScoreAllTime int       `gorm:"default:0" json:"total_score_all_time"`
	LikesReceived     int64     `gorm:"default:0" json:"likes_received"`
	LastUpdatedAt     time.Time `gorm:"autoUpdateTime" json:"last_updated_at"`
}

func (s *UserStats) TableName() string {
	return "user_stats"
}
