package repository

import (
	"context"
	"time"

	"anoa.com/ulike/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LeaderboardRepository interface {
	// AwardOnce records a point log and bumps the user's stats. It reports
	// false when the same actor already earned these points for the same
	// reference.
	AwardOnce(ctx context.Context, entry *entity.PointLog, likeReceived bool) (bool, error)
	GetUserStats(ctx context.Context, userID uuid.UUID) (*entity.UserStats, error)
	GetTopUsers(ctx context.Context, limit int) ([]entity.UserStats, error)
}

type leaderboardRepository struct {
	db *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

func (r *leaderboardRepository) AwardOnce(ctx context.Context, entry *entity.PointLog, likeReceived bool) (bool, error) {
	awarded := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now().UTC()
		}

		// The unique (actor_key, action_type, reference_id) index rejects a
		// second award for a like/unlike/like loop.
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_key"}, {Name: "action_type"}, {Name: "reference_id"}},
			DoNothing: true,
		}).Create(entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var likes int64
		if likeReceived {
			likes = 1
		}

		// Using GORM OnConflict for Upsert
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_score_all_time": gorm.Expr("user_stats.total_score_all_time + ?", entry.Points),
				"likes_received":       gorm.Expr("user_stats.likes_received + ?", likes),
				"last_updated_at":      entry.CreatedAt,
			}),
		}).Create(&entity.UserStats{
			UserID:            entry.UserID,
			TotalScoreAllTime: entry.Points,
			LikesReceived:     likes,
			LastUpdatedAt:     entry.CreatedAt,
		}).Error
		if err != nil {
			return err
		}

		awarded = true
		return nil
	})
	return awarded, err
}

func (r *leaderboardRepository) GetUserStats(ctx context.Context, userID uuid.UUID) (*entity.UserStats, error) {
	var stats []entity.UserStats
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&stats).Error; err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return &entity.UserStats{UserID: userID}, nil
	}
	return &stats[0], nil
}

func (r *leaderboardRepository) GetTopUsers(ctx context.Context, limit int) ([]entity.UserStats, error) {
	var stats []entity.UserStats
	err := r.db.WithContext(ctx).
		Order("total_score_all_time DESC").
		Order("likes_received DESC").
		Limit(limit).
		Find(&stats).Error
	return stats, err
}
