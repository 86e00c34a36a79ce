package repository

import (
	"context"

	"anoa.com/ulike/internal/entity"
	"gorm.io/gorm"
)

// TypeTotal sums the counters of one item type.
type TypeTotal struct {
	ItemType     entity.ItemType
	Subjects     int64
	LikeCount    int64
	DislikeCount int64
}

// RankedSubject is a counter row joined with its content title.
type RankedSubject struct {
	ItemType     entity.ItemType
	ItemID       uint64
	Title        string
	LikeCount    int64
	DislikeCount int64
}

type StatRepository interface {
	TotalsByType(ctx context.Context) ([]TypeTotal, error)
	// TopLiked orders subjects by like count. An empty itemType spans all types.
	TopLiked(ctx context.Context, itemType entity.ItemType, limit int) ([]RankedSubject, error)
	CountReactors(ctx context.Context) (int64, error)
}

type statRepository struct {
	db *gorm.DB
}

func NewStatRepository(db *gorm.DB) StatRepository {
	return &statRepository{db: db}
}

func (r *statRepository) TotalsByType(ctx context.Context) ([]TypeTotal, error) {
	var totals []TypeTotal
	err := r.db.WithContext(ctx).
		Model(&entity.ReactionCounter{}).
		Select("item_type, COUNT(*) AS subjects, COALESCE(SUM(like_count), 0) AS like_count, COALESCE(SUM(dislike_count), 0) AS dislike_count").
		Group("item_type").
		Order("item_type").
		Scan(&totals).Error
	return totals, err
}

func (r *statRepository) TopLiked(ctx context.Context, itemType entity.ItemType, limit int) ([]RankedSubject, error) {
	query := r.db.WithContext(ctx).
		Table("reaction_counters AS rc").
		Select("rc.item_type, rc.item_id, COALESCE(ci.title, '') AS title, rc.like_count, rc.dislike_count").
		Joins("LEFT JOIN content_items ci ON ci.item_type = rc.item_type AND ci.item_id = rc.item_id").
		Where("rc.like_count > 0")
	if itemType != "" {
		query = query.Where("rc.item_type = ?", itemType)
	}

	var ranked []RankedSubject
	err := query.
		Order("rc.like_count DESC, rc.item_type, rc.item_id").
		Limit(limit).
		Scan(&ranked).Error
	return ranked, err
}

// CountReactors counts distinct reactors holding a non-none reaction.
func (r *statRepository) CountReactors(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Reaction{}).
		Where("state <> ?", entity.StateNone).
		Distinct("reactor_key").
		Count(&count).Error
	return count, err
}
