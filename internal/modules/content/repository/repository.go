package repository

import (
	"context"
	"errors"

	"anoa.com/ulike/internal/entity"
	"anoa.com/ulike/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContentRepository is the read model of the host's reactable content.
type ContentRepository interface {
	FindBySubject(ctx context.Context, subject entity.Subject) (*entity.ContentItem, error)
	Upsert(ctx context.Context, item *entity.ContentItem) error
}

type contentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) FindBySubject(ctx context.Context, subject entity.Subject) (*entity.ContentItem, error) {
	var item entity.ContentItem
	err := r.db.WithContext(ctx).
		Where("item_type = ? AND item_id = ?", subject.Type, subject.ID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Upsert registers or updates a content item, e.g. when the host publishes it.
func (r *contentRepository) Upsert(ctx context.Context, item *entity.ContentItem) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_type"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"author_id", "title"}),
	}).Create(item).Error
}
