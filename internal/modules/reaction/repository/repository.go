package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anoa.com/ulike/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrVersionConflict means another writer changed the record after it was read.
	ErrVersionConflict = errors.New("reaction record version conflict")
	// ErrCounterUnderflow aborts a transition that would drive a counter below zero.
	ErrCounterUnderflow = errors.New("reaction counter underflow")
)

// Transition is one atomic record + counter mutation.
type Transition struct {
	Subject entity.Subject
	Reactor entity.Reactor
	// Expected is the record as it was read; nil when no record existed.
	Expected     *entity.Reaction
	Next         entity.State
	LikeDelta    int64
	DislikeDelta int64
}

// ReactorEntry is one row of a likers listing.
type ReactorEntry struct {
	Reactor   entity.Reactor
	ReactedAt time.Time
}

// Page selects a window of a listing, 1-based.
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

type ReactionRepository interface {
	Get(ctx context.Context, subject entity.Subject, reactor entity.Reactor) (*entity.Reaction, error)
	ApplyTransition(ctx context.Context, t Transition) (*entity.Reaction, *entity.ReactionCounter, error)
	GetCounters(ctx context.Context, subject entity.Subject) (*entity.ReactionCounter, error)
	ListReactors(ctx context.Context, subject entity.Subject, state entity.State, page Page) ([]ReactorEntry, int64, error)
	CountByState(ctx context.Context, subject entity.Subject) (*entity.ReactionCounter, error)
	SetCounters(ctx context.Context, counter *entity.ReactionCounter) error
	// RecountCounters rewrites the counter row from the record set while
	// holding the row lock, so concurrent transitions land on top of it.
	RecountCounters(ctx context.Context, subject entity.Subject) (*entity.ReactionCounter, error)
}

type reactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) Get(ctx context.Context, subject entity.Subject, reactor entity.Reactor) (*entity.Reaction, error) {
	// Use Find with slice to avoid "record not found" log noise from GORM's First()
	var existing []entity.Reaction
	err := r.db.WithContext(ctx).
		Where("item_type = ? AND item_id = ? AND reactor_key = ?", subject.Type, subject.ID, reactor.Key()).
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, nil
	}
	return &existing[0], nil
}

func (r *reactionRepository) ApplyTransition(ctx context.Context, t Transition) (*entity.Reaction, *entity.ReactionCounter, error) {
	now := time.Now().UTC()
	var record entity.Reaction
	var counter entity.ReactionCounter

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		from := entity.StateNone

		if t.Expected == nil {
			// First reaction: lose the race quietly if another writer inserted first.
			record = entity.Reaction{
				ItemType:   t.Subject.Type,
				ItemID:     t.Subject.ID,
				ReactorKey: t.Reactor.Key(),
				UserID:     t.Reactor.UserID,
				State:      t.Next,
				Version:    1,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrVersionConflict
			}
		} else {
			from = t.Expected.State
			res := tx.Model(&entity.Reaction{}).
				Where("id = ? AND version = ? AND state = ?", t.Expected.ID, t.Expected.Version, t.Expected.State).
				Updates(map[string]interface{}{
					"state":      t.Next,
					"version":    gorm.Expr("version + 1"),
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrVersionConflict
			}
			record = *t.Expected
			record.State = t.Next
			record.Version++
			record.UpdatedAt = now
		}

		// Counters move by delta so distinct reactors never overwrite each other.
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "item_type"}, {Name: "item_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"like_count":    gorm.Expr("reaction_counters.like_count + ?", t.LikeDelta),
				"dislike_count": gorm.Expr("reaction_counters.dislike_count + ?", t.DislikeDelta),
				"version":       gorm.Expr("reaction_counters.version + 1"),
				"updated_at":    now,
			}),
		}).Create(&entity.ReactionCounter{
			ItemType:     t.Subject.Type,
			ItemID:       t.Subject.ID,
			LikeCount:    t.LikeDelta,
			DislikeCount: t.DislikeDelta,
			Version:      1,
			UpdatedAt:    now,
		}).Error
		if err != nil {
			return err
		}

		if err := tx.Where("item_type = ? AND item_id = ?", t.Subject.Type, t.Subject.ID).
			First(&counter).Error; err != nil {
			return err
		}
		if counter.LikeCount < 0 || counter.DislikeCount < 0 {
			return fmt.Errorf("%w: %s likes=%d dislikes=%d", ErrCounterUnderflow, t.Subject, counter.LikeCount, counter.DislikeCount)
		}

		return tx.Create(&entity.ReactionLog{
			ItemType:   t.Subject.Type,
			ItemID:     t.Subject.ID,
			ReactorKey: t.Reactor.Key(),
			FromState:  from,
			ToState:    t.Next,
			CreatedAt:  now,
		}).Error
	})
	if err != nil {
		return nil, nil, err
	}

	return &record, &counter, nil
}

func (r *reactionRepository) GetCounters(ctx context.Context, subject entity.Subject) (*entity.ReactionCounter, error) {
	var counters []entity.ReactionCounter
	err := r.db.WithContext(ctx).
		Where("item_type = ? AND item_id = ?", subject.Type, subject.ID).
		Limit(1).
		Find(&counters).Error
	if err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		return &entity.ReactionCounter{ItemType: subject.Type, ItemID: subject.ID}, nil
	}
	return &counters[0], nil
}

func (r *reactionRepository) ListReactors(ctx context.Context, subject entity.Subject, state entity.State, page Page) ([]ReactorEntry, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		return db.Model(&entity.Reaction{}).
			Where("item_type = ? AND item_id = ? AND state = ?", subject.Type, subject.ID, state)
	}

	var total int64
	if err := r.db.WithContext(ctx).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []ReactorEntry{}, 0, nil
	}

	var rows []entity.Reaction
	err := r.db.WithContext(ctx).Scopes(scope).
		Order("updated_at DESC").
		Order("id DESC").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	entries := make([]ReactorEntry, 0, len(rows))
	for _, row := range rows {
		reactor, err := row.Reactor()
		if err != nil {
			// Corrupt keys are skipped rather than failing the whole listing.
			continue
		}
		entries = append(entries, ReactorEntry{Reactor: reactor, ReactedAt: row.UpdatedAt})
	}
	return entries, total, nil
}

func (r *reactionRepository) CountByState(ctx context.Context, subject entity.Subject) (*entity.ReactionCounter, error) {
	return countByState(r.db.WithContext(ctx), subject)
}

func countByState(db *gorm.DB, subject entity.Subject) (*entity.ReactionCounter, error) {
	type Result struct {
		State entity.State
		Count int64
	}
	var results []Result

	err := db.Model(&entity.Reaction{}).
		Select("state, count(*) as count").
		Where("item_type = ? AND item_id = ?", subject.Type, subject.ID).
		Group("state").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counter := &entity.ReactionCounter{ItemType: subject.Type, ItemID: subject.ID}
	for _, res := range results {
		switch res.State {
		case entity.StateLiked:
			counter.LikeCount = res.Count
		case entity.StateDisliked:
			counter.DislikeCount = res.Count
		}
	}
	return counter, nil
}

func (r *reactionRepository) SetCounters(ctx context.Context, counter *entity.ReactionCounter) error {
	counter.UpdatedAt = time.Now().UTC()
	counter.Version = 1
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_type"}, {Name: "item_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"like_count":    counter.LikeCount,
			"dislike_count": counter.DislikeCount,
			"version":       gorm.Expr("reaction_counters.version + 1"),
			"updated_at":    counter.UpdatedAt,
		}),
	}).Create(counter).Error
}

func (r *reactionRepository) RecountCounters(ctx context.Context, subject entity.Subject) (*entity.ReactionCounter, error) {
	var counted *entity.ReactionCounter

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		// A missing row cannot be locked, so create it first.
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entity.ReactionCounter{
			ItemType:  subject.Type,
			ItemID:    subject.ID,
			UpdatedAt: now,
		}).Error
		if err != nil {
			return err
		}

		var locked entity.ReactionCounter
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("item_type = ? AND item_id = ?", subject.Type, subject.ID).
			First(&locked).Error; err != nil {
			return err
		}

		// Transitions block on the locked row, so the count is exact until commit.
		counted, err = countByState(tx, subject)
		if err != nil {
			return err
		}
		counted.Version = locked.Version + 1
		counted.UpdatedAt = now

		return tx.Model(&entity.ReactionCounter{}).
			Where("item_type = ? AND item_id = ?", subject.Type, subject.ID).
			Updates(map[string]interface{}{
				"like_count":    counted.LikeCount,
				"dislike_count": counted.DislikeCount,
				"version":       counted.Version,
				"updated_at":    now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return counted, nil
}
