package service

import (
	"context"
	"time"

	"anoa.com/ulike/internal/entity"
	reactionRepo "anoa.com/ulike/internal/modules/reaction/repository"
	"go.uber.org/zap"
)

const reconcileBatch = 100

// ReconcileReport summarizes one subject check.
type ReconcileReport struct {
	Subject  entity.Subject         `json:"subject"`
	Stored   entity.ReactionCounter `json:"stored"`
	Counted  entity.ReactionCounter `json:"counted"`
	Repaired bool                   `json:"repaired"`
}

// Reconciler recomputes counters from reaction records for subjects that
// were touched recently and repairs any drift.
type Reconciler struct {
	repo     reactionRepo.ReactionRepository
	cache    *CounterCache
	interval time.Duration
	logger   *zap.Logger
}

func NewReconciler(repo reactionRepo.ReactionRepository, cache *CounterCache, interval time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		repo:     repo,
		cache:    cache,
		interval: interval,
		logger:   logger.Named("reconciler"),
	}
}

// ReconcileSubject compares the counter row with the record set.
func (r *Reconciler) ReconcileSubject(ctx context.Context, subject entity.Subject) (*ReconcileReport, error) {
	stored, err := r.repo.GetCounters(ctx, subject)
	if err != nil {
		return nil, err
	}
	counted, err := r.repo.CountByState(ctx, subject)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{Subject: subject, Stored: *stored, Counted: *counted}
	current := stored
	if stored.LikeCount != counted.LikeCount || stored.DislikeCount != counted.DislikeCount {
		r.logger.Warn("Reaction counters drifted, repairing",
			zap.String("subject", subject.String()),
			zap.Int64("stored_likes", stored.LikeCount),
			zap.Int64("counted_likes", counted.LikeCount),
			zap.Int64("stored_dislikes", stored.DislikeCount),
			zap.Int64("counted_dislikes", counted.DislikeCount))

		// The reads above may already be stale; recount under the row lock.
		repaired, err := r.repo.RecountCounters(ctx, subject)
		if err != nil {
			return nil, err
		}
		report.Counted = *repaired
		report.Repaired = true
		current = repaired
	}

	if err := r.cache.Set(ctx, current); err != nil {
		r.logger.Warn("Failed to refresh cached counters", zap.String("subject", subject.String()), zap.Error(err))
	}
	return report, nil
}

// SyncPending drains the pending subject set and returns how many subjects
// were checked.
func (r *Reconciler) SyncPending(ctx context.Context) (int, error) {
	checked := 0
	for {
		subjects, err := r.cache.PopPending(ctx, reconcileBatch)
		if err != nil {
			return checked, err
		}
		if len(subjects) == 0 {
			break
		}

		for _, subject := range subjects {
			if _, err := r.ReconcileSubject(ctx, subject); err != nil {
				r.logger.Error("Failed to reconcile subject", zap.String("subject", subject.String()), zap.Error(err))
				// Put it back for the next tick.
				if err := r.cache.MarkPending(ctx, subject); err != nil {
					r.logger.Error("Failed to requeue subject", zap.String("subject", subject.String()), zap.Error(err))
				}
				continue
			}
			checked++
		}

		if len(subjects) < reconcileBatch {
			break
		}
	}

	if checked > 0 {
		r.logger.Info("Reconciled reaction counters", zap.Int("subjects", checked))
	}
	return checked, nil
}

// Name identifies the reconcile pass to the scheduler.
func (r *Reconciler) Name() string {
	return "reconcile-counters"
}

// Schedule runs the pass every interval; a non-positive interval disables it.
func (r *Reconciler) Schedule() string {
	if r.interval <= 0 {
		return ""
	}
	return "@every " + r.interval.String()
}

func (r *Reconciler) Run(ctx context.Context) error {
	_, err := r.SyncPending(ctx)
	return err
}
