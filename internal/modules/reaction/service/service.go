package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anoa.com/ulike/internal/config"
	"anoa.com/ulike/internal/entity"
	reactionRepo "anoa.com/ulike/internal/modules/reaction/repository"
	"anoa.com/ulike/pkg/apperror"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var (
	// ErrLoginRequired is returned for anonymous reactors when anonymous
	// reactions are disabled.
	ErrLoginRequired = fmt.Errorf("%w: login required", apperror.ErrUnauthorized)
	// ErrContentNotFound is returned when the subject is not in the catalog.
	ErrContentNotFound = fmt.Errorf("%w: content", apperror.ErrNotFound)
)

// ContentFinder resolves subjects against the host's content catalog.
type ContentFinder interface {
	FindBySubject(ctx context.Context, subject entity.Subject) (*entity.ContentItem, error)
}

// ToggleResult is the outcome of one applied toggle.
type ToggleResult struct {
	OldState entity.State
	NewState entity.State
	Counters entity.ReactionCounter
	// CounterValue is the bucket shown next to the pressed button.
	CounterValue int64
	NextStatus   entity.PresentationStatus
	// Stale is set when the client acted on a status that no longer matched
	// the stored state.
	Stale bool
	Event Event
}

// StatusView is what a viewer sees before acting.
type StatusView struct {
	Subject  entity.Subject
	State    entity.State
	Status   entity.PresentationStatus
	Counters entity.ReactionCounter
}

type ReactionService interface {
	Toggle(ctx context.Context, subject entity.Subject, reactor entity.Reactor, kind entity.Kind, presented entity.PresentationStatus) (*ToggleResult, error)
	Status(ctx context.Context, subject entity.Subject, reactor entity.Reactor) (*StatusView, error)
}

type reactionService struct {
	repo    reactionRepo.ReactionRepository
	content ContentFinder
	cache   *CounterCache
	opts    config.Options
	logger  *zap.Logger

	retryInterval time.Duration
}

func NewReactionService(repo reactionRepo.ReactionRepository, content ContentFinder, cache *CounterCache, opts config.Options, logger *zap.Logger) ReactionService {
	return &reactionService{
		repo:          repo,
		content:       content,
		cache:         cache,
		opts:          opts,
		logger:        logger.Named("reaction_engine"),
		retryInterval: 10 * time.Millisecond,
	}
}

func (s *reactionService) Toggle(ctx context.Context, subject entity.Subject, reactor entity.Reactor, kind entity.Kind, presented entity.PresentationStatus) (*ToggleResult, error) {
	if reactor.IsZero() {
		return nil, ErrLoginRequired
	}
	if reactor.IsAnonymous() && !s.opts.AllowAnonymous {
		return nil, ErrLoginRequired
	}
	if !subject.Type.Valid() {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidInput, entity.ErrUnknownItemType)
	}
	if _, err := entity.ParseKind(string(kind)); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidInput, err)
	}

	if _, err := s.content.FindBySubject(ctx, subject); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}

	var (
		result   *ToggleResult
		attempts int
	)
	operation := func() error {
		attempts++
		res, err := s.apply(ctx, subject, reactor, kind, presented)
		switch {
		case err == nil:
			result = res
			return nil
		case errors.Is(err, reactionRepo.ErrVersionConflict):
			s.logger.Debug("Reaction version conflict, retrying",
				zap.String("subject", subject.String()),
				zap.String("reactor", reactor.Key()),
				zap.Int("attempt", attempts))
			return err
		case errors.Is(err, reactionRepo.ErrCounterUnderflow):
			// Counter row drifted from the records. Repair it and try again.
			s.logger.Warn("Reaction counter underflow, repairing",
				zap.String("subject", subject.String()),
				zap.Error(err))
			if repairErr := s.repair(ctx, subject); repairErr != nil {
				return backoff.Permanent(errors.Join(err, repairErr))
			}
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	retries := max(s.opts.ToggleMaxAttempts-1, 0)
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.retryInterval),
		backoff.WithMaxInterval(10*s.retryInterval),
	), uint64(retries))

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, reactionRepo.ErrVersionConflict) || errors.Is(err, reactionRepo.ErrCounterUnderflow) {
			s.logger.Warn("Reaction toggle gave up after retries",
				zap.String("subject", subject.String()),
				zap.String("reactor", reactor.Key()),
				zap.Int("attempts", attempts),
				zap.Error(err))
			return nil, fmt.Errorf("%w: %w", apperror.ErrUnavailable, err)
		}
		return nil, err
	}

	return result, nil
}

// apply runs one read-compute-write round against current truth.
func (s *reactionService) apply(ctx context.Context, subject entity.Subject, reactor entity.Reactor, kind entity.Kind, presented entity.PresentationStatus) (*ToggleResult, error) {
	current, err := s.repo.Get(ctx, subject, reactor)
	if err != nil {
		return nil, err
	}

	oldState := entity.StateNone
	if current != nil {
		oldState = current.State
	}

	stale := false
	if presented != "" {
		if assumed, ok := entity.StateForPresentation(presented); !ok || assumed != oldState {
			stale = true
			s.logger.Info("Stale reaction status presented",
				zap.String("subject", subject.String()),
				zap.String("reactor", reactor.Key()),
				zap.String("presented", string(presented)),
				zap.String("stored", string(oldState)))
		}
	}

	step, err := Transition(oldState, kind)
	if err != nil {
		return nil, err
	}

	_, counters, err := s.repo.ApplyTransition(ctx, reactionRepo.Transition{
		Subject:      subject,
		Reactor:      reactor,
		Expected:     current,
		Next:         step.Next,
		LikeDelta:    step.LikeDelta,
		DislikeDelta: step.DislikeDelta,
	})
	if err != nil {
		return nil, err
	}

	return &ToggleResult{
		OldState:     oldState,
		NewState:     step.Next,
		Counters:     *counters,
		CounterValue: counters.CountFor(kind),
		NextStatus:   entity.PresentationFor(true, step.Next),
		Stale:        stale,
		Event: Event{
			Subject:       subject,
			Reactor:       reactor,
			OldState:      oldState,
			NewState:      step.Next,
			Counters:      *counters,
			FirstReaction: current == nil,
			OccurredAt:    time.Now().UTC(),
		},
	}, nil
}

func (s *reactionService) repair(ctx context.Context, subject entity.Subject) error {
	_, err := s.repo.RecountCounters(ctx, subject)
	return err
}

func (s *reactionService) Status(ctx context.Context, subject entity.Subject, reactor entity.Reactor) (*StatusView, error) {
	if !subject.Type.Valid() {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidInput, entity.ErrUnknownItemType)
	}
	if _, err := s.content.FindBySubject(ctx, subject); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}

	view := &StatusView{Subject: subject, State: entity.StateNone}

	// 1. Counters from Redis, rebuilt from the store on a miss
	if cached, ok := s.cache.Get(ctx, subject); ok {
		view.Counters = *cached
	} else {
		counters, err := s.repo.GetCounters(ctx, subject)
		if err != nil {
			return nil, err
		}
		view.Counters = *counters
		if err := s.cache.Set(ctx, counters); err != nil {
			s.logger.Warn("Failed to cache reaction counters", zap.String("subject", subject.String()), zap.Error(err))
		}
	}

	// 2. Viewer state
	identified := !reactor.IsZero() && (!reactor.IsAnonymous() || s.opts.AllowAnonymous)
	if identified {
		record, err := s.repo.Get(ctx, subject, reactor)
		if err != nil {
			return nil, err
		}
		if record != nil {
			view.State = record.State
		}
	}
	view.Status = entity.PresentationFor(identified, view.State)

	return view, nil
}
