package service_test

import (
	"context"
	"testing"

	"anoa.com/ulike/internal/config"
	"anoa.com/ulike/internal/entity"
	contentRepo "anoa.com/ulike/internal/modules/content/repository"
	reactionRepo "anoa.com/ulike/internal/modules/reaction/repository"
	reaction "anoa.com/ulike/internal/modules/reaction/service"
	"anoa.com/ulike/internal/testutil"
	"anoa.com/ulike/pkg/apperror"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var post42 = entity.Subject{Type: entity.ItemPost, ID: 42}

type engineFixture struct {
	db      *gorm.DB
	repo    reactionRepo.ReactionRepository
	content contentRepo.ContentRepository
	svc     reaction.ReactionService
}

func newEngine(t *testing.T, opts config.Options, cache *reaction.CounterCache) *engineFixture {
	t.Helper()

	db := testutil.NewDB(t)
	repo := reactionRepo.NewReactionRepository(db)
	content := contentRepo.NewContentRepository(db)
	testutil.SeedContent(t, db, &entity.ContentItem{ItemType: post42.Type, ItemID: post42.ID, Title: "Hello"})

	return &engineFixture{
		db:      db,
		repo:    repo,
		content: content,
		svc:     reaction.NewReactionService(repo, content, cache, opts, zap.NewNop()),
	}
}

func (f *engineFixture) assertCountersMatchRecords(t *testing.T, subject entity.Subject) {
	t.Helper()

	stored, err := f.repo.GetCounters(t.Context(), subject)
	require.NoError(t, err)
	counted, err := f.repo.CountByState(t.Context(), subject)
	require.NoError(t, err)
	assert.Equal(t, counted.LikeCount, stored.LikeCount, "like counter drifted")
	assert.Equal(t, counted.DislikeCount, stored.DislikeCount, "dislike counter drifted")
}

func TestToggleEndToEnd(t *testing.T) {
	t.Parallel()
	f := newEngine(t, config.DefaultOptions(), nil)
	ctx := t.Context()

	// Three earlier likers bring the subject to {like:3, dislike:0}.
	for range 3 {
		_, err := f.svc.Toggle(ctx, post42, entity.UserReactor(uuid.New()), entity.KindLike, entity.StatusNotYetReacted)
		require.NoError(t, err)
	}
	user7 := entity.UserReactor(uuid.New())

	first, err := f.svc.Toggle(ctx, post42, user7, entity.KindLike, entity.StatusNotYetReacted)
	require.NoError(t, err)
	assert.Equal(t, entity.StateNone, first.OldState)
	assert.Equal(t, entity.StateLiked, first.NewState)
	assert.Equal(t, int64(4), first.Counters.LikeCount)
	assert.Equal(t, int64(0), first.Counters.DislikeCount)
	assert.Equal(t, int64(4), first.CounterValue)
	assert.Equal(t, entity.StatusReacted, first.NextStatus)
	assert.False(t, first.Stale)
	assert.True(t, first.Event.FirstReaction)
	assert.Equal(t, user7.Key(), first.Event.Reactor.Key())

	// Same button again moves to the opposite bucket rather than clearing.
	second, err := f.svc.Toggle(ctx, post42, user7, entity.KindLike, entity.StatusReacted)
	require.NoError(t, err)
	assert.Equal(t, entity.StateLiked, second.OldState)
	assert.Equal(t, entity.StateDisliked, second.NewState)
	assert.Equal(t, int64(3), second.Counters.LikeCount)
	assert.Equal(t, int64(1), second.Counters.DislikeCount)
	assert.Equal(t, entity.StatusReactedOppositeAvailable, second.NextStatus)
	assert.False(t, second.Event.FirstReaction)

	f.assertCountersMatchRecords(t, post42)
}

func TestToggleIsNotIdempotent(t *testing.T) {
	t.Parallel()
	f := newEngine(t, config.DefaultOptions(), nil)
	ctx := t.Context()
	reactor := entity.UserReactor(uuid.New())

	// Replaying the very same request re-toggles.
	a, err := f.svc.Toggle(ctx, post42, reactor, entity.KindLike, entity.StatusNotYetReacted)
	require.NoError(t, err)
	b, err := f.svc.Toggle(ctx, post42, reactor, entity.KindLike, entity.StatusNotYetReacted)
	require.NoError(t, err)

	assert.Equal(t, entity.StateLiked, a.NewState)
	assert.Equal(t, entity.StateDisliked, b.NewState)
	assert.NotEqual(t, a.NewState, b.NewState)
	assert.True(t, b.Stale, "second replay presented a status the store had moved past")
}

func TestToggleDislikeButtonCycle(t *testing.T) {
	t.Parallel()
	f := newEngine(t, config.DefaultOptions(), nil)
	ctx := t.Context()
	reactor := entity.UserReactor(uuid.New())

	res, err := f.svc.Toggle(ctx, post42, reactor, entity.KindDislike, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StateDisliked, res.NewState)
	assert.Equal(t, int64(1), res.CounterValue)

	res, err = f.svc.Toggle(ctx, post42, reactor, entity.KindDislike, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StateLiked, res.NewState)
	assert.Equal(t, int64(1), res.Counters.LikeCount)
	assert.Equal(t, int64(0), res.Counters.DislikeCount)
}

func TestToggleRejectsCrossAction(t *testing.T) {
	t.Parallel()
	f := newEngine(t, config.DefaultOptions(), nil)
	ctx := t.Context()
	reactor := entity.UserReactor(uuid.New())

	_, err := f.svc.Toggle(ctx, post42, reactor, entity.KindLike, "")
	require.NoError(t, err)

	_, err = f.svc.Toggle(ctx, post42, reactor, entity.KindDislike, "")
	require.ErrorIs(t, err, reaction.ErrInvalidTransition)

	counters, err := f.repo.GetCounters(ctx, post42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.LikeCount)
	assert.Equal(t, int64(0), counters.DislikeCount)
}

func TestToggleIdentityRules(t *testing.T) {
	t.Parallel()

	t.Run("no identity", func(t *testing.T) {
		t.Parallel()
		f := newEngine(t, config.DefaultOptions(), nil)

		_, err := f.svc.Toggle(t.Context(), post42, entity.Reactor{}, entity.KindLike, "")
		require.ErrorIs(t, err, reaction.ErrLoginRequired)
		assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	})

	t.Run("anonymous disabled", func(t *testing.T) {
		t.Parallel()
		f := newEngine(t, config.DefaultOptions(), nil)

		_, err := f.svc.Toggle(t.Context(), post42, entity.AnonymousReactor("abc"), entity.KindLike, "")
		require.ErrorIs(t, err, reaction.ErrLoginRequired)

		counters, err := f.repo.GetCounters(t.Context(), post42)
		require.NoError(t, err)
		assert.Zero(t, counters.LikeCount)
	})

	t.Run("anonymous enabled", func(t *testing.T) {
		t.Parallel()
		opts := config.DefaultOptions()
		opts.AllowAnonymous = true
		f := newEngine(t, opts, nil)

		res, err := f.svc.Toggle(t.Context(), post42, entity.AnonymousReactor("abc"), entity.KindLike, "")
		require.NoError(t, err)
		assert.Equal(t, entity.StateLiked, res.NewState)
	})
}

func TestToggleValidatesSubjectAndKind(t *testing.T) {
	t.Parallel()
	f := newEngine(t, config.DefaultOptions(), nil)
	ctx := t.Context()
	reactor := entity.UserReactor(uuid.New())

	_, err := f.svc.Toggle(ctx, entity.Subject{Type: entity.ItemPost, ID: 404}, reactor, entity.KindLike, "")
	require.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.Toggle(ctx, entity.Subject{Type: "video", ID: 1}, reactor, entity.KindLike, "")
	require.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = f.svc.Toggle(ctx, post42, reactor, "love", "")
	require.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestToggleFlagsStalePresentation(t *testing.T) {
	t.Parallel()
	f := newEngine(t, config.DefaultOptions(), nil)
	ctx := t.Context()
	reactor := entity.UserReactor(uuid.New())

	_, err := f.svc.Toggle(ctx, post42, reactor, entity.KindLike, entity.StatusNotYetReacted)
	require.NoError(t, err)

	// Another device already liked; this tab still shows "not yet reacted".
	res, err := f.svc.Toggle(ctx, post42, reactor, entity.KindLike, entity.StatusNotYetReacted)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, entity.StateLiked, res.OldState, "transition is computed from stored truth")
	assert.Equal(t, entity.StateDisliked, res.NewState)
}

func TestConcurrentDistinctReactorsNeverLoseUpdates(t *testing.T) {
	t.Parallel()
	f := newEngine(t, config.DefaultOptions(), nil)
	ctx := t.Context()

	const likers, dislikers = 12, 8
	p := pool.New().WithErrors()
	for i := range likers + dislikers {
		kind := entity.KindLike
		if i >= likers {
			kind = entity.KindDislike
		}
		p.Go(func() error {
			_, err := f.svc.Toggle(ctx, post42, entity.UserReactor(uuid.New()), kind, "")
			return err
		})
	}
	require.NoError(t, p.Wait())

	counters, err := f.repo.GetCounters(ctx, post42)
	require.NoError(t, err)
	assert.Equal(t, int64(likers), counters.LikeCount)
	assert.Equal(t, int64(dislikers), counters.DislikeCount)
	f.assertCountersMatchRecords(t, post42)
}

func TestConcurrentSameReactorSerializes(t *testing.T) {
	t.Parallel()
	f := newEngine(t, config.DefaultOptions(), nil)
	ctx := t.Context()
	reactor := entity.UserReactor(uuid.New())

	// Two tabs click like at once. Whatever the interleaving, both clicks
	// apply in some order: none -> liked -> disliked.
	p := pool.New().WithErrors()
	for range 2 {
		p.Go(func() error {
			_, err := f.svc.Toggle(ctx, post42, reactor, entity.KindLike, entity.StatusNotYetReacted)
			return err
		})
	}
	require.NoError(t, p.Wait())

	rec, err := f.repo.Get(ctx, post42, reactor)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, entity.StateDisliked, rec.State)
	assert.Equal(t, int64(2), rec.Version)
	f.assertCountersMatchRecords(t, post42)
}

func TestToggleRepairsDriftedCounters(t *testing.T) {
	t.Parallel()
	f := newEngine(t, config.DefaultOptions(), nil)
	ctx := t.Context()
	reactor := entity.UserReactor(uuid.New())

	_, err := f.svc.Toggle(ctx, post42, reactor, entity.KindLike, "")
	require.NoError(t, err)

	// Out-of-band write zeroes the counter row.
	require.NoError(t, f.repo.SetCounters(ctx, &entity.ReactionCounter{ItemType: post42.Type, ItemID: post42.ID}))

	res, err := f.svc.Toggle(ctx, post42, reactor, entity.KindLike, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StateDisliked, res.NewState)
	assert.Equal(t, int64(0), res.Counters.LikeCount)
	assert.Equal(t, int64(1), res.Counters.DislikeCount)
	f.assertCountersMatchRecords(t, post42)
}

// conflictingRepo reports a version conflict for the first n writes.
type conflictingRepo struct {
	reactionRepo.ReactionRepository
	conflicts int
	writes    int
}

func (r *conflictingRepo) Get(context.Context, entity.Subject, entity.Reactor) (*entity.Reaction, error) {
	return nil, nil
}

func (r *conflictingRepo) ApplyTransition(_ context.Context, t reactionRepo.Transition) (*entity.Reaction, *entity.ReactionCounter, error) {
	r.writes++
	if r.writes <= r.conflicts {
		return nil, nil, reactionRepo.ErrVersionConflict
	}
	return &entity.Reaction{State: t.Next, Version: 1},
		&entity.ReactionCounter{ItemType: t.Subject.Type, ItemID: t.Subject.ID, LikeCount: t.LikeDelta, DislikeCount: t.DislikeDelta},
		nil
}

type staticContent struct{}

func (staticContent) FindBySubject(_ context.Context, subject entity.Subject) (*entity.ContentItem, error) {
	return &entity.ContentItem{ItemType: subject.Type, ItemID: subject.ID}, nil
}

func TestToggleRetriesVersionConflicts(t *testing.T) {
	t.Parallel()

	repo := &conflictingRepo{conflicts: 2}
	svc := reaction.NewReactionService(repo, staticContent{}, nil, config.DefaultOptions(), zap.NewNop())

	res, err := svc.Toggle(t.Context(), post42, entity.UserReactor(uuid.New()), entity.KindLike, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StateLiked, res.NewState)
	assert.Equal(t, 3, repo.writes)
}

func TestToggleGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	repo := &conflictingRepo{conflicts: 100}
	opts := config.DefaultOptions()
	opts.ToggleMaxAttempts = 3
	svc := reaction.NewReactionService(repo, staticContent{}, nil, opts, zap.NewNop())

	_, err := svc.Toggle(t.Context(), post42, entity.UserReactor(uuid.New()), entity.KindLike, "")
	require.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.ErrorIs(t, err, reactionRepo.ErrVersionConflict)
	assert.Equal(t, 3, repo.writes)
}

func TestStatus(t *testing.T) {
	t.Parallel()
	rdb, _ := testutil.NewRedis(t)
	cache := reaction.NewCounterCache(rdb, zap.NewNop())
	f := newEngine(t, config.DefaultOptions(), cache)
	ctx := t.Context()
	reactor := entity.UserReactor(uuid.New())

	view, err := f.svc.Status(ctx, post42, entity.Reactor{})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusLoggedOut, view.Status)

	view, err = f.svc.Status(ctx, post42, reactor)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusNotYetReacted, view.Status)
	assert.Zero(t, view.Counters.LikeCount)

	res, err := f.svc.Toggle(ctx, post42, reactor, entity.KindLike, view.Status)
	require.NoError(t, err)
	// The cache listener normally refreshes Redis after a toggle.
	require.NoError(t, cache.HandleReaction(ctx, res.Event))

	view, err = f.svc.Status(ctx, post42, reactor)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReacted, view.Status)
	assert.Equal(t, int64(1), view.Counters.LikeCount)

	anon, err := f.svc.Status(ctx, post42, entity.AnonymousReactor("fp"))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusLoggedOut, anon.Status, "anonymous viewers are logged out unless allowed")

	_, err = f.svc.Status(ctx, entity.Subject{Type: entity.ItemPost, ID: 9}, reactor)
	require.ErrorIs(t, err, apperror.ErrNotFound)
}
