package service_test

import (
	"testing"
	"time"

	"anoa.com/ulike/internal/entity"
	reaction "anoa.com/ulike/internal/modules/reaction/service"
	"anoa.com/ulike/internal/testutil"
	"anoa.com/ulike/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterWindow(t *testing.T) {
	t.Parallel()
	rdb, mr := testutil.NewRedis(t)
	limiter := reaction.NewRateLimiter(rdb)
	ctx := t.Context()
	alice := entity.UserReactor(uuid.New())
	bob := entity.UserReactor(uuid.New())

	require.NoError(t, limiter.Check(ctx, alice, reaction.ActionToggle, time.Second))

	err := limiter.Check(ctx, alice, reaction.ActionToggle, time.Second)
	require.ErrorIs(t, err, apperror.ErrRateLimitExceeded)

	// Other reactors have their own window.
	require.NoError(t, limiter.Check(ctx, bob, reaction.ActionToggle, time.Second))

	mr.FastForward(2 * time.Second)
	require.NoError(t, limiter.Check(ctx, alice, reaction.ActionToggle, time.Second))

	require.NoError(t, limiter.Clear(ctx, alice, reaction.ActionToggle))
	require.NoError(t, limiter.Check(ctx, alice, reaction.ActionToggle, time.Second))
}

func TestRateLimiterDisabled(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	reactor := entity.AnonymousReactor("fp")

	noRedis := reaction.NewRateLimiter(nil)
	for range 3 {
		require.NoError(t, noRedis.Check(ctx, reactor, reaction.ActionToggle, time.Second))
	}

	rdb, _ := testutil.NewRedis(t)
	zeroWindow := reaction.NewRateLimiter(rdb)
	for range 3 {
		allowed, err := zeroWindow.Allow(ctx, reactor, reaction.ActionToggle, 0)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}
