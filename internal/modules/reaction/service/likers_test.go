package service_test

import (
	"testing"
	"time"

	"anoa.com/ulike/internal/entity"
	reactionRepo "anoa.com/ulike/internal/modules/reaction/repository"
	reaction "anoa.com/ulike/internal/modules/reaction/service"
	userRepo "anoa.com/ulike/internal/modules/user/repository"
	"anoa.com/ulike/internal/testutil"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type likersFixture struct {
	db      *gorm.DB
	repo    reactionRepo.ReactionRepository
	builder *reaction.LikersBuilder
}

func newLikers(t *testing.T, rdb *redis.Client, pageSize int) *likersFixture {
	t.Helper()
	db := testutil.NewDB(t)
	repo := reactionRepo.NewReactionRepository(db)
	return &likersFixture{
		db:      db,
		repo:    repo,
		builder: reaction.NewLikersBuilder(repo, userRepo.NewUserRepository(db), rdb, pageSize, time.Minute, zap.NewNop()),
	}
}

func (f *likersFixture) react(t *testing.T, reactor entity.Reactor, next entity.State) {
	t.Helper()
	tr := reactionRepo.Transition{Subject: post42, Reactor: reactor, Next: next}
	if next == entity.StateLiked {
		tr.LikeDelta = 1
	} else {
		tr.DislikeDelta = 1
	}
	_, _, err := f.repo.ApplyTransition(t.Context(), tr)
	require.NoError(t, err)
}

func TestLikersEmptySubjectIsHidden(t *testing.T) {
	t.Parallel()
	f := newLikers(t, nil, 10)

	list, err := f.builder.Build(t.Context(), post42, 1, false)
	require.NoError(t, err)
	assert.True(t, list.Hidden)
	assert.Empty(t, list.Items)
	assert.Empty(t, list.HTML)
	assert.Equal(t, reaction.LikersWrapperClass, list.WrapperClass)
	assert.Equal(t, int64(0), list.Meta.TotalItems)
}

func TestLikersSkipsMissingAndAnonymousReactors(t *testing.T) {
	t.Parallel()
	f := newLikers(t, nil, 10)

	alice := testutil.SeedUser(t, f.db, "alice", "Alice <b>Liddell</b>")
	avatar := "https://cdn.example.com/bob.png"
	bob := testutil.SeedUser(t, f.db, "bob", "Bob")
	require.NoError(t, f.db.Model(bob).Update("avatar_url", avatar).Error)
	carol := testutil.SeedUser(t, f.db, "carol", "Carol")

	f.react(t, entity.UserReactor(alice.ID), entity.StateLiked)
	f.react(t, entity.UserReactor(uuid.New()), entity.StateLiked) // deleted account
	f.react(t, entity.AnonymousReactor("fp"), entity.StateLiked)
	f.react(t, entity.UserReactor(bob.ID), entity.StateLiked)
	f.react(t, entity.UserReactor(carol.ID), entity.StateDisliked)

	list, err := f.builder.Build(t.Context(), post42, 1, false)
	require.NoError(t, err)
	assert.False(t, list.Hidden)
	require.Len(t, list.Items, 2)
	assert.Equal(t, bob.ID, list.Items[0].UserID, "newest first")
	assert.Equal(t, avatar, list.Items[0].AvatarURL)
	assert.Equal(t, alice.ID, list.Items[1].UserID)
	assert.Equal(t, "Alice Liddell", list.Items[1].DisplayName)

	assert.Contains(t, list.HTML, `<ul class="tiles">`)
	assert.Contains(t, list.HTML, `title="Alice Liddell"`)
	assert.Contains(t, list.HTML, `src="https://cdn.example.com/bob.png"`)
	assert.NotContains(t, list.HTML, "<b>")
	assert.NotContains(t, list.HTML, "Carol")
	assert.Equal(t, int64(4), list.Meta.TotalItems)
}

func TestLikersPageSizeCap(t *testing.T) {
	t.Parallel()
	f := newLikers(t, nil, 2)

	for _, name := range []string{"a1", "a2", "a3"} {
		u := testutil.SeedUser(t, f.db, name, name)
		f.react(t, entity.UserReactor(u.ID), entity.StateLiked)
	}

	first, err := f.builder.Build(t.Context(), post42, 1, false)
	require.NoError(t, err)
	assert.Len(t, first.Items, 2)
	assert.Equal(t, 2, first.Meta.TotalPages)

	second, err := f.builder.Build(t.Context(), post42, 2, false)
	require.NoError(t, err)
	assert.Len(t, second.Items, 1)

	// Page numbers below one read the first page.
	zero, err := f.builder.Build(t.Context(), post42, 0, false)
	require.NoError(t, err)
	require.Len(t, zero.Items, 2)
	assert.Equal(t, first.Items[0].UserID, zero.Items[0].UserID)
}

func TestLikersCacheAndRefresh(t *testing.T) {
	t.Parallel()
	rdb, mr := testutil.NewRedis(t)
	f := newLikers(t, rdb, 10)
	ctx := t.Context()

	alice := testutil.SeedUser(t, f.db, "alice", "Alice")
	f.react(t, entity.UserReactor(alice.ID), entity.StateLiked)

	list, err := f.builder.Build(ctx, post42, 1, false)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.True(t, mr.Exists("likers:post:42:1"))

	bob := testutil.SeedUser(t, f.db, "bob", "Bob")
	f.react(t, entity.UserReactor(bob.ID), entity.StateLiked)

	cached, err := f.builder.Build(ctx, post42, 1, false)
	require.NoError(t, err)
	assert.Len(t, cached.Items, 1, "served from cache")

	refreshed, err := f.builder.Build(ctx, post42, 1, true)
	require.NoError(t, err)
	assert.Len(t, refreshed.Items, 2)

	// A like change drops every cached page.
	require.NoError(t, f.builder.HandleReaction(ctx, reaction.Event{Subject: post42, OldState: entity.StateNone, NewState: entity.StateLiked}))
	assert.False(t, mr.Exists("likers:post:42:1"))

	// Dislike-only changes leave the cache alone.
	_, err = f.builder.Build(ctx, post42, 1, false)
	require.NoError(t, err)
	require.NoError(t, f.builder.HandleReaction(ctx, reaction.Event{Subject: post42, OldState: entity.StateNone, NewState: entity.StateDisliked}))
	assert.True(t, mr.Exists("likers:post:42:1"))
}

type thumbnailFunc func(string) string

func (f thumbnailFunc) Thumbnail(u string) string { return f(u) }

func TestLikersThumbnailsAvatars(t *testing.T) {
	t.Parallel()
	f := newLikers(t, nil, 10)
	f.builder.UseThumbnails(thumbnailFunc(func(u string) string { return u + "?w=64" }))

	bob := testutil.SeedUser(t, f.db, "bob", "Bob")
	require.NoError(t, f.db.Model(bob).Update("avatar_url", "https://cdn.example.com/bob.png").Error)
	f.react(t, entity.UserReactor(bob.ID), entity.StateLiked)

	list, err := f.builder.Build(t.Context(), post42, 1, false)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "https://cdn.example.com/bob.png?w=64", list.Items[0].AvatarURL)
}
