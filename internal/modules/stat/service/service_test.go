package service_test

import (
	"testing"

	"anoa.com/ulike/internal/entity"
	statRepo "anoa.com/ulike/internal/modules/stat/repository"
	"anoa.com/ulike/internal/modules/stat/service"
	userRepo "anoa.com/ulike/internal/modules/user/repository"
	"anoa.com/ulike/internal/testutil"
	"anoa.com/ulike/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedStats(t *testing.T, db *gorm.DB) {
	t.Helper()
	testutil.SeedUser(t, db, "ada", "Ada")
	testutil.SeedContent(t, db, &entity.ContentItem{ItemType: entity.ItemPost, ItemID: 1, Title: "First"})
	testutil.SeedContent(t, db, &entity.ContentItem{ItemType: entity.ItemPost, ItemID: 2, Title: "Second"})

	counters := []entity.ReactionCounter{
		{ItemType: entity.ItemPost, ItemID: 1, LikeCount: 2, DislikeCount: 1},
		{ItemType: entity.ItemPost, ItemID: 2, LikeCount: 5},
		{ItemType: entity.ItemComment, ItemID: 9, LikeCount: 3},
		{ItemType: entity.ItemTopic, ItemID: 4, DislikeCount: 2},
	}
	require.NoError(t, db.Create(&counters).Error)

	reactions := []entity.Reaction{
		{ID: uuid.New(), ItemType: entity.ItemPost, ItemID: 1, ReactorKey: "anon:a", State: entity.StateLiked, Version: 1},
		{ID: uuid.New(), ItemType: entity.ItemPost, ItemID: 2, ReactorKey: "anon:a", State: entity.StateLiked, Version: 1},
		{ID: uuid.New(), ItemType: entity.ItemPost, ItemID: 1, ReactorKey: "anon:b", State: entity.StateDisliked, Version: 2},
		{ID: uuid.New(), ItemType: entity.ItemComment, ItemID: 9, ReactorKey: "anon:c", State: entity.StateNone, Version: 3},
	}
	require.NoError(t, db.Create(&reactions).Error)
}

func newService(t *testing.T) service.StatService {
	t.Helper()
	db := testutil.NewDB(t)
	seedStats(t, db)
	return service.NewStatService(statRepo.NewStatRepository(db), userRepo.NewUserRepository(db))
}

func TestSummary(t *testing.T) {
	t.Parallel()
	svc := newService(t)

	summary, err := svc.Summary(t.Context())
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.TotalUsers)
	assert.Equal(t, int64(2), summary.TotalReactors)
	assert.Equal(t, int64(10), summary.TotalLikes)
	assert.Equal(t, int64(3), summary.TotalDislikes)
	require.Len(t, summary.ByType, 3)
	assert.Equal(t, entity.ItemComment, summary.ByType[0].ItemType)
	assert.Equal(t, entity.ItemPost, summary.ByType[1].ItemType)
	assert.Equal(t, int64(2), summary.ByType[1].Subjects)
	assert.Equal(t, int64(7), summary.ByType[1].LikeCount)
}

func TestTopSubjects(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := t.Context()

	top, err := svc.TopSubjects(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, entity.Subject{Type: entity.ItemPost, ID: 2}, top[0].Subject)
	assert.Equal(t, "Second", top[0].Title)
	assert.Equal(t, "5", top[0].CounterText)
	assert.Equal(t, entity.Subject{Type: entity.ItemComment, ID: 9}, top[1].Subject)
	assert.Empty(t, top[1].Title)

	top, err = svc.TopSubjects(ctx, "post", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, uint64(2), top[0].Subject.ID)

	_, err = svc.TopSubjects(ctx, "widget", 5)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}
