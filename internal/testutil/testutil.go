// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"anoa.com/ulike/internal/bootstrap"
	"anoa.com/ulike/internal/entity"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens an isolated in-memory SQLite database with all tables migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_busy_timeout=5000", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serializes writers the way row locks would in postgres.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, bootstrap.Migrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// NewRedis starts a miniredis server and a client connected to it.
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

// SeedContent inserts a reactable item.
func SeedContent(t *testing.T, db *gorm.DB, item *entity.ContentItem) {
	t.Helper()
	require.NoError(t, db.Create(item).Error)
}

// SeedUser inserts a user with a profile.
func SeedUser(t *testing.T, db *gorm.DB, username, fullName string) *entity.User {
	t.Helper()

	user := &entity.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&entity.Profile{UserID: user.ID, FullName: fullName}).Error)
	user.Profile = &entity.Profile{UserID: user.ID, FullName: fullName}
	return user
}
