package testutil

import (
	"testing"
	"time"

	"github.com/fitcircle/fitcircle/cache"
	"github.com/fitcircle/fitcircle/cache/local"
	dbsqlite "github.com/fitcircle/fitcircle/db/sqlite"
	"github.com/fitcircle/fitcircle/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates a private in-memory SQLite DB and runs AutoMigrate.
// It requires no external services and is safe to use in parallel tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbsqlite.OpenMemory("test-" + uuid.NewString())
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SetupTestCache returns the in-process cache; its sweeper stops with the test.
func SetupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c := local.New(local.Config{SweepInterval: time.Minute})
	t.Cleanup(c.Close)
	return c
}

// CreateUsers inserts accounts with the given usernames and returns their IDs
// in the same order.
func CreateUsers(t *testing.T, db *gorm.DB, names ...string) []int64 {
	t.Helper()
	ids := make([]int64, len(names))
	for i, name := range names {
		acc := &model.Account{Username: name, PasswordHash: "x", Status: 1}
		require.NoError(t, db.Create(acc).Error, "CreateUsers: %s", name)
		ids[i] = acc.ID
	}
	return ids
}
