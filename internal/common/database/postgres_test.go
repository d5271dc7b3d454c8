package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testItem struct {
	ID   int64
	Name string `gorm:"uniqueIndex"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&testItem{}))
	return conn
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, logLevel(true))
	assert.Equal(t, gormlogger.Warn, logLevel(false))
}

func TestIsSerializationFailure(t *testing.T) {
	assert.False(t, IsSerializationFailure(nil))
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsSerializationFailure(fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsSerializationFailure(errors.New("syntax error")))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))

	conn := setupTestDB(t)
	require.NoError(t, conn.Create(&testItem{Name: "a"}).Error)
	err := conn.Create(&testItem{Name: "a"}).Error
	assert.True(t, IsUniqueViolation(err))
}

func TestSerializableTransaction(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	t.Run("commits", func(t *testing.T) {
		err := SerializableTransaction(ctx, conn, func(tx *gorm.DB) error {
			return tx.Create(&testItem{Name: "commit"}).Error
		})
		require.NoError(t, err)

		var n int64
		conn.Model(&testItem{}).Where("name = ?", "commit").Count(&n)
		assert.Equal(t, int64(1), n)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := SerializableTransaction(ctx, conn, func(tx *gorm.DB) error {
			if err := tx.Create(&testItem{Name: "rollback"}).Error; err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		var n int64
		conn.Model(&testItem{}).Where("name = ?", "rollback").Count(&n)
		assert.Zero(t, n)
	})

	t.Run("retries serialization failures then gives up", func(t *testing.T) {
		calls := 0
		err := SerializableTransaction(ctx, conn, func(tx *gorm.DB) error {
			calls++
			return &pgconn.PgError{Code: "40001"}
		})
		assert.ErrorIs(t, err, ErrSerializationConflict)
		assert.Equal(t, MaxSerializationRetries+1, calls)
	})

	t.Run("succeeds after a retry", func(t *testing.T) {
		calls := 0
		err := SerializableTransaction(ctx, conn, func(tx *gorm.DB) error {
			calls++
			if calls == 1 {
				return &pgconn.PgError{Code: "40001"}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})
}

func TestRetryBackoff(t *testing.T) {
	assert.Zero(t, retryBackoff(0))
	for attempt := 1; attempt <= MaxSerializationRetries; attempt++ {
		base := time.Duration(attempt*attempt) * 10 * time.Millisecond
		seen := make(map[time.Duration]bool)
		for i := 0; i < 50; i++ {
			d := retryBackoff(attempt)
			assert.GreaterOrEqual(t, d, base)
			assert.Less(t, d, 2*base)
			seen[d] = true
		}
		assert.Greater(t, len(seen), 1, "attempt %d should be jittered", attempt)
	}
}

func TestPaginate(t *testing.T) {
	conn := setupTestDB(t)
	for i := 0; i < 25; i++ {
		require.NoError(t, conn.Create(&testItem{Name: fmt.Sprintf("item-%02d", i)}).Error)
	}

	var items []testItem
	require.NoError(t, conn.Scopes(Paginate(20, 10)).Order("id").Find(&items).Error)
	assert.Len(t, items, 5)

	items = nil
	require.NoError(t, conn.Scopes(Paginate(-1, 0)).Find(&items).Error)
	assert.Len(t, items, 20)
}
