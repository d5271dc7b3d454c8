package hotel

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lavendermoon/villa-pms/internal/models"
)

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

// recordingPublisher 记录推送的房态
type recordingPublisher struct {
	mu       sync.Mutex
	statuses []string
	err      error
}

func (p *recordingPublisher) PublishRoomStatus(_ context.Context, room *models.Room) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, room.RoomNumber+":"+room.Status)
	return p.err
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.statuses...)
}

func ptr[T any](v T) *T { return &v }
