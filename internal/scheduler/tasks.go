package scheduler

import (
	"context"
	"time"

	"github.com/lavendermoon/villa-pms/internal/common/metrics"
)

const expireBatchSize = 100

// PendingExpirer 取消超时未支付预订
type PendingExpirer interface {
	ExpireStalePending(ctx context.Context, ttl time.Duration, batch int) (int, error)
}

// RoomCounter 按房态统计房间
type RoomCounter interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// TaskHandler 任务处理器
type TaskHandler struct {
	reservations PendingExpirer
	rooms        RoomCounter
	metrics      *metrics.Metrics
	pendingTTL   time.Duration
}

// NewTaskHandler 创建任务处理器，rooms 与 m 可为 nil
func NewTaskHandler(reservations PendingExpirer, rooms RoomCounter, m *metrics.Metrics, pendingTTL time.Duration) *TaskHandler {
	return &TaskHandler{
		reservations: reservations,
		rooms:        rooms,
		metrics:      m,
		pendingTTL:   pendingTTL,
	}
}

// ExpirePendingReservations 取消超过保留时长仍未支付的预订
func (h *TaskHandler) ExpirePendingReservations(ctx context.Context) error {
	_, err := h.reservations.ExpireStalePending(ctx, h.pendingTTL, expireBatchSize)
	return err
}

// RefreshRoomGauge 刷新房态指标
func (h *TaskHandler) RefreshRoomGauge(ctx context.Context) error {
	if h.rooms == nil || h.metrics == nil {
		return nil
	}
	counts, err := h.rooms.CountByStatus(ctx)
	if err != nil {
		return err
	}
	h.metrics.SetRoomsByStatus(counts)
	return nil
}

// SetupTasks 设置所有任务
func SetupTasks(scheduler *Scheduler, handler *TaskHandler, expiryInterval time.Duration) {
	// pending_ttl 为 0 时不自动取消
	if handler.pendingTTL > 0 {
		scheduler.AddTask("ExpirePendingReservations", expiryInterval, handler.ExpirePendingReservations)
	}

	scheduler.AddTask("RefreshRoomGauge", time.Minute, handler.RefreshRoomGauge)
}
