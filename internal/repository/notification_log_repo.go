package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/models"
)

// NotificationLogRepository 通知发送记录仓储
type NotificationLogRepository struct {
	db *gorm.DB
}

// NewNotificationLogRepository 创建通知发送记录仓储
func NewNotificationLogRepository(db *gorm.DB) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// Create 写入发送记录
func (r *NotificationLogRepository) Create(ctx context.Context, log *models.NotificationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ListByReservation 获取预订的全部通知记录，按时间升序
func (r *NotificationLogRepository) ListByReservation(ctx context.Context, reservationID string) ([]*models.NotificationLog, error) {
	var logs []*models.NotificationLog
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

// CountByStatus 统计指定预订某种结果的记录数，reservationID 为空时统计全部
func (r *NotificationLogRepository) CountByStatus(ctx context.Context, reservationID, status string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.NotificationLog{}).Where("status = ?", status)
	if reservationID != "" {
		query = query.Where("reservation_id = ?", reservationID)
	}
	err := query.Count(&count).Error
	return count, err
}
