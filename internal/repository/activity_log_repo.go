package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/models"
)

// ActivityLogRepository 员工操作日志仓储
type ActivityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository 创建员工操作日志仓储
func NewActivityLogRepository(db *gorm.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Create 写入操作日志
func (r *ActivityLogRepository) Create(ctx context.Context, log *models.StaffActivityLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// List 获取操作日志列表
func (r *ActivityLogRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.StaffActivityLog, int64, error) {
	var logs []*models.StaffActivityLog
	var total int64

	query := r.db.WithContext(ctx).Model(&models.StaffActivityLog{})

	// 应用过滤条件
	if staffID, ok := filters["staff_id"].(int64); ok && staffID > 0 {
		query = query.Where("staff_id = ?", staffID)
	}
	if module, ok := filters["module"].(string); ok && module != "" {
		query = query.Where("module = ?", module)
	}
	if action, ok := filters["action"].(string); ok && action != "" {
		query = query.Where("action = ?", action)
	}
	if targetID, ok := filters["target_id"].(string); ok && targetID != "" {
		query = query.Where("target_id = ?", targetID)
	}
	if startTime, ok := filters["start_time"].(time.Time); ok {
		query = query.Where("created_at >= ?", startTime)
	}
	if endTime, ok := filters["end_time"].(time.Time); ok {
		query = query.Where("created_at <= ?", endTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Preload("Staff").Order("id DESC").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
