// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/models"
)

// RoomRepository 房间仓储
type RoomRepository struct {
	db *gorm.DB
}

// NewRoomRepository 创建房间仓储
func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *RoomRepository) WithTx(tx *gorm.DB) *RoomRepository {
	return &RoomRepository{db: tx}
}

// Create 创建房间
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

// GetByID 根据 ID 获取房间
func (r *RoomRepository) GetByID(ctx context.Context, id int64) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).First(&room, id).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetByRoomNumber 根据房间号获取房间
func (r *RoomRepository) GetByRoomNumber(ctx context.Context, roomNumber string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Where("room_number = ?", roomNumber).First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ExistsByRoomNumber 检查房间号是否已被其他房间使用
func (r *RoomRepository) ExistsByRoomNumber(ctx context.Context, roomNumber string, excludeID int64) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Room{}).Where("room_number = ?", roomNumber)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// Update 更新房间
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Save(room).Error
}

// UpdateStatus 更新房态
func (r *RoomRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).Model(&models.Room{}).Where("id = ?", id).Update("status", status).Error
}

// List 获取房间列表，按房间号排序
func (r *RoomRepository) List(ctx context.Context, filters map[string]interface{}) ([]*models.Room, error) {
	var rooms []*models.Room

	query := r.db.WithContext(ctx).Model(&models.Room{})
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if roomType, ok := filters["room_type"].(string); ok && roomType != "" {
		query = query.Where("room_type = ?", roomType)
	}
	if minGuests, ok := filters["min_guests"].(int); ok && minGuests > 0 {
		query = query.Where("max_guests >= ?", minGuests)
	}

	err := query.Order("room_number ASC").Find(&rooms).Error
	return rooms, err
}

// ListAvailable 获取指定区间内可预订的房间
// 排除维护中的房间，以及存在 pending/confirmed/checked_in 且日期重叠预订的房间
func (r *RoomRepository) ListAvailable(ctx context.Context, checkIn, checkOut time.Time) ([]*models.Room, error) {
	var rooms []*models.Room

	overlapping := r.db.Model(&models.Reservation{}).
		Select("1").
		Where("reservations.room_id = rooms.id").
		Where("reservations.status IN ?", models.BlockingStatuses).
		Where("reservations.check_in < ? AND reservations.check_out > ?", checkOut, checkIn)

	err := r.db.WithContext(ctx).
		Where("status <> ?", models.RoomStatusMaintenance).
		Where("NOT EXISTS (?)", overlapping).
		Order("room_number ASC").
		Find(&rooms).Error
	return rooms, err
}

// CountByStatus 按房态统计房间数
func (r *RoomRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Room{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := map[string]int64{
		models.RoomStatusAvailable:   0,
		models.RoomStatusOccupied:    0,
		models.RoomStatusCleaning:    0,
		models.RoomStatusMaintenance: 0,
	}
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}
