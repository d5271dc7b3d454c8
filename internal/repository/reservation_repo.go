package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/models"
)

// ReservationRepository 预订仓储
type ReservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository 创建预订仓储
func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *ReservationRepository) WithTx(tx *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: tx}
}

// ReservationFilters 预订列表过滤条件
type ReservationFilters struct {
	Status  string
	Source  string
	RoomID  int64
	GuestID int64
	Search  string     // 预订编号或客人 email
	From    *time.Time // check_out > From
	To      *time.Time // check_in < To
}

// Create 创建预订
func (r *ReservationRepository) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

// GetByID 根据 ID 获取预订
func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).First(&reservation, id).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetByIDWithDetails 根据 ID 获取预订（包含房间和客人）
func (r *ReservationRepository) GetByIDWithDetails(ctx context.Context, id int64) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Room").
		Preload("Guest").
		First(&reservation, id).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetByReservationID 根据预订编号获取预订（包含房间和客人）
func (r *ReservationRepository) GetByReservationID(ctx context.Context, reservationID string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Room").
		Preload("Guest").
		Where("reservation_id = ?", reservationID).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetByPaymentReference 根据网关订单号获取预订（包含房间和客人）
func (r *ReservationRepository) GetByPaymentReference(ctx context.Context, reference string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Room").
		Preload("Guest").
		Where("payment_reference = ?", reference).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// HasOverlap 检查房间在 [checkIn, checkOut) 内是否存在占用中的预订
// excludeID > 0 时排除该预订自身
func (r *ReservationRepository) HasOverlap(ctx context.Context, roomID int64, checkIn, checkOut time.Time, excludeID int64) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("room_id = ?", roomID).
		Where("status IN ?", models.BlockingStatuses).
		Where("check_in < ? AND check_out > ?", checkOut, checkIn)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// Update 保存整条预订
func (r *ReservationRepository) Update(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}

// UpdateFields 更新指定字段
func (r *ReservationRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Reservation{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateFieldsIfStatus 仅当当前状态属于 statuses 时更新，返回受影响行数
func (r *ReservationRepository) UpdateFieldsIfStatus(ctx context.Context, id int64, statuses []string, fields map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ?", id).
		Where("status IN ?", statuses).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// AddAmountPaid 累加已付金额
func (r *ReservationRepository) AddAmountPaid(ctx context.Context, id int64, amount float64) error {
	return r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ?", id).
		UpdateColumn("amount_paid", gorm.Expr("amount_paid + ?", amount)).Error
}

// List 获取预订列表
func (r *ReservationRepository) List(ctx context.Context, offset, limit int, filters *ReservationFilters) ([]*models.Reservation, int64, error) {
	var reservations []*models.Reservation
	var total int64

	query := r.applyFilters(r.db.WithContext(ctx).Model(&models.Reservation{}), filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Room").
		Preload("Guest").
		Order("check_in DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&reservations).Error; err != nil {
		return nil, 0, err
	}

	return reservations, total, nil
}

// ListForExport 导出用，按入住日期升序，不分页
func (r *ReservationRepository) ListForExport(ctx context.Context, filters *ReservationFilters) ([]*models.Reservation, error) {
	var reservations []*models.Reservation
	err := r.applyFilters(r.db.WithContext(ctx).Model(&models.Reservation{}), filters).
		Preload("Room").
		Preload("Guest").
		Order("check_in ASC, id ASC").
		Find(&reservations).Error
	return reservations, err
}

func (r *ReservationRepository) applyFilters(query *gorm.DB, filters *ReservationFilters) *gorm.DB {
	if filters == nil {
		return query
	}
	if filters.Status != "" {
		query = query.Where("reservations.status = ?", filters.Status)
	}
	if filters.Source != "" {
		query = query.Where("reservations.source = ?", filters.Source)
	}
	if filters.RoomID > 0 {
		query = query.Where("reservations.room_id = ?", filters.RoomID)
	}
	if filters.GuestID > 0 {
		query = query.Where("reservations.guest_id = ?", filters.GuestID)
	}
	if filters.From != nil {
		query = query.Where("reservations.check_out > ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("reservations.check_in < ?", *filters.To)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		guests := r.db.Model(&models.Guest{}).Select("id").Where("email LIKE ?", like)
		query = query.Where("LOWER(reservations.reservation_id) LIKE ? OR reservations.guest_id IN (?)", like, guests)
	}
	return query
}

// ListStalePending 获取创建早于 before 且未支付的待确认预订
func (r *ReservationRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*models.Reservation, error) {
	var reservations []*models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Room").
		Preload("Guest").
		Where("status = ?", models.ReservationStatusPending).
		Where("payment_status <> ?", models.PaymentStatusPaid).
		Where("created_at < ?", before).
		Order("created_at ASC").
		Limit(limit).
		Find(&reservations).Error
	return reservations, err
}

// CountArrivals 统计当天应到（pending/confirmed 且 check_in = day）
func (r *ReservationRepository) CountArrivals(ctx context.Context, day time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("check_in = ?", day).
		Where("status IN ?", []string{models.ReservationStatusPending, models.ReservationStatusConfirmed}).
		Count(&count).Error
	return count, err
}

// CountDepartures 统计当天应离（checked_in 且 check_out = day）
func (r *ReservationRepository) CountDepartures(ctx context.Context, day time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("check_out = ?", day).
		Where("status = ?", models.ReservationStatusCheckedIn).
		Count(&count).Error
	return count, err
}

// CountByStatus 按状态统计预订数
func (r *ReservationRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}
