package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lavendermoon/villa-pms/internal/models"
)

// GuestRepository 客人仓储
type GuestRepository struct {
	db *gorm.DB
}

// NewGuestRepository 创建客人仓储
func NewGuestRepository(db *gorm.DB) *GuestRepository {
	return &GuestRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *GuestRepository) WithTx(tx *gorm.DB) *GuestRepository {
	return &GuestRepository{db: tx}
}

// guestUpsertColumns 按 email 冲突时覆盖的列
var guestUpsertColumns = []string{
	"first_name", "last_name", "phone", "address", "id_type", "id_number", "notes", "updated_at",
}

// Upsert 按 email 插入或原地更新，返回最新记录
// email 必须已规范化为小写
func (r *GuestRepository) Upsert(ctx context.Context, guest *models.Guest) (*models.Guest, error) {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns(guestUpsertColumns),
	}).Create(guest).Error
	if err != nil {
		return nil, err
	}
	return r.GetByEmail(ctx, guest.Email)
}

// GetByID 根据 ID 获取客人
func (r *GuestRepository) GetByID(ctx context.Context, id int64) (*models.Guest, error) {
	var guest models.Guest
	err := r.db.WithContext(ctx).First(&guest, id).Error
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

// GetByEmail 根据 email 获取客人（大小写不敏感）
func (r *GuestRepository) GetByEmail(ctx context.Context, email string) (*models.Guest, error) {
	var guest models.Guest
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&guest).Error
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

// List 获取客人列表，search 匹配姓名、email、电话
func (r *GuestRepository) List(ctx context.Context, offset, limit int, search string) ([]*models.Guest, int64, error) {
	var guests []*models.Guest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Guest{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR email LIKE ? OR phone LIKE ?",
			like, like, like, like,
		)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("last_name ASC, first_name ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&guests).Error; err != nil {
		return nil, 0, err
	}

	return guests, total, nil
}
