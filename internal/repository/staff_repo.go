package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/models"
)

// StaffRepository 员工仓储
type StaffRepository struct {
	db *gorm.DB
}

// NewStaffRepository 创建员工仓储
func NewStaffRepository(db *gorm.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// Create 创建员工
func (r *StaffRepository) Create(ctx context.Context, staff *models.Staff) error {
	return r.db.WithContext(ctx).Create(staff).Error
}

// GetByID 根据 ID 获取员工
func (r *StaffRepository) GetByID(ctx context.Context, id int64) (*models.Staff, error) {
	var staff models.Staff
	err := r.db.WithContext(ctx).First(&staff, id).Error
	if err != nil {
		return nil, err
	}
	return &staff, nil
}

// GetByEmail 根据 email 获取员工
func (r *StaffRepository) GetByEmail(ctx context.Context, email string) (*models.Staff, error) {
	var staff models.Staff
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&staff).Error
	if err != nil {
		return nil, err
	}
	return &staff, nil
}

// Count 员工总数
func (r *StaffRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Staff{}).Count(&count).Error
	return count, err
}

// ExistsByEmail 检查 email 是否已注册
func (r *StaffRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Staff{}).Where("email = ?", strings.ToLower(email)).Count(&count).Error
	return count > 0, err
}

// UpdateLoginInfo 更新登录信息
func (r *StaffRepository) UpdateLoginInfo(ctx context.Context, id int64, ip string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.Staff{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_login_at": now,
		"last_login_ip": ip,
	}).Error
}

// UpdateFields 更新指定字段
func (r *StaffRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Staff{}).Where("id = ?", id).Updates(fields).Error
}

// List 获取员工列表
func (r *StaffRepository) List(ctx context.Context, offset, limit int, role string) ([]*models.Staff, int64, error) {
	var staff []*models.Staff
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Staff{})
	if role != "" {
		query = query.Where("role = ?", role)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id ASC").Offset(offset).Limit(limit).Find(&staff).Error; err != nil {
		return nil, 0, err
	}

	return staff, total, nil
}
