// Package auth 员工账号：首次初始化、登录与令牌
package auth

import (
	"context"
	stderrors "errors"
	"strings"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/common/crypto"
	"github.com/lavendermoon/villa-pms/internal/common/database"
	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/jwt"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
)

// Service 员工认证服务
type Service struct {
	db         *gorm.DB
	staffRepo  *repository.StaffRepository
	jwtManager *jwt.Manager
	bcryptCost int
}

// NewService 创建员工认证服务
func NewService(db *gorm.DB, jwtManager *jwt.Manager, bcryptCost int) *Service {
	return &Service{
		db:         db,
		staffRepo:  repository.NewStaffRepository(db),
		jwtManager: jwtManager,
		bcryptCost: bcryptCost,
	}
}

// SetupRequest 初始化首个管理员
type SetupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"required,max=100"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	IP       string `json:"-"`
}

// CreateStaffRequest 管理员创建员工
type CreateStaffRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"required,max=100"`
	Role     string `json:"role" binding:"required,oneof=admin manager front_desk"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=72"`
}

// StaffInfo 员工信息（不含密码）
type StaffInfo struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Staff     *StaffInfo     `json:"staff"`
	TokenPair *jwt.TokenPair `json:"token"`
}

// SetupStatus 是否还需要初始化
type SetupStatus struct {
	SetupRequired bool `json:"setup_required"`
}

// Status 查询是否已完成初始化
func (s *Service) Status(ctx context.Context) (*SetupStatus, error) {
	count, err := s.staffRepo.Count(ctx)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return &SetupStatus{SetupRequired: count == 0}, nil
}

// Setup 仅当尚无员工时创建首个管理员
func (s *Service) Setup(ctx context.Context, req *SetupRequest) (*LoginResponse, error) {
	hash, err := crypto.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	staff := &models.Staff{
		Email:        utils.NormalizeEmail(req.Email),
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         models.StaffRoleAdmin,
		IsActive:     true,
	}
	err = database.SerializableTransaction(ctx, s.db, func(tx *gorm.DB) error {
		repo := repository.NewStaffRepository(tx)
		count, err := repo.Count(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			return errors.ErrSetupCompleted
		}
		return repo.Create(ctx, staff)
	})
	if err != nil {
		if appErr := errors.AsAppError(err); appErr != nil {
			return nil, appErr
		}
		if stderrors.Is(err, database.ErrSerializationConflict) {
			return nil, errors.ErrSetupCompleted
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("Initial admin created", logger.StaffID(staff.ID))
	return s.issue(staff)
}

// Login 邮箱密码登录
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	staff, err := s.staffRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrInvalidLogin
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if !crypto.VerifyPassword(req.Password, staff.PasswordHash) {
		return nil, errors.ErrInvalidLogin
	}
	if !staff.IsActive {
		return nil, errors.ErrAccountDisabled
	}

	if err := s.staffRepo.UpdateLoginInfo(ctx, staff.ID, req.IP); err != nil {
		logger.Warn("Failed to update staff login info", logger.StaffID(staff.ID), logger.Err(err))
	}
	return s.issue(staff)
}

// Me 当前员工信息
func (s *Service) Me(ctx context.Context, staffID int64) (*StaffInfo, error) {
	staff, err := s.loadActive(ctx, staffID)
	if err != nil {
		return nil, err
	}
	return toStaffInfo(staff), nil
}

// Refresh 刷新令牌，账号停用后失效
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	pair, err := s.jwtManager.Refresh(refreshToken)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrTokenInvalid
	}
	claims, err := s.jwtManager.ParseAccessToken(pair.AccessToken)
	if err != nil {
		return nil, errors.ErrTokenInvalid
	}
	if _, err := s.loadActive(ctx, claims.StaffID); err != nil {
		return nil, err
	}
	return pair, nil
}

// ChangePassword 修改自己的密码
func (s *Service) ChangePassword(ctx context.Context, staffID int64, req *ChangePasswordRequest) error {
	staff, err := s.loadActive(ctx, staffID)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(req.OldPassword, staff.PasswordHash) {
		return errors.ErrInvalidLogin.WithMessage("current password is incorrect")
	}
	hash, err := crypto.HashPassword(req.NewPassword, s.bcryptCost)
	if err != nil {
		return errors.ErrInternalError.WithError(err)
	}
	if err := s.staffRepo.UpdateFields(ctx, staffID, map[string]interface{}{"password_hash": hash}); err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	return nil
}

// CreateStaff 创建员工账号
func (s *Service) CreateStaff(ctx context.Context, req *CreateStaffRequest) (*StaffInfo, error) {
	if !models.ValidStaffRole(req.Role) {
		return nil, errors.ValidationError("invalid staff role")
	}
	email := utils.NormalizeEmail(req.Email)
	exists, err := s.staffRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if exists {
		return nil, errors.ErrStaffEmailExists
	}

	hash, err := crypto.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}
	staff := &models.Staff{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         req.Role,
		IsActive:     true,
	}
	if err := s.staffRepo.Create(ctx, staff); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errors.ErrStaffEmailExists
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return toStaffInfo(staff), nil
}

// ListStaff 员工列表
func (s *Service) ListStaff(ctx context.Context, role string, p utils.Pagination) ([]*StaffInfo, int64, error) {
	p.Normalize()
	list, total, err := s.staffRepo.List(ctx, p.GetOffset(), p.GetLimit(), role)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	infos := make([]*StaffInfo, 0, len(list))
	for _, st := range list {
		infos = append(infos, toStaffInfo(st))
	}
	return infos, total, nil
}

// SetActive 启用或停用员工
func (s *Service) SetActive(ctx context.Context, staffID int64, active bool) error {
	if _, err := s.load(ctx, staffID); err != nil {
		return err
	}
	if err := s.staffRepo.UpdateFields(ctx, staffID, map[string]interface{}{"is_active": active}); err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, staffID int64) (*models.Staff, error) {
	staff, err := s.staffRepo.GetByID(ctx, staffID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrStaffNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return staff, nil
}

func (s *Service) loadActive(ctx context.Context, staffID int64) (*models.Staff, error) {
	staff, err := s.load(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if !staff.IsActive {
		return nil, errors.ErrAccountDisabled
	}
	return staff, nil
}

func (s *Service) issue(staff *models.Staff) (*LoginResponse, error) {
	pair, err := s.jwtManager.GenerateTokenPair(staff.ID, staff.Email, staff.Role)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}
	return &LoginResponse{Staff: toStaffInfo(staff), TokenPair: pair}, nil
}

func toStaffInfo(staff *models.Staff) *StaffInfo {
	return &StaffInfo{
		ID:    staff.ID,
		Email: staff.Email,
		Name:  staff.Name,
		Role:  staff.Role,
	}
}
