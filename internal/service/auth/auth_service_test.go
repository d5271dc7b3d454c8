package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/jwt"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
)

// setupAuthService 创建测试用认证服务
func setupAuthService(t *testing.T) (*Service, *gorm.DB, *jwt.Manager) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Staff{}))

	manager := jwt.NewManager(&jwt.Config{
		Secret:            "test-secret",
		AccessExpireTime:  8 * time.Hour,
		RefreshExpireTime: 72 * time.Hour,
		Issuer:            "villa-pms-test",
	})
	// bcrypt 最低 cost 加快测试
	return NewService(db, manager, 4), db, manager
}

func setupAdmin(t *testing.T, svc *Service) *LoginResponse {
	resp, err := svc.Setup(context.Background(), &SetupRequest{
		Email:    "Owner@Villas.example.com",
		Password: "correct-horse",
		Name:     " Grace Hopper ",
	})
	require.NoError(t, err)
	return resp
}

func TestSetup(t *testing.T) {
	svc, _, manager := setupAuthService(t)
	ctx := context.Background()

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.SetupRequired)

	resp := setupAdmin(t, svc)
	assert.Equal(t, "owner@villas.example.com", resp.Staff.Email)
	assert.Equal(t, "Grace Hopper", resp.Staff.Name)
	assert.Equal(t, models.StaffRoleAdmin, resp.Staff.Role)

	claims, err := manager.ParseAccessToken(resp.TokenPair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.Staff.ID, claims.StaffID)
	assert.Equal(t, models.StaffRoleAdmin, claims.Role)

	_, err = svc.Setup(ctx, &SetupRequest{Email: "second@example.com", Password: "whatever1", Name: "X"})
	assert.ErrorIs(t, err, errors.ErrSetupCompleted)

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.SetupRequired)
}

func TestLogin(t *testing.T) {
	svc, db, _ := setupAuthService(t)
	ctx := context.Background()
	admin := setupAdmin(t, svc)

	resp, err := svc.Login(ctx, &LoginRequest{Email: "OWNER@villas.example.com", Password: "correct-horse", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, admin.Staff.ID, resp.Staff.ID)
	assert.NotEmpty(t, resp.TokenPair.RefreshToken)

	var staff models.Staff
	require.NoError(t, db.First(&staff, admin.Staff.ID).Error)
	assert.NotNil(t, staff.LastLoginAt)
	assert.Equal(t, "10.0.0.1", utils.SafeString(staff.LastLoginIP))

	_, err = svc.Login(ctx, &LoginRequest{Email: "owner@villas.example.com", Password: "wrong"})
	assert.ErrorIs(t, err, errors.ErrInvalidLogin)

	_, err = svc.Login(ctx, &LoginRequest{Email: "nobody@villas.example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, errors.ErrInvalidLogin)

	require.NoError(t, svc.SetActive(ctx, admin.Staff.ID, false))
	_, err = svc.Login(ctx, &LoginRequest{Email: "owner@villas.example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, errors.ErrAccountDisabled)
}

func TestMeAndRefresh(t *testing.T) {
	svc, _, _ := setupAuthService(t)
	ctx := context.Background()
	admin := setupAdmin(t, svc)

	me, err := svc.Me(ctx, admin.Staff.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner@villas.example.com", me.Email)

	_, err = svc.Me(ctx, 999)
	assert.ErrorIs(t, err, errors.ErrStaffNotFound)

	pair, err := svc.Refresh(ctx, admin.TokenPair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	_, err = svc.Refresh(ctx, admin.TokenPair.AccessToken)
	assert.ErrorIs(t, err, errors.ErrTokenInvalid)

	require.NoError(t, svc.SetActive(ctx, admin.Staff.ID, false))
	_, err = svc.Refresh(ctx, admin.TokenPair.RefreshToken)
	assert.ErrorIs(t, err, errors.ErrAccountDisabled)
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := setupAuthService(t)
	ctx := context.Background()
	admin := setupAdmin(t, svc)

	err := svc.ChangePassword(ctx, admin.Staff.ID, &ChangePasswordRequest{OldPassword: "nope", NewPassword: "new-password"})
	assert.ErrorIs(t, err, errors.ErrInvalidLogin)

	require.NoError(t, svc.ChangePassword(ctx, admin.Staff.ID, &ChangePasswordRequest{OldPassword: "correct-horse", NewPassword: "new-password"}))
	_, err = svc.Login(ctx, &LoginRequest{Email: "owner@villas.example.com", Password: "new-password"})
	require.NoError(t, err)
}

func TestCreateAndListStaff(t *testing.T) {
	svc, _, _ := setupAuthService(t)
	ctx := context.Background()
	setupAdmin(t, svc)

	info, err := svc.CreateStaff(ctx, &CreateStaffRequest{
		Email:    "desk@villas.example.com",
		Password: "front-desk-1",
		Name:     "Front Desk",
		Role:     models.StaffRoleFrontDesk,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StaffRoleFrontDesk, info.Role)

	_, err = svc.CreateStaff(ctx, &CreateStaffRequest{Email: "DESK@villas.example.com", Password: "x1234567", Name: "Dup", Role: models.StaffRoleManager})
	assert.ErrorIs(t, err, errors.ErrStaffEmailExists)

	_, err = svc.CreateStaff(ctx, &CreateStaffRequest{Email: "boss@villas.example.com", Password: "x1234567", Name: "Boss", Role: "owner"})
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))

	list, total, err := svc.ListStaff(ctx, "", utils.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	_, total, err = svc.ListStaff(ctx, models.StaffRoleFrontDesk, utils.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
