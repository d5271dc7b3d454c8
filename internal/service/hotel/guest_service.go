package hotel

import (
	"context"
	stderrors "errors"
	"strings"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/common/crypto"
	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
)

// GuestService 客人档案服务
type GuestService struct {
	guestRepo *repository.GuestRepository
	cipher    *crypto.FieldCipher
}

// NewGuestService 创建客人服务，cipher 为 nil 时证件号明文存储
func NewGuestService(guestRepo *repository.GuestRepository, cipher *crypto.FieldCipher) *GuestService {
	return &GuestService{
		guestRepo: guestRepo,
		cipher:    cipher,
	}
}

// GuestInput 客人信息，email 为自然键
type GuestInput struct {
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"omitempty,max=40"`
	Address   string `json:"address"`
	IDType    string `json:"id_type" binding:"omitempty,max=40"`
	IDNumber  string `json:"id_number" binding:"omitempty,max=100"`
	Notes     string `json:"notes"`
}

// Validate 校验并规范化
func (in *GuestInput) Validate() error {
	in.Email = utils.NormalizeEmail(in.Email)
	if !utils.ValidateEmail(in.Email) {
		return errors.ErrGuestEmailInvalid
	}
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.FirstName == "" {
		return errors.ErrInvalidParams.WithMessage("first_name is required")
	}
	in.Phone = strings.TrimSpace(in.Phone)
	return nil
}

// UpsertGuest 按 email 插入或原地更新客人
func (s *GuestService) UpsertGuest(ctx context.Context, in *GuestInput) (*models.Guest, error) {
	return s.upsert(ctx, s.guestRepo, in)
}

// UpsertGuestTx 在调用方事务中 upsert
func (s *GuestService) UpsertGuestTx(ctx context.Context, tx *gorm.DB, in *GuestInput) (*models.Guest, error) {
	return s.upsert(ctx, s.guestRepo.WithTx(tx), in)
}

func (s *GuestService) upsert(ctx context.Context, repo *repository.GuestRepository, in *GuestInput) (*models.Guest, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	idNumber, err := s.encrypt(in.IDNumber)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	guest, err := repo.Upsert(ctx, &models.Guest{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
		IDType:    in.IDType,
		IDNumber:  idNumber,
		Notes:     in.Notes,
	})
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Debug("guest upserted", logger.GuestEmail(guest.Email), logger.Int64("guest_id", guest.ID))
	return s.reveal(guest), nil
}

// GetGuest 客人详情（证件号解密）
func (s *GuestService) GetGuest(ctx context.Context, id int64) (*models.Guest, error) {
	guest, err := s.guestRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrGuestNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return s.reveal(guest), nil
}

// ListGuests 客人列表（证件号脱敏）
func (s *GuestService) ListGuests(ctx context.Context, p utils.Pagination, search string) ([]*models.Guest, int64, error) {
	p.Normalize()
	guests, total, err := s.guestRepo.List(ctx, p.GetOffset(), p.GetLimit(), search)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	for _, g := range guests {
		s.reveal(g)
		g.IDNumber = crypto.MaskIDNumber(g.IDNumber)
	}
	return guests, total, nil
}

func (s *GuestService) encrypt(v string) (string, error) {
	v = strings.TrimSpace(v)
	if s.cipher == nil || v == "" {
		return v, nil
	}
	return s.cipher.Encrypt(v)
}

// reveal 原地解密证件号；解密失败时保留密文并记录
func (s *GuestService) reveal(g *models.Guest) *models.Guest {
	if s.cipher == nil || g == nil || g.IDNumber == "" {
		return g
	}
	plain, err := s.cipher.Decrypt(g.IDNumber)
	if err != nil {
		logger.Warn("decrypt guest id number failed", logger.Int64("guest_id", g.ID), logger.Err(err))
		return g
	}
	g.IDNumber = plain
	return g
}
