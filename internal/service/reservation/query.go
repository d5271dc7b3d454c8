package reservation

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
)

// ListRequest 预订列表过滤
type ListRequest struct {
	Status  string     `form:"status" binding:"omitempty,oneof=pending confirmed checked_in checked_out cancelled"`
	Source  string     `form:"source"`
	RoomID  int64      `form:"room_id"`
	GuestID int64      `form:"guest_id"`
	Search  string     `form:"search"`
	From    *time.Time `form:"-"`
	To      *time.Time `form:"-"`
}

func (r *ListRequest) filters() *repository.ReservationFilters {
	if r == nil {
		return nil
	}
	return &repository.ReservationFilters{
		Status:  r.Status,
		Source:  r.Source,
		RoomID:  r.RoomID,
		GuestID: r.GuestID,
		Search:  r.Search,
		From:    r.From,
		To:      r.To,
	}
}

// GetReservation 获取预订详情
func (s *Service) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.loadReservation(ctx, s.reservationRepo, id)
}

// GetByReservationID 按预订编号获取
func (s *Service) GetByReservationID(ctx context.Context, reservationID string) (*models.Reservation, error) {
	res, err := s.reservationRepo.GetByReservationID(ctx, reservationID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrReservationNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return res, nil
}

// GetForGuest 官网凭预订编号与客人邮箱查询，邮箱不符时与编号不存在同样返回未找到
func (s *Service) GetForGuest(ctx context.Context, reservationID, email string) (*models.Reservation, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil, errors.ErrReservationNotFound
	}
	res, err := s.GetByReservationID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Guest == nil || utils.NormalizeEmail(res.Guest.Email) != email {
		return nil, errors.ErrReservationNotFound
	}
	return res, nil
}

// ListReservations 分页列出预订，按入住日期倒序
func (s *Service) ListReservations(ctx context.Context, req *ListRequest, p utils.Pagination) ([]*models.Reservation, int64, error) {
	p.Normalize()
	list, total, err := s.reservationRepo.List(ctx, p.GetOffset(), p.GetLimit(), req.filters())
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}

// OfflinePaymentRequest 线下收款
type OfflinePaymentRequest struct {
	Amount    float64 `json:"amount" binding:"required,gt=0"`
	Method    string  `json:"method" binding:"omitempty,max=20"` // cash, card, transfer
	Reference string  `json:"reference" binding:"omitempty,max=100"`
}

// RecordOfflinePayment 记录前台线下收款，累加到已付金额
func (s *Service) RecordOfflinePayment(ctx context.Context, id int64, req *OfflinePaymentRequest) (*models.Reservation, error) {
	amount := utils.RoundCents(req.Amount)
	if amount <= 0 {
		return nil, errors.ErrInvalidAmount.WithMessage("payment amount must be greater than zero")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.reservationRepo.WithTx(tx)
		res, err := s.loadReservation(ctx, repo, id)
		if err != nil {
			return err
		}
		if res.Status == models.ReservationStatusCancelled {
			return errors.ErrReservationClosed.WithMessage("cannot record a payment on a cancelled reservation")
		}
		if err := repo.AddAmountPaid(ctx, id, amount); err != nil {
			return err
		}

		fields := map[string]interface{}{
			"payment_date": s.now(),
		}
		if res.PaymentGateway == nil {
			fields["payment_gateway"] = models.GatewayOffline
		}
		if req.Reference != "" {
			fields["payment_transaction_id"] = req.Reference
		}
		if utils.RoundCents(res.AmountPaid+amount) >= res.TotalPrice {
			fields["payment_status"] = models.PaymentStatusPaid
		}
		return repo.UpdateFields(ctx, id, fields)
	})
	if err != nil {
		if appErr := errors.AsAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	res, err := s.loadReservation(ctx, s.reservationRepo, id)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPayment(models.GatewayOffline, "paid")
	logger.Info("Offline payment recorded",
		logger.ReservationID(res.ReservationID),
		logger.Float64("amount", amount),
		logger.String("method", req.Method),
	)
	return res, nil
}

// DashboardStats 前台看板
type DashboardStats struct {
	Date               string           `json:"date"`
	ArrivalsToday      int64            `json:"arrivals_today"`
	DeparturesToday    int64            `json:"departures_today"`
	InHouse            int64            `json:"in_house"`
	PendingCount       int64            `json:"pending_count"`
	ReservationsStatus map[string]int64 `json:"reservations_by_status"`
	RoomsStatus        map[string]int64 `json:"rooms_by_status"`
}

// Dashboard 统计当天到离店、在住与房态
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	today := utils.TruncateDay(s.now())

	arrivals, err := s.reservationRepo.CountArrivals(ctx, today)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	departures, err := s.reservationRepo.CountDepartures(ctx, today)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	byStatus, err := s.reservationRepo.CountByStatus(ctx)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	rooms, err := s.roomRepo.CountByStatus(ctx)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	s.metrics.SetRoomsByStatus(rooms)

	return &DashboardStats{
		Date:               utils.FormatDay(today),
		ArrivalsToday:      arrivals,
		DeparturesToday:    departures,
		InHouse:            byStatus[models.ReservationStatusCheckedIn],
		PendingCount:       byStatus[models.ReservationStatusPending],
		ReservationsStatus: byStatus,
		RoomsStatus:        rooms,
	}, nil
}
