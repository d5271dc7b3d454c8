package reservation

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/common/database"
	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/tracing"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
	"github.com/lavendermoon/villa-pms/internal/service/hotel"
	"github.com/lavendermoon/villa-pms/internal/service/pricing"
)

// CreateRequest 创建预订请求（员工端）
// GuestID 与 Guest 二选一，Guest 存在时按 email upsert
type CreateRequest struct {
	RoomID               int64             `json:"room_id" binding:"required,min=1"`
	CheckIn              string            `json:"check_in" binding:"required"`
	CheckOut             string            `json:"check_out" binding:"required"`
	NumGuests            int               `json:"num_guests" binding:"required,min=1"`
	SpecialRequests      string            `json:"special_requests" binding:"max=2000"`
	GuestID              int64             `json:"guest_id"`
	Guest                *hotel.GuestInput `json:"guest"`
	Source               string            `json:"source"`
	UseCustomTotal       bool              `json:"use_custom_total"`
	CustomTotal          *float64          `json:"custom_total"`
	ServiceChargeEnabled bool              `json:"service_charge_enabled"`
	AdditionalItems      []models.LineItem `json:"additional_items"`
}

// PublicCreateRequest 官网预订请求
type PublicCreateRequest struct {
	RoomID          int64             `json:"room_id" binding:"required,min=1"`
	CheckIn         string            `json:"check_in" binding:"required"`
	CheckOut        string            `json:"check_out" binding:"required"`
	NumGuests       int               `json:"num_guests" binding:"required,min=1"`
	SpecialRequests string            `json:"special_requests" binding:"max=2000"`
	GuestID         int64             `json:"guest_id"`
	Guest           *hotel.GuestInput `json:"guest"`
}

// ToCreateRequest 转为内部请求，来源固定为 direct
func (r *PublicCreateRequest) ToCreateRequest() *CreateRequest {
	return &CreateRequest{
		RoomID:          r.RoomID,
		CheckIn:         r.CheckIn,
		CheckOut:        r.CheckOut,
		NumGuests:       r.NumGuests,
		SpecialRequests: r.SpecialRequests,
		GuestID:         r.GuestID,
		Guest:           r.Guest,
		Source:          models.SourceDirect,
	}
}

// CreateReservation 创建预订
// 重叠检查与插入在同一个 SERIALIZABLE 事务中完成，编号分配见 preallocateID
func (s *Service) CreateReservation(ctx context.Context, req *CreateRequest) (res *models.Reservation, err error) {
	checkIn, err := utils.ParseDay(req.CheckIn)
	if err != nil {
		return nil, errors.ErrInvalidParams.WithMessage("check_in must be YYYY-MM-DD")
	}
	checkOut, err := utils.ParseDay(req.CheckOut)
	if err != nil {
		return nil, errors.ErrInvalidParams.WithMessage("check_out must be YYYY-MM-DD")
	}
	if checkIn, checkOut, err = ValidateRange(checkIn, checkOut); err != nil {
		return nil, err
	}
	if req.NumGuests < 1 {
		return nil, errors.ErrInvalidParams.WithMessage("num_guests must be at least 1")
	}
	source := req.Source
	if source == "" {
		source = models.SourceDirect
	}
	if !models.ValidSource(source) {
		return nil, errors.ErrInvalidSource
	}
	if req.Guest == nil && req.GuestID <= 0 {
		return nil, errors.ErrInvalidParams.WithMessage("guest or guest_id is required")
	}
	if req.Guest != nil {
		if err := req.Guest.Validate(); err != nil {
			return nil, err
		}
	}

	ctx, span := tracing.Start(ctx, "reservation.Create",
		tracing.WithRoomID(req.RoomID),
		tracing.WithOperation("create"),
	)
	defer func() { tracing.End(span, err) }()

	var created *models.Reservation
	allocatedID, err := s.preallocateID(ctx, req, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	err = database.SerializableTransaction(ctx, s.db, func(tx *gorm.DB) error {
		room, err := s.roomRepo.WithTx(tx).GetByID(ctx, req.RoomID)
		if err != nil {
			return roomLookupError(err)
		}
		if room.Status == models.RoomStatusMaintenance {
			return errors.ErrRoomMaintenance
		}
		if req.NumGuests > room.MaxGuests {
			return errors.ErrRoomCapacity
		}

		guest, err := s.resolveGuest(ctx, tx, req)
		if err != nil {
			return err
		}

		reservations := s.reservationRepo.WithTx(tx)
		overlap, err := reservations.HasOverlap(ctx, room.ID, checkIn, checkOut, 0)
		if err != nil {
			return err
		}
		if overlap {
			return errors.ErrRoomNotAvailable
		}

		r := &models.Reservation{
			RoomID:               room.ID,
			GuestID:              guest.ID,
			CheckIn:              checkIn,
			CheckOut:             checkOut,
			NumGuests:            req.NumGuests,
			SpecialRequests:      strings.TrimSpace(req.SpecialRequests),
			Source:               source,
			Status:               models.ReservationStatusPending,
			UseCustomTotal:       req.UseCustomTotal && req.CustomTotal != nil,
			ServiceChargeEnabled: req.ServiceChargeEnabled,
			AdditionalItems:      req.AdditionalItems,
			PaymentStatus:        models.PaymentStatusUnpaid,
		}
		if r.UseCustomTotal {
			r.CustomTotal = req.CustomTotal
		}

		breakdown, err := pricing.ForReservation(r, room.Rate)
		if err != nil {
			return err
		}
		breakdown.Apply(r)

		r.ReservationID = allocatedID
		if r.ReservationID == "" {
			if r.ReservationID, err = s.allocateID(ctx, s.sequenceRepo.WithTx(tx), checkIn); err != nil {
				return err
			}
		}

		if err := reservations.Create(ctx, r); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, s.mapWriteError(err)
	}

	s.metrics.RecordReservation(models.ReservationStatusPending)
	s.invalidateAvailability(ctx)
	tracing.AddEvent(ctx, "reservation.created", tracing.WithReservationID(created.ReservationID))
	logger.Info("Reservation created",
		logger.ReservationID(created.ReservationID),
		logger.RoomID(created.RoomID),
		logger.Float64("total", created.TotalPrice),
	)

	return s.loadReservation(ctx, s.reservationRepo, created.ID)
}

// preallocateID PostgreSQL 上在事务开始前分配编号，计数行不进入可串行化事务，重试沿用同一编号
// 房间明显不可订时不分配，由事务返回具体错误；事务失败时该编号作废
// 其他数据库返回空串，编号在事务内分配
func (s *Service) preallocateID(ctx context.Context, req *CreateRequest, checkIn, checkOut time.Time) (string, error) {
	if !s.sequenceOutsideTx {
		return "", nil
	}
	room, err := s.roomRepo.GetByID(ctx, req.RoomID)
	if err != nil {
		return "", roomLookupError(err)
	}
	if room.Status == models.RoomStatusMaintenance || req.NumGuests > room.MaxGuests {
		return "", nil
	}
	overlap, err := s.reservationRepo.HasOverlap(ctx, room.ID, checkIn, checkOut, 0)
	if err != nil {
		return "", errors.ErrDatabaseError.WithError(err)
	}
	if overlap {
		return "", nil
	}
	id, err := s.allocateID(ctx, s.sequenceRepo, checkIn)
	if err != nil {
		return "", errors.ErrDatabaseError.WithError(err)
	}
	return id, nil
}

// resolveGuest 在事务中获取或 upsert 客人
func (s *Service) resolveGuest(ctx context.Context, tx *gorm.DB, req *CreateRequest) (*models.Guest, error) {
	if req.Guest != nil {
		return s.guests.UpsertGuestTx(ctx, tx, req.Guest)
	}
	guest, err := repository.NewGuestRepository(tx).GetByID(ctx, req.GuestID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrGuestNotFound
		}
		return nil, err
	}
	return guest, nil
}

// mapWriteError 把事务错误归类为 AppError
func (s *Service) mapWriteError(err error) error {
	if stderrors.Is(err, database.ErrSerializationConflict) || database.IsUniqueViolation(err) {
		s.metrics.RecordReservationConflict()
		return errors.ErrConflict.WithMessage("reservation conflicted with a concurrent booking, please retry").WithError(err)
	}
	if appErr := errors.AsAppError(err); appErr != nil {
		if appErr.Is(errors.ErrRoomNotAvailable) {
			s.metrics.RecordReservationConflict()
		}
		return appErr
	}
	return errors.ErrDatabaseError.WithError(err)
}

// roomLookupError 房间查询错误归类
func roomLookupError(err error) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.ErrRoomNotFound
	}
	if errors.IsAppError(err) {
		return err
	}
	return errors.ErrDatabaseError.WithError(err)
}
