package reservation

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/tracing"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
)

// transitions 合法的状态迁移
var transitions = map[string][]string{
	models.ReservationStatusPending:   {models.ReservationStatusConfirmed, models.ReservationStatusCancelled},
	models.ReservationStatusConfirmed: {models.ReservationStatusCheckedIn, models.ReservationStatusCancelled},
	models.ReservationStatusCheckedIn: {models.ReservationStatusCheckedOut, models.ReservationStatusCancelled},
}

// CanTransition 判断 from -> to 是否合法
func CanTransition(from, to string) bool {
	return utils.Contains(transitions[from], to)
}

// roomStatusAfter 迁移后房间应处的房态，空串表示不变
func roomStatusAfter(from, to string) string {
	switch to {
	case models.ReservationStatusCheckedIn:
		return models.RoomStatusOccupied
	case models.ReservationStatusCheckedOut:
		return models.RoomStatusCleaning
	case models.ReservationStatusCancelled:
		if from == models.ReservationStatusConfirmed || from == models.ReservationStatusCheckedIn {
			return models.RoomStatusAvailable
		}
	}
	return ""
}

// CancelRequest 取消请求
type CancelRequest struct {
	Reason string `json:"reason" binding:"max=50"`
	Notes  string `json:"notes" binding:"max=2000"`
}

// transitionFields 迁移写入的字段（状态与时间戳）
func transitionFields(to string, now time.Time, fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status"] = to
	switch to {
	case models.ReservationStatusConfirmed:
		fields["confirmed_at"] = now
	case models.ReservationStatusCheckedIn:
		fields["checked_in_at"] = now
	case models.ReservationStatusCheckedOut:
		fields["checked_out_at"] = now
	case models.ReservationStatusCancelled:
		fields["cancelled_at"] = now
	}
	return fields
}

// applyTransition 在事务中执行迁移：条件更新预订状态并同步房态
// 返回更新后的房态，空串表示房态未变
func (s *Service) applyTransition(ctx context.Context, tx *gorm.DB, res *models.Reservation, to string, fields map[string]interface{}) (string, error) {
	from := res.Status
	if !CanTransition(from, to) {
		return "", errors.ErrInvalidTransition.WithMessagef("cannot change reservation from %s to %s", from, to)
	}

	fields = transitionFields(to, s.now(), fields)
	rows, err := s.reservationRepo.WithTx(tx).UpdateFieldsIfStatus(ctx, res.ID, []string{from}, fields)
	if err != nil {
		return "", err
	}
	if rows == 0 {
		return "", errors.ConflictError("reservation was modified concurrently, please reload")
	}

	roomStatus := roomStatusAfter(from, to)
	if roomStatus != "" {
		if err := s.roomRepo.WithTx(tx).UpdateStatus(ctx, res.RoomID, roomStatus); err != nil {
			return "", err
		}
	}
	return roomStatus, nil
}

// transition 独立事务中执行单次迁移，提交后推送房态与通知
func (s *Service) transition(ctx context.Context, id int64, to string, fields map[string]interface{}) (res *models.Reservation, err error) {
	ctx, span := tracing.Start(ctx, "reservation.Transition", tracing.WithOperation(to))
	defer func() { tracing.End(span, err) }()

	var (
		prior      string
		roomStatus string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.loadReservation(ctx, s.reservationRepo.WithTx(tx), id)
		if err != nil {
			return err
		}
		prior = current.Status
		roomStatus, err = s.applyTransition(ctx, tx, current, to, fields)
		return err
	})
	if err != nil {
		return nil, s.mapWriteError(err)
	}

	res, err = s.loadReservation(ctx, s.reservationRepo, id)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordReservation(to)
	s.afterTransition(ctx, res, prior, roomStatus)
	return res, nil
}

// afterTransition 提交后的副作用
func (s *Service) afterTransition(ctx context.Context, res *models.Reservation, prior, roomStatus string) {
	if roomStatus != "" {
		s.publishRoom(ctx, res.RoomID)
	}
	if res.Status == models.ReservationStatusCancelled || res.Status == models.ReservationStatusCheckedOut {
		s.invalidateAvailability(ctx)
	}
	if res.Status == models.ReservationStatusCancelled {
		s.notify(models.NotificationKindCancellation, res, nil)
	}
	logger.Info("Reservation status changed",
		logger.ReservationID(res.ReservationID),
		logger.String("from", prior),
		logger.String("to", res.Status),
	)
}

// ConfirmReservation 人工确认（不改房态，不发通知）
func (s *Service) ConfirmReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.transition(ctx, id, models.ReservationStatusConfirmed, nil)
}

// CheckIn 办理入住，房间置为 occupied
func (s *Service) CheckIn(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.transition(ctx, id, models.ReservationStatusCheckedIn, nil)
}

// CheckOut 办理退房，房间置为 cleaning
func (s *Service) CheckOut(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.transition(ctx, id, models.ReservationStatusCheckedOut, nil)
}

// CancelReservation 取消预订
// 原状态为 confirmed/checked_in 时房间置为 available
func (s *Service) CancelReservation(ctx context.Context, id int64, req *CancelRequest) (*models.Reservation, error) {
	fields := map[string]interface{}{}
	if req != nil {
		if req.Reason != "" {
			fields["cancellation_reason"] = req.Reason
		}
		if req.Notes != "" {
			fields["cancellation_notes"] = req.Notes
		}
	}
	return s.transition(ctx, id, models.ReservationStatusCancelled, fields)
}

// ExpireStalePending 取消超过 ttl 仍未支付的待确认预订，返回取消数量
func (s *Service) ExpireStalePending(ctx context.Context, ttl time.Duration, batch int) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	if batch <= 0 {
		batch = 100
	}

	stale, err := s.reservationRepo.ListStalePending(ctx, s.now().Add(-ttl), batch)
	if err != nil {
		return 0, errors.ErrDatabaseError.WithError(err)
	}

	expired := 0
	for _, res := range stale {
		_, err := s.CancelReservation(ctx, res.ID, &CancelRequest{Reason: models.CancellationReasonPaymentTimeout})
		if err != nil {
			// 支付回调可能已抢先确认
			logger.Warn("Failed to expire pending reservation",
				logger.ReservationID(res.ReservationID),
				logger.Err(err),
			)
			continue
		}
		expired++
	}
	if expired > 0 {
		logger.Info("Expired stale pending reservations", logger.Int("count", expired))
	}
	return expired, nil
}
