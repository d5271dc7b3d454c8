package reservation

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/common/database"
	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/tracing"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/service/pricing"
)

// UpdateRequest 修改预订请求，nil 字段保持不变
type UpdateRequest struct {
	RoomID               *int64             `json:"room_id" binding:"omitempty,min=1"`
	CheckIn              *string            `json:"check_in"`
	CheckOut             *string            `json:"check_out"`
	NumGuests            *int               `json:"num_guests" binding:"omitempty,min=1"`
	SpecialRequests      *string            `json:"special_requests" binding:"omitempty,max=2000"`
	Status               *string            `json:"status" binding:"omitempty,oneof=pending confirmed checked_in checked_out cancelled"`
	Source               *string            `json:"source"`
	UseCustomTotal       *bool              `json:"use_custom_total"`
	CustomTotal          *float64           `json:"custom_total"`
	ServiceChargeEnabled *bool              `json:"service_charge_enabled"`
	AdditionalItems      *[]models.LineItem `json:"additional_items"`
	CancellationReason   *string            `json:"cancellation_reason" binding:"omitempty,max=50"`
	CancellationNotes    *string            `json:"cancellation_notes" binding:"omitempty,max=2000"`
}

// bookingEdits 是否修改了房间、日期、人数或价格
func (r *UpdateRequest) bookingEdits() bool {
	return r.RoomID != nil || r.CheckIn != nil || r.CheckOut != nil || r.NumGuests != nil ||
		r.UseCustomTotal != nil || r.CustomTotal != nil || r.ServiceChargeEnabled != nil ||
		r.AdditionalItems != nil || r.Source != nil
}

// UpdateReservation 修改预订
// 房间或日期变化时重新校验区间与重叠（排除自身），随后重新计价；
// 状态修改遵循与专用操作相同的迁移规则
func (s *Service) UpdateReservation(ctx context.Context, id int64, req *UpdateRequest) (res *models.Reservation, err error) {
	ctx, span := tracing.Start(ctx, "reservation.Update", tracing.WithOperation("update"))
	defer func() { tracing.End(span, err) }()

	var (
		before     models.Reservation
		roomStatus string
	)
	err = database.SerializableTransaction(ctx, s.db, func(tx *gorm.DB) error {
		current, err := s.loadReservation(ctx, s.reservationRepo.WithTx(tx), id)
		if err != nil {
			return err
		}
		before = *current
		roomStatus = ""

		if current.IsTerminal() && req.bookingEdits() {
			return errors.ErrReservationClosed
		}

		next := *current
		fields, err := s.applyEdits(ctx, tx, &next, req)
		if err != nil {
			return err
		}

		if len(fields) > 0 {
			rows, err := s.reservationRepo.WithTx(tx).UpdateFieldsIfStatus(ctx, id, []string{current.Status}, fields)
			if err != nil {
				return err
			}
			if rows == 0 {
				return errors.ConflictError("reservation was modified concurrently, please reload")
			}
		}

		if req.Status != nil && *req.Status != current.Status {
			// 房间可能已变更，以新房间同步房态
			moved := *current
			moved.RoomID = next.RoomID
			cancel := map[string]interface{}{}
			if req.CancellationReason != nil {
				cancel["cancellation_reason"] = *req.CancellationReason
			}
			if req.CancellationNotes != nil {
				cancel["cancellation_notes"] = *req.CancellationNotes
			}
			if *req.Status != models.ReservationStatusCancelled {
				cancel = nil
			}
			roomStatus, err = s.applyTransition(ctx, tx, &moved, *req.Status, cancel)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.mapWriteError(err)
	}

	res, err = s.loadReservation(ctx, s.reservationRepo, id)
	if err != nil {
		return nil, err
	}

	changes := describeChanges(&before, res)
	if res.Status != before.Status {
		s.metrics.RecordReservation(res.Status)
		if roomStatus != "" {
			s.publishRoom(ctx, res.RoomID)
		}
	}
	if len(changes) > 0 {
		s.invalidateAvailability(ctx)
	}

	switch {
	case res.Status == models.ReservationStatusCancelled && before.Status != models.ReservationStatusCancelled:
		s.notify(models.NotificationKindCancellation, res, nil)
	case len(changes) > 0:
		s.notify(models.NotificationKindReservationUpdate, res, changes)
	}

	logger.Info("Reservation updated",
		logger.ReservationID(res.ReservationID),
		logger.Any("changes", changes),
	)
	return res, nil
}

// applyEdits 把请求应用到 next 并返回需要写入的字段（不含状态）
func (s *Service) applyEdits(ctx context.Context, tx *gorm.DB, next *models.Reservation, req *UpdateRequest) (map[string]interface{}, error) {
	fields := make(map[string]interface{})

	if req.CheckIn != nil {
		day, err := utils.ParseDay(*req.CheckIn)
		if err != nil {
			return nil, errors.ErrInvalidParams.WithMessage("check_in must be YYYY-MM-DD")
		}
		next.CheckIn = day
	}
	if req.CheckOut != nil {
		day, err := utils.ParseDay(*req.CheckOut)
		if err != nil {
			return nil, errors.ErrInvalidParams.WithMessage("check_out must be YYYY-MM-DD")
		}
		next.CheckOut = day
	}
	if req.RoomID != nil {
		next.RoomID = *req.RoomID
	}
	if req.NumGuests != nil {
		next.NumGuests = *req.NumGuests
	}
	if req.Source != nil {
		if !models.ValidSource(*req.Source) {
			return nil, errors.ErrInvalidSource
		}
		next.Source = *req.Source
		fields["source"] = next.Source
	}
	if req.SpecialRequests != nil {
		next.SpecialRequests = strings.TrimSpace(*req.SpecialRequests)
		fields["special_requests"] = next.SpecialRequests
	}
	if req.UseCustomTotal != nil {
		next.UseCustomTotal = *req.UseCustomTotal
	}
	if req.CustomTotal != nil {
		next.CustomTotal = req.CustomTotal
	}
	if next.UseCustomTotal && next.CustomTotal == nil {
		return nil, errors.ErrInvalidParams.WithMessage("custom_total is required when use_custom_total is set")
	}
	if req.ServiceChargeEnabled != nil {
		next.ServiceChargeEnabled = *req.ServiceChargeEnabled
	}
	if req.AdditionalItems != nil {
		next.AdditionalItems = *req.AdditionalItems
	}

	if !req.bookingEdits() {
		return fields, nil
	}

	in, out, err := ValidateRange(next.CheckIn, next.CheckOut)
	if err != nil {
		return nil, err
	}
	next.CheckIn, next.CheckOut = in, out

	room, err := s.roomRepo.WithTx(tx).GetByID(ctx, next.RoomID)
	if err != nil {
		return nil, roomLookupError(err)
	}
	if next.NumGuests > room.MaxGuests {
		return nil, errors.ErrRoomCapacity
	}

	moved := req.RoomID != nil || req.CheckIn != nil || req.CheckOut != nil
	if moved {
		if room.Status == models.RoomStatusMaintenance && (next.Room == nil || next.RoomID != next.Room.ID) {
			return nil, errors.ErrRoomMaintenance
		}
		overlap, err := s.reservationRepo.WithTx(tx).HasOverlap(ctx, next.RoomID, in, out, next.ID)
		if err != nil {
			return nil, err
		}
		if overlap {
			return nil, errors.ErrRoomNotAvailable
		}
	}

	breakdown, err := pricing.ForReservation(next, room.Rate)
	if err != nil {
		return nil, err
	}
	breakdown.Apply(next)

	fields["room_id"] = next.RoomID
	fields["check_in"] = next.CheckIn
	fields["check_out"] = next.CheckOut
	fields["num_guests"] = next.NumGuests
	fields["use_custom_total"] = next.UseCustomTotal
	fields["custom_total"] = next.CustomTotal
	fields["service_charge_enabled"] = next.ServiceChargeEnabled
	fields["additional_items"] = next.AdditionalItems
	fields["subtotal"] = next.Subtotal
	fields["service_charge"] = next.ServiceCharge
	fields["items_total"] = next.ItemsTotal
	fields["total_price"] = next.TotalPrice
	return fields, nil
}

// describeChanges 列出客人可见的变更项
func describeChanges(before, after *models.Reservation) []string {
	var changes []string
	if before.RoomID != after.RoomID {
		changes = append(changes, fmt.Sprintf("Room changed from %s to %s", roomLabel(before.Room), roomLabel(after.Room)))
	}
	if !before.CheckIn.Equal(after.CheckIn) {
		changes = append(changes, fmt.Sprintf("Check-in date changed from %s to %s", utils.FormatDay(before.CheckIn), utils.FormatDay(after.CheckIn)))
	}
	if !before.CheckOut.Equal(after.CheckOut) {
		changes = append(changes, fmt.Sprintf("Check-out date changed from %s to %s", utils.FormatDay(before.CheckOut), utils.FormatDay(after.CheckOut)))
	}
	if before.NumGuests != after.NumGuests {
		changes = append(changes, fmt.Sprintf("Number of guests changed from %d to %d", before.NumGuests, after.NumGuests))
	}
	if before.TotalPrice != after.TotalPrice {
		changes = append(changes, fmt.Sprintf("Total price changed from $%.2f to $%.2f", before.TotalPrice, after.TotalPrice))
	}
	if before.Status != after.Status {
		changes = append(changes, fmt.Sprintf("Status changed from %s to %s", statusLabel(before.Status), statusLabel(after.Status)))
	}
	if before.SpecialRequests != after.SpecialRequests {
		changes = append(changes, "Special requests updated")
	}
	return changes
}

func roomLabel(room *models.Room) string {
	if room == nil {
		return "unknown"
	}
	return fmt.Sprintf("%s (%s)", room.Name, room.RoomNumber)
}

func statusLabel(status string) string {
	return strings.ReplaceAll(status, "_", " ")
}
