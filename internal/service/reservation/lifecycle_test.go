package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{models.ReservationStatusPending, models.ReservationStatusConfirmed, true},
		{models.ReservationStatusPending, models.ReservationStatusCancelled, true},
		{models.ReservationStatusPending, models.ReservationStatusCheckedIn, false},
		{models.ReservationStatusConfirmed, models.ReservationStatusCheckedIn, true},
		{models.ReservationStatusConfirmed, models.ReservationStatusCancelled, true},
		{models.ReservationStatusConfirmed, models.ReservationStatusPending, false},
		{models.ReservationStatusCheckedIn, models.ReservationStatusCheckedOut, true},
		{models.ReservationStatusCheckedIn, models.ReservationStatusCancelled, true},
		{models.ReservationStatusCheckedOut, models.ReservationStatusCancelled, false},
		{models.ReservationStatusCancelled, models.ReservationStatusPending, false},
		{models.ReservationStatusCancelled, models.ReservationStatusConfirmed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestLifecycle_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.book(t, "101", "2025-06-01", "2025-06-04")

	res, err := f.svc.ConfirmReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusConfirmed, res.Status)
	assert.NotNil(t, res.ConfirmedAt)
	assert.Equal(t, models.RoomStatusAvailable, f.roomStatus(t, "101"))
	assert.Empty(t, f.notifier.kinds())

	res, err = f.svc.CheckIn(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCheckedIn, res.Status)
	assert.Equal(t, models.RoomStatusOccupied, f.roomStatus(t, "101"))

	res, err = f.svc.CheckOut(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCheckedOut, res.Status)
	assert.NotNil(t, res.CheckedOutAt)
	assert.Equal(t, models.RoomStatusCleaning, f.roomStatus(t, "101"))

	assert.Equal(t, []string{"101:occupied", "101:cleaning"}, f.publisher.statuses)
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.book(t, "101", "2025-06-01", "2025-06-04")

	_, err := f.svc.CheckIn(ctx, res.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	_, err = f.svc.CheckOut(ctx, res.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	_, err = f.svc.CancelReservation(ctx, res.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.ConfirmReservation(ctx, res.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
	_, err = f.svc.CancelReservation(ctx, res.ID, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	_, err = f.svc.ConfirmReservation(ctx, 9999)
	assert.ErrorIs(t, err, errors.ErrReservationNotFound)
}

func TestCancel_FromPendingLeavesRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Model(&models.Room{}).Where("id = ?", f.rooms["101"].ID).Update("status", models.RoomStatusCleaning).Error)

	res := f.book(t, "101", "2025-06-01", "2025-06-04")
	res, err := f.svc.CancelReservation(ctx, res.ID, &CancelRequest{Reason: "guest_request", Notes: "Flight cancelled"})
	require.NoError(t, err)

	assert.Equal(t, models.ReservationStatusCancelled, res.Status)
	assert.Equal(t, "guest_request", utils.SafeString(res.CancellationReason))
	assert.Equal(t, "Flight cancelled", utils.SafeString(res.CancellationNotes))
	assert.NotNil(t, res.CancelledAt)
	assert.Equal(t, models.RoomStatusCleaning, f.roomStatus(t, "101"))
	assert.Equal(t, []string{models.NotificationKindCancellation}, f.notifier.kinds())
	assert.Empty(t, f.publisher.statuses)
}

func TestCancel_FromCheckedInFreesRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.book(t, "101", "2025-06-01", "2025-06-04")

	_, err := f.svc.ConfirmReservation(ctx, res.ID)
	require.NoError(t, err)
	_, err = f.svc.CheckIn(ctx, res.ID)
	require.NoError(t, err)

	_, err = f.svc.CancelReservation(ctx, res.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusAvailable, f.roomStatus(t, "101"))
	assert.Equal(t, []string{models.NotificationKindCancellation}, f.notifier.kinds())
}

func TestCancel_FromConfirmedFreesCleaningRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Model(&models.Room{}).Where("id = ?", f.rooms["101"].ID).Update("status", models.RoomStatusCleaning).Error)

	res := f.book(t, "101", "2025-06-01", "2025-06-04")
	_, err := f.svc.ConfirmReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusCleaning, f.roomStatus(t, "101"))
	assert.Empty(t, f.publisher.statuses)

	res, err = f.svc.CancelReservation(ctx, res.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCancelled, res.Status)
	assert.Equal(t, models.RoomStatusAvailable, f.roomStatus(t, "101"))
	assert.Equal(t, []string{"101:available"}, f.publisher.statuses)
	assert.Equal(t, []string{models.NotificationKindCancellation}, f.notifier.kinds())
}

func TestExpireStalePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.book(t, "101", "2025-06-01", "2025-06-04")
	confirmed := f.book(t, "102", "2025-06-01", "2025-06-04")
	_, err := f.svc.ConfirmReservation(ctx, confirmed.ID)
	require.NoError(t, err)

	// 未超时：不处理
	n, err := f.svc.ExpireStalePending(ctx, 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	n, err = f.svc.ExpireStalePending(ctx, 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetReservation(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCancelled, got.Status)
	assert.Equal(t, models.CancellationReasonPaymentTimeout, utils.SafeString(got.CancellationReason))
	assert.Equal(t, models.RoomStatusAvailable, f.roomStatus(t, "101"))

	got, err = f.svc.GetReservation(ctx, confirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusConfirmed, got.Status)

	// TTL 为 0 时关闭
	n, err = f.svc.ExpireStalePending(ctx, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpireStalePending_SkipsPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.book(t, "101", "2025-06-01", "2025-06-04")
	require.NoError(t, f.db.Model(&models.Reservation{}).Where("id = ?", res.ID).
		Update("payment_status", models.PaymentStatusPaid).Error)

	f.svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	n, err := f.svc.ExpireStalePending(ctx, 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}
