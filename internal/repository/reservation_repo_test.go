package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/models"
)

func TestReservationRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	room := seedRoom(t, db, "101", models.RoomStatusAvailable)
	guest := seedGuest(t, db, "ada@example.com")

	custom := 300.0
	r := &models.Reservation{
		ReservationID:        "LMV22927-250601-01",
		RoomID:               room.ID,
		GuestID:              guest.ID,
		CheckIn:              day("2025-06-01"),
		CheckOut:             day("2025-06-04"),
		NumGuests:            2,
		Source:               models.SourceAirbnb,
		Status:               models.ReservationStatusPending,
		UseCustomTotal:       true,
		CustomTotal:          &custom,
		ServiceChargeEnabled: true,
		AdditionalItems:      models.LineItems{{Description: "Airport transfer", Amount: 40}},
		TotalPrice:           385,
		PaymentStatus:        models.PaymentStatusUnpaid,
	}
	require.NoError(t, repo.Create(ctx, r))

	found, err := repo.GetByReservationID(ctx, "LMV22927-250601-01")
	require.NoError(t, err)
	require.NotNil(t, found.Room)
	require.NotNil(t, found.Guest)
	assert.Equal(t, "101", found.Room.RoomNumber)
	assert.Equal(t, "ada@example.com", found.Guest.Email)
	assert.Equal(t, models.LineItems{{Description: "Airport transfer", Amount: 40}}, found.AdditionalItems)
	assert.True(t, found.ServiceChargeEnabled)
	require.NotNil(t, found.CustomTotal)
	assert.Equal(t, 300.0, *found.CustomTotal)
	assert.Equal(t, 3, found.Nights())
	assert.True(t, found.CheckIn.Equal(day("2025-06-01")))
}

func TestReservationRepository_DuplicateReservationID(t *testing.T) {
	db := setupTestDB(t)
	room := seedRoom(t, db, "101", models.RoomStatusAvailable)
	guest := seedGuest(t, db, "ada@example.com")
	seedReservation(t, db, "LMV22927-250601-01", room, guest, "2025-06-01", "2025-06-02", models.ReservationStatusPending)

	dup := &models.Reservation{
		ReservationID: "LMV22927-250601-01",
		RoomID:        room.ID,
		GuestID:       guest.ID,
		CheckIn:       day("2025-07-01"),
		CheckOut:      day("2025-07-02"),
		NumGuests:     1,
		TotalPrice:    100,
	}
	err := NewReservationRepository(db).Create(context.Background(), dup)
	assert.Error(t, err)
}

func TestReservationRepository_HasOverlap(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	room := seedRoom(t, db, "101", models.RoomStatusAvailable)
	guest := seedGuest(t, db, "ada@example.com")
	existing := seedReservation(t, db, "LMV22927-250601-01", room, guest, "2025-06-01", "2025-06-05", models.ReservationStatusPending)

	tests := []struct {
		name     string
		in, out  string
		exclude  int64
		expected bool
	}{
		{"inside", "2025-06-02", "2025-06-03", 0, true},
		{"covering", "2025-05-30", "2025-06-10", 0, true},
		{"ends on check-in", "2025-05-30", "2025-06-01", 0, false},
		{"starts on check-out", "2025-06-05", "2025-06-06", 0, false},
		{"excluding itself", "2025-06-02", "2025-06-03", existing.ID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.HasOverlap(ctx, room.ID, day(tt.in), day(tt.out), tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	for _, status := range []string{models.ReservationStatusCancelled, models.ReservationStatusCheckedOut} {
		require.NoError(t, repo.UpdateFields(ctx, existing.ID, map[string]interface{}{"status": status}))
		got, err := repo.HasOverlap(ctx, room.ID, day("2025-06-02"), day("2025-06-03"), 0)
		require.NoError(t, err)
		assert.False(t, got, status)
	}
}

func TestReservationRepository_UpdateFieldsIfStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	room := seedRoom(t, db, "101", models.RoomStatusAvailable)
	guest := seedGuest(t, db, "ada@example.com")
	r := seedReservation(t, db, "LMV22927-250601-01", room, guest, "2025-06-01", "2025-06-05", models.ReservationStatusPending)

	fields := map[string]interface{}{"status": models.ReservationStatusConfirmed}
	n, err := repo.UpdateFieldsIfStatus(ctx, r.ID, []string{models.ReservationStatusPending}, fields)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.UpdateFieldsIfStatus(ctx, r.ID, []string{models.ReservationStatusPending}, fields)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestReservationRepository_PaymentReferenceAndAmountPaid(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	room := seedRoom(t, db, "101", models.RoomStatusAvailable)
	guest := seedGuest(t, db, "ada@example.com")
	r := seedReservation(t, db, "LMV22927-250601-01", room, guest, "2025-06-01", "2025-06-05", models.ReservationStatusPending)

	require.NoError(t, repo.UpdateFields(ctx, r.ID, map[string]interface{}{"payment_reference": "ORDER-1"}))
	require.NoError(t, repo.AddAmountPaid(ctx, r.ID, 60))
	require.NoError(t, repo.AddAmountPaid(ctx, r.ID, 15.5))

	found, err := repo.GetByPaymentReference(ctx, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, r.ID, found.ID)
	assert.InDelta(t, 75.5, found.AmountPaid, 0.001)
	assert.InDelta(t, 24.5, found.Outstanding(), 0.001)

	_, err = repo.GetByPaymentReference(ctx, "ORDER-2")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestReservationRepository_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	r1 := seedRoom(t, db, "101", models.RoomStatusAvailable)
	r2 := seedRoom(t, db, "102", models.RoomStatusAvailable)
	ada := seedGuest(t, db, "ada@example.com")
	bob := seedGuest(t, db, "bob@example.com")

	seedReservation(t, db, "LMV22927-250601-01", r1, ada, "2025-06-01", "2025-06-03", models.ReservationStatusConfirmed)
	seedReservation(t, db, "LMV22927-250610-01", r2, bob, "2025-06-10", "2025-06-12", models.ReservationStatusPending)
	seedReservation(t, db, "LMV22927-250701-01", r1, bob, "2025-07-01", "2025-07-03", models.ReservationStatusPending)

	list, total, err := repo.List(ctx, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "LMV22927-250701-01", list[0].ReservationID)

	_, total, err = repo.List(ctx, 0, 10, &ReservationFilters{Status: models.ReservationStatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = repo.List(ctx, 0, 10, &ReservationFilters{RoomID: r1.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	list, total, err = repo.List(ctx, 0, 10, &ReservationFilters{Search: "BOB@"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, r := range list {
		assert.Equal(t, bob.ID, r.GuestID)
	}

	from, to := day("2025-06-02"), day("2025-06-30")
	exported, err := repo.ListForExport(ctx, &ReservationFilters{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, exported, 2)
	assert.Equal(t, "LMV22927-250601-01", exported[0].ReservationID)
	assert.Equal(t, "LMV22927-250610-01", exported[1].ReservationID)
}

func TestReservationRepository_ListStalePending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	room := seedRoom(t, db, "101", models.RoomStatusAvailable)
	guest := seedGuest(t, db, "ada@example.com")

	old := seedReservation(t, db, "LMV22927-250601-01", room, guest, "2025-06-01", "2025-06-02", models.ReservationStatusPending)
	paid := seedReservation(t, db, "LMV22927-250602-01", room, guest, "2025-06-02", "2025-06-03", models.ReservationStatusPending)
	seedReservation(t, db, "LMV22927-250603-01", room, guest, "2025-06-03", "2025-06-04", models.ReservationStatusPending)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Model(&models.Reservation{}).Where("id IN ?", []int64{old.ID, paid.ID}).
		UpdateColumn("created_at", past).Error)
	require.NoError(t, repo.UpdateFields(ctx, paid.ID, map[string]interface{}{"payment_status": models.PaymentStatusPaid}))

	stale, err := repo.ListStalePending(ctx, time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}

func TestReservationRepository_DashboardCounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	room := seedRoom(t, db, "101", models.RoomStatusAvailable)
	room2 := seedRoom(t, db, "102", models.RoomStatusAvailable)
	guest := seedGuest(t, db, "ada@example.com")

	seedReservation(t, db, "LMV22927-250601-01", room, guest, "2025-06-01", "2025-06-03", models.ReservationStatusConfirmed)
	seedReservation(t, db, "LMV22927-250529-01", room2, guest, "2025-05-29", "2025-06-01", models.ReservationStatusCheckedIn)
	seedReservation(t, db, "LMV22927-250601-02", room2, guest, "2025-06-01", "2025-06-02", models.ReservationStatusCancelled)

	arrivals, err := repo.CountArrivals(ctx, day("2025-06-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), arrivals)

	departures, err := repo.CountDepartures(ctx, day("2025-06-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), departures)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.ReservationStatusCheckedIn])
	assert.Equal(t, int64(1), counts[models.ReservationStatusCancelled])
}
