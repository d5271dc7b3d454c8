package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lavendermoon/villa-pms/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedRoom(t *testing.T, db *gorm.DB, number, status string) *models.Room {
	t.Helper()
	room := &models.Room{
		RoomNumber: number,
		Name:       "Villa " + number,
		RoomType:   models.RoomTypeRoom,
		Rate:       100,
		MaxGuests:  2,
		Amenities:  models.StringList{"wifi"},
		Status:     status,
	}
	require.NoError(t, db.Create(room).Error)
	return room
}

func seedGuest(t *testing.T, db *gorm.DB, email string) *models.Guest {
	t.Helper()
	guest := &models.Guest{FirstName: "Ada", LastName: "Lovelace", Email: email}
	require.NoError(t, db.Create(guest).Error)
	return guest
}

func seedReservation(t *testing.T, db *gorm.DB, id string, room *models.Room, guest *models.Guest, in, out, status string) *models.Reservation {
	t.Helper()
	r := &models.Reservation{
		ReservationID: id,
		RoomID:        room.ID,
		GuestID:       guest.ID,
		CheckIn:       day(in),
		CheckOut:      day(out),
		NumGuests:     1,
		Source:        models.SourceDirect,
		Status:        status,
		TotalPrice:    100,
		PaymentStatus: models.PaymentStatusUnpaid,
	}
	require.NoError(t, db.Create(r).Error)
	return r
}
