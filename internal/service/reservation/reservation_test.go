package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
	"github.com/lavendermoon/villa-pms/internal/service/hotel"
	"github.com/lavendermoon/villa-pms/internal/service/notification"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

// sentNotification 记录的通知
type sentNotification struct {
	kind          string
	reservationID string
	changes       []string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Dispatch(kind string, payload *notification.Payload) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{
		kind:          kind,
		reservationID: payload.Reservation.ReservationID,
		changes:       payload.Changes,
	})
	return true
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		kinds = append(kinds, s.kind)
	}
	return kinds
}

func (n *recordingNotifier) last() sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []string
}

func (p *recordingPublisher) PublishRoomStatus(_ context.Context, room *models.Room) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, room.RoomNumber+":"+room.Status)
	return nil
}

type fixture struct {
	db        *gorm.DB
	svc       *Service
	notifier  *recordingNotifier
	publisher *recordingPublisher
	rooms     map[string]*models.Room
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	db := setupTestDB(t)
	f := &fixture{
		db:        db,
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		rooms:     make(map[string]*models.Room),
	}
	guests := hotel.NewGuestService(repository.NewGuestRepository(db), nil)
	opts = append([]Option{WithNotifier(f.notifier), WithRoomStatusPublisher(f.publisher)}, opts...)
	f.svc = NewService(db, Config{IDPrefix: "LMV22927"}, guests, opts...)

	f.addRoom(t, "101", 100, 2, models.RoomStatusAvailable)
	f.addRoom(t, "102", 150, 4, models.RoomStatusAvailable)
	f.addRoom(t, "103", 120, 2, models.RoomStatusMaintenance)
	return f
}

func (f *fixture) addRoom(t *testing.T, number string, rate float64, maxGuests int, status string) *models.Room {
	room := &models.Room{
		RoomNumber: number,
		Name:       "Villa " + number,
		RoomType:   models.RoomTypeRoom,
		Rate:       rate,
		MaxGuests:  maxGuests,
		Status:     status,
	}
	require.NoError(t, f.db.Create(room).Error)
	f.rooms[number] = room
	return room
}

func (f *fixture) roomStatus(t *testing.T, number string) string {
	var room models.Room
	require.NoError(t, f.db.First(&room, f.rooms[number].ID).Error)
	return room.Status
}

func guestInput(email string) *hotel.GuestInput {
	return &hotel.GuestInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Phone:     "+18765550100",
	}
}

func (f *fixture) book(t *testing.T, room, checkIn, checkOut string) *models.Reservation {
	res, err := f.svc.CreateReservation(context.Background(), &CreateRequest{
		RoomID:    f.rooms[room].ID,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		NumGuests: 2,
		Guest:     guestInput("ada@example.com"),
	})
	require.NoError(t, err)
	return res
}

func mustDay(t *testing.T, s string) time.Time {
	d, err := utils.ParseDay(s)
	require.NoError(t, err)
	return d
}

func ptr[T any](v T) *T { return &v }
