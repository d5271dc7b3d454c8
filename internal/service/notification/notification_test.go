package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
	"github.com/lavendermoon/villa-pms/pkg/mailer"
	"github.com/lavendermoon/villa-pms/pkg/sms"
)

const testHotel = "Lavender Moon Villas"

func setupTestDB(t *testing.T) *gorm.DB {
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

func testReservation() *models.Reservation {
	return &models.Reservation{
		ReservationID:   "LMV22927-250601-01",
		CheckIn:         time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:        time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC),
		NumGuests:       2,
		SpecialRequests: "Late arrival",
		Status:          models.ReservationStatusConfirmed,
		TotalPrice:      420,
		AmountPaid:      400,
		Room:            &models.Room{RoomNumber: "101", Name: "Garden Suite"},
		Guest: &models.Guest{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			Phone:     "+18765550100",
		},
	}
}

// fakeNotifier 记录收到的消息
type fakeNotifier struct {
	channel string
	mu      sync.Mutex
	sent    []*Message
	err     error
}

func (f *fakeNotifier) Channel() string { return f.channel }

func (f *fakeNotifier) Send(_ context.Context, msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeNotifier) messages() []*Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Message(nil), f.sent...)
}

// fakeMailer 记录邮件
type fakeMailer struct {
	emails []*mailer.Email
}

func (m *fakeMailer) Send(_ context.Context, email *mailer.Email) (string, error) {
	m.emails = append(m.emails, email)
	return "msg_1", nil
}

func shutdown(t *testing.T, d *Dispatcher) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}

func TestRenderer_Subjects(t *testing.T) {
	r := NewRenderer(testHotel)
	assert.Equal(t, "Booking Confirmation #X-1 - Lavender Moon Villas", r.Subject(models.NotificationKindBookingConfirmation, "X-1"))
	assert.Equal(t, "Reservation Updated #X-1 - Lavender Moon Villas", r.Subject(models.NotificationKindReservationUpdate, "X-1"))
	assert.Equal(t, "Reservation Cancelled #X-1 - Lavender Moon Villas", r.Subject(models.NotificationKindCancellation, "X-1"))
}

func TestRenderer_RenderEmail(t *testing.T) {
	r := NewRenderer(testHotel)

	msg, err := r.RenderEmail(models.NotificationKindBookingConfirmation, &Payload{Reservation: testReservation()})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", msg.Recipient)
	assert.Equal(t, models.NotificationChannelEmail, msg.Channel)
	assert.Contains(t, msg.HTML, "Ada Lovelace")
	assert.Contains(t, msg.HTML, "Garden Suite (101)")
	assert.Contains(t, msg.HTML, "Sunday, June 1, 2025")
	assert.Contains(t, msg.Text, "Nights: 3")
	assert.Contains(t, msg.Text, "Balance: $20.00")
	assert.Contains(t, msg.Text, "Special requests: Late arrival")
	assert.NotContains(t, msg.Text, "<")
}

func TestRenderer_UpdateListsChanges(t *testing.T) {
	r := NewRenderer(testHotel)
	msg, err := r.RenderEmail(models.NotificationKindReservationUpdate, &Payload{
		Reservation: testReservation(),
		Changes:     []string{"Check-out date", "Number of guests"},
	})
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "Changes Made")
	assert.Contains(t, msg.HTML, "<li>Check-out date</li>")
	assert.Contains(t, msg.Text, "- Number of guests")
}

func TestRenderer_CancellationShowsReason(t *testing.T) {
	res := testReservation()
	reason := models.CancellationReasonPaymentTimeout
	res.CancellationReason = &reason

	msg, err := NewRenderer(testHotel).RenderEmail(models.NotificationKindCancellation, &Payload{Reservation: res})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Reason: payment timeout.")
	assert.NotContains(t, msg.Text, "Balance:")
}

func TestRenderer_EscapesHTML(t *testing.T) {
	res := testReservation()
	res.SpecialRequests = "<script>alert(1)</script>"
	msg, err := NewRenderer(testHotel).RenderEmail(models.NotificationKindBookingConfirmation, &Payload{Reservation: res})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestRenderer_UnknownKind(t *testing.T) {
	_, err := NewRenderer(testHotel).RenderEmail("newsletter", &Payload{Reservation: testReservation()})
	assert.Error(t, err)
}

func TestRenderer_SMSRequiresPhone(t *testing.T) {
	r := NewRenderer(testHotel)
	res := testReservation()

	msg := r.RenderSMS(models.NotificationKindCancellation, &Payload{Reservation: res})
	require.NotNil(t, msg)
	assert.Equal(t, "+18765550100", msg.Recipient)
	assert.Equal(t, "2025-06-01", msg.Params["check_in"])

	res.Guest.Phone = ""
	assert.Nil(t, r.RenderSMS(models.NotificationKindCancellation, &Payload{Reservation: res}))
}

func TestDispatcher_DeliversAndLogs(t *testing.T) {
	db := setupTestDB(t)
	logRepo := repository.NewNotificationLogRepository(db)
	email := &fakeNotifier{channel: models.NotificationChannelEmail}

	d := NewDispatcher(Config{Workers: 2, QueueSize: 8}, NewRenderer(testHotel), logRepo, nil, email)
	d.Start()

	assert.True(t, d.Dispatch(models.NotificationKindBookingConfirmation, &Payload{Reservation: testReservation()}))
	shutdown(t, d)

	sent := email.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Booking Confirmation #LMV22927-250601-01 - Lavender Moon Villas", sent[0].Subject)

	logs, err := logRepo.ListByReservation(context.Background(), "LMV22927-250601-01")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.NotificationStatusSent, logs[0].Status)
	assert.Equal(t, "ada@example.com", logs[0].Recipient)
}

func TestDispatcher_FailureIsRecordedNotReturned(t *testing.T) {
	db := setupTestDB(t)
	logRepo := repository.NewNotificationLogRepository(db)
	email := &fakeNotifier{channel: models.NotificationChannelEmail, err: errors.New("resend 500")}

	d := NewDispatcher(Config{Workers: 1, QueueSize: 4}, NewRenderer(testHotel), logRepo, nil, email)
	d.Start()
	assert.True(t, d.Dispatch(models.NotificationKindCancellation, &Payload{Reservation: testReservation()}))
	shutdown(t, d)

	logs, err := logRepo.ListByReservation(context.Background(), "LMV22927-250601-01")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.NotificationStatusFailed, logs[0].Status)
	require.NotNil(t, logs[0].Error)
	assert.Contains(t, *logs[0].Error, "resend 500")
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	db := setupTestDB(t)
	logRepo := repository.NewNotificationLogRepository(db)
	email := &fakeNotifier{channel: models.NotificationChannelEmail}

	// 未启动 worker，队列容量 1
	d := NewDispatcher(Config{Workers: 1, QueueSize: 1}, NewRenderer(testHotel), logRepo, nil, email)

	payload := &Payload{Reservation: testReservation()}
	assert.True(t, d.Dispatch(models.NotificationKindReservationUpdate, payload))
	assert.False(t, d.Dispatch(models.NotificationKindReservationUpdate, payload))

	dropped, err := logRepo.CountByStatus(context.Background(), "LMV22927-250601-01", models.NotificationStatusDropped)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dropped)

	shutdown(t, d)
	assert.Len(t, email.messages(), 1)
}

func TestDispatcher_RejectsAfterShutdown(t *testing.T) {
	d := NewDispatcher(Config{}, NewRenderer(testHotel), nil, nil, &fakeNotifier{channel: models.NotificationChannelEmail})
	d.Start()
	shutdown(t, d)

	assert.False(t, d.Dispatch(models.NotificationKindCancellation, &Payload{Reservation: testReservation()}))
	// 重复关闭无副作用
	shutdown(t, d)
}

func TestDispatcher_RejectsIncompletePayload(t *testing.T) {
	d := NewDispatcher(Config{}, NewRenderer(testHotel), nil, nil)
	assert.False(t, d.Dispatch(models.NotificationKindCancellation, nil))
	res := testReservation()
	res.Guest = nil
	assert.False(t, d.Dispatch(models.NotificationKindCancellation, &Payload{Reservation: res}))
}

func TestDispatcher_SMSChannel(t *testing.T) {
	db := setupTestDB(t)
	logRepo := repository.NewNotificationLogRepository(db)
	mock := sms.NewMockSender()
	smsNotifier := NewSMSNotifier(mock, map[string]string{
		models.NotificationKindBookingConfirmation: "SMS_100",
	})
	mail := &fakeMailer{}

	d := NewDispatcher(Config{Workers: 1, QueueSize: 4}, NewRenderer(testHotel), logRepo, nil,
		NewEmailNotifier(mail), smsNotifier)
	d.Start()

	assert.True(t, d.Dispatch(models.NotificationKindBookingConfirmation, &Payload{Reservation: testReservation()}))
	// 没有模板的类型只发邮件
	assert.True(t, d.Dispatch(models.NotificationKindCancellation, &Payload{Reservation: testReservation()}))
	shutdown(t, d)

	msgs := mock.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "SMS_100", msgs[0].TemplateCode)
	assert.Equal(t, "+18765550100", msgs[0].Phone)
	assert.Len(t, mail.emails, 2)

	logs, err := logRepo.ListByReservation(context.Background(), "LMV22927-250601-01")
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}
