package notification

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/metrics"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
)

// Config 派发器配置
type Config struct {
	Workers       int
	QueueSize     int
	SendTimeout   time.Duration
	RatePerSecond float64
}

type job struct {
	kind    string
	payload *Payload
}

// Dispatcher 异步通知派发器
// 有界队列 + 固定 worker，队列满时丢弃；发送失败只记录不返回
type Dispatcher struct {
	cfg       Config
	renderer  *Renderer
	notifiers []Notifier
	logRepo   *repository.NotificationLogRepository
	metrics   *metrics.Metrics
	limiter   *rate.Limiter

	queue     chan *job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
}

// NewDispatcher 创建派发器，logRepo 与 m 可为 nil
func NewDispatcher(cfg Config, renderer *Renderer, logRepo *repository.NotificationLogRepository, m *metrics.Metrics, notifiers ...Notifier) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	return &Dispatcher{
		cfg:       cfg,
		renderer:  renderer,
		notifiers: notifiers,
		logRepo:   logRepo,
		metrics:   m,
		limiter:   rate.NewLimiter(limit, burst),
		queue:     make(chan *job, cfg.QueueSize),
	}
}

// Start 启动 worker
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.cfg.Workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
		logger.Info("Notification dispatcher started",
			logger.Int("workers", d.cfg.Workers),
			logger.Int("queue_size", d.cfg.QueueSize),
			logger.Int("channels", len(d.notifiers)),
		)
	})
}

// Dispatch 入队，不阻塞调用方；返回是否入队成功
func (d *Dispatcher) Dispatch(kind string, payload *Payload) bool {
	if payload == nil || payload.Reservation == nil || payload.Reservation.Guest == nil {
		logger.Warn("Notification payload incomplete, skipped", logger.String("kind", kind))
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		logger.Warn("Notification dispatcher closed, message dropped",
			logger.String("kind", kind),
			logger.ReservationID(payload.Reservation.ReservationID),
		)
		return false
	}

	select {
	case d.queue <- &job{kind: kind, payload: payload}:
		return true
	default:
		d.drop(kind, payload)
		return false
	}
}

// Shutdown 停止接收并等待队列清空
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	// 未启动时由调用方 goroutine 排空
	d.Start()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.process(j)
	}
}

func (d *Dispatcher) process(j *job) {
	for _, n := range d.notifiers {
		msg, err := d.render(n.Channel(), j)
		if err != nil {
			d.fail(j, n.Channel(), err)
			continue
		}
		if msg == nil {
			continue
		}
		d.send(n, msg)
	}
}

func (d *Dispatcher) render(channel string, j *job) (*Message, error) {
	switch channel {
	case models.NotificationChannelEmail:
		return d.renderer.RenderEmail(j.kind, j.payload)
	case models.NotificationChannelSMS:
		return d.renderer.RenderSMS(j.kind, j.payload), nil
	default:
		return nil, nil
	}
}

func (d *Dispatcher) send(n Notifier, msg *Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	if err := d.limiter.Wait(ctx); err != nil {
		d.record(msg, models.NotificationStatusFailed, err)
		d.logFailure(msg, err)
		return
	}

	err := n.Send(ctx, msg)
	if stderrors.Is(err, ErrSkipped) {
		return
	}
	if err != nil {
		d.record(msg, models.NotificationStatusFailed, err)
		d.logFailure(msg, err)
		return
	}

	d.record(msg, models.NotificationStatusSent, nil)
	logger.Info("Notification sent",
		logger.String("kind", msg.Kind),
		logger.String("channel", msg.Channel),
		logger.ReservationID(msg.ReservationID),
	)
}

func (d *Dispatcher) fail(j *job, channel string, err error) {
	res := j.payload.Reservation
	msg := &Message{
		Kind:          j.kind,
		Channel:       channel,
		ReservationID: res.ReservationID,
		Recipient:     res.Guest.Email,
		Subject:       d.renderer.Subject(j.kind, res.ReservationID),
	}
	d.record(msg, models.NotificationStatusFailed, err)
	d.logFailure(msg, err)
}

func (d *Dispatcher) drop(kind string, payload *Payload) {
	res := payload.Reservation
	err := errors.ErrNotificationQueue
	logger.Warn("Notification queue full, message dropped",
		logger.String("kind", kind),
		logger.ReservationID(res.ReservationID),
		logger.Err(err),
	)
	d.metrics.RecordNotificationDropped()
	d.record(&Message{
		Kind:          kind,
		Channel:       models.NotificationChannelEmail,
		ReservationID: res.ReservationID,
		Recipient:     res.Guest.Email,
		Subject:       d.renderer.Subject(kind, res.ReservationID),
	}, models.NotificationStatusDropped, err)
}

func (d *Dispatcher) logFailure(msg *Message, err error) {
	appErr := errors.NotificationError("notification delivery failed", err)
	logger.Error("Notification failed",
		logger.String("kind", msg.Kind),
		logger.String("channel", msg.Channel),
		logger.ReservationID(msg.ReservationID),
		logger.Err(appErr),
	)
}

// record 写入发送记录并计数，写库失败只记日志
func (d *Dispatcher) record(msg *Message, status string, sendErr error) {
	d.metrics.RecordNotification(msg.Channel, msg.Kind, status)
	if d.logRepo == nil {
		return
	}

	entry := &models.NotificationLog{
		ReservationID: msg.ReservationID,
		Kind:          msg.Kind,
		Channel:       msg.Channel,
		Recipient:     msg.Recipient,
		Subject:       msg.Subject,
		Status:        status,
	}
	if sendErr != nil {
		text := sendErr.Error()
		entry.Error = &text
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.logRepo.Create(ctx, entry); err != nil {
		logger.Warn("Failed to write notification log",
			logger.ReservationID(msg.ReservationID),
			logger.Err(err),
		)
	}
}
