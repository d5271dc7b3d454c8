// Package reservation 预订核心：可用性、创建、状态流转、修改与开票
package reservation

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/common/cache"
	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/metrics"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
	"github.com/lavendermoon/villa-pms/internal/service/hotel"
	"github.com/lavendermoon/villa-pms/internal/service/notification"
)

// DefaultIDPrefix 预订编号默认前缀
const DefaultIDPrefix = "LMV22927"

// Notifier 通知派发
type Notifier interface {
	Dispatch(kind string, payload *notification.Payload) bool
}

// Config 预订服务配置
type Config struct {
	IDPrefix        string
	AvailabilityTTL time.Duration // 0 表示不缓存可用房查询
	PublicBaseURL   string        // 发票二维码链接前缀
}

// Service 预订服务
type Service struct {
	db              *gorm.DB
	cfg             Config
	roomRepo        *repository.RoomRepository
	reservationRepo *repository.ReservationRepository
	sequenceRepo    *repository.SequenceRepository
	guests          *hotel.GuestService

	// sequenceOutsideTx 编号计数在预订事务外自动提交，重试时沿用已分配编号
	sequenceOutsideTx bool

	notifier        Notifier
	publisher       hotel.RoomStatusPublisher
	store           *cache.Store
	availabilityGen *cache.Generation // 与客房服务共用
	metrics         *metrics.Metrics
	invoiceQR       *InvoiceQR
	now             func() time.Time
}

// Option 服务选项
type Option func(*Service)

// WithNotifier 设置通知派发器
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithRoomStatusPublisher 设置房态推送
func WithRoomStatusPublisher(p hotel.RoomStatusPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithCache 设置可用房缓存
func WithCache(store *cache.Store) Option {
	return func(s *Service) {
		s.store = store
		if store != nil {
			s.availabilityGen = store.Generation(cache.NamespaceAvailability)
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithInvoiceQR 设置发票二维码
func WithInvoiceQR(q *InvoiceQR) Option {
	return func(s *Service) { s.invoiceQR = q }
}

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService 创建预订服务
func NewService(db *gorm.DB, cfg Config, guests *hotel.GuestService, opts ...Option) *Service {
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = DefaultIDPrefix
	}
	s := &Service{
		db:              db,
		cfg:             cfg,
		roomRepo:        repository.NewRoomRepository(db),
		reservationRepo: repository.NewReservationRepository(db),
		sequenceRepo:    repository.NewSequenceRepository(db),
		guests:          guests,
		now:             time.Now,

		sequenceOutsideTx: db.Dialector.Name() == "postgres",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadReservation 按 ID 加载预订（含房间和客人）
func (s *Service) loadReservation(ctx context.Context, repo *repository.ReservationRepository, id int64) (*models.Reservation, error) {
	res, err := repo.GetByIDWithDetails(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrReservationNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return res, nil
}

// notify 派发通知，预订需已加载客人
func (s *Service) notify(kind string, res *models.Reservation, changes []string) {
	if s.notifier == nil {
		return
	}
	if !s.notifier.Dispatch(kind, &notification.Payload{Reservation: res, Changes: changes}) {
		logger.Warn("Notification not queued",
			logger.String("kind", kind),
			logger.ReservationID(res.ReservationID),
		)
	}
}

// publishRoom 推送房态，失败只记录
func (s *Service) publishRoom(ctx context.Context, roomID int64) {
	if s.publisher == nil {
		return
	}
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		logger.Warn("Failed to load room for status publish", logger.RoomID(roomID), logger.Err(err))
		return
	}
	if err := s.publisher.PublishRoomStatus(ctx, room); err != nil {
		logger.Warn("Failed to publish room status", logger.RoomID(roomID), logger.Err(err))
	}
}
