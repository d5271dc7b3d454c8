package payment

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/common/cache"
	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/metrics"
	"github.com/lavendermoon/villa-pms/internal/common/tracing"
	"github.com/lavendermoon/villa-pms/internal/common/utils"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
	"github.com/lavendermoon/villa-pms/internal/service/notification"
	"github.com/lavendermoon/villa-pms/internal/service/pricing"
)

// Notifier 通知派发
type Notifier interface {
	Dispatch(kind string, payload *notification.Payload) bool
}

// Config 支付服务配置
type Config struct {
	PublicBaseURL string        // 回调地址前缀
	SuccessURL    string        // 支付成功后跳转
	FailedURL     string        // 支付失败或取消后跳转
	LockTTL       time.Duration // 对账锁过期时间
}

// Service 支付服务
type Service struct {
	db              *gorm.DB
	cfg             Config
	gateways        *Registry
	reservationRepo *repository.ReservationRepository

	locker   *cache.Locker
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option 服务选项
type Option func(*Service)

// WithLocker 设置对账分布式锁
func WithLocker(l *cache.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithNotifier 设置通知派发器
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService 创建支付服务
func NewService(db *gorm.DB, cfg Config, gateways *Registry, opts ...Option) *Service {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.PublicBaseURL = base
	if cfg.SuccessURL == "" {
		cfg.SuccessURL = base + "/book/payment/success"
	}
	if cfg.FailedURL == "" {
		cfg.FailedURL = base + "/book/payment/failed"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if gateways == nil {
		gateways = NewRegistry()
	}

	s := &Service{
		db:              db,
		cfg:             cfg,
		gateways:        gateways,
		reservationRepo: repository.NewReservationRepository(db),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Gateways 已启用网关
func (s *Service) Gateways() []string {
	return s.gateways.Names()
}

// CallbackURL 网关回调地址
func (s *Service) CallbackURL(gateway string) string {
	return fmt.Sprintf("%s/api/v1/payments/%s/callback", s.cfg.PublicBaseURL, gateway)
}

// InitiateResponse 发起支付响应
type InitiateResponse struct {
	ReservationID string  `json:"reservation_id"`
	Gateway       string  `json:"gateway"`
	Amount        float64 `json:"amount"`
	*InitiateResult
}

// InitiatePayment 为待确认预订向网关下单
// 覆盖之前的 payment_reference，payment_status 置为 pending
func (s *Service) InitiatePayment(ctx context.Context, reservationID, gatewayName string) (resp *InitiateResponse, err error) {
	ctx, span := tracing.Start(ctx, "payment.Initiate",
		tracing.WithGateway(gatewayName),
		tracing.WithReservationID(reservationID),
	)
	defer func() { tracing.End(span, err) }()

	gw, err := s.gateways.Get(gatewayName)
	if err != nil {
		return nil, err
	}

	res, err := s.reservationRepo.GetByReservationID(ctx, reservationID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrReservationNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if res.Status != models.ReservationStatusPending {
		return nil, errors.ErrPaymentNotPending
	}
	amount := pricing.Outstanding(res.TotalPrice, res.AmountPaid)
	if amount <= 0 {
		return nil, errors.ErrPaymentNotPending.WithMessage("reservation has no outstanding balance")
	}

	result, err := gw.Initiate(ctx, &InitiateRequest{
		Reservation: res,
		Amount:      amount,
		ReturnURL:   s.CallbackURL(gw.Name()),
		CancelURL:   s.failedURL(res.ReservationID, "cancelled"),
	})
	if err != nil {
		s.metrics.RecordPayment(gw.Name(), "error")
		if appErr := errors.AsAppError(err); appErr != nil {
			return nil, appErr
		}
		logger.Error("Payment initiation failed",
			logger.Gateway(gw.Name()),
			logger.ReservationID(res.ReservationID),
			logger.Err(err),
		)
		return nil, errors.UpstreamError("payment gateway is unavailable, please try again", err)
	}

	rows, err := s.reservationRepo.UpdateFieldsIfStatus(ctx, res.ID, []string{models.ReservationStatusPending}, map[string]interface{}{
		"payment_reference": result.OrderID,
		"payment_gateway":   gw.Name(),
		"payment_status":    models.PaymentStatusPending,
	})
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if rows == 0 {
		return nil, errors.ErrPaymentNotPending
	}

	s.metrics.RecordPayment(gw.Name(), "initiated")
	tracing.AddEvent(ctx, "payment.initiated", tracing.WithOrderID(result.OrderID))
	logger.Info("Payment initiated",
		logger.Gateway(gw.Name()),
		logger.ReservationID(res.ReservationID),
		logger.OrderID(result.OrderID),
		logger.Float64("amount", amount),
	)

	return &InitiateResponse{
		ReservationID:  res.ReservationID,
		Gateway:        gw.Name(),
		Amount:         amount,
		InitiateResult: result,
	}, nil
}

// ReconcileResult 对账结果
type ReconcileResult struct {
	Reservation *models.Reservation
	Outcome     string
	Applied     bool // false 表示重复回调或预订已不在待支付状态
}

// HandleCallback 校验网关回调后对账
func (s *Service) HandleCallback(ctx context.Context, gatewayName string, params url.Values) (*ReconcileResult, error) {
	gw, err := s.gateways.Get(gatewayName)
	if err != nil {
		return nil, err
	}

	cb, err := gw.VerifyCallback(ctx, params)
	if err != nil {
		appErr := errors.AsAppError(err)
		if appErr == nil {
			appErr = errors.UpstreamError("payment callback verification failed", err)
		}
		if appErr.Is(errors.ErrInvalidSignature) {
			s.metrics.RecordPayment(gw.Name(), "rejected")
			logger.Warn("Payment callback rejected",
				logger.Gateway(gw.Name()),
				logger.String("order_id", params.Get("order_id")),
			)
		}
		return nil, appErr
	}
	return s.Reconcile(ctx, cb)
}

// Reconcile 把回调结果落到预订上
// 同一订单号的并发回调由分布式锁串行化，更新以 status = pending 为条件
// 需要服务端扣款的回调只在预订仍待支付时扣款
func (s *Service) Reconcile(ctx context.Context, cb *CallbackResult) (result *ReconcileResult, err error) {
	ctx, span := tracing.Start(ctx, "payment.Reconcile",
		tracing.WithGateway(cb.Gateway),
		tracing.WithOrderID(cb.OrderID),
	)
	defer func() { tracing.End(span, err) }()

	if cb.OrderID == "" {
		return nil, errors.ValidationError("missing payment order id")
	}

	release, err := s.lock(ctx, cb.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.reservationRepo.GetByPaymentReference(ctx, cb.OrderID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if gw := utils.SafeString(res.PaymentGateway); gw != "" && cb.Gateway != "" && gw != cb.Gateway {
		return nil, errors.ErrPaymentNotFound
	}

	result = &ReconcileResult{Outcome: cb.Outcome, Reservation: res}
	// 预订不再待支付时不扣款也不改状态
	if !awaitingPayment(res) {
		s.logIgnored(cb, res)
		return result, nil
	}

	if cb.CaptureRequired {
		if err := s.capture(ctx, cb); err != nil {
			return nil, err
		}
		result.Outcome = cb.Outcome
	}
	captured := cb.CaptureRequired && cb.Outcome == models.PaymentOutcomeSuccess

	var orphaned bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.reservationRepo.WithTx(tx)
		now := s.now()
		fields := map[string]interface{}{}
		if cb.TransactionID != "" {
			fields["payment_transaction_id"] = cb.TransactionID
		}
		if cb.Outcome == models.PaymentOutcomeSuccess {
			fields["status"] = models.ReservationStatusConfirmed
			fields["confirmed_at"] = now
			fields["payment_status"] = models.PaymentStatusPaid
			fields["payment_date"] = now
		} else {
			fields["payment_status"] = models.PaymentStatusFailed
		}

		rows, err := repo.UpdateFieldsIfStatus(ctx, res.ID, []string{models.ReservationStatusPending}, fields)
		if err != nil {
			return err
		}
		if rows == 0 {
			if !captured {
				return nil
			}
			// 扣款期间预订被取消：只记录已收款，状态不变
			delete(fields, "status")
			delete(fields, "confirmed_at")
			if err := repo.UpdateFields(ctx, res.ID, fields); err != nil {
				return err
			}
			orphaned = true
		} else {
			result.Applied = true
		}
		if cb.Outcome == models.PaymentOutcomeSuccess && cb.Amount > 0 {
			return repo.AddAmountPaid(ctx, res.ID, cb.Amount)
		}
		return nil
	})
	if err != nil {
		if appErr := errors.AsAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if !result.Applied && !orphaned {
		s.logIgnored(cb, res)
		return result, nil
	}

	res, err = s.reservationRepo.GetByIDWithDetails(ctx, res.ID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	result.Reservation = res

	if orphaned {
		s.metrics.RecordPayment(cb.Gateway, "orphaned")
		logger.Error("Payment captured for reservation that is no longer pending",
			logger.Gateway(cb.Gateway),
			logger.OrderID(cb.OrderID),
			logger.ReservationID(res.ReservationID),
			logger.String("status", res.Status),
			logger.Float64("amount", cb.Amount),
		)
		return result, nil
	}

	if cb.Outcome == models.PaymentOutcomeSuccess {
		s.metrics.RecordPayment(cb.Gateway, "paid")
		s.metrics.RecordReservation(models.ReservationStatusConfirmed)
		s.notify(models.NotificationKindBookingConfirmation, res)
	} else {
		s.metrics.RecordPayment(cb.Gateway, "failed")
	}

	logger.Info("Payment reconciled",
		logger.Gateway(cb.Gateway),
		logger.OrderID(cb.OrderID),
		logger.ReservationID(res.ReservationID),
		logger.String("outcome", cb.Outcome),
		logger.Float64("amount", cb.Amount),
	)
	return result, nil
}

func awaitingPayment(res *models.Reservation) bool {
	return res.Status == models.ReservationStatusPending && res.PaymentStatus != models.PaymentStatusPaid
}

// capture 由网关扣款并把结果写回 cb
func (s *Service) capture(ctx context.Context, cb *CallbackResult) error {
	gw, err := s.gateways.Get(cb.Gateway)
	if err != nil {
		return err
	}
	capturer, ok := gw.(Capturer)
	if !ok {
		return errors.ErrGatewayNotSupported.WithMessagef("payment gateway %q cannot capture", cb.Gateway)
	}
	if err := capturer.Capture(ctx, cb); err != nil {
		s.metrics.RecordPayment(cb.Gateway, "error")
		if appErr := errors.AsAppError(err); appErr != nil {
			return appErr
		}
		return errors.UpstreamError("payment capture failed", err)
	}
	return nil
}

func (s *Service) logIgnored(cb *CallbackResult, res *models.Reservation) {
	logger.Info("Payment callback ignored",
		logger.Gateway(cb.Gateway),
		logger.OrderID(cb.OrderID),
		logger.ReservationID(res.ReservationID),
		logger.String("status", res.Status),
	)
}

// lock 获取对账锁；Redis 不可用时仅依赖条件更新
func (s *Service) lock(ctx context.Context, orderID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	lk, err := s.locker.Acquire(ctx, cache.BuildKey("payment", "lock", orderID), s.cfg.LockTTL)
	if err != nil {
		if stderrors.Is(err, cache.ErrLockHeld) {
			return nil, errors.ErrPaymentInProgress
		}
		logger.Warn("Payment lock unavailable", logger.OrderID(orderID), logger.Err(err))
		return func() {}, nil
	}
	return func() {
		if err := lk.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Payment lock release failed", logger.OrderID(orderID), logger.Err(err))
		}
	}, nil
}

func (s *Service) notify(kind string, res *models.Reservation) {
	if s.notifier == nil {
		return
	}
	if !s.notifier.Dispatch(kind, &notification.Payload{Reservation: res}) {
		logger.Warn("Notification not queued",
			logger.String("kind", kind),
			logger.ReservationID(res.ReservationID),
		)
	}
}

// RedirectURL 回调处理后前端跳转地址
func (s *Service) RedirectURL(result *ReconcileResult, err error) string {
	if err != nil || result == nil || result.Reservation == nil {
		reason := "error"
		if errors.KindOf(err) == errors.KindAuthentication {
			reason = "invalid_signature"
		}
		return s.failedURL("", reason)
	}
	res := result.Reservation
	if res.Status == models.ReservationStatusConfirmed || res.PaymentStatus == models.PaymentStatusPaid {
		return withQuery(s.cfg.SuccessURL, url.Values{"reservation_id": {res.ReservationID}})
	}
	return s.failedURL(res.ReservationID, "")
}

func (s *Service) failedURL(reservationID, reason string) string {
	q := url.Values{}
	if reservationID != "" {
		q.Set("reservation_id", reservationID)
	}
	if reason != "" {
		q.Set("reason", reason)
	}
	return withQuery(s.cfg.FailedURL, q)
}

func withQuery(base string, q url.Values) string {
	if len(q) == 0 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}
