package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lavendermoon/villa-pms/internal/common/cache"
	"github.com/lavendermoon/villa-pms/internal/common/config"
	"github.com/lavendermoon/villa-pms/internal/common/crypto"
	"github.com/lavendermoon/villa-pms/internal/common/jwt"
	"github.com/lavendermoon/villa-pms/internal/common/metrics"
	"github.com/lavendermoon/villa-pms/internal/common/qrcode"
	"github.com/lavendermoon/villa-pms/internal/repository"
	adminService "github.com/lavendermoon/villa-pms/internal/service/admin"
	authService "github.com/lavendermoon/villa-pms/internal/service/auth"
	hotelService "github.com/lavendermoon/villa-pms/internal/service/hotel"
	"github.com/lavendermoon/villa-pms/internal/service/notification"
	paymentService "github.com/lavendermoon/villa-pms/internal/service/payment"
	reservationService "github.com/lavendermoon/villa-pms/internal/service/reservation"
	"github.com/lavendermoon/villa-pms/pkg/mailer"
	"github.com/lavendermoon/villa-pms/pkg/mqtt"
	"github.com/lavendermoon/villa-pms/pkg/oss"
	"github.com/lavendermoon/villa-pms/pkg/paypal"
	"github.com/lavendermoon/villa-pms/pkg/sms"
	"github.com/lavendermoon/villa-pms/pkg/wipay"
)

// application 组装后的服务
type application struct {
	jwtManager   *jwt.Manager
	metrics      *metrics.Metrics
	dispatcher   *notification.Dispatcher
	mqttClient   *mqtt.Client
	activityRepo *repository.ActivityLogRepository

	auth         *authService.Service
	rooms        *hotelService.RoomService
	guests       *hotelService.GuestService
	reservations *reservationService.Service
	payments     *paymentService.Service
	activityLogs *adminService.ActivityLogService
}

func newApplication(cfg *config.Config, log *zap.Logger, db *gorm.DB, redisClient *redis.Client) (*application, error) {
	app := &application{
		jwtManager: jwt.NewManager(&jwt.Config{
			Secret:            cfg.JWT.Secret,
			AccessExpireTime:  cfg.JWT.AccessTokenDuration(),
			RefreshExpireTime: cfg.JWT.RefreshTokenDuration(),
			Issuer:            cfg.JWT.Issuer,
		}),
		activityRepo: repository.NewActivityLogRepository(db),
	}
	if cfg.Metrics.Enabled {
		app.metrics = metrics.Init(cfg.Metrics.Namespace)
	}

	// 证件号加密
	var cipher *crypto.FieldCipher
	if cfg.Crypto.AESKey != "" {
		c, err := crypto.NewFieldCipher(cfg.Crypto.AESKey)
		if err != nil {
			return nil, fmt.Errorf("crypto: %w", err)
		}
		cipher = c
	} else if cfg.IsRelease() {
		return nil, fmt.Errorf("crypto.aes_key is required in release mode")
	} else {
		log.Warn("crypto.aes_key not set, guest id numbers are stored in plaintext")
	}

	dispatcher, err := newDispatcher(cfg, log, db, app.metrics)
	if err != nil {
		return nil, err
	}
	app.dispatcher = dispatcher

	// 房态推送
	var roomPublisher hotelService.RoomStatusPublisher
	if cfg.MQTT.Enabled {
		client := mqtt.NewClient(&mqtt.Config{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientIDPrefix + uuid.NewString()[:8],
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			QoS:            cfg.MQTT.QoS,
			Retained:       cfg.MQTT.Retained,
			KeepAlive:      time.Duration(cfg.MQTT.KeepAlive) * time.Second,
			ConnectTimeout: time.Duration(cfg.MQTT.ConnectTimeout) * time.Second,
			AutoReconnect:  cfg.MQTT.AutoReconnect,
		}, log)
		if err := client.Connect(); err != nil {
			// 房态推送失败不影响前台业务
			log.Warn("MQTT unavailable, room status will not be published", zap.Error(err))
		}
		app.mqttClient = client
		roomPublisher = mqtt.NewRoomStatusPublisher(client, cfg.MQTT.TopicPrefix, app.metrics)
	}

	guestRepo := repository.NewGuestRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	app.guests = hotelService.NewGuestService(guestRepo, cipher)
	store := cache.NewStore(redisClient)
	app.rooms = hotelService.NewRoomService(roomRepo, roomPublisher,
		hotelService.WithAvailabilityInvalidator(store.Generation(cache.NamespaceAvailability)))

	resOpts := []reservationService.Option{
		reservationService.WithNotifier(dispatcher),
		reservationService.WithCache(store),
		reservationService.WithMetrics(app.metrics),
	}
	if roomPublisher != nil {
		resOpts = append(resOpts, reservationService.WithRoomStatusPublisher(roomPublisher))
	}
	if uploader := newUploader(cfg, log); uploader != nil {
		resOpts = append(resOpts, reservationService.WithInvoiceQR(
			reservationService.NewInvoiceQR(qrcode.NewGenerator(), uploader),
		))
	}
	app.reservations = reservationService.NewService(db, reservationService.Config{
		IDPrefix:        cfg.Business.Reservation.IDPrefix,
		AvailabilityTTL: cfg.Business.Reservation.AvailabilityCacheDuration(),
		PublicBaseURL:   cfg.Server.PublicBaseURL,
	}, app.guests, resOpts...)

	registry, err := newGatewayRegistry(cfg)
	if err != nil {
		return nil, err
	}
	if len(registry.Names()) == 0 {
		log.Warn("No payment gateway enabled, only offline payments are available")
	}
	app.payments = paymentService.NewService(db, paymentService.Config{
		PublicBaseURL: cfg.Server.PublicBaseURL,
		SuccessURL:    resolveURL(cfg.Server.PublicBaseURL, cfg.Business.Reservation.PaymentSuccessURL),
		FailedURL:     resolveURL(cfg.Server.PublicBaseURL, cfg.Business.Reservation.PaymentFailedURL),
	}, registry,
		paymentService.WithLocker(cache.NewLocker(redisClient)),
		paymentService.WithNotifier(dispatcher),
		paymentService.WithMetrics(app.metrics),
	)

	app.auth = authService.NewService(db, app.jwtManager, cfg.Crypto.BcryptCost)
	app.activityLogs = adminService.NewActivityLogService(app.activityRepo)

	return app, nil
}

// newDispatcher 组装通知渠道
func newDispatcher(cfg *config.Config, log *zap.Logger, db *gorm.DB, m *metrics.Metrics) (*notification.Dispatcher, error) {
	var notifiers []notification.Notifier

	if cfg.Email.Enabled {
		client, err := mailer.NewClient(&mailer.Config{
			APIKey:  cfg.Email.APIKey,
			BaseURL: cfg.Email.BaseURL,
			From:    cfg.Email.From,
			ReplyTo: cfg.Email.ReplyTo,
			Timeout: time.Duration(cfg.Email.SendTimeout) * time.Second,
		})
		switch {
		case err == nil:
			notifiers = append(notifiers, notification.NewEmailNotifier(client))
		case cfg.IsRelease():
			return nil, fmt.Errorf("email: %w", err)
		default:
			log.Warn("Email channel disabled", zap.Error(err))
		}
	}

	if cfg.SMS.Enabled {
		sender, err := sms.NewAliyunSender(&sms.AliyunConfig{
			AccessKeyID:     cfg.SMS.AccessKeyID,
			AccessKeySecret: cfg.SMS.AccessKeySecret,
			SignName:        cfg.SMS.SignName,
			RegionID:        cfg.SMS.RegionID,
		})
		if err != nil {
			return nil, fmt.Errorf("sms: %w", err)
		}
		notifiers = append(notifiers, notification.NewSMSNotifier(sender, cfg.SMS.Templates))
	}

	if len(notifiers) == 0 {
		log.Warn("No notification channel enabled")
	}

	return notification.NewDispatcher(notification.Config{
		Workers:       cfg.Email.Workers,
		QueueSize:     cfg.Email.QueueSize,
		SendTimeout:   time.Duration(cfg.Email.SendTimeout) * time.Second,
		RatePerSecond: cfg.Email.RatePerSecond,
	}, notification.NewRenderer(cfg.Email.HotelName), repository.NewNotificationLogRepository(db), m, notifiers...), nil
}

// newGatewayRegistry 注册已启用的在线支付网关
func newGatewayRegistry(cfg *config.Config) (*paymentService.Registry, error) {
	registry := paymentService.NewRegistry()

	if cfg.PayPal.Enabled {
		client, err := paypal.NewClient(paypal.Config{
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			Environment:  cfg.PayPal.Environment,
			Currency:     cfg.PayPal.Currency,
			BrandName:    cfg.Email.HotelName,
			Timeout:      time.Duration(cfg.PayPal.Timeout) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("paypal: %w", err)
		}
		registry.Register(paymentService.NewPayPalGateway(client, cfg.Email.HotelName))
	}

	if cfg.WiPay.Enabled {
		client, err := wipay.NewClient(wipay.Config{
			APIURL:        cfg.WiPay.APIURL,
			AccountNumber: cfg.WiPay.AccountNumber,
			APIKey:        cfg.WiPay.APIKey,
			CountryCode:   cfg.WiPay.CountryCode,
			Currency:      cfg.WiPay.Currency,
			Environment:   cfg.WiPay.Environment,
		})
		if err != nil {
			return nil, fmt.Errorf("wipay: %w", err)
		}
		registry.Register(paymentService.NewWiPayGateway(client))
	}

	return registry, nil
}

// newUploader 发票二维码存储；未启用 OSS 时仅调试模式使用本地 Mock
func newUploader(cfg *config.Config, log *zap.Logger) oss.Uploader {
	if cfg.OSS.Enabled {
		uploader, err := oss.NewAliyunUploader(&oss.AliyunConfig{
			Endpoint:        cfg.OSS.Endpoint,
			AccessKeyID:     cfg.OSS.AccessKeyID,
			AccessKeySecret: cfg.OSS.AccessKeySecret,
			BucketName:      cfg.OSS.Bucket,
			Domain:          cfg.OSS.CustomDomain,
			BasePath:        cfg.OSS.UploadDir,
		})
		if err == nil {
			return uploader
		}
		log.Warn("OSS unavailable, invoice QR codes are disabled", zap.Error(err))
		return nil
	}
	if cfg.IsDebug() {
		return oss.NewMockUploader()
	}
	return nil
}

// resolveURL 相对路径拼接到官网地址
func resolveURL(base, path string) string {
	if path == "" || !strings.HasPrefix(path, "/") {
		return path
	}
	return strings.TrimRight(base, "/") + path
}

func (a *application) close() {
	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}
}
