package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/lavendermoon/villa-pms/docs"
	"github.com/lavendermoon/villa-pms/internal/common/config"
	"github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/metrics"
	commonMiddleware "github.com/lavendermoon/villa-pms/internal/common/middleware"
	"github.com/lavendermoon/villa-pms/internal/common/response"
	adminHandler "github.com/lavendermoon/villa-pms/internal/handler/admin"
	authHandler "github.com/lavendermoon/villa-pms/internal/handler/auth"
	hotelHandler "github.com/lavendermoon/villa-pms/internal/handler/hotel"
	paymentHandler "github.com/lavendermoon/villa-pms/internal/handler/payment"
	reservationHandler "github.com/lavendermoon/villa-pms/internal/handler/reservation"
	"github.com/lavendermoon/villa-pms/internal/middleware"
)

// 公开接口请求体上限
const maxPublicBodySize = 1 << 20

var healthPaths = []string{"/health", "/ping", "/ready", "/metrics"}

// setupRouter 设置路由
func setupRouter(
	r *gin.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	app *application,
	db *gorm.DB,
	redisClient *redis.Client,
) {
	// 初始化处理器
	authH := authHandler.NewHandler(app.auth)
	roomH := hotelHandler.NewRoomHandler(app.rooms)
	guestH := hotelHandler.NewGuestHandler(app.guests)
	reservationH := reservationHandler.NewHandler(app.reservations)
	publicReservationH := reservationHandler.NewPublicHandler(app.reservations)
	paymentH := paymentHandler.NewHandler(app.payments)
	activityH := adminHandler.NewActivityLogHandler(app.activityLogs)

	activity := middleware.NewActivityLogger(app.activityRepo, logger)

	// 全局中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(commonMiddleware.Tracing(cfg.Tracing.ServiceName, healthPaths...))
	r.Use(middleware.Logging(&middleware.LoggingConfig{
		Logger:    logger,
		SkipPaths: healthPaths,
	}))
	if app.metrics != nil {
		r.Use(app.metrics.Middleware())
	}

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(db, redisClient))
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, metrics.Handler())
	}

	// Swagger 文档
	if !cfg.IsRelease() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	{
		// 员工登录与初始化
		authH.RegisterRoutes(v1)

		// 官网接口（无需认证，按 IP 限流）
		public := v1.Group("/public")
		public.Use(middleware.RequestSizeLimiter(maxPublicBodySize))
		if cfg.RateLimit.Enabled {
			public.Use(middleware.PublicRateLimit(redisClient, cfg.RateLimit.Limit, time.Duration(cfg.RateLimit.Window)*time.Second))
		}
		{
			roomH.RegisterPublicRoutes(public)
			guestH.RegisterPublicRoutes(public)
			publicReservationH.RegisterPublicRoutes(public)
			paymentH.RegisterPublicRoutes(public)
		}

		// 支付回调（需要验签，不需要认证）
		paymentH.RegisterCallbackRoutes(v1)

		// 员工接口
		staff := v1.Group("")
		staff.Use(middleware.StaffAuth(app.jwtManager), activity.Log())
		{
			authH.RegisterProtectedRoutes(staff)

			admin := staff.Group("/admin")
			{
				authH.RegisterAdminRoutes(admin)
				roomH.RegisterAdminRoutes(admin)
				guestH.RegisterAdminRoutes(admin)
				reservationH.RegisterAdminRoutes(admin)
				activityH.RegisterRoutes(admin)
			}
		}
	}

	// 404 处理
	r.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, errors.ErrNotFound.Code, "route not found")
	})
}
