// Package main 是应用程序入口
//
// @title Lavender Moon Villas PMS API
// @version 1.0
// @description 客房、客人、预订与支付对账接口
// @BasePath /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lavendermoon/villa-pms/internal/common/cache"
	"github.com/lavendermoon/villa-pms/internal/common/config"
	"github.com/lavendermoon/villa-pms/internal/common/database"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
	"github.com/lavendermoon/villa-pms/internal/common/tracing"
	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/scheduler"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.GetLogger()

	log.Info("Starting villa PMS",
		zap.String("version", version),
		zap.String("env", cfg.Server.Mode),
	)

	// 链路追踪
	shutdownTracing, err := tracing.Init(context.Background(), tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Server.Mode,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}

	// 初始化数据库连接
	db, err := database.Init(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(models.AllModels()...); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	// 初始化 Redis 连接
	redisClient, err := cache.Init(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	log.Info("Redis connected successfully")

	app, err := newApplication(cfg, log, db, redisClient)
	if err != nil {
		log.Fatal("Failed to build application", zap.Error(err))
	}
	app.dispatcher.Start()

	// 定时任务
	sched := scheduler.NewScheduler(log)
	scheduler.SetupTasks(sched,
		scheduler.NewTaskHandler(app.reservations, app.rooms, app.metrics, cfg.Business.Reservation.PendingTTLDuration()),
		cfg.Business.Reservation.ExpiryCheckDuration(),
	)
	sched.Start()

	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "release", "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	setupRouter(engine, cfg, log, app, db, redisClient)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	sched.Stop()

	// 先停止接收请求，再排空通知队列
	if err := app.dispatcher.Shutdown(ctx); err != nil {
		log.Warn("Notification queue not drained", zap.Error(err))
	}
	app.close()

	if err := shutdownTracing(ctx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}
	if err := cache.Close(); err != nil {
		log.Warn("Failed to close Redis", zap.Error(err))
	}
	if err := database.Close(); err != nil {
		log.Warn("Failed to close database", zap.Error(err))
	}

	log.Info("Server exited")
}
