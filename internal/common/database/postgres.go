// Package database 提供数据库连接与事务辅助
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lavendermoon/villa-pms/internal/common/config"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
)

// PostgreSQL 错误码
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// MaxSerializationRetries 可串行化事务冲突后的最大重试次数
const MaxSerializationRetries = 3

// ErrSerializationConflict 重试耗尽后仍然冲突
var ErrSerializationConflict = errors.New("serializable transaction conflict")

var db *gorm.DB

// Init 初始化 PostgreSQL 连接，GORM 日志写入 zap
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	gl := gormlogger.New(
		zap.NewStdLog(logger.Named("gorm")),
		gormlogger.Config{
			SlowThreshold:             time.Duration(cfg.SlowThreshold) * time.Millisecond,
			LogLevel:                  logLevel(cfg.LogMode),
			IgnoreRecordNotFoundError: true,
		},
	)

	conn, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                                   gl,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db = conn
	return db, nil
}

// GetDB 获取全局连接
func GetDB() *gorm.DB {
	return db
}

// Close 关闭连接
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func logLevel(logMode bool) gormlogger.LogLevel {
	if logMode {
		return gormlogger.Info
	}
	return gormlogger.Warn
}

// SerializableTransaction 在 SERIALIZABLE 隔离级别执行 fn
// 仅 PostgreSQL 设置隔离级别；序列化失败时整体重试，
// 超过 MaxSerializationRetries 次返回 ErrSerializationConflict
func SerializableTransaction(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	var opts []*sql.TxOptions
	if conn.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}

	var err error
	for attempt := 0; attempt <= MaxSerializationRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff(attempt)):
			}
			logger.Debug("retrying serializable transaction", logger.Int("attempt", attempt))
		}

		err = conn.WithContext(ctx).Transaction(fn, opts...)
		if !IsSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrSerializationConflict, err)
}

// retryBackoff 第 attempt 次重试前的等待时间，在 [base, 2×base) 内随机，base = attempt²×10ms
// 同时失败的事务错开重试
func retryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	base := time.Duration(attempt*attempt) * 10 * time.Millisecond
	return base + rand.N(base)
}

// IsSerializationFailure 判断是否为可重试的并发冲突
func IsSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	// SQLite 写锁冲突
	return strings.Contains(err.Error(), "database is locked")
}

// IsUniqueViolation 判断是否为唯一约束冲突
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Paginate GORM 分页作用域
func Paginate(offset, limit int) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		return tx.Offset(offset).Limit(limit)
	}
}
