package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	commonMiddleware "github.com/lavendermoon/villa-pms/internal/common/middleware"
)

// LoggingConfig 访问日志配置
type LoggingConfig struct {
	Logger    *zap.Logger
	SkipPaths []string
}

// Logging 访问日志，按状态码选择级别
func Logging(cfg *LoggingConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if traceID := commonMiddleware.TraceID(c); traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}
		if staffID := GetStaffID(c); staffID > 0 {
			fields = append(fields, zap.Int64("staff_id", staffID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			cfg.Logger.Error("http request", fields...)
		case status >= 400:
			cfg.Logger.Warn("http request", fields...)
		default:
			cfg.Logger.Info("http request", fields...)
		}
	}
}
