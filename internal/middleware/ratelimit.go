package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/lavendermoon/villa-pms/internal/common/errors"
	"github.com/lavendermoon/villa-pms/internal/common/logger"
)

// RateLimitConfig 固定窗口限流配置
type RateLimitConfig struct {
	Client    redis.Cmdable
	KeyPrefix string
	Limit     int
	Window    time.Duration
	KeyFunc   func(*gin.Context) string
}

// RateLimit 基于 Redis INCR 的固定窗口限流；Redis 故障时放行
func RateLimit(cfg *RateLimitConfig) gin.HandlerFunc {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := cfg.KeyPrefix + keyFunc(c)

		count, err := cfg.Client.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit unavailable", logger.Err(err))
			c.Next()
			return
		}
		if count == 1 {
			cfg.Client.Expire(ctx, key, cfg.Window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		if int(count) > cfg.Limit {
			ttl, _ := cfg.Client.TTL(ctx, key).Result()
			if ttl < 0 {
				ttl = cfg.Window
			}
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			abortWithAppError(c, apperrors.ErrRateLimitExceed)
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(cfg.Limit-int(count)))
		c.Next()
	}
}

// PublicRateLimit 公开接口按客户端 IP 与路由限流
func PublicRateLimit(client redis.Cmdable, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{
		Client:    client,
		KeyPrefix: "pms:ratelimit:public:",
		Limit:     limit,
		Window:    window,
		KeyFunc: func(c *gin.Context) string {
			return fmt.Sprintf("%s:%s", c.ClientIP(), c.FullPath())
		},
	})
}
