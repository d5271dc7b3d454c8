package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lavendermoon/villa-pms/internal/models"
	"github.com/lavendermoon/villa-pms/internal/repository"
)

// apiRoutePrefix 映射表中的路径不含该前缀
const apiRoutePrefix = "/api/v1"

// maxActivityPayload 记录请求体的最大字节数
const maxActivityPayload = 64 << 10

// ActivityConfig 路由对应的审计模块与动作
type ActivityConfig struct {
	Module     string
	Action     string
	TargetType string
}

var activityRouteMap = map[string]ActivityConfig{
	"PUT /auth/password":                     {Module: "auth", Action: "change_password", TargetType: "staff"},
	"POST /admin/staff":                      {Module: "staff", Action: "create", TargetType: "staff"},
	"PUT /admin/staff/:id/status":            {Module: "staff", Action: "update_status", TargetType: "staff"},
	"POST /admin/rooms":                      {Module: "room", Action: "create", TargetType: "room"},
	"PUT /admin/rooms/:id":                   {Module: "room", Action: "update", TargetType: "room"},
	"PUT /admin/rooms/:id/status":            {Module: "room", Action: "update_status", TargetType: "room"},
	"POST /admin/guests":                     {Module: "guest", Action: "upsert", TargetType: "guest"},
	"POST /admin/reservations":               {Module: "reservation", Action: "create", TargetType: "reservation"},
	"PATCH /admin/reservations/:id":          {Module: "reservation", Action: "update", TargetType: "reservation"},
	"POST /admin/reservations/:id/confirm":   {Module: "reservation", Action: "confirm", TargetType: "reservation"},
	"POST /admin/reservations/:id/check-in":  {Module: "reservation", Action: "check_in", TargetType: "reservation"},
	"POST /admin/reservations/:id/check-out": {Module: "reservation", Action: "check_out", TargetType: "reservation"},
	"POST /admin/reservations/:id/cancel":    {Module: "reservation", Action: "cancel", TargetType: "reservation"},
	"POST /admin/reservations/:id/payments":  {Module: "payment", Action: "record_offline", TargetType: "reservation"},
}

var sensitiveFields = []string{
	"password", "token", "secret", "api_key", "id_number",
}

// ActivityLogger 员工写操作审计中间件
type ActivityLogger struct {
	repo   *repository.ActivityLogRepository
	logger *zap.Logger
	wait   bool
}

// NewActivityLogger 创建审计中间件
func NewActivityLogger(repo *repository.ActivityLogRepository, logger *zap.Logger) *ActivityLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityLogger{repo: repo, logger: logger}
}

// Synchronous 同步写入，测试使用
func (l *ActivityLogger) Synchronous() *ActivityLogger {
	l.wait = true
	return l
}

// Log 记录已认证员工的写操作
func (l *ActivityLogger) Log() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isWriteMethod(c.Request.Method) {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxActivityPayload))
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		c.Next()

		staffID := GetStaffID(c)
		if staffID == 0 || l.repo == nil {
			return
		}

		entry := l.buildEntry(c, staffID, body)
		if l.wait {
			l.save(entry)
			return
		}
		go l.save(entry)
	}
}

func (l *ActivityLogger) buildEntry(c *gin.Context, staffID int64, body []byte) *models.StaffActivityLog {
	route := c.FullPath()
	cfg := resolveActivity(c.Request.Method, route)

	entry := &models.StaffActivityLog{
		StaffID:    staffID,
		Module:     cfg.Module,
		Action:     cfg.Action,
		Method:     c.Request.Method,
		Path:       c.Request.URL.Path,
		StatusCode: c.Writer.Status(),
	}
	if ip := c.ClientIP(); ip != "" {
		entry.IP = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		if len(ua) > 255 {
			ua = ua[:255]
		}
		entry.UserAgent = &ua
	}
	if cfg.TargetType != "" {
		targetType := cfg.TargetType
		entry.TargetType = &targetType
		if id := c.Param("id"); id != "" {
			entry.TargetID = &id
		} else if cfg.TargetType == "staff" {
			self := GetStaffEmail(c)
			entry.TargetID = &self
		}
	}

	if len(body) > 0 {
		var data interface{}
		if err := json.Unmarshal(body, &data); err == nil {
			if m, ok := maskSensitive(data).(map[string]interface{}); ok {
				entry.Payload = m
			}
		}
	}
	return entry
}

func (l *ActivityLogger) save(entry *models.StaffActivityLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.repo.Create(ctx, entry); err != nil {
		l.logger.Warn("写入员工操作日志失败",
			zap.Int64("staff_id", entry.StaffID),
			zap.String("path", entry.Path),
			zap.Error(err),
		)
	}
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// resolveActivity 查找路由映射，未命中时按路径和方法推断
func resolveActivity(method, route string) ActivityConfig {
	rel := strings.TrimPrefix(route, apiRoutePrefix)
	if cfg, ok := activityRouteMap[method+" "+rel]; ok {
		return cfg
	}

	module := "unknown"
	segments := strings.Split(strings.Trim(strings.TrimPrefix(rel, "/admin"), "/"), "/")
	if segments[0] != "" {
		module = strings.TrimSuffix(segments[0], "s")
	}

	action := "unknown"
	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut, http.MethodPatch:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	}
	return ActivityConfig{Module: module, Action: action}
}

func maskSensitive(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitiveKey(key) {
				result[key] = "***"
				continue
			}
			result[key] = maskSensitive(value)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = maskSensitive(item)
		}
		return result
	default:
		return data
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, f := range sensitiveFields {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}
