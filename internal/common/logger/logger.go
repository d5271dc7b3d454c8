// Package logger 提供基于 zap 的结构化日志
package logger

import (
	"os"
	"time"

	"github.com/lavendermoon/villa-pms/internal/common/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Init 按配置初始化全局日志器
func Init(cfg *config.LoggerConfig) error {
	core := zapcore.NewCore(
		newEncoder(cfg.Format),
		zapcore.NewMultiWriteSyncer(newWriters(cfg)...),
		parseLevel(cfg.Level),
	)

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	SetLogger(zap.New(core, opts...))
	return nil
}

// SetLogger 替换全局日志器，测试中可注入 observer
func SetLogger(l *zap.Logger) {
	log = l
	sugar = l.Sugar()
}

func newEncoder(format string) zapcore.Encoder {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == "json" {
		return zapcore.NewJSONEncoder(encCfg)
	}
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encCfg)
}

// newWriters stdout 与滚动文件可同时启用（output=both）
func newWriters(cfg *config.LoggerConfig) []zapcore.WriteSyncer {
	var ws []zapcore.WriteSyncer
	if cfg.Output == "" || cfg.Output == "stdout" || cfg.Output == "both" {
		ws = append(ws, zapcore.AddSync(os.Stdout))
	}
	if cfg.FilePath != "" && cfg.Output != "stdout" {
		ws = append(ws, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}))
	}
	if len(ws) == 0 {
		ws = append(ws, zapcore.AddSync(os.Stdout))
	}
	return ws
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

func parseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// GetLogger 获取全局日志器，未初始化时退化为开发模式日志器
func GetLogger() *zap.Logger {
	if log == nil {
		l, _ := zap.NewDevelopment()
		SetLogger(l)
	}
	return log
}

// GetSugar 获取 Sugar 日志器
func GetSugar() *zap.SugaredLogger {
	GetLogger()
	return sugar
}

// Sync 刷新缓冲
func Sync() error {
	if log != nil {
		return log.Sync()
	}
	return nil
}

// Debug 调试日志
func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }

// Info 信息日志
func Info(msg string, fields ...zap.Field) { GetLogger().Info(msg, fields...) }

// Warn 警告日志
func Warn(msg string, fields ...zap.Field) { GetLogger().Warn(msg, fields...) }

// Error 错误日志
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }

// Fatal 致命错误日志
func Fatal(msg string, fields ...zap.Field) { GetLogger().Fatal(msg, fields...) }

// Infof 格式化信息日志
func Infof(template string, args ...interface{}) { GetSugar().Infof(template, args...) }

// Warnf 格式化警告日志
func Warnf(template string, args ...interface{}) { GetSugar().Warnf(template, args...) }

// Errorf 格式化错误日志
func Errorf(template string, args ...interface{}) { GetSugar().Errorf(template, args...) }

// With 返回带字段的子日志器
func With(fields ...zap.Field) *zap.Logger {
	return GetLogger().With(fields...)
}

// Named 返回命名子日志器
func Named(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// 常用字段构造函数
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Any      = zap.Any
	Err      = zap.Error
	Duration = zap.Duration
	Time     = zap.Time
)

// RequestID 请求ID
func RequestID(id string) zap.Field { return zap.String("request_id", id) }

// StaffID 员工ID
func StaffID(id int64) zap.Field { return zap.Int64("staff_id", id) }

// ReservationID 预订编号（PREFIX-YYMMDD-NN）
func ReservationID(id string) zap.Field { return zap.String("reservation_id", id) }

// RoomID 房间ID
func RoomID(id int64) zap.Field { return zap.Int64("room_id", id) }

// GuestEmail 客人邮箱
func GuestEmail(email string) zap.Field { return zap.String("guest_email", email) }

// Gateway 支付网关名称
func Gateway(name string) zap.Field { return zap.String("gateway", name) }

// OrderID 网关订单号
func OrderID(id string) zap.Field { return zap.String("order_id", id) }

// Module 模块
func Module(name string) zap.Field { return zap.String("module", name) }

// Action 操作
func Action(name string) zap.Field { return zap.String("action", name) }

// Latency 耗时
func Latency(d time.Duration) zap.Field { return zap.Duration("latency", d) }

// StatusCode HTTP 状态码
func StatusCode(code int) zap.Field { return zap.Int("status_code", code) }

// Method HTTP 方法
func Method(method string) zap.Field { return zap.String("method", method) }

// Path 请求路径
func Path(path string) zap.Field { return zap.String("path", path) }

// IP 客户端地址
func IP(ip string) zap.Field { return zap.String("ip", ip) }
