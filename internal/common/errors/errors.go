// Package errors 定义业务错误码和错误分类
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind 错误分类，决定返回给调用方的 HTTP 状态
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuthentication
	KindForbidden
	KindUpstream
	KindNotification
	KindRateLimited
)

// String 分类名称
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindUpstream:
		return "upstream"
	case KindNotification:
		return "notification"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// HTTPStatus 分类对应的 HTTP 状态码
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUpstream:
		return http.StatusBadGateway
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    Kind   `json:"-"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，使 errors.Is(err, ErrRoomNotFound) 对派生错误也成立
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 创建内部错误
func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message, Kind: KindInternal}
}

// NewKind 创建指定分类的错误
func NewKind(kind Kind, code int, message string) *AppError {
	return &AppError{Code: code, Message: message, Kind: kind}
}

// Wrap 包装底层错误
func Wrap(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Kind: KindInternal, Err: err}
}

// WithMessage 复制并替换消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{Code: e.Code, Message: message, Kind: e.Kind, Err: e.Err}
}

// WithMessagef 复制并格式化消息
func (e *AppError) WithMessagef(format string, args ...interface{}) *AppError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithError 复制并附加底层错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{Code: e.Code, Message: e.Message, Kind: e.Kind, Err: err}
}

// 分类构造函数，供不需要专用错误码的场景使用

// ValidationError 输入或状态不合法
func ValidationError(message string) *AppError {
	return ErrInvalidParams.WithMessage(message)
}

// ConflictError 与已有数据冲突
func ConflictError(message string) *AppError {
	return ErrConflict.WithMessage(message)
}

// NotFoundError 资源不存在
func NotFoundError(message string) *AppError {
	return ErrNotFound.WithMessage(message)
}

// AuthenticationError 认证失败（含回调签名校验失败）
func AuthenticationError(message string) *AppError {
	return ErrUnauthorized.WithMessage(message)
}

// UpstreamError 外部服务失败或超时
func UpstreamError(message string, err error) *AppError {
	return ErrExternalService.WithMessage(message).WithError(err)
}

// NotificationError 通知发送失败，只记录不返回
func NotificationError(message string, err error) *AppError {
	return ErrNotificationFailed.WithMessage(message).WithError(err)
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown         = New(1000, "unknown error")
	ErrInvalidParams   = NewKind(KindValidation, 1001, "invalid parameters")
	ErrNotFound        = NewKind(KindNotFound, 1002, "resource not found")
	ErrConflict        = NewKind(KindConflict, 1003, "resource conflict")
	ErrDatabaseError   = New(1004, "database error")
	ErrCacheError      = New(1005, "cache error")
	ErrInternalError   = New(1006, "internal error")
	ErrExternalService = NewKind(KindUpstream, 1007, "upstream service error")
	ErrRateLimitExceed = NewKind(KindRateLimited, 1008, "too many requests")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized      = NewKind(KindAuthentication, 2000, "authentication required")
	ErrTokenExpired      = NewKind(KindAuthentication, 2001, "token expired")
	ErrTokenInvalid      = NewKind(KindAuthentication, 2002, "invalid token")
	ErrPermissionDenied  = NewKind(KindForbidden, 2003, "permission denied")
	ErrAccountDisabled   = NewKind(KindForbidden, 2004, "account disabled")
	ErrInvalidLogin      = NewKind(KindAuthentication, 2005, "invalid email or password")
	ErrSetupCompleted    = NewKind(KindConflict, 2006, "initial setup already completed")
	ErrStaffNotFound     = NewKind(KindNotFound, 2007, "staff member not found")
	ErrStaffEmailExists  = NewKind(KindConflict, 2008, "staff email already registered")
	ErrInvalidSignature  = NewKind(KindAuthentication, 2009, "invalid callback signature")
)

// 房间错误码 (3000-3999)
var (
	ErrRoomNotFound      = NewKind(KindNotFound, 3000, "room not found")
	ErrRoomNumberExists  = NewKind(KindConflict, 3001, "room number already exists")
	ErrRoomMaintenance   = NewKind(KindValidation, 3002, "room is under maintenance")
	ErrRoomCapacity      = NewKind(KindValidation, 3003, "number of guests exceeds room capacity")
	ErrInvalidRoomStatus = NewKind(KindValidation, 3004, "invalid room status")
	ErrInvalidRoomRate   = NewKind(KindValidation, 3005, "invalid room rate")
)

// 客人错误码 (4000-4999)
var (
	ErrGuestNotFound     = NewKind(KindNotFound, 4000, "guest not found")
	ErrGuestEmailInvalid = NewKind(KindValidation, 4001, "invalid guest email")
)

// 预订错误码 (5000-5999)
var (
	ErrReservationNotFound = NewKind(KindNotFound, 5000, "reservation not found")
	ErrInvalidRange        = NewKind(KindValidation, 5001, "check-out must be after check-in")
	ErrRoomNotAvailable    = NewKind(KindConflict, 5002, "room is not available for the selected dates")
	ErrInvalidTransition   = NewKind(KindValidation, 5003, "invalid reservation status transition")
	ErrInvalidAmount       = NewKind(KindValidation, 5004, "amount must not be negative")
	ErrReservationClosed   = NewKind(KindValidation, 5005, "reservation can no longer be modified")
	ErrInvalidSource       = NewKind(KindValidation, 5006, "invalid reservation source")
)

// 支付错误码 (6000-6999)
var (
	ErrGatewayNotSupported = NewKind(KindValidation, 6000, "payment gateway not supported")
	ErrPaymentNotPending   = NewKind(KindValidation, 6001, "reservation is not awaiting payment")
	ErrPaymentNotFound     = NewKind(KindNotFound, 6002, "payment not found")
	ErrPaymentGateway      = NewKind(KindUpstream, 6003, "payment gateway error")
	ErrPaymentInProgress   = NewKind(KindConflict, 6004, "payment is being processed")
)

// 通知错误码 (7000-7999)
var (
	ErrNotificationFailed = NewKind(KindNotification, 7000, "notification delivery failed")
	ErrNotificationQueue  = NewKind(KindNotification, 7001, "notification queue full")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 提取应用错误，非应用错误归为未知错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}

// AsAppError 提取应用错误，非应用错误返回 nil
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// KindOf 返回错误分类
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
