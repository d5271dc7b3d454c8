package models

import (
	"time"
)

// NotificationLog 通知发送记录
type NotificationLog struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ReservationID string    `gorm:"type:varchar(32);index;not null" json:"reservation_id"`
	Kind          string    `gorm:"type:varchar(40);not null" json:"kind"`
	Channel       string    `gorm:"type:varchar(20);not null" json:"channel"`
	Recipient     string    `gorm:"type:varchar(255);not null" json:"recipient"`
	Subject       string    `gorm:"type:varchar(255)" json:"subject"`
	Status        string    `gorm:"type:varchar(20);not null;index" json:"status"`
	Error         *string   `gorm:"type:text" json:"error,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (NotificationLog) TableName() string {
	return "notification_logs"
}

// NotificationKind 通知类型
const (
	NotificationKindBookingConfirmation = "booking_confirmation"
	NotificationKindReservationUpdate   = "reservation_update"
	NotificationKindCancellation        = "cancellation"
)

// NotificationChannel 通知渠道
const (
	NotificationChannelEmail = "email"
	NotificationChannelSMS   = "sms"
)

// NotificationLogStatus 发送结果
const (
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
	NotificationStatusDropped = "dropped"
)

// AllModels 需要自动迁移的模型
func AllModels() []interface{} {
	return []interface{}{
		&Room{},
		&Guest{},
		&Reservation{},
		&ReservationDaySequence{},
		&Staff{},
		&StaffActivityLog{},
		&NotificationLog{},
	}
}
