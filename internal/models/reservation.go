package models

import (
	"math"
	"time"
)

// Reservation 预订
type Reservation struct {
	ID                   int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ReservationID        string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"reservation_id"`
	RoomID               int64      `gorm:"index;not null" json:"room_id"`
	GuestID              int64      `gorm:"index;not null" json:"guest_id"`
	CheckIn              time.Time  `gorm:"type:date;index;not null" json:"check_in"`
	CheckOut             time.Time  `gorm:"type:date;index;not null" json:"check_out"`
	NumGuests            int        `gorm:"not null;default:1" json:"num_guests"`
	SpecialRequests      string     `gorm:"type:text" json:"special_requests"`
	Source               string     `gorm:"type:varchar(20);not null;default:'direct'" json:"source"`
	Status               string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	UseCustomTotal       bool       `gorm:"not null;default:false" json:"use_custom_total"`
	CustomTotal          *float64   `gorm:"type:decimal(10,2)" json:"custom_total,omitempty"`
	ServiceChargeEnabled bool       `gorm:"not null;default:false" json:"service_charge_enabled"`
	Subtotal             float64    `gorm:"type:decimal(10,2);not null;default:0" json:"subtotal"`
	ServiceCharge        float64    `gorm:"type:decimal(10,2);not null;default:0" json:"service_charge"`
	AdditionalItems      LineItems  `gorm:"type:jsonb" json:"additional_items"`
	ItemsTotal           float64    `gorm:"type:decimal(10,2);not null;default:0" json:"items_total"`
	TotalPrice           float64    `gorm:"type:decimal(10,2);not null" json:"total_price"`
	AmountPaid           float64    `gorm:"type:decimal(10,2);not null;default:0" json:"amount_paid"`
	PaymentGateway       *string    `gorm:"type:varchar(20)" json:"payment_gateway,omitempty"`
	PaymentReference     *string    `gorm:"type:varchar(100);index" json:"payment_reference,omitempty"`
	PaymentStatus        string     `gorm:"type:varchar(20);not null;default:'unpaid'" json:"payment_status"`
	PaymentTransactionID *string    `gorm:"type:varchar(100)" json:"payment_transaction_id,omitempty"`
	PaymentDate          *time.Time `json:"payment_date,omitempty"`
	CancellationReason   *string    `gorm:"type:varchar(50)" json:"cancellation_reason,omitempty"`
	CancellationNotes    *string    `gorm:"type:text" json:"cancellation_notes,omitempty"`
	ConfirmedAt          *time.Time `json:"confirmed_at,omitempty"`
	CheckedInAt          *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt         *time.Time `json:"checked_out_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Room  *Room  `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	Guest *Guest `gorm:"foreignKey:GuestID" json:"guest,omitempty"`
}

// TableName 表名
func (Reservation) TableName() string {
	return "reservations"
}

// ReservationStatus 预订状态
const (
	ReservationStatusPending    = "pending"
	ReservationStatusConfirmed  = "confirmed"
	ReservationStatusCheckedIn  = "checked_in"
	ReservationStatusCheckedOut = "checked_out"
	ReservationStatusCancelled  = "cancelled"
)

// BlockingStatuses 占用房间的预订状态
var BlockingStatuses = []string{
	ReservationStatusPending,
	ReservationStatusConfirmed,
	ReservationStatusCheckedIn,
}

// ValidReservationStatus 判断预订状态是否合法
func ValidReservationStatus(s string) bool {
	switch s {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusCheckedIn,
		ReservationStatusCheckedOut, ReservationStatusCancelled:
		return true
	}
	return false
}

// ReservationSource 预订来源
const (
	SourceDirect     = "direct"
	SourceBookingCom = "booking_com"
	SourceExpedia    = "expedia"
	SourceAirbnb     = "airbnb"
	SourcePhone      = "phone"
	SourceWalkIn     = "walk_in"
	SourceOther      = "other"
)

// ValidSource 判断来源是否合法
func ValidSource(s string) bool {
	switch s {
	case SourceDirect, SourceBookingCom, SourceExpedia, SourceAirbnb, SourcePhone, SourceWalkIn, SourceOther:
		return true
	}
	return false
}

// CancellationReasonPaymentTimeout 超时未支付自动取消
const CancellationReasonPaymentTimeout = "payment_timeout"

// IsTerminal 是否终态
func (r *Reservation) IsTerminal() bool {
	return r.Status == ReservationStatusCheckedOut || r.Status == ReservationStatusCancelled
}

// Nights 入住晚数
func (r *Reservation) Nights() int {
	return int(math.Ceil(r.CheckOut.Sub(r.CheckIn).Hours() / 24))
}

// Outstanding 未付金额，可为负（多付）
func (r *Reservation) Outstanding() float64 {
	return math.Round((r.TotalPrice-r.AmountPaid)*100) / 100
}

// ReservationDaySequence 按入住日期分配的预订编号计数器
type ReservationDaySequence struct {
	SeqDate   string    `gorm:"type:varchar(6);primaryKey" json:"seq_date"` // YYMMDD
	LastSeq   int       `gorm:"not null;default:0" json:"last_seq"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (ReservationDaySequence) TableName() string {
	return "reservation_day_sequences"
}
