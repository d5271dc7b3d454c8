// Package models 定义数据库模型
package models

import (
	"time"
)

// Room 客房
type Room struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomNumber  string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"room_number"`
	Name        string     `gorm:"type:varchar(100);not null" json:"name"`
	RoomType    string     `gorm:"type:varchar(20);not null;default:'room'" json:"room_type"`
	Rate        float64    `gorm:"type:decimal(10,2);not null" json:"rate"`
	MaxGuests   int        `gorm:"not null;default:2" json:"max_guests"`
	Amenities   StringList `gorm:"type:jsonb" json:"amenities"`
	Description string     `gorm:"type:text" json:"description"`
	Status      string     `gorm:"type:varchar(20);not null;default:'available';index" json:"status"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Room) TableName() string {
	return "rooms"
}

// RoomType 房型
const (
	RoomTypeRoom  = "room"
	RoomTypeSuite = "suite"
)

// RoomStatus 房态；只有 maintenance 影响可订性
const (
	RoomStatusAvailable   = "available"
	RoomStatusOccupied    = "occupied"
	RoomStatusCleaning    = "cleaning"
	RoomStatusMaintenance = "maintenance"
)

// ValidRoomStatus 判断房态是否合法
func ValidRoomStatus(s string) bool {
	switch s {
	case RoomStatusAvailable, RoomStatusOccupied, RoomStatusCleaning, RoomStatusMaintenance:
		return true
	}
	return false
}

// ValidRoomType 判断房型是否合法
func ValidRoomType(t string) bool {
	return t == RoomTypeRoom || t == RoomTypeSuite
}

// Guest 客人，email 为自然键
type Guest struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FirstName string    `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName  string    `gorm:"type:varchar(100);not null" json:"last_name"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone     string    `gorm:"type:varchar(40)" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	IDType    string    `gorm:"type:varchar(40)" json:"id_type"`
	IDNumber  string    `gorm:"type:varchar(255)" json:"id_number"`
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Guest) TableName() string {
	return "guests"
}

// FullName 姓名
func (g *Guest) FullName() string {
	if g.LastName == "" {
		return g.FirstName
	}
	return g.FirstName + " " + g.LastName
}
