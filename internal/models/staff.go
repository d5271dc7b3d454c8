package models

import (
	"time"
)

// Staff 员工账号
type Staff struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Name         string     `gorm:"type:varchar(100);not null" json:"name"`
	Role         string     `gorm:"type:varchar(20);not null;default:'front_desk'" json:"role"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP  *string    `gorm:"type:varchar(45)" json:"last_login_ip,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Staff) TableName() string {
	return "staff"
}

// StaffRole 员工角色
const (
	StaffRoleAdmin     = "admin"
	StaffRoleManager   = "manager"
	StaffRoleFrontDesk = "front_desk"
)

// ValidStaffRole 判断角色是否合法
func ValidStaffRole(r string) bool {
	return r == StaffRoleAdmin || r == StaffRoleManager || r == StaffRoleFrontDesk
}

// StaffActivityLog 员工写操作审计日志
type StaffActivityLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	StaffID    int64     `gorm:"index;not null" json:"staff_id"`
	Module     string    `gorm:"type:varchar(50);not null" json:"module"`
	Action     string    `gorm:"type:varchar(50);not null" json:"action"`
	TargetType *string   `gorm:"type:varchar(50)" json:"target_type,omitempty"`
	TargetID   *string   `gorm:"type:varchar(50)" json:"target_id,omitempty"`
	Method     string    `gorm:"type:varchar(10);not null" json:"method"`
	Path       string    `gorm:"type:varchar(255);not null" json:"path"`
	StatusCode int       `gorm:"not null" json:"status_code"`
	Payload    JSONMap   `gorm:"type:jsonb" json:"payload,omitempty"`
	IP         *string   `gorm:"type:varchar(45)" json:"ip,omitempty"`
	UserAgent  *string   `gorm:"type:varchar(255)" json:"user_agent,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// 关联
	Staff *Staff `gorm:"foreignKey:StaffID" json:"staff,omitempty"`
}

// TableName 表名
func (StaffActivityLog) TableName() string {
	return "staff_activity_logs"
}
