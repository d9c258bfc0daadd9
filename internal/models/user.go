package models

import "time"

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusSuspended, UserStatusBanned:
		return true
	}
	return false
}

// RoleAdmin is the global role that unlocks administrative endpoints.
const RoleAdmin = "Admin"

type User struct {
	ID           string     `gorm:"primaryKey;size:27"`
	Username     string     `gorm:"size:64;not null;uniqueIndex"`
	Email        string     `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash []byte     `gorm:"not null"`
	DisplayName  string     `gorm:"size:128;not null;default:''"`
	Status       UserStatus `gorm:"size:16;not null;default:active;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "users" }

type Role struct {
	ID          string  `gorm:"primaryKey;size:27"`
	Name        string  `gorm:"size:64;not null;uniqueIndex"`
	Description *string `gorm:"size:512"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Role) TableName() string { return "roles" }

type UserRole struct {
	UserID    string `gorm:"primaryKey;size:27"`
	RoleID    string `gorm:"primaryKey;size:27;index"`
	GrantedBy string `gorm:"size:27;not null"`
	GrantedAt time.Time
}

func (UserRole) TableName() string { return "user_roles" }

type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash []byte
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
}
