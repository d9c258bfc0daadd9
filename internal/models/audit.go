package models

import "time"

// AuditLogEntry rows are written once and never updated. Role and user
// references are weak: the row keeps the id and name after the target is gone.
type AuditLogEntry struct {
	ID                string    `gorm:"primaryKey;size:27"`
	Action            string    `gorm:"size:64;not null;index"`
	RoleID            *string   `gorm:"size:27"`
	RoleName          string    `gorm:"size:64;not null;default:''"`
	TargetUserID      *string   `gorm:"size:27;index"`
	SchoolhouseID     *string   `gorm:"size:27;index"`
	PerformedByUserID string    `gorm:"size:27;not null;index"`
	Details           string    `gorm:"size:1024;not null;default:''"`
	CreatedAt         time.Time `gorm:"index"`
}

func (AuditLogEntry) TableName() string { return "audit_log" }
