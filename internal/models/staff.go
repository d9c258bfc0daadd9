package models

import "time"

// StaffRole is a role held inside a single schoolhouse. It is unrelated to
// the global Role table.
type StaffRole string

const (
	StaffRoleOwner      StaffRole = "Owner"
	StaffRoleAdmin      StaffRole = "Admin"
	StaffRoleInstructor StaffRole = "Instructor"
)

func (r StaffRole) Valid() bool {
	switch r {
	case StaffRoleOwner, StaffRoleAdmin, StaffRoleInstructor:
		return true
	}
	return false
}

// CanManage reports whether the role may manage staff and media.
func (r StaffRole) CanManage() bool {
	return r == StaffRoleOwner || r == StaffRoleAdmin
}

type StaffMembership struct {
	ID            string    `gorm:"primaryKey;size:27"`
	SchoolhouseID string    `gorm:"size:27;not null;uniqueIndex:ux_staff_schoolhouse_user,priority:1"`
	UserID        string    `gorm:"size:27;not null;uniqueIndex:ux_staff_schoolhouse_user,priority:2;index"`
	Role          StaffRole `gorm:"size:16;not null"`
	Active        bool      `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (StaffMembership) TableName() string { return "schoolhouse_staff" }
