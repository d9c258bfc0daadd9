package models

import "time"

type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeVideo    MediaType = "video"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeDocument MediaType = "document"
)

type MediaAsset struct {
	ID            string    `gorm:"primaryKey;size:27"`
	OwnerUserID   string    `gorm:"size:27;not null;index"`
	MediaType     MediaType `gorm:"size:50;not null"`
	StoragePath   string    `gorm:"size:500;not null"`
	FileName      string    `gorm:"size:255;not null"`
	FileSizeBytes int64     `gorm:"not null"`
	MimeType      string    `gorm:"size:255;not null"`
	Title         string    `gorm:"size:255"`
	Description   string    `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (MediaAsset) TableName() string { return "media_assets" }

type SchoolhouseMedia struct {
	ID                    string `gorm:"primaryKey;size:27"`
	SchoolhouseID         string `gorm:"size:27;not null;uniqueIndex:ux_schoolhouse_media,priority:1"`
	MediaAssetID          string `gorm:"size:27;not null;uniqueIndex:ux_schoolhouse_media,priority:2;index"`
	IsVisibleOnPublicSite bool   `gorm:"not null"`
	SortOrder             int    `gorm:"not null;default:0"`
	CreatedAt             time.Time
}

func (SchoolhouseMedia) TableName() string { return "schoolhouse_media" }

type InstructorMedia struct {
	ID                              string `gorm:"primaryKey;size:27"`
	InstructorProfileID             string `gorm:"size:27;not null;uniqueIndex:ux_instructor_media,priority:1"`
	MediaAssetID                    string `gorm:"size:27;not null;uniqueIndex:ux_instructor_media,priority:2;index"`
	IsVisibleOnSchoolhousePage      bool   `gorm:"not null"`
	IsVisibleOnPublicInstructorPage bool   `gorm:"not null"`
	SortOrder                       int    `gorm:"not null;default:0"`
	CreatedAt                       time.Time
}

func (InstructorMedia) TableName() string { return "instructor_media" }

type ClassMedia struct {
	ID                      string `gorm:"primaryKey;size:27"`
	ClassID                 string `gorm:"size:27;not null;uniqueIndex:ux_class_media,priority:1"`
	MediaAssetID            string `gorm:"size:27;not null;uniqueIndex:ux_class_media,priority:2;index"`
	IsVisibleToPublic       bool   `gorm:"not null"`
	IsVisibleToEnrolledOnly bool   `gorm:"not null"`
	SortOrder               int    `gorm:"not null;default:0"`
	CreatedAt               time.Time
}

func (ClassMedia) TableName() string { return "class_media" }

// All lists every table-backed model in dependency order.
func All() []any {
	return []any{
		&User{},
		&Role{},
		&UserRole{},
		&Schoolhouse{},
		&StaffMembership{},
		&AuditLogEntry{},
		&InstructorProfile{},
		&MediaAsset{},
		&SchoolhouseMedia{},
		&InstructorMedia{},
		&Class{},
		&ClassMedia{},
	}
}
