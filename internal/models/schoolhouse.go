package models

import "time"

type Schoolhouse struct {
	ID               string `gorm:"primaryKey;size:27"`
	Name             string `gorm:"size:200;not null"`
	Slug             string `gorm:"size:100;not null;uniqueIndex"`
	Subdomain        string `gorm:"size:100;not null;uniqueIndex"`
	Tagline          string `gorm:"size:300"`
	ShortDescription string `gorm:"size:1000"`
	LongDescription  string `gorm:"type:text"`
	LogoURL          string `gorm:"column:logo_url;size:500"`
	HeroImageURL     string `gorm:"column:hero_image_url;size:500"`
	ContactEmail     string `gorm:"size:255"`
	ContactPhone     string `gorm:"size:50"`
	AddressLine1     string `gorm:"column:address_line1;size:200"`
	AddressLine2     string `gorm:"column:address_line2;size:200"`
	City             string `gorm:"size:100"`
	State            string `gorm:"size:100"`
	PostalCode       string `gorm:"size:20"`
	Country          string `gorm:"size:100"`
	IsPublished      bool   `gorm:"not null;index"`
	CreatedByUserID  string `gorm:"size:27;not null;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Schoolhouse) TableName() string { return "schoolhouses" }

type InstructorProfile struct {
	ID                 string `gorm:"primaryKey;size:27"`
	UserID             string `gorm:"size:27;not null;uniqueIndex"`
	DisplayName        string `gorm:"size:200;not null"`
	Bio                string `gorm:"type:text"`
	PhotoURL           string `gorm:"column:photo_url;size:500"`
	PublicContactEmail string `gorm:"size:255"`
	PublicContactPhone string `gorm:"size:50"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (InstructorProfile) TableName() string { return "instructor_profiles" }

type Class struct {
	ID                string    `gorm:"primaryKey;size:27"`
	SchoolhouseID     string    `gorm:"size:27;not null;uniqueIndex:ux_class_schoolhouse_slug,priority:1"`
	Title             string    `gorm:"size:200;not null"`
	Slug              string    `gorm:"size:200;not null;uniqueIndex:ux_class_schoolhouse_slug,priority:2"`
	Summary           string    `gorm:"size:2000"`
	PricePerSeatCents int64     `gorm:"not null;default:0"`
	StartsAt          time.Time `gorm:"not null;index"`
	EndsAt            *time.Time
	IsPublished       bool `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Class) TableName() string { return "classes" }
