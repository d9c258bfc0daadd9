package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"schoolhouse/api/internal/ids"
	"schoolhouse/api/internal/models"
)

func CreateUser(t testing.TB, db *gorm.DB, username string) models.User {
	t.Helper()
	user := models.User{
		ID:           ids.New(),
		Username:     username,
		Email:        username + "@example.test",
		PasswordHash: []byte("not-a-real-hash"),
		DisplayName:  username,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func CreateSchoolhouse(t testing.TB, db *gorm.DB, slug string, owner models.User) models.Schoolhouse {
	t.Helper()
	sh := models.Schoolhouse{
		ID:              ids.New(),
		Name:            slug,
		Slug:            slug,
		Subdomain:       slug,
		IsPublished:     true,
		CreatedByUserID: owner.ID,
	}
	require.NoError(t, db.Create(&sh).Error)
	AddStaff(t, db, sh.ID, owner.ID, models.StaffRoleOwner, true)
	return sh
}

func AddStaff(t testing.TB, db *gorm.DB, schoolhouseID, userID string, role models.StaffRole, active bool) models.StaffMembership {
	t.Helper()
	m := models.StaffMembership{
		ID:            ids.New(),
		SchoolhouseID: schoolhouseID,
		UserID:        userID,
		Role:          role,
		Active:        active,
	}
	require.NoError(t, db.Create(&m).Error)
	return m
}

func CreateInstructorProfile(t testing.TB, db *gorm.DB, user models.User) models.InstructorProfile {
	t.Helper()
	p := models.InstructorProfile{
		ID:          ids.New(),
		UserID:      user.ID,
		DisplayName: user.DisplayName,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func CreateMediaAsset(t testing.TB, db *gorm.DB, owner models.User) models.MediaAsset {
	t.Helper()
	a := models.MediaAsset{
		ID:            ids.New(),
		OwnerUserID:   owner.ID,
		MediaType:     models.MediaTypeImage,
		StoragePath:   owner.ID + "/" + ids.New() + ".png",
		FileName:      "photo.png",
		FileSizeBytes: 128,
		MimeType:      "image/png",
	}
	require.NoError(t, db.Create(&a).Error)
	return a
}

func CreateClass(t testing.TB, db *gorm.DB, schoolhouseID, slug string, startsAt time.Time, published bool) models.Class {
	t.Helper()
	c := models.Class{
		ID:            ids.New(),
		SchoolhouseID: schoolhouseID,
		Title:         slug,
		Slug:          slug,
		StartsAt:      startsAt,
		IsPublished:   published,
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func CountAudit(t testing.TB, db *gorm.DB, action string) int64 {
	t.Helper()
	var n int64
	q := db.Model(&models.AuditLogEntry{})
	if action != "" {
		q = q.Where("action = ?", action)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
