package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"schoolhouse/api/internal/models"
)

// AuditRepository only appends and reads; audit rows are never changed.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

type AuditFilter struct {
	Action        string
	PerformedBy   string
	TargetUserID  string
	RoleID        string
	SchoolhouseID string
	Since         time.Time
	Until         time.Time
	Page          Page
}

func (r *AuditRepository) List(ctx context.Context, filter AuditFilter) ([]models.AuditLogEntry, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	page := filter.Page.normalize()
	var entries []models.AuditLogEntry
	err := r.filtered(ctx, filter).
		Order("created_at DESC, id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, total, nil
}

func (r *AuditRepository) filtered(ctx context.Context, filter AuditFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.AuditLogEntry{})
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.PerformedBy != "" {
		q = q.Where("performed_by_user_id = ?", filter.PerformedBy)
	}
	if filter.TargetUserID != "" {
		q = q.Where("target_user_id = ?", filter.TargetUserID)
	}
	if filter.RoleID != "" {
		q = q.Where("role_id = ?", filter.RoleID)
	}
	if filter.SchoolhouseID != "" {
		q = q.Where("schoolhouse_id = ?", filter.SchoolhouseID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at < ?", filter.Until)
	}
	return q
}

func (r *AuditRepository) Get(ctx context.Context, id string) (models.AuditLogEntry, error) {
	var entry models.AuditLogEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&entry).Error; err != nil {
		return models.AuditLogEntry{}, translate(err)
	}
	return entry, nil
}
