package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"schoolhouse/api/internal/models"
)

type ClassRepository struct {
	db *gorm.DB
}

func NewClassRepository(db *gorm.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

func (r *ClassRepository) Create(ctx context.Context, c *models.Class) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create class: %w", translate(err))
	}
	return nil
}

func (r *ClassRepository) GetByID(ctx context.Context, id string) (models.Class, error) {
	var c models.Class
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return models.Class{}, translate(err)
	}
	return c, nil
}

func (r *ClassRepository) SlugTaken(ctx context.Context, schoolhouseID, slug, excludeID string) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&models.Class{}).Where("schoolhouse_id = ? AND slug = ?", schoolhouseID, slug)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("count classes: %w", err)
	}
	return n > 0, nil
}

type ClassFilter struct {
	PublishedOnly bool
	StartingFrom  time.Time
}

func (r *ClassRepository) ListBySchoolhouse(ctx context.Context, schoolhouseID string, filter ClassFilter) ([]models.Class, error) {
	q := r.db.WithContext(ctx).Where("schoolhouse_id = ?", schoolhouseID)
	if filter.PublishedOnly {
		q = q.Where("is_published = ?", true)
	}
	if !filter.StartingFrom.IsZero() {
		q = q.Where("starts_at >= ?", filter.StartingFrom)
	}

	var rows []models.Class
	if err := q.Order("starts_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return rows, nil
}

func (r *ClassRepository) Update(ctx context.Context, c *models.Class) error {
	res := r.db.WithContext(ctx).Model(&models.Class{}).
		Where("id = ?", c.ID).
		Select("*").
		Omit("id", "schoolhouse_id", "created_at").
		Updates(c)
	if res.Error != nil {
		return fmt.Errorf("update class: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("class_id = ?", id).Delete(&models.ClassMedia{}).Error; err != nil {
		return fmt.Errorf("delete class media: %w", err)
	}
	res := db.Where("id = ?", id).Delete(&models.Class{})
	if res.Error != nil {
		return fmt.Errorf("delete class: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
