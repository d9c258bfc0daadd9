package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"schoolhouse/api/internal/models"
)

type InstructorRepository struct {
	db *gorm.DB
}

func NewInstructorRepository(db *gorm.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

func (r *InstructorRepository) GetByID(ctx context.Context, id string) (models.InstructorProfile, error) {
	var p models.InstructorProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error; err != nil {
		return models.InstructorProfile{}, translate(err)
	}
	return p, nil
}

func (r *InstructorRepository) GetByUserID(ctx context.Context, userID string) (models.InstructorProfile, error) {
	var p models.InstructorProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&p).Error; err != nil {
		return models.InstructorProfile{}, translate(err)
	}
	return p, nil
}

func (r *InstructorRepository) ExistsForUser(ctx context.Context, userID string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.InstructorProfile{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count instructor profiles: %w", err)
	}
	return n > 0, nil
}

func (r *InstructorRepository) Create(ctx context.Context, p *models.InstructorProfile) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create instructor profile: %w", translate(err))
	}
	return nil
}

func (r *InstructorRepository) Update(ctx context.Context, p *models.InstructorProfile) error {
	res := r.db.WithContext(ctx).Model(&models.InstructorProfile{}).
		Where("id = ?", p.ID).
		Select("*").
		Omit("id", "user_id", "created_at").
		Updates(p)
	if res.Error != nil {
		return fmt.Errorf("update instructor profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *InstructorRepository) ListByUserIDs(ctx context.Context, userIDs []string) ([]models.InstructorProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []models.InstructorProfile
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Order("display_name ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list instructor profiles: %w", err)
	}
	return rows, nil
}
