package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schoolhouse/api/internal/ids"
	"schoolhouse/api/internal/models"
)

type StaffRepository struct {
	db *gorm.DB
}

func NewStaffRepository(db *gorm.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// FindActive returns the active membership for the pair or ErrNotFound.
func (r *StaffRepository) FindActive(ctx context.Context, schoolhouseID, userID string) (models.StaffMembership, error) {
	var m models.StaffMembership
	err := r.db.WithContext(ctx).
		Where("schoolhouse_id = ? AND user_id = ? AND active = ?", schoolhouseID, userID, true).
		Take(&m).Error
	if err != nil {
		return models.StaffMembership{}, translate(err)
	}
	return m, nil
}

// Find returns the membership row for the pair whether or not it is active,
// locking it for the rest of the transaction.
func (r *StaffRepository) Find(ctx context.Context, schoolhouseID, userID string) (models.StaffMembership, error) {
	var m models.StaffMembership
	err := forUpdate(r.db.WithContext(ctx)).
		Where("schoolhouse_id = ? AND user_id = ?", schoolhouseID, userID).
		Take(&m).Error
	if err != nil {
		return models.StaffMembership{}, translate(err)
	}
	return m, nil
}

// Upsert sets the pair to role and reactivates it. An existing row is
// updated in place, so repeated calls leave a single row.
func (r *StaffRepository) Upsert(ctx context.Context, schoolhouseID, userID string, role models.StaffRole, at time.Time) (models.StaffMembership, error) {
	row := models.StaffMembership{
		ID:            ids.New(),
		SchoolhouseID: schoolhouseID,
		UserID:        userID,
		Role:          role,
		Active:        true,
		CreatedAt:     at,
		UpdatedAt:     at,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "schoolhouse_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"role":       role,
			"active":     true,
			"updated_at": at,
		}),
	}).Create(&row).Error
	if err != nil {
		return models.StaffMembership{}, fmt.Errorf("upsert staff: %w", translate(err))
	}

	return r.Find(ctx, schoolhouseID, userID)
}

func (r *StaffRepository) Deactivate(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.StaffMembership{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": false, "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("deactivate staff: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *StaffRepository) ListBySchoolhouse(ctx context.Context, schoolhouseID string, activeOnly bool) ([]models.StaffMembership, error) {
	var rows []models.StaffMembership
	q := r.db.WithContext(ctx).Where("schoolhouse_id = ?", schoolhouseID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return rows, nil
}

// ActiveInstructorIDs lists users holding an active Instructor membership.
func (r *StaffRepository) ActiveInstructorIDs(ctx context.Context, schoolhouseID string) ([]string, error) {
	var userIDs []string
	err := r.db.WithContext(ctx).Model(&models.StaffMembership{}).
		Where("schoolhouse_id = ? AND role = ? AND active = ?", schoolhouseID, models.StaffRoleInstructor, true).
		Order("created_at ASC").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	return userIDs, nil
}

func (r *StaffRepository) DeleteBySchoolhouse(ctx context.Context, schoolhouseID string) error {
	if err := r.db.WithContext(ctx).Where("schoolhouse_id = ?", schoolhouseID).Delete(&models.StaffMembership{}).Error; err != nil {
		return fmt.Errorf("delete staff: %w", err)
	}
	return nil
}
