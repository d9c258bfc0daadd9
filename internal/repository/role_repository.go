package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"schoolhouse/api/internal/models"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) Create(ctx context.Context, role *models.Role) error {
	if err := r.db.WithContext(ctx).Create(role).Error; err != nil {
		return fmt.Errorf("create role: %w", translate(err))
	}
	return nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id string) (models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&role).Error; err != nil {
		return models.Role{}, translate(err)
	}
	return role, nil
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).Where("name = ?", name).Take(&role).Error; err != nil {
		return models.Role{}, translate(err)
	}
	return role, nil
}

func (r *RoleRepository) NameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&models.Role{}).Where("name = ?", name)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("count roles: %w", err)
	}
	return n > 0, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

func (r *RoleRepository) Update(ctx context.Context, role *models.Role) error {
	res := r.db.WithContext(ctx).Model(&models.Role{}).
		Where("id = ?", role.ID).
		Updates(map[string]any{
			"name":        role.Name,
			"description": role.Description,
			"updated_at":  role.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update role: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the role and every assignment of it.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("role_id = ?", id).Delete(&models.UserRole{}).Error; err != nil {
		return fmt.Errorf("delete role assignments: %w", err)
	}
	res := db.Where("id = ?", id).Delete(&models.Role{})
	if res.Error != nil {
		return fmt.Errorf("delete role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RoleRepository) HasAssignment(ctx context.Context, userID, roleID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("count assignments: %w", err)
	}
	return n > 0, nil
}

func (r *RoleRepository) Assign(ctx context.Context, assignment *models.UserRole) error {
	if err := r.db.WithContext(ctx).Create(assignment).Error; err != nil {
		return fmt.Errorf("assign role: %w", translate(err))
	}
	return nil
}

func (r *RoleRepository) Unassign(ctx context.Context, userID, roleID string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&models.UserRole{})
	if res.Error != nil {
		return fmt.Errorf("unassign role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RoleRepository) NamesForUser(ctx context.Context, userID string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table("roles").
		Select("roles.name").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name ASC").
		Pluck("roles.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	return names, nil
}

func (r *RoleRepository) Members(ctx context.Context, roleID string) ([]models.UserRole, error) {
	var rows []models.UserRole
	if err := r.db.WithContext(ctx).Where("role_id = ?", roleID).Order("granted_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list role members: %w", err)
	}
	return rows, nil
}
