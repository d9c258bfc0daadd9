package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"schoolhouse/api/internal/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return models.User{}, translate(err)
	}
	return user, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	username = strings.ToLower(strings.TrimSpace(username))
	if err := r.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		return models.User{}, translate(err)
	}
	return user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).Take(&user).Error; err != nil {
		return models.User{}, translate(err)
	}
	return user, nil
}

// FindByLogin matches either the username or the email address.
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (models.User, error) {
	var user models.User
	login = strings.ToLower(strings.TrimSpace(login))
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, login).
		Take(&user).Error
	if err != nil {
		return models.User{}, translate(err)
	}
	return user, nil
}

func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count user: %w", err)
	}
	return n > 0, nil
}

// UsernameOrEmailTaken reports collisions, ignoring the row excludeID.
func (r *UserRepository) UsernameOrEmailTaken(ctx context.Context, username, email, excludeID string) (usernameTaken, emailTaken bool, err error) {
	var rows []models.User
	username, email = strings.ToLower(username), strings.ToLower(email)
	q := r.db.WithContext(ctx).Select("id", "username", "email").
		Where("username = ? OR email = ?", username, email)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return false, false, fmt.Errorf("check user uniqueness: %w", err)
	}
	for _, u := range rows {
		if u.Username == username {
			usernameTaken = true
		}
		if u.Email == email {
			emailTaken = true
		}
	}
	return usernameTaken, emailTaken, nil
}

func (r *UserRepository) List(ctx context.Context, page Page) ([]models.User, int64, error) {
	page = page.normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"username":     user.Username,
			"email":        strings.ToLower(user.Email),
			"display_name": user.DisplayName,
			"updated_at":   user.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update user: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, hash []byte, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash, "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("update user status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Lock re-reads the user row under a row lock for the rest of the transaction.
func (r *UserRepository) Lock(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).Take(&user).Error; err != nil {
		return models.User{}, translate(err)
	}
	return user, nil
}

// References counts rows that block a hard delete of the user.
func (r *UserRepository) References(ctx context.Context, id string) (int64, error) {
	var total int64
	for _, model := range []struct {
		table  any
		column string
	}{
		{&models.Schoolhouse{}, "created_by_user_id"},
		{&models.InstructorProfile{}, "user_id"},
		{&models.MediaAsset{}, "owner_user_id"},
	} {
		var n int64
		if err := r.db.WithContext(ctx).Model(model.table).Where(model.column+" = ?", id).Count(&n).Error; err != nil {
			return 0, fmt.Errorf("count user references: %w", err)
		}
		total += n
	}
	return total, nil
}

// Delete removes the user together with its role assignments and staff rows.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("user_id = ?", id).Delete(&models.UserRole{}).Error; err != nil {
		return fmt.Errorf("delete user roles: %w", err)
	}
	if err := db.Where("user_id = ?", id).Delete(&models.StaffMembership{}).Error; err != nil {
		return fmt.Errorf("delete user staff rows: %w", err)
	}
	res := db.Where("id = ?", id).Delete(&models.User{})
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
