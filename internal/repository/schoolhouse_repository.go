package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"schoolhouse/api/internal/models"
)

type SchoolhouseRepository struct {
	db *gorm.DB
}

func NewSchoolhouseRepository(db *gorm.DB) *SchoolhouseRepository {
	return &SchoolhouseRepository{db: db}
}

func (r *SchoolhouseRepository) Create(ctx context.Context, sh *models.Schoolhouse) error {
	if err := r.db.WithContext(ctx).Create(sh).Error; err != nil {
		return fmt.Errorf("create schoolhouse: %w", translate(err))
	}
	return nil
}

func (r *SchoolhouseRepository) GetByID(ctx context.Context, id string) (models.Schoolhouse, error) {
	var sh models.Schoolhouse
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&sh).Error; err != nil {
		return models.Schoolhouse{}, translate(err)
	}
	return sh, nil
}

func (r *SchoolhouseRepository) GetBySlug(ctx context.Context, slug string) (models.Schoolhouse, error) {
	var sh models.Schoolhouse
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).Take(&sh).Error; err != nil {
		return models.Schoolhouse{}, translate(err)
	}
	return sh, nil
}

// First returns the schoolhouse that sorts first by name. It backs requests
// that arrive without any schoolhouse hint.
func (r *SchoolhouseRepository) First(ctx context.Context) (models.Schoolhouse, error) {
	var sh models.Schoolhouse
	if err := r.db.WithContext(ctx).Order("name ASC, id ASC").Take(&sh).Error; err != nil {
		return models.Schoolhouse{}, translate(err)
	}
	return sh, nil
}

func (r *SchoolhouseRepository) SlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	return r.taken(ctx, "slug", slug, excludeID)
}

func (r *SchoolhouseRepository) SubdomainTaken(ctx context.Context, subdomain, excludeID string) (bool, error) {
	return r.taken(ctx, "subdomain", subdomain, excludeID)
}

func (r *SchoolhouseRepository) taken(ctx context.Context, column, value, excludeID string) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&models.Schoolhouse{}).Where(column+" = ?", value)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("count schoolhouses by %s: %w", column, err)
	}
	return n > 0, nil
}

func (r *SchoolhouseRepository) List(ctx context.Context, publishedOnly bool, page Page) ([]models.Schoolhouse, int64, error) {
	scope := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Schoolhouse{})
		if publishedOnly {
			q = q.Where("is_published = ?", true)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count schoolhouses: %w", err)
	}

	page = page.normalize()
	var rows []models.Schoolhouse
	if err := scope().Order("name ASC, id ASC").Limit(page.Limit).Offset(page.Offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list schoolhouses: %w", err)
	}
	return rows, total, nil
}

func (r *SchoolhouseRepository) Update(ctx context.Context, sh *models.Schoolhouse) error {
	res := r.db.WithContext(ctx).Model(&models.Schoolhouse{}).
		Where("id = ?", sh.ID).
		Select("*").
		Omit("id", "created_by_user_id", "created_at").
		Updates(sh)
	if res.Error != nil {
		return fmt.Errorf("update schoolhouse: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the schoolhouse and every row that hangs off it.
func (r *SchoolhouseRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)

	classIDs := db.Session(&gorm.Session{NewDB: true}).Model(&models.Class{}).Select("id").Where("schoolhouse_id = ?", id)
	if err := db.Where("class_id IN (?)", classIDs).Delete(&models.ClassMedia{}).Error; err != nil {
		return fmt.Errorf("delete class media: %w", err)
	}
	for _, model := range []any{&models.Class{}, &models.SchoolhouseMedia{}, &models.StaffMembership{}} {
		if err := db.Where("schoolhouse_id = ?", id).Delete(model).Error; err != nil {
			return fmt.Errorf("delete schoolhouse children: %w", err)
		}
	}

	res := db.Where("id = ?", id).Delete(&models.Schoolhouse{})
	if res.Error != nil {
		return fmt.Errorf("delete schoolhouse: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
