package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"schoolhouse/api/internal/models"
)

type MediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

func (r *MediaRepository) Create(ctx context.Context, asset *models.MediaAsset) error {
	if err := r.db.WithContext(ctx).Create(asset).Error; err != nil {
		return fmt.Errorf("create media asset: %w", translate(err))
	}
	return nil
}

func (r *MediaRepository) GetByID(ctx context.Context, id string) (models.MediaAsset, error) {
	var asset models.MediaAsset
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&asset).Error; err != nil {
		return models.MediaAsset{}, translate(err)
	}
	return asset, nil
}

func (r *MediaRepository) ListByOwner(ctx context.Context, ownerID string, page Page) ([]models.MediaAsset, error) {
	page = page.normalize()
	var rows []models.MediaAsset
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list media assets: %w", err)
	}
	return rows, nil
}

func (r *MediaRepository) GetByIDs(ctx context.Context, ids []string) (map[string]models.MediaAsset, error) {
	out := make(map[string]models.MediaAsset, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.MediaAsset
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load media assets: %w", err)
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// Delete removes the asset and all of its attachments.
func (r *MediaRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	for _, model := range []any{&models.SchoolhouseMedia{}, &models.InstructorMedia{}, &models.ClassMedia{}} {
		if err := db.Where("media_asset_id = ?", id).Delete(model).Error; err != nil {
			return fmt.Errorf("delete media attachments: %w", err)
		}
	}
	res := db.Where("id = ?", id).Delete(&models.MediaAsset{})
	if res.Error != nil {
		return fmt.Errorf("delete media asset: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MediaRepository) attached(ctx context.Context, model any, ownerColumn, ownerID, assetID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(model).
		Where(ownerColumn+" = ? AND media_asset_id = ?", ownerID, assetID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("count media attachments: %w", err)
	}
	return n > 0, nil
}

func (r *MediaRepository) SchoolhouseAttachmentExists(ctx context.Context, schoolhouseID, assetID string) (bool, error) {
	return r.attached(ctx, &models.SchoolhouseMedia{}, "schoolhouse_id", schoolhouseID, assetID)
}

func (r *MediaRepository) InstructorAttachmentExists(ctx context.Context, profileID, assetID string) (bool, error) {
	return r.attached(ctx, &models.InstructorMedia{}, "instructor_profile_id", profileID, assetID)
}

func (r *MediaRepository) ClassAttachmentExists(ctx context.Context, classID, assetID string) (bool, error) {
	return r.attached(ctx, &models.ClassMedia{}, "class_id", classID, assetID)
}

func (r *MediaRepository) AttachToSchoolhouse(ctx context.Context, row *models.SchoolhouseMedia) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("attach schoolhouse media: %w", translate(err))
	}
	return nil
}

func (r *MediaRepository) AttachToInstructor(ctx context.Context, row *models.InstructorMedia) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("attach instructor media: %w", translate(err))
	}
	return nil
}

func (r *MediaRepository) AttachToClass(ctx context.Context, row *models.ClassMedia) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("attach class media: %w", translate(err))
	}
	return nil
}

// DeleteSchoolhouseMediaOwnedBy detaches from the schoolhouse every asset
// owned by ownerID and returns how many attachments were removed.
func (r *MediaRepository) DeleteSchoolhouseMediaOwnedBy(ctx context.Context, schoolhouseID, ownerID string) (int64, error) {
	db := r.db.WithContext(ctx)
	owned := db.Session(&gorm.Session{NewDB: true}).Model(&models.MediaAsset{}).Select("id").Where("owner_user_id = ?", ownerID)

	res := db.Where("schoolhouse_id = ? AND media_asset_id IN (?)", schoolhouseID, owned).Delete(&models.SchoolhouseMedia{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete schoolhouse media: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *MediaRepository) SchoolhouseMedia(ctx context.Context, schoolhouseID string, publicOnly bool) ([]models.SchoolhouseMedia, error) {
	var rows []models.SchoolhouseMedia
	q := r.db.WithContext(ctx).Where("schoolhouse_id = ?", schoolhouseID)
	if publicOnly {
		q = q.Where("is_visible_on_public_site = ?", true)
	}
	if err := q.Order("sort_order ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list schoolhouse media: %w", err)
	}
	return rows, nil
}

// InstructorMediaFor loads attachments for several profiles. visibility
// selects the column that must be true; an empty string returns every row.
func (r *MediaRepository) InstructorMediaFor(ctx context.Context, profileIDs []string, visibility string) ([]models.InstructorMedia, error) {
	if len(profileIDs) == 0 {
		return nil, nil
	}
	var rows []models.InstructorMedia
	q := r.db.WithContext(ctx).Where("instructor_profile_id IN ?", profileIDs)
	if visibility != "" {
		q = q.Where(visibility+" = ?", true)
	}
	if err := q.Order("sort_order ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list instructor media: %w", err)
	}
	return rows, nil
}

func (r *MediaRepository) ClassMedia(ctx context.Context, classID string, publicOnly bool) ([]models.ClassMedia, error) {
	var rows []models.ClassMedia
	q := r.db.WithContext(ctx).Where("class_id = ?", classID)
	if publicOnly {
		q = q.Where("is_visible_to_public = ?", true)
	}
	if err := q.Order("sort_order ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list class media: %w", err)
	}
	return rows, nil
}

const (
	VisibleOnSchoolhousePage      = "is_visible_on_schoolhouse_page"
	VisibleOnPublicInstructorPage = "is_visible_on_public_instructor_page"
)
