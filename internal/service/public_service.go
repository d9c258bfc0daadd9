package service

import (
	"context"
	"strings"
	"time"

	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/repository"
)

// PublicService serves the unauthenticated site of a schoolhouse. It only
// reads, and only what is published or flagged visible.
type PublicService struct {
	store *repository.Store
	now   func() time.Time
}

func NewPublicService(store *repository.Store) *PublicService {
	return &PublicService{store: store, now: time.Now}
}

type PublicMedia struct {
	AttachmentID string
	SortOrder    int
	Asset        models.MediaAsset
}

type PublicInstructor struct {
	Profile models.InstructorProfile
	Media   []PublicMedia
}

type PublicIndex struct {
	Schoolhouse models.Schoolhouse
	Media       []PublicMedia
	Instructors []PublicInstructor
	Classes     []models.Class
}

type PublicAbout struct {
	SchoolhouseID   string
	LongDescription string
	Media           []PublicMedia
}

// Resolve finds the schoolhouse named by slug. Without a slug the first
// schoolhouse is used so single-tenant deployments need no hint.
func (s *PublicService) Resolve(ctx context.Context, slug string) (models.Schoolhouse, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	var (
		sh  models.Schoolhouse
		err error
	)
	if slug == "" {
		sh, err = s.store.Schoolhouses.First(ctx)
	} else {
		sh, err = s.store.Schoolhouses.GetBySlug(ctx, slug)
	}
	if err != nil {
		return models.Schoolhouse{}, notFound(err, ErrSchoolhouseNotFound)
	}
	return sh, nil
}

func (s *PublicService) Index(ctx context.Context, slug string) (PublicIndex, error) {
	sh, err := s.Resolve(ctx, slug)
	if err != nil {
		return PublicIndex{}, err
	}
	media, err := s.schoolhouseMedia(ctx, sh.ID)
	if err != nil {
		return PublicIndex{}, err
	}
	instructors, err := s.instructors(ctx, sh.ID, repository.VisibleOnSchoolhousePage)
	if err != nil {
		return PublicIndex{}, err
	}
	classes, err := s.store.Classes.ListBySchoolhouse(ctx, sh.ID, repository.ClassFilter{
		PublishedOnly: true,
		StartingFrom:  s.now().UTC(),
	})
	if err != nil {
		return PublicIndex{}, err
	}
	return PublicIndex{Schoolhouse: sh, Media: media, Instructors: instructors, Classes: classes}, nil
}

func (s *PublicService) Instructors(ctx context.Context, slug string) ([]PublicInstructor, error) {
	sh, err := s.Resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.instructors(ctx, sh.ID, repository.VisibleOnPublicInstructorPage)
}

func (s *PublicService) Classes(ctx context.Context, slug string, futureOnly bool) ([]models.Class, error) {
	sh, err := s.Resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	filter := repository.ClassFilter{PublishedOnly: true}
	if futureOnly {
		filter.StartingFrom = s.now().UTC()
	}
	return s.store.Classes.ListBySchoolhouse(ctx, sh.ID, filter)
}

func (s *PublicService) About(ctx context.Context, slug string) (PublicAbout, error) {
	sh, err := s.Resolve(ctx, slug)
	if err != nil {
		return PublicAbout{}, err
	}
	media, err := s.schoolhouseMedia(ctx, sh.ID)
	if err != nil {
		return PublicAbout{}, err
	}
	return PublicAbout{SchoolhouseID: sh.ID, LongDescription: sh.LongDescription, Media: media}, nil
}

func (s *PublicService) schoolhouseMedia(ctx context.Context, schoolhouseID string) ([]PublicMedia, error) {
	rows, err := s.store.Media.SchoolhouseMedia(ctx, schoolhouseID, true)
	if err != nil {
		return nil, err
	}
	assetIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		assetIDs = append(assetIDs, row.MediaAssetID)
	}
	assets, err := s.store.Media.GetByIDs(ctx, assetIDs)
	if err != nil {
		return nil, err
	}

	out := make([]PublicMedia, 0, len(rows))
	for _, row := range rows {
		if asset, ok := assets[row.MediaAssetID]; ok {
			out = append(out, PublicMedia{AttachmentID: row.ID, SortOrder: row.SortOrder, Asset: asset})
		}
	}
	return out, nil
}

// instructors lists active instructors of the schoolhouse that have a
// profile, each with the media flagged by visibility.
func (s *PublicService) instructors(ctx context.Context, schoolhouseID, visibility string) ([]PublicInstructor, error) {
	userIDs, err := s.store.Staff.ActiveInstructorIDs(ctx, schoolhouseID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.store.Instructors.ListByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	profileIDs := make([]string, 0, len(profiles))
	for _, p := range profiles {
		profileIDs = append(profileIDs, p.ID)
	}
	rows, err := s.store.Media.InstructorMediaFor(ctx, profileIDs, visibility)
	if err != nil {
		return nil, err
	}
	assetIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		assetIDs = append(assetIDs, row.MediaAssetID)
	}
	assets, err := s.store.Media.GetByIDs(ctx, assetIDs)
	if err != nil {
		return nil, err
	}

	byProfile := make(map[string][]PublicMedia, len(profiles))
	for _, row := range rows {
		asset, ok := assets[row.MediaAssetID]
		if !ok {
			continue
		}
		byProfile[row.InstructorProfileID] = append(byProfile[row.InstructorProfileID],
			PublicMedia{AttachmentID: row.ID, SortOrder: row.SortOrder, Asset: asset})
	}

	out := make([]PublicInstructor, 0, len(profiles))
	for _, p := range profiles {
		media := byProfile[p.ID]
		if media == nil {
			media = []PublicMedia{}
		}
		out = append(out, PublicInstructor{Profile: p, Media: media})
	}
	return out, nil
}
