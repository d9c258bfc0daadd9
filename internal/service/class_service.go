package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"schoolhouse/api/internal/audit"
	"schoolhouse/api/internal/ids"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/policy"
	"schoolhouse/api/internal/repository"
)

type ClassService struct {
	base
	log zerolog.Logger
}

func NewClassService(store *repository.Store, log zerolog.Logger) *ClassService {
	return &ClassService{
		base: newBase(store),
		log:  log.With().Str("component", "classes").Logger(),
	}
}

type ClassInput struct {
	Title             string
	Slug              string
	Summary           string
	PricePerSeatCents int64
	StartsAt          time.Time
	EndsAt            *time.Time
	IsPublished       bool
}

func (in *ClassInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))

	if in.Title == "" || len(in.Title) > 200 {
		return Validation("title must be 1-200 characters")
	}
	if err := validateSlug("slug", in.Slug, 200); err != nil {
		return err
	}
	if len(in.Summary) > 2000 {
		return Validation("summary must be at most 2000 characters")
	}
	if in.PricePerSeatCents < 0 {
		return Validation("price per seat must not be negative")
	}
	if in.StartsAt.IsZero() {
		return Validation("start time is required")
	}
	in.StartsAt = in.StartsAt.UTC()
	if in.EndsAt != nil {
		end := in.EndsAt.UTC()
		if end.Before(in.StartsAt) {
			return Validation("end time must not be before start time")
		}
		in.EndsAt = &end
	}
	return nil
}

func (in ClassInput) apply(c *models.Class) {
	c.Title = in.Title
	c.Slug = in.Slug
	c.Summary = in.Summary
	c.PricePerSeatCents = in.PricePerSeatCents
	c.StartsAt = in.StartsAt
	c.EndsAt = in.EndsAt
	c.IsPublished = in.IsPublished
}

// ListClasses returns every class of the schoolhouse, published or not, to
// its managers.
func (s *ClassService) ListClasses(ctx context.Context, schoolhouseID, actorID string) ([]models.Class, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if err := authorized(policy.New(s.store.Staff).CanManageStaff(ctx, schoolhouseID, actorID)); err != nil {
		return nil, err
	}
	return s.store.Classes.ListBySchoolhouse(ctx, schoolhouseID, repository.ClassFilter{})
}

func (s *ClassService) CreateClass(ctx context.Context, schoolhouseID string, in ClassInput, actorID string) (models.Class, error) {
	if err := requireActor(actorID); err != nil {
		return models.Class{}, err
	}
	if err := requireID("schoolhouse id", schoolhouseID); err != nil {
		return models.Class{}, err
	}
	if err := in.normalize(); err != nil {
		return models.Class{}, err
	}

	now := s.now()
	class := models.Class{ID: ids.New(), SchoolhouseID: schoolhouseID, CreatedAt: now, UpdatedAt: now}
	in.apply(&class)

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := authorized(policy.New(tx.Staff).CanManageStaff(ctx, schoolhouseID, actorID)); err != nil {
			return err
		}
		if _, err := tx.Schoolhouses.GetByID(ctx, schoolhouseID); err != nil {
			return notFound(err, ErrSchoolhouseNotFound)
		}
		taken, err := tx.Classes.SlugTaken(ctx, schoolhouseID, class.Slug, "")
		if err != nil {
			return err
		}
		if taken {
			return ErrClassSlugTaken
		}
		if err := tx.Classes.Create(ctx, &class); err != nil {
			return conflictOn(err, ErrClassSlugTaken)
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:        audit.ActionCreateClass,
			ActorID:       actorID,
			SchoolhouseID: schoolhouseID,
			Details:       class.ID,
		})
	})
	if err != nil {
		return models.Class{}, err
	}
	return class, nil
}

// UpdateClass loads the class first because its schoolhouse decides who may
// change it.
func (s *ClassService) UpdateClass(ctx context.Context, id string, in ClassInput, actorID string) (models.Class, error) {
	if err := requireActor(actorID); err != nil {
		return models.Class{}, err
	}
	if err := requireID("class id", id); err != nil {
		return models.Class{}, err
	}
	if err := in.normalize(); err != nil {
		return models.Class{}, err
	}

	var class models.Class
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		class, err = tx.Classes.GetByID(ctx, id)
		if err != nil {
			return notFound(err, ErrClassNotFound)
		}
		if err := authorized(policy.New(tx.Staff).CanManageStaff(ctx, class.SchoolhouseID, actorID)); err != nil {
			return err
		}
		taken, err := tx.Classes.SlugTaken(ctx, class.SchoolhouseID, in.Slug, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrClassSlugTaken
		}

		in.apply(&class)
		class.UpdatedAt = s.now()
		if err := tx.Classes.Update(ctx, &class); err != nil {
			return conflictOn(notFound(err, ErrClassNotFound), ErrClassSlugTaken)
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:        audit.ActionUpdateClass,
			ActorID:       actorID,
			SchoolhouseID: class.SchoolhouseID,
			Details:       class.ID,
		})
	})
	if err != nil {
		return models.Class{}, err
	}
	return class, nil
}

func (s *ClassService) DeleteClass(ctx context.Context, id, actorID string) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	if err := requireID("class id", id); err != nil {
		return err
	}

	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		class, err := tx.Classes.GetByID(ctx, id)
		if err != nil {
			return notFound(err, ErrClassNotFound)
		}
		if err := authorized(policy.New(tx.Staff).CanManageStaff(ctx, class.SchoolhouseID, actorID)); err != nil {
			return err
		}
		if err := tx.Classes.Delete(ctx, id); err != nil {
			return notFound(err, ErrClassNotFound)
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:        audit.ActionDeleteClass,
			ActorID:       actorID,
			SchoolhouseID: class.SchoolhouseID,
			Details:       class.ID,
		})
	})
}
