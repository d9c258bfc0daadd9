package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"schoolhouse/api/internal/audit"
	"schoolhouse/api/internal/ids"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/policy"
	"schoolhouse/api/internal/repository"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type SchoolhouseService struct {
	base
	log zerolog.Logger
}

func NewSchoolhouseService(store *repository.Store, log zerolog.Logger) *SchoolhouseService {
	return &SchoolhouseService{
		base: newBase(store),
		log:  log.With().Str("component", "schoolhouses").Logger(),
	}
}

type SchoolhouseInput struct {
	Name             string
	Slug             string
	Subdomain        string
	Tagline          string
	ShortDescription string
	LongDescription  string
	LogoURL          string
	HeroImageURL     string
	ContactEmail     string
	ContactPhone     string
	AddressLine1     string
	AddressLine2     string
	City             string
	State            string
	PostalCode       string
	Country          string
	IsPublished      bool
}

func (in *SchoolhouseInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	in.Subdomain = strings.ToLower(strings.TrimSpace(in.Subdomain))
	in.ContactEmail = strings.ToLower(strings.TrimSpace(in.ContactEmail))

	if in.Name == "" || len(in.Name) > 200 {
		return Validation("name must be 1-200 characters")
	}
	if err := validateSlug("slug", in.Slug, 100); err != nil {
		return err
	}
	if in.Subdomain == "" {
		in.Subdomain = in.Slug
	}
	if err := validateSlug("subdomain", in.Subdomain, 100); err != nil {
		return err
	}
	if in.ContactEmail != "" {
		if _, err := mail.ParseAddress(in.ContactEmail); err != nil {
			return Validation("contact email is not a valid address")
		}
	}
	return nil
}

func validateSlug(name, value string, max int) error {
	if value == "" || len(value) > max || !slugPattern.MatchString(value) {
		return Validation("%s must be lowercase letters, digits and single dashes (max %d)", name, max)
	}
	return nil
}

func (in SchoolhouseInput) apply(sh *models.Schoolhouse) {
	sh.Name = in.Name
	sh.Slug = in.Slug
	sh.Subdomain = in.Subdomain
	sh.Tagline = in.Tagline
	sh.ShortDescription = in.ShortDescription
	sh.LongDescription = in.LongDescription
	sh.LogoURL = in.LogoURL
	sh.HeroImageURL = in.HeroImageURL
	sh.ContactEmail = in.ContactEmail
	sh.ContactPhone = in.ContactPhone
	sh.AddressLine1 = in.AddressLine1
	sh.AddressLine2 = in.AddressLine2
	sh.City = in.City
	sh.State = in.State
	sh.PostalCode = in.PostalCode
	sh.Country = in.Country
	sh.IsPublished = in.IsPublished
}

// Get accepts either an id or a slug.
func (s *SchoolhouseService) Get(ctx context.Context, idOrSlug string) (models.Schoolhouse, error) {
	if err := requireID("schoolhouse id", idOrSlug); err != nil {
		return models.Schoolhouse{}, err
	}
	sh, err := s.store.Schoolhouses.GetByID(ctx, idOrSlug)
	if err == nil {
		return sh, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return models.Schoolhouse{}, err
	}
	sh, err = s.store.Schoolhouses.GetBySlug(ctx, strings.ToLower(idOrSlug))
	if err != nil {
		return models.Schoolhouse{}, notFound(err, ErrSchoolhouseNotFound)
	}
	return sh, nil
}

func (s *SchoolhouseService) List(ctx context.Context, publishedOnly bool, page repository.Page) ([]models.Schoolhouse, int64, error) {
	return s.store.Schoolhouses.List(ctx, publishedOnly, page)
}

// Create stores the schoolhouse and makes the caller its Owner.
func (s *SchoolhouseService) Create(ctx context.Context, in SchoolhouseInput, actorID string) (models.Schoolhouse, error) {
	if err := requireActor(actorID); err != nil {
		return models.Schoolhouse{}, err
	}
	if err := in.normalize(); err != nil {
		return models.Schoolhouse{}, err
	}

	now := s.now()
	sh := models.Schoolhouse{
		ID:              ids.New(),
		CreatedByUserID: actorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	in.apply(&sh)

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		exists, err := tx.Users.Exists(ctx, actorID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUserNotFound
		}
		if err := checkSchoolhouseUnique(ctx, tx, sh.Slug, sh.Subdomain, ""); err != nil {
			return err
		}
		if err := tx.Schoolhouses.Create(ctx, &sh); err != nil {
			return conflictOn(err, ErrSlugTaken)
		}
		if _, err := tx.Staff.Upsert(ctx, sh.ID, actorID, models.StaffRoleOwner, now); err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:        audit.ActionCreateSchoolhouse,
			ActorID:       actorID,
			SchoolhouseID: sh.ID,
			Details:       sh.Slug,
		})
	})
	if err != nil {
		return models.Schoolhouse{}, err
	}

	s.log.Info().Str("schoolhouse_id", sh.ID).Str("slug", sh.Slug).Str("actor_id", actorID).Msg("schoolhouse created")
	return sh, nil
}

func checkSchoolhouseUnique(ctx context.Context, tx *repository.Store, slug, subdomain, excludeID string) error {
	taken, err := tx.Schoolhouses.SlugTaken(ctx, slug, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrSlugTaken
	}
	taken, err = tx.Schoolhouses.SubdomainTaken(ctx, subdomain, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrSubdomainTaken
	}
	return nil
}

func (s *SchoolhouseService) Update(ctx context.Context, id string, in SchoolhouseInput, actorID string) (models.Schoolhouse, error) {
	if err := requireActor(actorID); err != nil {
		return models.Schoolhouse{}, err
	}
	if err := requireID("schoolhouse id", id); err != nil {
		return models.Schoolhouse{}, err
	}
	if err := in.normalize(); err != nil {
		return models.Schoolhouse{}, err
	}

	var sh models.Schoolhouse
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := authorized(policy.New(tx.Staff).CanManageStaff(ctx, id, actorID)); err != nil {
			return err
		}
		var err error
		sh, err = tx.Schoolhouses.GetByID(ctx, id)
		if err != nil {
			return notFound(err, ErrSchoolhouseNotFound)
		}
		if err := checkSchoolhouseUnique(ctx, tx, in.Slug, in.Subdomain, id); err != nil {
			return err
		}

		in.apply(&sh)
		sh.UpdatedAt = s.now()
		if err := tx.Schoolhouses.Update(ctx, &sh); err != nil {
			return conflictOn(notFound(err, ErrSchoolhouseNotFound), ErrSlugTaken)
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:        audit.ActionUpdateSchoolhouse,
			ActorID:       actorID,
			SchoolhouseID: sh.ID,
		})
	})
	if err != nil {
		return models.Schoolhouse{}, err
	}
	return sh, nil
}

// Delete removes the schoolhouse with its staff, classes and attachments.
// Only the Owner or a holder of the global Admin role may do this.
func (s *SchoolhouseService) Delete(ctx context.Context, id, actorID string, actorIsAdmin bool) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	if err := requireID("schoolhouse id", id); err != nil {
		return err
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if !actorIsAdmin {
			if err := authorized(policy.New(tx.Staff).IsOwner(ctx, id, actorID)); err != nil {
				return err
			}
		}
		sh, err := tx.Schoolhouses.GetByID(ctx, id)
		if err != nil {
			return notFound(err, ErrSchoolhouseNotFound)
		}
		if err := tx.Schoolhouses.Delete(ctx, id); err != nil {
			return notFound(err, ErrSchoolhouseNotFound)
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:        audit.ActionDeleteSchoolhouse,
			ActorID:       actorID,
			SchoolhouseID: id,
			Details:       sh.Slug,
		})
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("schoolhouse_id", id).Str("actor_id", actorID).Msg("schoolhouse deleted")
	return nil
}
