package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"schoolhouse/api/internal/audit"
	"schoolhouse/api/internal/ids"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/repository"
)

type InstructorService struct {
	base
	log zerolog.Logger
}

func NewInstructorService(store *repository.Store, log zerolog.Logger) *InstructorService {
	return &InstructorService{
		base: newBase(store),
		log:  log.With().Str("component", "instructors").Logger(),
	}
}

type InstructorProfileInput struct {
	DisplayName        string
	Bio                string
	PhotoURL           string
	PublicContactEmail string
	PublicContactPhone string
}

func (in *InstructorProfileInput) normalize() error {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.PublicContactEmail = strings.ToLower(strings.TrimSpace(in.PublicContactEmail))
	in.PublicContactPhone = strings.TrimSpace(in.PublicContactPhone)

	if in.DisplayName == "" || len(in.DisplayName) > 200 {
		return Validation("display name must be 1-200 characters")
	}
	if len(in.PhotoURL) > 500 {
		return Validation("photo url must be at most 500 characters")
	}
	if in.PublicContactEmail != "" {
		if _, err := mail.ParseAddress(in.PublicContactEmail); err != nil {
			return Validation("public contact email is not a valid address")
		}
	}
	return nil
}

func (s *InstructorService) GetProfileByUser(ctx context.Context, userID string) (models.InstructorProfile, error) {
	if err := requireID("user id", userID); err != nil {
		return models.InstructorProfile{}, err
	}
	p, err := s.store.Instructors.GetByUserID(ctx, userID)
	if err != nil {
		return models.InstructorProfile{}, notFound(err, ErrProfileNotFound)
	}
	return p, nil
}

// UpsertProfile creates or replaces the acting user's instructor profile.
// The bool result is true when a profile was created.
func (s *InstructorService) UpsertProfile(ctx context.Context, in InstructorProfileInput, actorID string) (models.InstructorProfile, bool, error) {
	if err := requireActor(actorID); err != nil {
		return models.InstructorProfile{}, false, err
	}
	if err := in.normalize(); err != nil {
		return models.InstructorProfile{}, false, err
	}

	var (
		profile models.InstructorProfile
		created bool
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		now := s.now()
		var err error
		profile, err = tx.Instructors.GetByUserID(ctx, actorID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			exists, err := tx.Users.Exists(ctx, actorID)
			if err != nil {
				return err
			}
			if !exists {
				return ErrUserNotFound
			}
			created = true
			profile = models.InstructorProfile{ID: ids.New(), UserID: actorID, CreatedAt: now}
		case err != nil:
			return err
		}

		profile.DisplayName = in.DisplayName
		profile.Bio = in.Bio
		profile.PhotoURL = in.PhotoURL
		profile.PublicContactEmail = in.PublicContactEmail
		profile.PublicContactPhone = in.PublicContactPhone
		profile.UpdatedAt = now

		if created {
			err = tx.Instructors.Create(ctx, &profile)
		} else {
			err = tx.Instructors.Update(ctx, &profile)
		}
		if err != nil {
			return err
		}

		details := "updated"
		if created {
			details = "created"
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:       audit.ActionUpsertInstructorProfile,
			ActorID:      actorID,
			TargetUserID: actorID,
			Details:      details,
		})
	})
	if err != nil {
		return models.InstructorProfile{}, false, err
	}
	return profile, created, nil
}
