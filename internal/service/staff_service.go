package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"schoolhouse/api/internal/audit"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/policy"
	"schoolhouse/api/internal/repository"
)

type StaffService struct {
	base
	log zerolog.Logger
}

func NewStaffService(store *repository.Store, log zerolog.Logger) *StaffService {
	return &StaffService{
		base: newBase(store),
		log:  log.With().Str("component", "staff").Logger(),
	}
}

func (s *StaffService) AddAdmin(ctx context.Context, schoolhouseID, targetUserID, actorID string) (models.StaffMembership, error) {
	return s.setRole(ctx, schoolhouseID, targetUserID, actorID, models.StaffRoleAdmin, audit.ActionAddAdmin,
		func(ctx context.Context, tx *repository.Store) error {
			exists, err := tx.Users.Exists(ctx, targetUserID)
			if err != nil {
				return err
			}
			if !exists {
				return ErrUserNotFound
			}
			return nil
		})
}

func (s *StaffService) AddInstructor(ctx context.Context, schoolhouseID, targetUserID, actorID string) (models.StaffMembership, error) {
	return s.setRole(ctx, schoolhouseID, targetUserID, actorID, models.StaffRoleInstructor, audit.ActionAddInstructor,
		func(ctx context.Context, tx *repository.Store) error {
			exists, err := tx.Instructors.ExistsForUser(ctx, targetUserID)
			if err != nil {
				return err
			}
			if !exists {
				return ErrInstructorProfileMissing
			}
			return nil
		})
}

func (s *StaffService) setRole(
	ctx context.Context,
	schoolhouseID, targetUserID, actorID string,
	role models.StaffRole,
	action string,
	precondition func(context.Context, *repository.Store) error,
) (models.StaffMembership, error) {
	if err := validateStaffArgs(schoolhouseID, targetUserID, actorID); err != nil {
		return models.StaffMembership{}, err
	}

	var membership models.StaffMembership
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := authorized(policy.New(tx.Staff).CanManageStaff(ctx, schoolhouseID, actorID)); err != nil {
			return err
		}
		if err := precondition(ctx, tx); err != nil {
			return err
		}

		// An owner row is never rewritten into a lesser role.
		current, err := tx.Staff.Find(ctx, schoolhouseID, targetUserID)
		switch {
		case err == nil && current.Role == models.StaffRoleOwner:
			return ErrOwnerImmutable
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return err
		}

		membership, err = tx.Staff.Upsert(ctx, schoolhouseID, targetUserID, role, s.now())
		if err != nil {
			return fmt.Errorf("upsert staff membership: %w", err)
		}

		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:        action,
			ActorID:       actorID,
			TargetUserID:  targetUserID,
			RoleName:      string(role),
			SchoolhouseID: schoolhouseID,
		})
	})
	if err != nil {
		return models.StaffMembership{}, err
	}

	s.log.Info().
		Str("schoolhouse_id", schoolhouseID).
		Str("user_id", targetUserID).
		Str("role", string(role)).
		Str("actor_id", actorID).
		Msg("staff role set")
	return membership, nil
}

// RemoveStaff deactivates the membership. Removing an instructor also
// withdraws the schoolhouse media rows that point at assets they own.
func (s *StaffService) RemoveStaff(ctx context.Context, schoolhouseID, targetUserID, actorID string) error {
	if err := validateStaffArgs(schoolhouseID, targetUserID, actorID); err != nil {
		return err
	}

	var removedMedia int64
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := authorized(policy.New(tx.Staff).CanManageStaff(ctx, schoolhouseID, actorID)); err != nil {
			return err
		}

		membership, err := tx.Staff.Find(ctx, schoolhouseID, targetUserID)
		if err != nil {
			return notFound(err, ErrMembershipNotFound)
		}
		if membership.Role == models.StaffRoleOwner {
			return ErrOwnerImmutable
		}

		if err := tx.Staff.Deactivate(ctx, membership.ID, s.now()); err != nil {
			return fmt.Errorf("deactivate staff membership: %w", err)
		}

		if membership.Role == models.StaffRoleInstructor {
			removedMedia, err = tx.Media.DeleteSchoolhouseMediaOwnedBy(ctx, schoolhouseID, targetUserID)
			if err != nil {
				return fmt.Errorf("withdraw instructor media: %w", err)
			}
		}

		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:        audit.ActionRemoveStaff,
			ActorID:       actorID,
			TargetUserID:  targetUserID,
			RoleName:      string(membership.Role),
			SchoolhouseID: schoolhouseID,
			Details:       fmt.Sprintf("schoolhouse media removed: %d", removedMedia),
		})
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schoolhouse_id", schoolhouseID).
		Str("user_id", targetUserID).
		Str("actor_id", actorID).
		Int64("media_removed", removedMedia).
		Msg("staff removed")
	return nil
}

func (s *StaffService) ListStaff(ctx context.Context, schoolhouseID, actorID string, activeOnly bool) ([]models.StaffMembership, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if err := authorized(policy.New(s.store.Staff).CanManageStaff(ctx, schoolhouseID, actorID)); err != nil {
		return nil, err
	}
	return s.store.Staff.ListBySchoolhouse(ctx, schoolhouseID, activeOnly)
}

func validateStaffArgs(schoolhouseID, targetUserID, actorID string) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	if err := requireID("schoolhouse id", schoolhouseID); err != nil {
		return err
	}
	return requireID("user id", targetUserID)
}
