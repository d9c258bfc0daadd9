package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"schoolhouse/api/internal/audit"
	"schoolhouse/api/internal/ids"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/repository"
)

const (
	maxRoleName        = 64
	maxRoleDescription = 512
)

type RoleService struct {
	base
	log zerolog.Logger
}

func NewRoleService(store *repository.Store, log zerolog.Logger) *RoleService {
	return &RoleService{
		base: newBase(store),
		log:  log.With().Str("component", "roles").Logger(),
	}
}

type RoleInput struct {
	Name        string
	Description *string
}

func (in *RoleInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Validation("role name is required")
	}
	if len(in.Name) > maxRoleName {
		return Validation("role name must be at most %d characters", maxRoleName)
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if len(d) > maxRoleDescription {
			return Validation("role description must be at most %d characters", maxRoleDescription)
		}
		in.Description = &d
	}
	return nil
}

type RoleDetail struct {
	Role    models.Role
	Members []models.UserRole
}

func (s *RoleService) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.store.Roles.List(ctx)
}

func (s *RoleService) GetRole(ctx context.Context, id string) (RoleDetail, error) {
	role, err := s.store.Roles.GetByID(ctx, id)
	if err != nil {
		return RoleDetail{}, notFound(err, ErrRoleNotFound)
	}
	members, err := s.store.Roles.Members(ctx, id)
	if err != nil {
		return RoleDetail{}, err
	}
	return RoleDetail{Role: role, Members: members}, nil
}

func (s *RoleService) CreateRole(ctx context.Context, in RoleInput, actorID string) (models.Role, error) {
	if err := requireActor(actorID); err != nil {
		return models.Role{}, err
	}
	if err := in.normalize(); err != nil {
		return models.Role{}, err
	}

	now := s.now()
	role := models.Role{
		ID:          ids.New(),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		taken, err := tx.Roles.NameTaken(ctx, role.Name, "")
		if err != nil {
			return err
		}
		if taken {
			return ErrRoleNameTaken
		}
		if err := tx.Roles.Create(ctx, &role); err != nil {
			return conflictOn(err, ErrRoleNameTaken)
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:   audit.ActionCreateRole,
			ActorID:  actorID,
			RoleID:   role.ID,
			RoleName: role.Name,
		})
	})
	if err != nil {
		return models.Role{}, err
	}
	s.log.Info().Str("role_id", role.ID).Str("name", role.Name).Str("actor_id", actorID).Msg("role created")
	return role, nil
}

func (s *RoleService) UpdateRole(ctx context.Context, id string, in RoleInput, actorID string) (models.Role, error) {
	if err := requireActor(actorID); err != nil {
		return models.Role{}, err
	}
	if err := requireID("role id", id); err != nil {
		return models.Role{}, err
	}
	if err := in.normalize(); err != nil {
		return models.Role{}, err
	}

	var role models.Role
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		role, err = tx.Roles.GetByID(ctx, id)
		if err != nil {
			return notFound(err, ErrRoleNotFound)
		}
		if role.Name == models.RoleAdmin && in.Name != models.RoleAdmin {
			return ErrProtectedRole
		}
		taken, err := tx.Roles.NameTaken(ctx, in.Name, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrRoleNameTaken
		}

		previous := role.Name
		role.Name = in.Name
		role.Description = in.Description
		role.UpdatedAt = s.now()
		if err := tx.Roles.Update(ctx, &role); err != nil {
			return conflictOn(notFound(err, ErrRoleNotFound), ErrRoleNameTaken)
		}

		details := ""
		if previous != role.Name {
			details = fmt.Sprintf("renamed from %q", previous)
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:   audit.ActionUpdateRole,
			ActorID:  actorID,
			RoleID:   role.ID,
			RoleName: role.Name,
			Details:  details,
		})
	})
	if err != nil {
		return models.Role{}, err
	}
	return role, nil
}

// DeleteRole removes the role and its assignments. Audit entries keep the
// role id and name.
func (s *RoleService) DeleteRole(ctx context.Context, id, actorID string) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	if err := requireID("role id", id); err != nil {
		return err
	}

	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		role, err := tx.Roles.GetByID(ctx, id)
		if err != nil {
			return notFound(err, ErrRoleNotFound)
		}
		if role.Name == models.RoleAdmin {
			return ErrProtectedRole
		}
		if err := tx.Roles.Delete(ctx, id); err != nil {
			return notFound(err, ErrRoleNotFound)
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:   audit.ActionDeleteRole,
			ActorID:  actorID,
			RoleID:   role.ID,
			RoleName: role.Name,
		})
	})
}

// AssignUserToRole grants the role. It reports false without writing
// anything when the user already holds it.
func (s *RoleService) AssignUserToRole(ctx context.Context, roleID, userID, actorID string) (bool, error) {
	if err := validateAssignment(roleID, userID, actorID); err != nil {
		return false, err
	}

	assigned := false
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		role, err := tx.Roles.GetByID(ctx, roleID)
		if err != nil {
			return notFound(err, ErrRoleNotFound)
		}
		exists, err := tx.Users.Exists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUserNotFound
		}

		has, err := tx.Roles.HasAssignment(ctx, userID, roleID)
		if err != nil {
			return err
		}
		if has {
			return nil
		}

		err = tx.Roles.Assign(ctx, &models.UserRole{
			UserID:    userID,
			RoleID:    roleID,
			GrantedBy: actorID,
			GrantedAt: s.now(),
		})
		if err != nil {
			return err
		}
		assigned = true

		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:       audit.ActionAssignUser,
			ActorID:      actorID,
			TargetUserID: userID,
			RoleID:       role.ID,
			RoleName:     role.Name,
		})
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent request granted the same pair first.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return assigned, nil
}

// RemoveUserFromRole revokes the role. It reports false without writing
// anything when the user does not hold it.
func (s *RoleService) RemoveUserFromRole(ctx context.Context, roleID, userID, actorID string) (bool, error) {
	if err := validateAssignment(roleID, userID, actorID); err != nil {
		return false, err
	}

	removed := false
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		role, err := tx.Roles.GetByID(ctx, roleID)
		if err != nil {
			return notFound(err, ErrRoleNotFound)
		}
		if role.Name == models.RoleAdmin && userID == actorID {
			return ErrSelfAction
		}

		err = tx.Roles.Unassign(ctx, userID, roleID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		removed = true

		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:       audit.ActionRemoveUser,
			ActorID:      actorID,
			TargetUserID: userID,
			RoleID:       role.ID,
			RoleName:     role.Name,
		})
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func validateAssignment(roleID, userID, actorID string) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	if err := requireID("role id", roleID); err != nil {
		return err
	}
	return requireID("user id", userID)
}

// conflictOn maps a unique violation that slipped past the pre-check.
func conflictOn(err error, named *Error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return named
	}
	return err
}
