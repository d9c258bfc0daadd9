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
	"schoolhouse/api/internal/config"
	"schoolhouse/api/internal/ids"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/repository"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 256
	maxDisplayName    = 128
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{2,63}$`)

type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Verify(password string, encoded []byte) (bool, error)
}

// SessionRevoker drops every session of a user.
type SessionRevoker interface {
	DeleteByUser(ctx context.Context, userID string) error
}

type UserService struct {
	base
	hasher   PasswordHasher
	sessions SessionRevoker
	log      zerolog.Logger
}

func NewUserService(store *repository.Store, hasher PasswordHasher, sessions SessionRevoker, log zerolog.Logger) *UserService {
	return &UserService{
		base:     newBase(store),
		hasher:   hasher,
		sessions: sessions,
		log:      log.With().Str("component", "users").Logger(),
	}
}

type CreateUserInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

func (in *CreateUserInput) normalize() error {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	if err := validateUsername(in.Username); err != nil {
		return err
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if len(in.DisplayName) > maxDisplayName {
		return Validation("display name must be at most %d characters", maxDisplayName)
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Username
	}
	return nil
}

// UpdateUserInput changes only the fields that are set.
type UpdateUserInput struct {
	Username    *string
	Email       *string
	DisplayName *string
	Password    *string
}

func (in *UpdateUserInput) normalize() error {
	if in.Username != nil {
		v := strings.ToLower(strings.TrimSpace(*in.Username))
		if err := validateUsername(v); err != nil {
			return err
		}
		in.Username = &v
	}
	if in.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*in.Email))
		if err := validateEmail(v); err != nil {
			return err
		}
		in.Email = &v
	}
	if in.DisplayName != nil {
		v := strings.TrimSpace(*in.DisplayName)
		if len(v) > maxDisplayName {
			return Validation("display name must be at most %d characters", maxDisplayName)
		}
		in.DisplayName = &v
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return err
		}
	}
	if in.Username == nil && in.Email == nil && in.DisplayName == nil && in.Password == nil {
		return Validation("nothing to update")
	}
	return nil
}

func validateUsername(v string) error {
	if !usernamePattern.MatchString(v) {
		return Validation("username must be 3-64 letters, digits, dots, dashes or underscores")
	}
	return nil
}

func validateEmail(v string) error {
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return Validation("email is invalid")
	}
	return nil
}

func validatePassword(v string) error {
	if len(v) < minPasswordLength || len(v) > maxPasswordLength {
		return Validation("password must be %d-%d characters", minPasswordLength, maxPasswordLength)
	}
	return nil
}

type UserDetail struct {
	User  models.User
	Roles []string
}

func (s *UserService) ListUsers(ctx context.Context, page repository.Page) ([]models.User, int64, error) {
	return s.store.Users.List(ctx, page)
}

func (s *UserService) GetUser(ctx context.Context, id string) (UserDetail, error) {
	user, err := s.store.Users.GetByID(ctx, id)
	if err != nil {
		return UserDetail{}, notFound(err, ErrUserNotFound)
	}
	roles, err := s.store.Roles.NamesForUser(ctx, id)
	if err != nil {
		return UserDetail{}, err
	}
	return UserDetail{User: user, Roles: roles}, nil
}

func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput, actorID string) (models.User, error) {
	if err := requireActor(actorID); err != nil {
		return models.User{}, err
	}
	if err := in.normalize(); err != nil {
		return models.User{}, err
	}
	return s.create(ctx, in, actorID)
}

// create inserts the user and its audit entry. An empty actorID records
// the new user as its own actor.
func (s *UserService) create(ctx context.Context, in CreateUserInput, actorID string) (models.User, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := models.User{
		ID:           ids.New(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
		Status:       models.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if actorID == "" {
		actorID = user.ID
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := checkUserUnique(ctx, tx, user.Username, user.Email, ""); err != nil {
			return err
		}
		if err := tx.Users.Create(ctx, &user); err != nil {
			return conflictOn(err, ErrUsernameTaken)
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:       audit.ActionCreateUser,
			ActorID:      actorID,
			TargetUserID: user.ID,
		})
	})
	if err != nil {
		return models.User{}, err
	}
	s.log.Info().Str("user_id", user.ID).Str("actor_id", actorID).Msg("user created")
	return user, nil
}

func checkUserUnique(ctx context.Context, tx *repository.Store, username, email, excludeID string) error {
	usernameTaken, emailTaken, err := tx.Users.UsernameOrEmailTaken(ctx, username, email, excludeID)
	if err != nil {
		return err
	}
	if usernameTaken {
		return ErrUsernameTaken
	}
	if emailTaken {
		return ErrEmailTaken
	}
	return nil
}

func (s *UserService) UpdateUser(ctx context.Context, id string, in UpdateUserInput, actorID string) (models.User, error) {
	if err := requireActor(actorID); err != nil {
		return models.User{}, err
	}
	if err := requireID("user id", id); err != nil {
		return models.User{}, err
	}
	if err := in.normalize(); err != nil {
		return models.User{}, err
	}

	var hash []byte
	if in.Password != nil {
		var err error
		if hash, err = s.hasher.Hash(*in.Password); err != nil {
			return models.User{}, fmt.Errorf("hash password: %w", err)
		}
	}

	var user models.User
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		user, err = tx.Users.Lock(ctx, id)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}

		var changed []string
		if in.Username != nil && *in.Username != user.Username {
			user.Username = *in.Username
			changed = append(changed, "username")
		}
		if in.Email != nil && *in.Email != user.Email {
			user.Email = *in.Email
			changed = append(changed, "email")
		}
		if in.DisplayName != nil && *in.DisplayName != user.DisplayName {
			user.DisplayName = *in.DisplayName
			changed = append(changed, "display_name")
		}
		user.UpdatedAt = s.now()

		if err := checkUserUnique(ctx, tx, user.Username, user.Email, user.ID); err != nil {
			return err
		}
		if err := tx.Users.UpdateProfile(ctx, &user); err != nil {
			return conflictOn(notFound(err, ErrUserNotFound), ErrUsernameTaken)
		}
		if hash != nil {
			if err := tx.Users.UpdatePassword(ctx, user.ID, hash, user.UpdatedAt); err != nil {
				return err
			}
			user.PasswordHash = hash
			changed = append(changed, "password")
		}

		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:       audit.ActionUpdateUser,
			ActorID:      actorID,
			TargetUserID: user.ID,
			Details:      "changed: " + strings.Join(changed, ","),
		})
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// DeleteUser hard-deletes the user. Users that still own a schoolhouse,
// an instructor profile or media assets are refused.
func (s *UserService) DeleteUser(ctx context.Context, id, actorID string) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	if err := requireID("user id", id); err != nil {
		return err
	}
	if id == actorID {
		return ErrSelfAction
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		user, err := tx.Users.Lock(ctx, id)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		refs, err := tx.Users.References(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return ErrUserReferenced
		}
		if err := tx.Users.Delete(ctx, id); err != nil {
			return notFound(err, ErrUserNotFound)
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:       audit.ActionDeleteUser,
			ActorID:      actorID,
			TargetUserID: id,
			Details:      "username: " + user.Username,
		})
	})
	if err != nil {
		return err
	}
	s.revokeSessions(ctx, id)
	return nil
}

var transitions = map[string]struct {
	from []models.UserStatus
	to   models.UserStatus
}{
	audit.ActionSuspendUser:   {[]models.UserStatus{models.UserStatusActive}, models.UserStatusSuspended},
	audit.ActionUnsuspendUser: {[]models.UserStatus{models.UserStatusSuspended}, models.UserStatusActive},
	audit.ActionBanUser:       {[]models.UserStatus{models.UserStatusActive, models.UserStatusSuspended}, models.UserStatusBanned},
	audit.ActionUnbanUser:     {[]models.UserStatus{models.UserStatusBanned}, models.UserStatusActive},
}

func (s *UserService) Suspend(ctx context.Context, id, actorID string) (models.User, error) {
	return s.transition(ctx, id, actorID, audit.ActionSuspendUser)
}

func (s *UserService) Unsuspend(ctx context.Context, id, actorID string) (models.User, error) {
	return s.transition(ctx, id, actorID, audit.ActionUnsuspendUser)
}

func (s *UserService) Ban(ctx context.Context, id, actorID string) (models.User, error) {
	return s.transition(ctx, id, actorID, audit.ActionBanUser)
}

func (s *UserService) Unban(ctx context.Context, id, actorID string) (models.User, error) {
	return s.transition(ctx, id, actorID, audit.ActionUnbanUser)
}

func (s *UserService) transition(ctx context.Context, id, actorID, action string) (models.User, error) {
	if err := requireActor(actorID); err != nil {
		return models.User{}, err
	}
	if err := requireID("user id", id); err != nil {
		return models.User{}, err
	}
	if id == actorID {
		return models.User{}, ErrSelfAction
	}
	t := transitions[action]

	var user models.User
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		user, err = tx.Users.Lock(ctx, id)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		allowed := false
		for _, from := range t.from {
			if user.Status == from {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrInvalidTransition
		}

		previous := user.Status
		user.Status = t.to
		user.UpdatedAt = s.now()
		if err := tx.Users.UpdateStatus(ctx, id, user.Status, user.UpdatedAt); err != nil {
			return notFound(err, ErrUserNotFound)
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:       action,
			ActorID:      actorID,
			TargetUserID: id,
			Details:      fmt.Sprintf("%s -> %s", previous, user.Status),
		})
	})
	if err != nil {
		return models.User{}, err
	}

	if user.Status != models.UserStatusActive {
		s.revokeSessions(ctx, id)
	}
	s.log.Info().Str("user_id", id).Str("status", string(user.Status)).Str("actor_id", actorID).Msg("user status changed")
	return user, nil
}

// revokeSessions runs after commit. A failure leaves sessions that the
// auth middleware still rejects on status, so it is only logged.
func (s *UserService) revokeSessions(ctx context.Context, userID string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("revoke sessions failed")
	}
}

// EnsureBootstrapAdmin makes sure the Admin role exists and, when
// configured, that the bootstrap account exists and holds it.
func (s *UserService) EnsureBootstrapAdmin(ctx context.Context, cfg config.BootstrapConfig) error {
	if strings.TrimSpace(cfg.AdminUsername) == "" {
		_, err := s.ensureAdminRole(ctx, "")
		return err
	}

	user, err := s.store.Users.FindByUsername(ctx, cfg.AdminUsername)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		in := CreateUserInput{
			Username: cfg.AdminUsername,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		}
		if err := in.normalize(); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if user, err = s.create(ctx, in, ""); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	case err != nil:
		return err
	}

	adminRole, err := s.ensureAdminRole(ctx, user.ID)
	if err != nil {
		return err
	}

	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		has, err := tx.Roles.HasAssignment(ctx, user.ID, adminRole.ID)
		if err != nil || has {
			return err
		}
		if err := tx.Roles.Assign(ctx, &models.UserRole{
			UserID:    user.ID,
			RoleID:    adminRole.ID,
			GrantedBy: user.ID,
			GrantedAt: s.now(),
		}); err != nil {
			return err
		}
		s.log.Info().Str("user_id", user.ID).Msg("bootstrap admin granted")
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:       audit.ActionAssignUser,
			ActorID:      user.ID,
			TargetUserID: user.ID,
			RoleID:       adminRole.ID,
			RoleName:     adminRole.Name,
			Details:      "bootstrap",
		})
	})
}

// ensureAdminRole creates the Admin role when missing. The creation is
// audited under actorID; without a bootstrap account there is no actor and
// the role is seeded silently.
func (s *UserService) ensureAdminRole(ctx context.Context, actorID string) (models.Role, error) {
	role, err := s.store.Roles.GetByName(ctx, models.RoleAdmin)
	if err == nil || !errors.Is(err, repository.ErrNotFound) {
		return role, err
	}

	now := s.now()
	role = models.Role{ID: ids.New(), Name: models.RoleAdmin, CreatedAt: now, UpdatedAt: now}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Roles.Create(ctx, &role); err != nil {
			return err
		}
		if actorID == "" {
			return nil
		}
		return s.recorder().Record(ctx, tx.Audit, audit.Event{
			Action:   audit.ActionCreateRole,
			ActorID:  actorID,
			RoleID:   role.ID,
			RoleName: role.Name,
			Details:  "bootstrap",
		})
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return s.store.Roles.GetByName(ctx, models.RoleAdmin)
	}
	if err != nil {
		return models.Role{}, err
	}
	return role, nil
}
