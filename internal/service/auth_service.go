package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"schoolhouse/api/internal/config"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/repository"
	"schoolhouse/api/internal/security"
)

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	FindByRefreshHash(ctx context.Context, refreshHash []byte) (models.Session, error)
	Rotate(ctx context.Context, id string, oldHash, newHash []byte, expiresAt time.Time) error
	CountByUser(ctx context.Context, userID string) (int, error)
	DeleteOldestSessions(ctx context.Context, userID string, keepLatest int) error
	DeleteByID(ctx context.Context, id string) error
}

type LoginLimiter interface {
	Locked(ctx context.Context, identifier string) (bool, error)
	Fail(ctx context.Context, identifier string) error
	Reset(ctx context.Context, identifier string) error
}

type AuthService struct {
	users    *UserService
	store    *repository.Store
	sessions SessionStore
	throttle LoginLimiter
	hasher   PasswordHasher
	cfg      config.SecurityConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(
	users *UserService,
	store *repository.Store,
	sessions SessionStore,
	throttle LoginLimiter,
	hasher PasswordHasher,
	cfg config.SecurityConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		store:    store,
		sessions: sessions,
		throttle: throttle,
		hasher:   hasher,
		cfg:      cfg,
		log:      log.With().Str("component", "auth").Logger(),
		now:      time.Now,
	}
}

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	IPAddress   string
	UserAgent   string
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	SessionID    string
	User         models.User
	Roles        []string
}

// Register creates an account and signs it in. The new user is recorded
// as the actor of its own creation.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	in := CreateUserInput{
		Username:    input.Username,
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
	}
	if err := in.normalize(); err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.create(ctx, in, "")
	if err != nil {
		return AuthResult{}, err
	}

	return s.createSession(ctx, user, nil, input.IPAddress, input.UserAgent)
}

type LoginInput struct {
	Login     string
	Password  string
	IPAddress string
	UserAgent string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	login := strings.TrimSpace(input.Login)
	if login == "" || input.Password == "" {
		return AuthResult{}, Validation("login and password are required")
	}

	locked, err := s.throttle.Locked(ctx, login)
	if err != nil {
		return AuthResult{}, err
	}
	if locked {
		return AuthResult{}, ErrLoginLocked
	}

	user, err := s.store.Users.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordFailure(ctx, login)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil || !ok {
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		}
		s.recordFailure(ctx, login)
		return AuthResult{}, ErrInvalidCredentials
	}

	switch user.Status {
	case models.UserStatusBanned:
		return AuthResult{}, ErrUserBanned
	case models.UserStatusSuspended:
		return AuthResult{}, ErrUserSuspended
	}

	if err := s.throttle.Reset(ctx, login); err != nil {
		s.log.Warn().Err(err).Msg("reset login throttle failed")
	}

	roles, err := s.store.Roles.NamesForUser(ctx, user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	return s.createSession(ctx, user, roles, input.IPAddress, input.UserAgent)
}

func (s *AuthService) recordFailure(ctx context.Context, login string) {
	if err := s.throttle.Fail(ctx, login); err != nil {
		s.log.Warn().Err(err).Msg("record login failure failed")
	}
}

func (s *AuthService) createSession(ctx context.Context, user models.User, roles []string, ipAddress, userAgent string) (AuthResult, error) {
	refreshToken, refreshHash, err := security.GenerateRefreshToken(64)
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now().UTC()
	session := models.Session{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		RefreshTokenHash: refreshHash,
		IPAddress:        ipAddress,
		UserAgent:        userAgent,
		CreatedAt:        now,
		LastSeenAt:       now,
		ExpiresAt:        now.Add(s.cfg.JWTRefreshTTL),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	if err := s.enforceSessionLimit(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("enforce session limit failed")
	}

	return s.issue(user, roles, session.ID, refreshToken)
}

func (s *AuthService) issue(user models.User, roles []string, sessionID, refreshToken string) (AuthResult, error) {
	accessToken, err := security.GenerateAccessToken(security.AccessTokenInput{
		Secret:    s.cfg.JWTAccessSecret,
		Issuer:    s.cfg.JWTIssuer,
		UserID:    user.ID,
		SessionID: sessionID,
		Roles:     roles,
		TTL:       s.cfg.JWTAccessTTL,
	})
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    s.now().Add(s.cfg.JWTAccessTTL),
		SessionID:    sessionID,
		User:         user,
		Roles:        roles,
	}, nil
}

func (s *AuthService) enforceSessionLimit(ctx context.Context, userID string) error {
	if s.cfg.MaxSessions <= 0 {
		return nil
	}
	count, err := s.sessions.CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	if count <= s.cfg.MaxSessions {
		return nil
	}

	return s.sessions.DeleteOldestSessions(ctx, userID, s.cfg.MaxSessions)
}

// Refresh redeems a refresh token once and returns a fresh pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return AuthResult{}, Validation("refresh token is required")
	}

	oldHash := security.HashRefreshToken(refreshToken)
	session, err := s.sessions.FindByRefreshHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return AuthResult{}, ErrSessionNotFound
		}
		return AuthResult{}, err
	}

	if session.ExpiresAt.Before(s.now()) {
		_ = s.sessions.DeleteByID(ctx, session.ID)
		return AuthResult{}, ErrSessionNotFound
	}

	user, err := s.store.Users.GetByID(ctx, session.UserID)
	if err != nil {
		return AuthResult{}, notFound(err, ErrSessionNotFound)
	}
	switch user.Status {
	case models.UserStatusBanned:
		return AuthResult{}, ErrUserBanned
	case models.UserStatusSuspended:
		return AuthResult{}, ErrUserSuspended
	}

	newToken, newHash, err := security.GenerateRefreshToken(64)
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.sessions.Rotate(ctx, session.ID, oldHash, newHash, s.now().UTC().Add(s.cfg.JWTRefreshTTL)); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return AuthResult{}, ErrSessionNotFound
		}
		return AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	roles, err := s.store.Roles.NamesForUser(ctx, user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	return s.issue(user, roles, session.ID, newToken)
}

// Logout ends the session. Ending a session that is already gone succeeds.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	err := s.sessions.DeleteByID(ctx, sessionID)
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return err
	}
	return nil
}
