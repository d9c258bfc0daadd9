package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"schoolhouse/api/internal/config"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testSecurity = config.SecurityConfig{
	JWTAccessSecret: "0123456789abcdef0123456789abcdef",
	JWTIssuer:       "schoolhouse-test",
	JWTAccessTTL:    time.Hour,
}

type stubIdentity struct {
	mock.Mock
}

func (s *stubIdentity) GetByID(ctx context.Context, id string) (models.User, error) {
	args := s.Called(ctx, id)
	return args.Get(0).(models.User), args.Error(1)
}

func (s *stubIdentity) NamesForUser(ctx context.Context, userID string) ([]string, error) {
	args := s.Called(ctx, userID)
	return args.Get(0).([]string), args.Error(1)
}

type stubSessions struct {
	mock.Mock
}

func (s *stubSessions) GetByID(ctx context.Context, id string) (models.Session, error) {
	args := s.Called(ctx, id)
	return args.Get(0).(models.Session), args.Error(1)
}

func (s *stubSessions) Touch(ctx context.Context, sessionID, ip, userAgent string) error {
	return s.Called(ctx, sessionID, ip, userAgent).Error(0)
}

func token(t *testing.T, userID, sessionID string) string {
	t.Helper()
	tok, err := security.GenerateAccessToken(security.AccessTokenInput{
		Secret:    testSecurity.JWTAccessSecret,
		Issuer:    testSecurity.JWTIssuer,
		UserID:    userID,
		SessionID: sessionID,
		TTL:       time.Hour,
	})
	require.NoError(t, err)
	return tok
}

func authRouter(identity *stubIdentity, sessions *stubSessions, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{Auth(testSecurity, identity, identity, sessions)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user": user.ID, "roles": CurrentRoles(c)})
	})
	r.GET("/me", handlers...)
	return r
}

func get(r http.Handler, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthAcceptsLiveSession(t *testing.T) {
	identity := &stubIdentity{}
	sessions := &stubSessions{}
	identity.On("GetByID", mock.Anything, "u1").Return(models.User{ID: "u1", Status: models.UserStatusActive}, nil)
	identity.On("NamesForUser", mock.Anything, "u1").Return([]string{models.RoleAdmin}, nil)
	sessions.On("GetByID", mock.Anything, "s1").Return(models.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}, nil)
	sessions.On("Touch", mock.Anything, "s1", mock.Anything, mock.Anything).Return(nil)

	rec := get(authRouter(identity, sessions, RequireRoles(models.RoleAdmin)), "/me", token(t, "u1", "s1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"u1","roles":["Admin"]}`, rec.Body.String())
}

func TestAuthRejections(t *testing.T) {
	cases := []struct {
		name    string
		bearer  string
		setup   func(*stubIdentity, *stubSessions)
		status  int
		errCode string
	}{
		{name: "missing", status: http.StatusUnauthorized, errCode: "missing_token"},
		{name: "garbage", bearer: "nope", status: http.StatusUnauthorized, errCode: "invalid_token"},
		{
			name:   "unknown session",
			bearer: "u1/s1",
			setup: func(_ *stubIdentity, s *stubSessions) {
				s.On("GetByID", mock.Anything, "s1").Return(models.Session{}, errors.New("gone"))
			},
			status:  http.StatusUnauthorized,
			errCode: "session_not_found",
		},
		{
			name:   "expired session",
			bearer: "u1/s1",
			setup: func(_ *stubIdentity, s *stubSessions) {
				s.On("GetByID", mock.Anything, "s1").Return(models.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute)}, nil)
			},
			status:  http.StatusUnauthorized,
			errCode: "session_not_found",
		},
		{
			name:   "session of another user",
			bearer: "u1/s1",
			setup: func(_ *stubIdentity, s *stubSessions) {
				s.On("GetByID", mock.Anything, "s1").Return(models.Session{ID: "s1", UserID: "u2", ExpiresAt: time.Now().Add(time.Hour)}, nil)
			},
			status:  http.StatusUnauthorized,
			errCode: "session_mismatch",
		},
		{
			name:   "banned user",
			bearer: "u1/s1",
			setup: func(i *stubIdentity, s *stubSessions) {
				s.On("GetByID", mock.Anything, "s1").Return(models.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}, nil)
				i.On("GetByID", mock.Anything, "u1").Return(models.User{ID: "u1", Status: models.UserStatusBanned}, nil)
			},
			status:  http.StatusForbidden,
			errCode: "user_inactive",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			identity := &stubIdentity{}
			sessions := &stubSessions{}
			if tc.setup != nil {
				tc.setup(identity, sessions)
			}
			bearer := tc.bearer
			if bearer == "u1/s1" {
				bearer = token(t, "u1", "s1")
			}
			rec := get(authRouter(identity, sessions), "/me", bearer)
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, `{"error":"`+tc.errCode+`"}`, rec.Body.String())
		})
	}
}

func TestRequireRolesForbidsOtherRoles(t *testing.T) {
	identity := &stubIdentity{}
	sessions := &stubSessions{}
	identity.On("GetByID", mock.Anything, "u1").Return(models.User{ID: "u1", Status: models.UserStatusActive}, nil)
	identity.On("NamesForUser", mock.Anything, "u1").Return([]string{"Editor"}, nil)
	sessions.On("GetByID", mock.Anything, "s1").Return(models.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}, nil)
	sessions.On("Touch", mock.Anything, "s1", mock.Anything, mock.Anything).Return(nil)

	rec := get(authRouter(identity, sessions, RequireRoles(models.RoleAdmin)), "/me", token(t, "u1", "s1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	r := gin.New()
	r.GET("/x", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, get(r, "/x", "").Code)
}

func TestSchoolhouseSlugSources(t *testing.T) {
	r := gin.New()
	echo := func(c *gin.Context) { c.String(http.StatusOK, CurrentSchoolhouseSlug(c)) }
	r.GET("/public/index", SchoolhouseSlug(), echo)
	r.GET("/public/:slug/index", SchoolhouseSlug(), echo)

	assert.Equal(t, "oak", get(r, "/public/Oak/index", "").Body.String())
	assert.Equal(t, "elm", get(r, "/public/index?schoolhouseSlug=elm", "").Body.String())

	req := httptest.NewRequest(http.MethodGet, "/public/index", nil)
	req.Header.Set(SchoolhouseHeader, " Pine ")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "pine", rec.Body.String())

	assert.Equal(t, "", get(r, "/public/index", "").Body.String())
}

func TestRequestIDAndRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(zerolog.Nop()), Recovery(zerolog.Nop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	r.GET("/ok", func(c *gin.Context) {
		assert.NotNil(t, zerolog.Ctx(c.Request.Context()))
		c.Status(http.StatusOK)
	})

	rec := get(r, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.JSONEq(t, `{"error":"internal_error"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(requestIDHeader))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://oak.test"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://oak.test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://oak.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), SchoolhouseHeader)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
