package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"schoolhouse/api/internal/config"
	"schoolhouse/api/internal/ids"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/queue"
	"schoolhouse/api/internal/repository"
	"schoolhouse/api/internal/security"
	"schoolhouse/api/internal/service"
	"schoolhouse/api/internal/storage"
	"schoolhouse/api/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type sessionTable struct {
	mu   sync.Mutex
	byID map[string]string
}

func (s *sessionTable) GetByID(_ context.Context, id string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.byID[id]
	if !ok {
		return models.Session{}, repository.ErrNotFound
	}
	return models.Session{ID: id, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *sessionTable) Touch(context.Context, string, string, string) error { return nil }

func (s *sessionTable) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, owner := range s.byID {
		if owner == userID {
			delete(s.byID, id)
		}
	}
	return nil
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memObjects) Open(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{Size: int64(len(data))}, nil
}

func (m *memObjects) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type noQueue struct{}

func (noQueue) Enqueue(context.Context, queue.Task) (string, error) {
	return "", errors.New("queue unavailable")
}

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0}, 32)...)

type apiFixture struct {
	t        *testing.T
	db       *gorm.DB
	router   *gin.Engine
	cfg      *config.AppConfig
	sessions *sessionTable
	objects  *memObjects
}

func newAPIFixture(t *testing.T, checks map[string]HealthCheck) *apiFixture {
	t.Helper()
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	log := zerolog.Nop()

	cfg := &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			JWTAccessSecret: "0123456789abcdef0123456789abcdef",
			JWTIssuer:       "schoolhouse-test",
			JWTAccessTTL:    time.Hour,
			MediaURLSecret:  "media-secret",
			MediaURLTTL:     time.Minute,
		},
		Media: config.MediaConfig{MaxUploadBytes: 1024},
	}

	sessions := &sessionTable{byID: map[string]string{}}
	objects := &memObjects{objects: map[string][]byte{}}
	signer := security.MediaURLSigner{Secret: cfg.Security.MediaURLSecret, TTL: cfg.Security.MediaURLTTL}

	svc := Services{
		Users:        service.NewUserService(store, security.NewHasher(security.DefaultParams), sessions, log),
		Roles:        service.NewRoleService(store, log),
		Staff:        service.NewStaffService(store, log),
		Schoolhouses: service.NewSchoolhouseService(store, log),
		Instructors:  service.NewInstructorService(store, log),
		Classes:      service.NewClassService(store, log),
		Media:        service.NewMediaService(store, objects, noQueue{}, signer, cfg.Media.MaxUploadBytes, log),
		Public:       service.NewPublicService(store),
		Audit:        store.Audit,
	}
	identity := Identity{Users: store.Users, Roles: store.Roles, Sessions: sessions}

	router := gin.New()
	NewHandlerSet(log, cfg, svc, identity, checks).Routes(router.Group("/api"))

	return &apiFixture{t: t, db: db, router: router, cfg: cfg, sessions: sessions, objects: objects}
}

// login opens a session for user and returns a bearer token for it.
func (f *apiFixture) login(user models.User) string {
	f.t.Helper()
	sessionID := ids.New()
	f.sessions.mu.Lock()
	f.sessions.byID[sessionID] = user.ID
	f.sessions.mu.Unlock()

	tok, err := security.GenerateAccessToken(security.AccessTokenInput{
		Secret:    f.cfg.Security.JWTAccessSecret,
		Issuer:    f.cfg.Security.JWTIssuer,
		UserID:    user.ID,
		SessionID: sessionID,
		TTL:       time.Hour,
	})
	require.NoError(f.t, err)
	return tok
}

func (f *apiFixture) grantAdmin(user models.User) {
	f.t.Helper()
	var role models.Role
	err := f.db.Where("name = ?", models.RoleAdmin).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		role = models.Role{ID: ids.New(), Name: models.RoleAdmin}
		require.NoError(f.t, f.db.Create(&role).Error)
	} else {
		require.NoError(f.t, err)
	}
	require.NoError(f.t, f.db.Create(&models.UserRole{
		UserID:    user.ID,
		RoleID:    role.ID,
		GrantedBy: user.ID,
		GrantedAt: time.Now(),
	}).Error)
}

func (f *apiFixture) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthReportsEachDependency(t *testing.T) {
	f := newAPIFixture(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"cache":    func(context.Context) error { return errors.New("down") },
	})

	rec := f.do(http.MethodGet, "/api/healthz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "test", body["environment"])
	assert.Equal(t, map[string]any{"database": "ok", "cache": "error"}, body["dependencies"])
}

func TestSchoolhouseLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t, nil)
	owner := testutil.CreateUser(t, f.db, "owner")
	instructor := testutil.CreateUser(t, f.db, "coach")
	tok := f.login(owner)

	rec := f.do(http.MethodPost, "/api/v1/schoolhouses", tok, gin.H{
		"name": "Harbor Sailing",
		"slug": "Harbor-Sailing",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	id := created["id"].(string)
	assert.Equal(t, "harbor-sailing", created["slug"])
	assert.Equal(t, "harbor-sailing", created["subdomain"])

	rec = f.do(http.MethodPost, "/api/v1/schoolhouses", tok, gin.H{"name": "Dup", "slug": "harbor-sailing"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slug_taken", decode(t, rec)["error"])

	rec = f.do(http.MethodPost, "/api/v1/schoolhouses/"+id+"/staff/instructors", tok, gin.H{"userId": instructor.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Instructor", decode(t, rec)["role"])

	rec = f.do(http.MethodGet, "/api/v1/schoolhouses/"+id+"/staff", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 2)

	rec = f.do(http.MethodGet, "/api/v1/schoolhouses/"+id+"/staff", f.login(instructor), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodDelete, "/api/v1/schoolhouses/"+id+"/staff/"+owner.ID, tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/schoolhouses/harbor-sailing", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode(t, rec)["id"])

	rec = f.do(http.MethodDelete, "/api/v1/schoolhouses/"+id, tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthRegisterRouteReachesHandler(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": "ada"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failure", decode(t, rec)["error"])
}

func TestUnpublishedSchoolhousesListedForAdminsOnly(t *testing.T) {
	f := newAPIFixture(t, nil)
	owner := testutil.CreateUser(t, f.db, "owner")
	rec := f.do(http.MethodPost, "/api/v1/schoolhouses", f.login(owner), gin.H{"name": "Draft", "slug": "draft"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/v1/schoolhouses?all=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["items"])

	rec = f.do(http.MethodGet, "/api/v1/admin/schoolhouses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/admin/schoolhouses", f.login(owner), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := testutil.CreateUser(t, f.db, "root")
	f.grantAdmin(admin)
	rec = f.do(http.MethodGet, "/api/v1/admin/schoolhouses", f.login(admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 1)
}

func TestSchoolhouseRoutesRequireAuth(t *testing.T) {
	f := newAPIFixture(t, nil)
	rec := f.do(http.MethodPost, "/api/v1/schoolhouses", "", gin.H{"name": "x", "slug": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvalidBodyIsValidationFailure(t *testing.T) {
	f := newAPIFixture(t, nil)
	owner := testutil.CreateUser(t, f.db, "owner")

	rec := f.do(http.MethodPost, "/api/v1/schoolhouses", f.login(owner), gin.H{"name": "No slug"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failure", decode(t, rec)["error"])
}

func TestAdminRoutesRequireGlobalRole(t *testing.T) {
	f := newAPIFixture(t, nil)
	admin := testutil.CreateUser(t, f.db, "root")
	plain := testutil.CreateUser(t, f.db, "plain")
	f.grantAdmin(admin)

	rec := f.do(http.MethodPost, "/api/v1/roles", f.login(plain), gin.H{"name": "Editors"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminTok := f.login(admin)
	rec = f.do(http.MethodPost, "/api/v1/roles", adminTok, gin.H{"name": "Editors"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	roleID := decode(t, rec)["id"].(string)

	rec = f.do(http.MethodPost, "/api/v1/roles/"+roleID+"/users/"+plain.ID, adminTok, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(http.MethodPost, "/api/v1/roles/"+roleID+"/users/"+plain.ID, adminTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["assigned"])

	rec = f.do(http.MethodGet, "/api/v1/roles/"+roleID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["members"], 1)

	rec = f.do(http.MethodGet, "/api/v1/admin/audit?action=AssignUser", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["total"])

	rec = f.do(http.MethodGet, "/api/v1/admin/audit?since=yesterday", adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuspendedUserIsLockedOut(t *testing.T) {
	f := newAPIFixture(t, nil)
	admin := testutil.CreateUser(t, f.db, "root")
	target := testutil.CreateUser(t, f.db, "target")
	f.grantAdmin(admin)
	targetTok := f.login(target)

	rec := f.do(http.MethodPost, "/api/v1/users/"+target.ID+"/suspend", f.login(admin), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "suspended", decode(t, rec)["status"])

	rec = f.do(http.MethodGet, "/api/v1/me", targetTok, nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestClassRoutes(t *testing.T) {
	f := newAPIFixture(t, nil)
	owner := testutil.CreateUser(t, f.db, "owner")
	sh := testutil.CreateSchoolhouse(t, f.db, "harbor", owner)
	tok := f.login(owner)

	starts := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	rec := f.do(http.MethodPost, "/api/v1/schoolhouses/"+sh.ID+"/classes", tok, gin.H{
		"title":       "Knots 101",
		"slug":        "knots-101",
		"startsAt":    starts,
		"isPublished": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	classID := decode(t, rec)["id"].(string)

	rec = f.do(http.MethodPut, "/api/v1/classes/"+classID, tok, gin.H{
		"title":    "Knots 101",
		"slug":     "knots-101",
		"startsAt": starts,
		"endsAt":   starts.Add(-time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/public/harbor/classes?futureOnly=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 1)

	rec = f.do(http.MethodDelete, "/api/v1/classes/"+classID, tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPublicRoutesResolveSchoolhouse(t *testing.T) {
	f := newAPIFixture(t, nil)
	owner := testutil.CreateUser(t, f.db, "owner")
	coach := testutil.CreateUser(t, f.db, "coach")
	sh := testutil.CreateSchoolhouse(t, f.db, "harbor", owner)
	testutil.AddStaff(t, f.db, sh.ID, coach.ID, models.StaffRoleInstructor, true)
	testutil.CreateInstructorProfile(t, f.db, coach)

	for _, path := range []string{
		"/api/v1/public/harbor/index",
		"/api/v1/public/index?schoolhouseSlug=harbor",
		"/api/v1/public/index",
	} {
		rec := f.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		body := decode(t, rec)
		assert.Equal(t, sh.ID, body["schoolhouse"].(map[string]any)["id"], path)
		assert.Len(t, body["instructors"], 1, path)
	}

	rec := f.do(http.MethodGet, "/api/v1/public/missing/about", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "schoolhouse_not_found", decode(t, rec)["error"])
}

func TestInstructorProfileRoutes(t *testing.T) {
	f := newAPIFixture(t, nil)
	user := testutil.CreateUser(t, f.db, "coach")
	tok := f.login(user)

	rec := f.do(http.MethodGet, "/api/v1/instructors/me", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPut, "/api/v1/instructors/me", tok, gin.H{"displayName": "Captain"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(http.MethodPut, "/api/v1/instructors/me", tok, gin.H{"displayName": "Captain Ada"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/instructors/me", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Captain Ada", decode(t, rec)["displayName"])
}

func multipartUpload(t *testing.T, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("title", "Photo"))
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestMediaUploadAndSignedDownload(t *testing.T) {
	f := newAPIFixture(t, nil)
	owner := testutil.CreateUser(t, f.db, "owner")
	tok := f.login(owner)

	body, contentType := multipartUpload(t, "cat.png", "image/png", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assetID := decode(t, rec)["id"].(string)

	rec = f.do(http.MethodGet, "/api/v1/media/"+assetID+"/url", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	url := decode(t, rec)["url"].(string)
	require.True(t, strings.HasPrefix(url, "/api/v1/media/"+assetID+"/content?"))

	rec = f.do(http.MethodGet, url, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	rec = f.do(http.MethodGet, "/api/v1/media/"+assetID+"/content?sig=forged&exp=9999999999", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodDelete, "/api/v1/media/"+assetID, tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.objects.objects)
}

func TestMediaUploadRejectsUnknownType(t *testing.T) {
	f := newAPIFixture(t, nil)
	owner := testutil.CreateUser(t, f.db, "owner")

	body, contentType := multipartUpload(t, "notes.bin", "application/octet-stream", []byte("\x00\x01\x02 plain bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+f.login(owner))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestMediaAttachToSchoolhouse(t *testing.T) {
	f := newAPIFixture(t, nil)
	owner := testutil.CreateUser(t, f.db, "owner")
	sh := testutil.CreateSchoolhouse(t, f.db, "harbor", owner)
	asset := testutil.CreateMediaAsset(t, f.db, owner)
	tok := f.login(owner)

	path := "/api/v1/media/" + asset.ID + "/attach/schoolhouse"
	payload := gin.H{"schoolhouseId": sh.ID, "visibleOnPublicSite": true}

	rec := f.do(http.MethodPost, path, tok, payload)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = f.do(http.MethodPost, path, tok, payload)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/public/harbor/about", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["media"], 1)
}

func TestStatusForMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrLoginLocked, http.StatusTooManyRequests},
		{service.ErrUploadTooLarge, http.StatusRequestEntityTooLarge},
		{service.ErrUnsupportedMedia, http.StatusUnsupportedMediaType},
		{service.ErrSchoolhouseNotFound, http.StatusNotFound},
		{service.ErrSlugTaken, http.StatusConflict},
		{service.ErrNotAuthorized, http.StatusForbidden},
		{service.ErrOwnerImmutable, http.StatusUnprocessableEntity},
		{service.Validation("bad"), http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
