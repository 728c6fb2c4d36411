package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"snapgrid/internal/config"
	"snapgrid/internal/middleware"
	"snapgrid/internal/models"
	"snapgrid/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret-key-12345678901234567890123456789012"

// envelope is the decoded shape of every API response.
type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Code       string          `json:"code"`
	Data       json.RawMessage `json:"data"`
}

type testServer struct {
	*Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		JWTSecret:            testJWTSecret,
		JWTIssuer:            "snapgrid-api",
		JWTTTLHrs:            1,
		Port:                 "0",
		Env:                  "test",
		FeatureFlags:         "presence_events=on,suggested_users=on",
		ImageUploadDir:       t.TempDir(),
		ImageMaxUploadSizeMB: 5,
		PublicBaseURL:        "/uploads",
		PaginationMaxLimit:   50,
		PresenceGraceSeconds: 1,
	}
}

// newTestServer builds a server over in-memory SQLite and miniredis.
// mutate may adjust the config before wiring.
func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}

	db := testutil.NewTestDB(t)
	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	t.Cleanup(s.presence.Stop)

	return &testServer{Server: s, app: s.App(), db: db, mr: mr}
}

func (ts *testServer) tokenFor(t *testing.T, userID uint) string {
	t.Helper()
	token, _, err := middleware.IssueAccessToken(testJWTSecret, "snapgrid-api", userID, time.Hour)
	require.NoError(t, err)
	return token
}

// do sends a JSON request and decodes the envelope.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), string(env.Data))
	return out
}

// page mirrors pagination.Result on the wire.
type page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["redis"])
}

func TestReadiness_RedisDownOnlyFailsProduction(t *testing.T) {
	ts := newTestServer(t)
	ts.mr.Close()

	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ts.config.Env = "production"
	resp, err = ts.app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)

	t.Run("unknown route", func(t *testing.T) {
		status, env := ts.do(t, http.MethodGet, "/api/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.False(t, env.Success)
		assert.Equal(t, models.CodeNotFound, env.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		status, env := ts.do(t, http.MethodGet, "/api/posts/feed", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, models.CodeUnauthorized, env.Code)
		assert.Equal(t, http.StatusUnauthorized, env.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodGet, "/api/posts/feed", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("bad id", func(t *testing.T) {
		u := testutil.CreateUser(t, ts.db)
		status, env := ts.do(t, http.MethodGet, "/api/posts/abc", ts.tokenFor(t, u.ID), nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, models.CodeValidation, env.Code)
	})

	t.Run("missing entity", func(t *testing.T) {
		u := testutil.CreateUser(t, ts.db)
		status, env := ts.do(t, http.MethodGet, "/api/posts/999999", ts.tokenFor(t, u.ID), nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, models.CodeNotFound, env.Code)
	})
}

func TestFeatureFlags(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.FeatureFlags = "suggested_users=off" })
	u := testutil.CreateUser(t, ts.db)
	token := ts.tokenFor(t, u.ID)

	status, env := ts.do(t, http.MethodGet, "/api/feature-flags", token, nil)
	require.Equal(t, http.StatusOK, status)
	got := decodeData[struct {
		Flags map[string]bool `json:"flags"`
	}](t, env)
	assert.False(t, got.Flags["suggested_users"])
	assert.False(t, got.Flags["presence_events"])

	status, _ = ts.do(t, http.MethodGet, "/api/users/suggested", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
