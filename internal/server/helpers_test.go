package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"snapgrid/internal/middleware"
	"snapgrid/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"commentId", "comment ID"},
		{"conversationId", "conversation ID"},
		{"parentCommentId", "parent comment ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", models.NewValidationError("bad"), http.StatusBadRequest},
		{"unauthorized", models.NewUnauthorizedError("who"), http.StatusUnauthorized},
		{"forbidden", models.NewForbiddenError("no"), http.StatusForbidden},
		{"not found", models.NewNotFoundError("Post", 1), http.StatusNotFound},
		{"conflict", models.NewConflictError("dup"), http.StatusConflict},
		{"internal", models.NewInternalError(errors.New("boom")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapServiceError(tt.err))
		})
	}
}

func TestParseID(t *testing.T) {
	app := fiber.New()
	app.Get("/things/:commentId", func(c *fiber.Ctx) error {
		id, err := parseID(c, "commentId")
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"id": id})
	})

	for path, want := range map[string]int{
		"/things/12":  http.StatusOK,
		"/things/0":   http.StatusBadRequest,
		"/things/-4":  http.StatusBadRequest,
		"/things/abc": http.StatusBadRequest,
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
	}
}

func TestRespondError_HidesInternalDetails(t *testing.T) {
	models.IncludeErrorDetails = false
	t.Cleanup(func() { models.IncludeErrorDetails = true })

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return respondError(c, errors.New("pq: connection refused"))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, models.CodeInternal, env.Code)
	assert.NotContains(t, env.Message, "connection refused")
}

// captureLogs routes the global logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := middleware.Logger
	middleware.Logger = slog.New(slog.NewJSONHandler(&buf, nil))
	t.Cleanup(func() { middleware.Logger = prev })
	return &buf
}

func panicApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: (&Server{}).errorHandler})
	app.Use(recover.New(recover.Config{EnableStackTrace: true, StackTraceHandler: recordPanicStack}))
	app.Post("/boom", func(c *fiber.Ctx) error {
		panic("nil map write")
	})
	app.Post("/login", func(c *fiber.Ctx) error {
		return respondError(c, models.NewUnauthorizedError("Invalid credentials"))
	})
	return app
}

func TestErrorHandler_PanicCarriesStack(t *testing.T) {
	logs := captureLogs(t)
	app := panicApp()

	req := httptest.NewRequest(http.MethodPost, "/boom", strings.NewReader(`{"caption":"hi"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, models.CodeInternal, body.Code)
	assert.Contains(t, body.Stack, "goroutine")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/boom", entry["path"])
	assert.Equal(t, `{"caption":"hi"}`, entry["body"])
	assert.Contains(t, entry["stack"], "goroutine")
}

func TestErrorHandler_ProductionHidesStack(t *testing.T) {
	captureLogs(t)
	models.IncludeErrorDetails = false
	t.Cleanup(func() { models.IncludeErrorDetails = true })

	resp, err := panicApp().Test(httptest.NewRequest(http.MethodPost, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Stack)
	assert.Empty(t, body.Error)
}

func TestRespondError_ClientErrorLogsRedactedBody(t *testing.T) {
	logs := captureLogs(t)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"a@example.com","password":"hunter2"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := panicApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Stack)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.NotContains(t, entry["body"], "hunter2")
	assert.Contains(t, entry["body"], "[redacted]")
	assert.Nil(t, entry["stack"])
}
