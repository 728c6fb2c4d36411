package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("disabled limiter allows everything", func(t *testing.T) {
		l := NewRateLimiter(nil, false)
		for i := 0; i < 5; i++ {
			allowed, err := l.Allow(context.Background(), "login", "ip:1", 1, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
	})

	t.Run("enabled limiter without redis reports an error", func(t *testing.T) {
		l := NewRateLimiter(nil, true)
		allowed, err := l.Allow(context.Background(), "login", "ip:1", 1, time.Minute)
		assert.Error(t, err)
		assert.False(t, allowed)
	})

	t.Run("window limit is enforced and expires", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		l := NewRateLimiter(rdb, true)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			allowed, err := l.Allow(ctx, "login", "ip:1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := l.Allow(ctx, "login", "ip:1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		assert.True(t, mr.TTL("rl:login:ip:1") > 0)
		mr.FastForward(2 * time.Minute)

		allowed, err = l.Allow(ctx, "login", "ip:1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRateLimiter_Handler(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewRateLimiter(rdb, true)

	app := fiber.New()
	app.Post("/login", l.Handler(1, time.Minute, "login"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestRateLimiter_FailClosed(t *testing.T) {
	l := NewRateLimiter(nil, true)

	app := fiber.New()
	app.Post("/register", l.HandlerWithPolicy(5, time.Minute, FailClosed, "register"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/register", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
