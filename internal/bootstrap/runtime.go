// Package bootstrap wires the database and Redis for offline commands that
// run outside the HTTP server.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"snapgrid/internal/cache"
	"snapgrid/internal/config"
	"snapgrid/internal/database"
	"snapgrid/internal/middleware"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// Migrate applies the schema even where the server would not, e.g.
	// before seeding a fresh production-like database.
	Migrate bool
}

// Runtime holds the connections of an offline command.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// InitRuntime connects to the database and Redis. Redis is optional and a
// nil client means cache purges are skipped.
func InitRuntime(cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if opts.Migrate {
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
	}

	cache.InitRedis(cfg.RedisURL)
	return &Runtime{DB: db, Redis: cache.GetClient()}, nil
}

// PurgeCaches drops cached projections of rows the command rewrote so the
// server does not serve stale profiles or unread counts.
func (r *Runtime) PurgeCaches(ctx context.Context) {
	if r.Redis == nil {
		return
	}
	n, err := cache.PurgeDerived(ctx)
	if err != nil {
		middleware.Logger.Warn("cache purge failed", slog.String("error", err.Error()))
		return
	}
	middleware.Logger.Info("cache purged", slog.Int("keys", n))
}

// Close releases every connection.
func (r *Runtime) Close() {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if err := database.Close(); err != nil {
		middleware.Logger.Warn("database close failed", slog.String("error", err.Error()))
	}
}
