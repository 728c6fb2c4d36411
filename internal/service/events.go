package service

import (
	"context"
	"log/slog"

	"snapgrid/internal/observability"
)

// EventEmitter pushes a named realtime event to every live connection of a
// user. Implementations are best effort and never report failure.
type EventEmitter interface {
	EmitToUser(ctx context.Context, userID uint, event string, data any)
}

// PresenceChecker reports whether a user holds a live connection.
type PresenceChecker interface {
	IsOnline(ctx context.Context, userID uint) bool
}

type noopEmitter struct{}

func (noopEmitter) EmitToUser(context.Context, uint, string, any) {}

type offlinePresence struct{}

func (offlinePresence) IsOnline(context.Context, uint) bool { return false }

// logSideEffect records a failed follow-up of an action that has already
// been committed.
func logSideEffect(ctx context.Context, op string, err error, attrs ...any) {
	attrs = append(attrs, slog.String("operation", op), slog.String("error", err.Error()))
	observability.GlobalLogger.WarnContext(ctx, "side effect failed", attrs...)
}
