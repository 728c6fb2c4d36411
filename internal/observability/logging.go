// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// GlobalLogger is the JSON logger used by long-lived components (live
// connection hubs, background jobs) that run outside a request.
var GlobalLogger *slog.Logger

func init() {
	GlobalLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// WSLogger provides structured logging for WebSocket operations.
type WSLogger struct {
	hubName string
	logger  *slog.Logger
}

// NewWSLogger creates a new WSLogger for the given hub.
func NewWSLogger(hubName string) *WSLogger {
	return &WSLogger{
		hubName: hubName,
		logger:  GlobalLogger,
	}
}

// LogConnect logs a WebSocket connection event.
func (l *WSLogger) LogConnect(ctx context.Context, userID uint, connections int) {
	l.logger.InfoContext(ctx, "websocket connected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.Int("user_connections", connections),
	)
}

// LogDisconnect logs a WebSocket disconnection event.
func (l *WSLogger) LogDisconnect(ctx context.Context, userID uint, reason string) {
	l.logger.InfoContext(ctx, "websocket disconnected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("reason", reason),
	)
}

// LogDrop logs an event that could not be handed to a connection.
func (l *WSLogger) LogDrop(ctx context.Context, userID uint, event, reason string) {
	l.logger.WarnContext(ctx, "websocket event dropped",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("event", event),
		slog.String("reason", reason),
	)
}

// LogAsyncOperationStart logs the beginning of a background job run and
// returns the start time for LogAsyncOperationEnd.
func LogAsyncOperationStart(ctx context.Context, operation string) time.Time {
	GlobalLogger.InfoContext(ctx, "async operation started",
		slog.String("operation", operation),
	)
	return time.Now()
}

// LogAsyncOperationEnd logs the outcome of a background job run.
func LogAsyncOperationEnd(ctx context.Context, operation string, started time.Time, err error, attrs ...any) {
	attrs = append(attrs,
		slog.String("operation", operation),
		slog.Duration("duration", time.Since(started)),
	)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		GlobalLogger.ErrorContext(ctx, "async operation failed", attrs...)
		return
	}
	GlobalLogger.InfoContext(ctx, "async operation completed", attrs...)
}
