package notifications

import (
	"context"
	"log/slog"

	"snapgrid/internal/observability"
)

// Emitter pushes named events to users. Delivery is best effort: failures
// are logged and counted, never returned to the caller.
type Emitter struct {
	registry *Registry
	bus      *Bus
}

// NewEmitter creates an emitter over the local registry and the bus. While
// this process is subscribed every frame goes through Redis and each
// process's subscriber delivers to its own connections, so a frame reaches a
// connection exactly once. Until then frames are still published for other
// processes but local connections are served directly.
func NewEmitter(registry *Registry, bus *Bus) *Emitter {
	return &Emitter{registry: registry, bus: bus}
}

// Start subscribes this process to the bus. It is a no-op without Redis.
func (e *Emitter) Start(ctx context.Context) error {
	return e.bus.Subscribe(ctx, func(userID uint, frame []byte) {
		e.registry.Deliver(userID, frame)
	})
}

// EmitToUser sends event with data to every live connection of userID.
func (e *Emitter) EmitToUser(ctx context.Context, userID uint, event string, data any) {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		observability.RealtimeEventsTotal.WithLabelValues(event, "error").Inc()
		observability.GlobalLogger.ErrorContext(ctx, "encode realtime event",
			slog.String("event", event), slog.String("error", err.Error()))
		return
	}

	if e.bus.Enabled() {
		err := e.bus.Publish(ctx, userID, frame)
		switch {
		case err != nil:
			observability.GlobalLogger.WarnContext(ctx, "publish realtime event, delivering locally",
				slog.String("event", event),
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()))
		case e.bus.Subscribed():
			observability.RealtimeEventsTotal.WithLabelValues(event, "published").Inc()
			return
		default:
			observability.RealtimeEventsTotal.WithLabelValues(event, "published").Inc()
		}
	}

	if e.registry.Deliver(userID, frame) > 0 {
		observability.RealtimeEventsTotal.WithLabelValues(event, "delivered").Inc()
		return
	}
	observability.RealtimeEventsTotal.WithLabelValues(event, "offline").Inc()
}

// EmitToUsers sends the same event to each of userIDs.
func (e *Emitter) EmitToUsers(ctx context.Context, userIDs []uint, event string, data any) {
	for _, id := range userIDs {
		e.EmitToUser(ctx, id, event, data)
	}
}

// IsOnline reports whether userID has a live connection anywhere.
func (e *Emitter) IsOnline(ctx context.Context, userID uint) bool {
	return e.registry.IsOnline(ctx, userID)
}
