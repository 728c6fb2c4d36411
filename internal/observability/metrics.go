package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapgrid_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snapgrid_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of open live connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snapgrid_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketOnlineUsers is the gauge of users with at least one connection
	// on this process.
	WebSocketOnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snapgrid_websocket_online_users",
		Help: "Number of users with a live connection on this instance",
	})

	// RealtimeEventsTotal counts emitted events by name and outcome
	// (delivered, offline, published, error).
	RealtimeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapgrid_realtime_events_total",
		Help: "Total realtime events emitted by name and outcome",
	}, []string{"event", "outcome"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapgrid_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// NotificationsTotal counts notification engine outcomes by type.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapgrid_notifications_total",
		Help: "Notifications created, suppressed, or removed by type",
	}, []string{"type", "outcome"})

	// CounterDriftRepaired counts rows whose denormalized counter was fixed.
	CounterDriftRepaired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapgrid_counter_drift_repaired_total",
		Help: "Rows repaired by counter reconciliation, by counter",
	}, []string{"counter"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
