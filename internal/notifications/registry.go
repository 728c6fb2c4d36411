// Package notifications routes realtime events to users' live connections,
// locally and across processes through Redis pub/sub.
package notifications

import (
	"context"
	"errors"
	"sync"

	"snapgrid/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	maxConnsPerUser = 8
	maxTotalConns   = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

// Registry maps user ids to the live connections held by this process.
type Registry struct {
	name     string
	mu       sync.RWMutex
	conns    map[uint]map[*Client]struct{}
	total    int
	presence *Presence
	log      *observability.WSLogger
}

// NewRegistry creates an empty registry. presence may be nil.
func NewRegistry(presence *Presence) *Registry {
	const name = "user"
	return &Registry{
		name:     name,
		conns:    make(map[uint]map[*Client]struct{}),
		presence: presence,
		log:      observability.NewWSLogger(name),
	}
}

// Register adds conn for userID and returns its client. Call Serve on the
// client to pump frames until the peer disconnects.
func (r *Registry) Register(ctx context.Context, userID uint, conn *websocket.Conn) (*Client, error) {
	r.mu.Lock()
	if r.total >= maxTotalConns {
		r.mu.Unlock()
		return nil, ErrServerFull
	}
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[*Client]struct{})
		r.conns[userID] = set
	}
	if len(set) >= maxConnsPerUser {
		r.mu.Unlock()
		return nil, ErrUserFull
	}
	c := newClient(r, conn, userID)
	set[c] = struct{}{}
	r.total++
	userConns := len(set)
	r.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	r.log.LogConnect(ctx, userID, userConns)
	if r.presence != nil {
		r.presence.Connected(ctx, userID)
	}
	return c, nil
}

func (r *Registry) unregister(ctx context.Context, c *Client, reason string) {
	r.mu.Lock()
	removed := false
	if set, ok := r.conns[c.UserID]; ok {
		if _, exists := set[c]; exists {
			delete(set, c)
			r.total--
			removed = true
		}
		if len(set) == 0 {
			delete(r.conns, c.UserID)
		}
	}
	r.mu.Unlock()

	if !removed {
		return
	}
	c.close()
	observability.WebSocketConnectionsTotal.Dec()
	r.log.LogDisconnect(ctx, c.UserID, reason)
	if r.presence != nil {
		r.presence.Disconnected(ctx, c.UserID)
	}
}

// Deliver hands frame to every local connection of userID and reports how
// many accepted it. Zero means the user has no connection here.
func (r *Registry) Deliver(userID uint, frame []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	delivered := 0
	for c := range r.conns[userID] {
		if c.trySend(frame) {
			delivered++
		}
	}
	return delivered
}

// Connections returns the number of local connections of userID.
func (r *Registry) Connections(userID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}

// IsOnline reports whether userID is connected to any process.
func (r *Registry) IsOnline(ctx context.Context, userID uint) bool {
	if r.presence != nil {
		return r.presence.IsOnline(ctx, userID)
	}
	return r.Connections(userID) > 0
}

// OnlineAmong filters ids down to users that are online.
func (r *Registry) OnlineAmong(ctx context.Context, ids []uint) []uint {
	if r.presence != nil {
		return r.presence.OnlineAmong(ctx, ids)
	}
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if r.Connections(id) > 0 {
			out = append(out, id)
		}
	}
	return out
}

func (r *Registry) touch(ctx context.Context, userID uint) {
	if r.presence != nil {
		r.presence.Touch(ctx, userID)
	}
}

// Shutdown closes every connection. Each write pump sends the close frame
// itself, so writes to a connection stay on one goroutine.
func (r *Registry) Shutdown(ctx context.Context) error {
	if r.presence != nil {
		r.presence.Stop()
	}

	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[uint]map[*Client]struct{})
	r.total = 0
	r.mu.Unlock()

	for userID, set := range conns {
		for c := range set {
			c.close()
			observability.WebSocketConnectionsTotal.Dec()
			r.log.LogDisconnect(ctx, userID, "shutdown")
		}
	}
	return nil
}
