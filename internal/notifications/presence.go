package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"snapgrid/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	presenceOnlineSetKey = "presence:online"
	presenceSeenPrefix   = "presence:seen:"
	presenceConnsKey     = "presence:conns"

	defaultPresenceTTL    = 90 * time.Second
	defaultOfflineGrace   = 5 * time.Second
	defaultReaperInterval = time.Minute
)

// PresenceConfig tunes the presence tracker. Zero values take defaults.
type PresenceConfig struct {
	SeenTTL        time.Duration
	OfflineGrace   time.Duration
	ReaperInterval time.Duration
}

// Presence counts live connections per user on this process and mirrors
// them into Redis so every process can answer IsOnline. Going offline waits
// OfflineGrace so a quick reconnect does not flap.
type Presence struct {
	rdb *redis.Client

	mu       sync.RWMutex
	counts   map[uint]int
	timers   map[uint]*time.Timer
	grace    time.Duration
	seenTTL  time.Duration
	interval time.Duration

	// offline holds recent offline announcements so the grace timer and
	// the reaper do not both fire. Entries older than seenTTL are swept.
	offline   map[uint]time.Time
	lastSweep time.Time

	onOnline  func(userID uint)
	onOffline func(userID uint)

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresence creates a tracker and starts the Redis reaper when rdb is set.
func NewPresence(rdb *redis.Client, cfg PresenceConfig) *Presence {
	p := &Presence{
		rdb:      rdb,
		counts:   make(map[uint]int),
		timers:   make(map[uint]*time.Timer),
		offline:  make(map[uint]time.Time),
		grace:    defaultOfflineGrace,
		seenTTL:  defaultPresenceTTL,
		interval: defaultReaperInterval,
		stopCh:   make(chan struct{}),
	}
	if cfg.OfflineGrace > 0 {
		p.grace = cfg.OfflineGrace
	}
	if cfg.SeenTTL > 0 {
		p.seenTTL = cfg.SeenTTL
	}
	if cfg.ReaperInterval > 0 {
		p.interval = cfg.ReaperInterval
	}
	if p.rdb != nil {
		go p.reaperLoop()
	}
	return p
}

// OnTransition sets the callbacks fired when a user comes online or goes
// offline across all of their connections.
func (p *Presence) OnTransition(online, offline func(userID uint)) {
	p.mu.Lock()
	p.onOnline = online
	p.onOffline = offline
	p.mu.Unlock()
}

// Stop halts the reaper and any pending offline timers.
func (p *Presence) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		for id, t := range p.timers {
			t.Stop()
			delete(p.timers, id)
		}
		p.mu.Unlock()
	})
}

// Connected records a new connection for userID.
func (p *Presence) Connected(ctx context.Context, userID uint) {
	wasOnline := p.IsOnline(ctx, userID)

	p.mu.Lock()
	if t, ok := p.timers[userID]; ok {
		// Reconnected inside the grace window.
		t.Stop()
		delete(p.timers, userID)
		wasOnline = true
	}
	if p.counts[userID] == 0 {
		observability.WebSocketOnlineUsers.Inc()
	}
	p.counts[userID]++
	p.mu.Unlock()

	if p.rdb != nil {
		_ = p.rdb.HIncrBy(ctx, presenceConnsKey, uidString(userID), 1).Err()
	}
	p.Touch(ctx, userID)
	if !wasOnline {
		p.fire(userID, true)
	}
}

// Disconnected drops one connection for userID and schedules the offline
// transition when it was the last one.
func (p *Presence) Disconnected(ctx context.Context, userID uint) {
	if p.rdb != nil {
		if n, err := p.rdb.HIncrBy(ctx, presenceConnsKey, uidString(userID), -1).Result(); err == nil && n <= 0 {
			_ = p.rdb.HDel(ctx, presenceConnsKey, uidString(userID)).Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.counts[userID]
	if !ok {
		return
	}
	if n > 1 {
		p.counts[userID] = n - 1
		return
	}
	delete(p.counts, userID)
	observability.WebSocketOnlineUsers.Dec()

	if t, ok := p.timers[userID]; ok {
		t.Stop()
	}
	p.timers[userID] = time.AfterFunc(p.grace, func() {
		p.finalize(context.Background(), userID)
	})
}

// Touch refreshes the user's last-seen key.
func (p *Presence) Touch(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	uid := uidString(userID)
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, presenceOnlineSetKey, uid)
		pipe.Set(ctx, seenKey(userID), time.Now().Unix(), p.seenTTL)
		return nil
	})
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "presence touch failed",
			slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}

// IsOnline reports whether userID has a live connection on any process.
func (p *Presence) IsOnline(ctx context.Context, userID uint) bool {
	p.mu.RLock()
	local := p.counts[userID] > 0
	p.mu.RUnlock()
	if local || p.rdb == nil {
		return local
	}
	n, err := p.rdb.Exists(ctx, seenKey(userID)).Result()
	return err == nil && n > 0
}

// OnlineAmong filters ids down to the users currently online.
func (p *Presence) OnlineAmong(ctx context.Context, ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if p.IsOnline(ctx, id) {
			out = append(out, id)
		}
	}
	return out
}

func (p *Presence) finalize(ctx context.Context, userID uint) {
	p.mu.Lock()
	delete(p.timers, userID)
	stillLocal := p.counts[userID] > 0
	p.mu.Unlock()
	if stillLocal {
		return
	}

	if p.rdb != nil {
		// Another process still holds a connection for the user.
		if n, err := p.rdb.HGet(ctx, presenceConnsKey, uidString(userID)).Int(); err == nil && n > 0 {
			return
		}
		_ = p.rdb.Del(ctx, seenKey(userID)).Err()
		_ = p.rdb.SRem(ctx, presenceOnlineSetKey, uidString(userID)).Err()
	}
	p.fire(userID, false)
}

// reapOnce removes online-set members whose seen key expired, which is what
// a crashed process leaves behind.
func (p *Presence) reapOnce(ctx context.Context) {
	members, err := p.rdb.SMembers(ctx, presenceOnlineSetKey).Result()
	if err != nil {
		return
	}
	for _, raw := range members {
		id64, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			_ = p.rdb.SRem(ctx, presenceOnlineSetKey, raw).Err()
			continue
		}
		userID := uint(id64)
		n, err := p.rdb.Exists(ctx, seenKey(userID)).Result()
		if err != nil || n > 0 {
			continue
		}
		_ = p.rdb.SRem(ctx, presenceOnlineSetKey, raw).Err()
		_ = p.rdb.HDel(ctx, presenceConnsKey, raw).Err()

		p.mu.RLock()
		local := p.counts[userID] > 0
		p.mu.RUnlock()
		if !local {
			p.fire(userID, false)
		}
	}
}

func (p *Presence) reaperLoop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce(context.Background())
		}
	}
}

func (p *Presence) fire(userID uint, online bool) {
	p.mu.Lock()
	var cb func(uint)
	if online {
		delete(p.offline, userID)
		cb = p.onOnline
	} else {
		if _, done := p.offline[userID]; done {
			p.mu.Unlock()
			return
		}
		now := time.Now()
		p.offline[userID] = now
		p.sweepOfflineLocked(now)
		cb = p.onOffline
	}
	p.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}

// sweepOfflineLocked drops offline announcements older than seenTTL, at
// most once per seenTTL. p.mu must be held.
func (p *Presence) sweepOfflineLocked(now time.Time) {
	if now.Sub(p.lastSweep) < p.seenTTL {
		return
	}
	p.lastSweep = now
	for id, at := range p.offline {
		if now.Sub(at) >= p.seenTTL {
			delete(p.offline, id)
		}
	}
}

func uidString(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

func seenKey(userID uint) string {
	return presenceSeenPrefix + uidString(userID)
}
