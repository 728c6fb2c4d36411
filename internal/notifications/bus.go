package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"

	"snapgrid/internal/observability"

	"github.com/redis/go-redis/v9"
)

const userChannelPrefix = "notifications:user:"

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ParseUserChannel extracts the user id from a user channel name.
func ParseUserChannel(channel string) (uint, error) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, fmt.Errorf("not a user channel: %q", channel)
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad user id in channel %q: %w", channel, err)
	}
	return uint(id), nil
}

// Bus carries frames between processes over Redis pub/sub.
type Bus struct {
	rdb        *redis.Client
	subscribed atomic.Bool
}

// NewBus creates a bus. A nil client makes every call a no-op.
func NewBus(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

// Enabled reports whether cross-process delivery is available.
func (b *Bus) Enabled() bool {
	return b != nil && b.rdb != nil
}

// Subscribed reports whether this process currently receives the frames it
// publishes. It is false before Subscribe confirms and after the listener
// exits.
func (b *Bus) Subscribed() bool {
	return b.Enabled() && b.subscribed.Load()
}

// Publish sends frame to the user's channel.
func (b *Bus) Publish(ctx context.Context, userID uint, frame []byte) error {
	if !b.Enabled() {
		return nil
	}
	return b.rdb.Publish(ctx, UserChannel(userID), frame).Err()
}

// Subscribe listens on every user channel until ctx is done and calls
// handle for each frame. It returns once the subscription is confirmed.
func (b *Bus) Subscribe(ctx context.Context, handle func(userID uint, frame []byte)) error {
	if !b.Enabled() {
		return nil
	}
	sub := b.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe user channels: %w", err)
	}
	ch := sub.Channel()
	b.subscribed.Store(true)

	go func() {
		defer func() {
			b.subscribed.Store(false)
			_ = sub.Close()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.dispatch(ctx, msg, handle)
			}
		}
	}()
	return nil
}

func (b *Bus) dispatch(ctx context.Context, msg *redis.Message, handle func(uint, []byte)) {
	defer func() {
		if r := recover(); r != nil {
			observability.GlobalLogger.ErrorContext(ctx, "panic in user channel handler",
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
	}()
	userID, err := ParseUserChannel(msg.Channel)
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "ignoring message", slog.String("error", err.Error()))
		return
	}
	handle(userID, []byte(msg.Payload))
}
