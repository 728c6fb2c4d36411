package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix        = "user:%d"
	UnreadNotifPrefix    = "notifications:unread:%d"
	FollowingIDsPrefix   = "user:%d:following_ids"
	WSTicketPrefix       = "ws_ticket:%s"
	TokenBlacklistPrefix = "blacklist:%s"
)

const (
	UserTTL         = 5 * time.Minute
	UnreadCountTTL  = 2 * time.Minute
	FollowingIDsTTL = 5 * time.Minute
	WSTicketTTL     = 60 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func UnreadNotificationsKey(userID uint) string {
	return fmt.Sprintf(UnreadNotifPrefix, userID)
}

func FollowingIDsKey(userID uint) string {
	return fmt.Sprintf(FollowingIDsPrefix, userID)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketPrefix, ticket)
}

func TokenBlacklistKey(jti string) string {
	return fmt.Sprintf(TokenBlacklistPrefix, jti)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, UserKey(id))
	}
	Invalidate(ctx, keys...)
}

// InvalidateFollowGraph drops the cached profile and following list of
// both sides of a follow edge.
func InvalidateFollowGraph(ctx context.Context, followerID, followingID uint) {
	Invalidate(ctx,
		UserKey(followerID),
		UserKey(followingID),
		FollowingIDsKey(followerID),
	)
}

func InvalidateUnreadCount(ctx context.Context, userID uint) {
	Invalidate(ctx, UnreadNotificationsKey(userID))
}

// derivedPatterns match every key built from database rows. Tickets and
// the token blacklist are not derived and survive a purge.
var derivedPatterns = []string{"user:*", "notifications:unread:*"}

// PurgeDerived drops every cached row projection and returns how many keys
// were removed. Offline tools call it after rewriting rows in bulk.
func PurgeDerived(ctx context.Context) (int, error) {
	if client == nil {
		return 0, nil
	}
	removed := 0
	for _, pattern := range derivedPatterns {
		iter := client.Scan(ctx, 0, pattern, 500).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return removed, fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(batch) == 0 {
			continue
		}
		n, err := client.Del(ctx, batch...).Result()
		if err != nil {
			return removed, fmt.Errorf("delete %s: %w", pattern, err)
		}
		removed += int(n)
	}
	return removed, nil
}
