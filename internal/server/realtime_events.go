package server

import (
	"context"
	"log/slog"
	"time"

	"snapgrid/internal/featureflags"
	"snapgrid/internal/middleware"
	"snapgrid/internal/models"
)

const presenceFanoutTimeout = 5 * time.Second

// PresenceEvent is the payload of user:online and user:offline.
type PresenceEvent struct {
	UserID uint      `json:"user_id"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// presenceChanged returns the callback run when a user's last connection
// opens or closes (after the offline grace period). Only followers who are
// connected at that moment are told.
func (s *Server) presenceChanged(online bool) func(userID uint) {
	event := models.EventUserOffline
	if online {
		event = models.EventUserOnline
	}
	return func(userID uint) {
		if !s.featureFlags.Enabled(featureflags.PresenceEvents, userID) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), presenceFanoutTimeout)
		defer cancel()

		followers, err := s.followService.FollowerIDs(ctx, userID)
		if err != nil {
			middleware.Logger.Warn("presence fanout: load followers",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()))
			return
		}
		targets := s.registry.OnlineAmong(ctx, followers)
		if len(targets) == 0 {
			return
		}
		s.emitter.EmitToUsers(ctx, targets, event, PresenceEvent{
			UserID: userID,
			Online: online,
			At:     time.Now().UTC(),
		})
	}
}
