package server

import (
	"context"
	"errors"
	"log/slog"

	"snapgrid/internal/middleware"
	"snapgrid/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler upgrades GET /ws into a live event stream for the user
// set by WebSocketAuth. Frames are {"event": ..., "data": ...}; the client
// may send {"event":"ping"} as a heartbeat.
func (s *Server) WebsocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userID").(uint)
		if userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"error","data":{"message":"unauthorized"}}`))
			_ = conn.Close()
			return
		}

		ctx := s.shutdownCtx
		if ctx == nil {
			ctx = context.Background()
		}

		client, err := s.registry.Register(ctx, userID, conn)
		if err != nil {
			if !errors.Is(err, notifications.ErrServerFull) && !errors.Is(err, notifications.ErrUserFull) {
				middleware.Logger.Error("websocket register failed",
					slog.Uint64("user_id", uint64(userID)),
					slog.String("error", err.Error()))
			}
			frame, _ := notifications.EncodeFrame("error", fiber.Map{"message": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, frame)
			_ = conn.Close()
			return
		}

		client.Serve(ctx)
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}
