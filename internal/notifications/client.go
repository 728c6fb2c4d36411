package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"snapgrid/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBufferSize = 64
)

// Frame is the wire shape of every event sent to a client.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// EncodeFrame marshals an event and its payload into a wire frame.
func EncodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Data: data})
}

// inbound is a frame sent by the client. Only heartbeats are understood.
type inbound struct {
	Event string `json:"event"`
}

const (
	clientEventPing = "ping"
	serverEventPong = "pong"
	eventDropped    = "events:dropped"
)

// Client is one live connection of a user.
type Client struct {
	UserID uint

	conn      *websocket.Conn
	registry  *Registry
	send      chan []byte
	closeOnce sync.Once
}

func newClient(r *Registry, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		UserID:   userID,
		conn:     conn,
		registry: r,
		send:     make(chan []byte, sendBufferSize),
	}
}

// Serve runs the write pump in the background and the read pump on the
// calling goroutine. It returns when the peer disconnects, and the client is
// unregistered on return.
func (c *Client) Serve(ctx context.Context) {
	go c.writePump()
	reason := c.readPump(ctx)
	c.registry.unregister(ctx, c, reason)
}

func (c *Client) readPump(ctx context.Context) string {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.registry.touch(ctx, c.UserID)
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return "read_error"
			}
			return "closed"
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var in inbound
		if json.Unmarshal(message, &in) != nil {
			continue
		}
		if in.Event == clientEventPing {
			c.registry.touch(ctx, c.UserID)
			if frame, err := EncodeFrame(serverEventPong, map[string]int64{"ts": time.Now().UnixMilli()}); err == nil {
				c.trySend(frame)
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues a frame without blocking. A full buffer drops the frame and
// tries to tell the client so it can refetch.
func (c *Client) trySend(frame []byte) (sent bool) {
	defer func() {
		if recover() != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.registry.name, "closed").Inc()
			sent = false
		}
	}()

	select {
	case c.send <- frame:
		return true
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues(c.registry.name, "full").Inc()
	if notice, err := EncodeFrame(eventDropped, map[string]string{"reason": "buffer_full"}); err == nil {
		select {
		case c.send <- notice:
		default:
		}
	}
	return false
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}
