package telemetry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second // Time allowed to write a message to the peer.
	defaultPongWait  = 60 * time.Second // Time allowed to read the next pong from the peer.
	defaultReadLimit = 512              // Subscribers only send control frames.
)

// Client is a single WebSocket subscriber bound to one agent's record stream.
type Client struct {
	conn      *websocket.Conn
	agentID   string
	registry  *Registry
	logger    *slog.Logger
	pongWait  time.Duration
	readLimit int64

	send chan []byte
	done chan struct{}
	once sync.Once
}

// newClient builds a subscriber handle from cfg as given; the endpoint applies
// defaults before calling it.
func newClient(conn *websocket.Conn, agentID string, registry *Registry, cfg Config) *Client {
	return &Client{
		conn:      conn,
		agentID:   agentID,
		registry:  registry,
		logger:    cfg.Logger,
		pongWait:  cfg.PongWait,
		readLimit: cfg.ReadLimit,
		send:      make(chan []byte, cfg.SendBuffer),
		done:      make(chan struct{}),
	}
}

// AgentID returns the agent whose records this subscriber receives.
func (c *Client) AgentID() string {
	return c.agentID
}

// close tears the subscriber down. Both pumps call it on their failure paths;
// the registry sees exactly one Unregister no matter which path runs first.
func (c *Client) close() {
	c.once.Do(func() {
		c.registry.Unregister(c)
		close(c.done)
		c.conn.Close()
	})
}

// readPump consumes inbound frames until the peer disconnects. Subscribers
// are not expected to send data, but reading is still required so close and
// pong control frames are processed.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(c.readLimit)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("subscriber read failed", "agentId", c.agentID, "error", err)
			}
			return
		}
	}
}

// writePump moves queued messages to the connection and keeps the peer alive
// with periodic pings. Pings go out at 90% of the pong deadline.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("subscriber write failed", "agentId", c.agentID, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// trySend offers a payload to the subscriber's outbound queue, giving up
// after timeout. It reports whether the payload was queued.
func (c *Client) trySend(payload []byte, timeout time.Duration) bool {
	// Check for a closed handle first so delivery to dead subscribers does
	// not burn the full timeout.
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	case <-time.After(timeout):
		return false
	}
}
