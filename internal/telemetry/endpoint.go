package telemetry

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Endpoint upgrades subscriber requests to WebSocket connections and serves
// them until they disconnect.
type Endpoint struct {
	registry *Registry
	upgrader websocket.Upgrader
	cfg      Config
	logger   *slog.Logger
}

// NewEndpoint creates a subscription endpoint backed by the given registry.
func NewEndpoint(registry *Registry, cfg Config) *Endpoint {
	cfg = cfg.withDefaults()
	return &Endpoint{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Subscribe upgrades the request and blocks until the subscriber disconnects.
// The handle joins the agent's subscriber set only after the handshake
// succeeds, and leaves it exactly once when either pump exits. A failed
// handshake never registers anything; the upgrader has already written the
// HTTP error response in that case.
func (e *Endpoint) Subscribe(w http.ResponseWriter, r *http.Request, agentID string) error {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade subscriber connection: %w", err)
	}

	client := newClient(conn, agentID, e.registry, e.cfg)
	e.registry.Register(client)
	e.logger.Info("subscriber connected", "agentId", agentID, "remote", conn.RemoteAddr().String())

	go client.writePump()
	client.readPump()

	e.logger.Info("subscriber disconnected", "agentId", agentID, "remote", conn.RemoteAddr().String())
	return nil
}
