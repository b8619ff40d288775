package telemetry

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/road-telemetry/rts/internal/record"
)

const (
	defaultSendTimeout = 100 * time.Millisecond
	defaultSendBuffer  = 16
)

// Config carries the tunables for the delivery path.
type Config struct {
	// SendTimeout bounds how long one subscriber handle may delay a
	// partition send before the message is dropped for that handle.
	SendTimeout time.Duration

	// SendBuffer is the per-subscriber outbound queue length.
	SendBuffer int

	// PongWait is how long a connection may go without a pong before its
	// read side gives up. Pings go out at 90% of this interval.
	PongWait time.Duration

	// ReadLimit caps inbound frame size. Subscribers only send control
	// frames, so the limit is small.
	ReadLimit int64

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaultSendTimeout
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = defaultReadLimit
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Broadcaster pushes committed record batches to live subscribers.
type Broadcaster struct {
	registry    *Registry
	sendTimeout time.Duration
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster that fans out over the given registry.
func NewBroadcaster(registry *Registry, cfg Config) *Broadcaster {
	cfg = cfg.withDefaults()
	return &Broadcaster{
		registry:    registry,
		sendTimeout: cfg.SendTimeout,
		logger:      cfg.Logger,
	}
}

// Deliver pushes a batch of committed records to the subscribers of each
// agent present in the batch. Records are grouped by agent with batch order
// preserved, each group is serialized once as a JSON array, and the message
// is offered to every handle that was subscribed to the agent when the
// group's snapshot was taken. A handle that cannot accept the message within
// the send timeout is skipped; the remaining handles still receive it.
func (b *Broadcaster) Deliver(records []record.Record) {
	if len(records) == 0 {
		return
	}

	agents, partitions := partitionByAgent(records)
	for _, agentID := range agents {
		partition := partitions[agentID]

		clients := b.registry.Snapshot(agentID)
		if len(clients) == 0 {
			continue
		}

		payload, err := json.Marshal(partition)
		if err != nil {
			b.logger.Error("marshal partition", "agentId", agentID, "error", err)
			continue
		}

		for _, client := range clients {
			if client.trySend(payload, b.sendTimeout) {
				continue
			}
			messagesDropped.Inc()
			b.logger.Warn("subscriber cannot keep up, message dropped",
				"agentId", agentID,
				"records", len(partition))
		}
		partitionsDelivered.Inc()
	}
}

// partitionByAgent groups records by agent ID. The returned agent list is in
// first-appearance order and each partition preserves the batch order of its
// records.
func partitionByAgent(records []record.Record) ([]string, map[string][]record.Record) {
	agents := make([]string, 0, 4)
	partitions := make(map[string][]record.Record, 4)

	for _, rec := range records {
		if _, ok := partitions[rec.AgentID]; !ok {
			agents = append(agents, rec.AgentID)
		}
		partitions[rec.AgentID] = append(partitions[rec.AgentID], rec)
	}
	return agents, partitions
}
