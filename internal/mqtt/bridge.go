package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/road-telemetry/rts/internal/record"
)

const (
	defaultTopic          = "telemetry/records"
	defaultClientID       = "rts-ingest"
	defaultQoS            = 1
	defaultConnectTimeout = 10 * time.Second
	defaultIngestTimeout  = 10 * time.Second
	defaultKeepAlive      = 30 * time.Second
)

// IngestPort is the write path the bridge feeds into.
type IngestPort interface {
	Ingest(ctx context.Context, items []record.BatchItem) ([]record.Record, error)
}

// Config carries the broker connection settings.
type Config struct {
	// BrokerURL addresses the broker as tcp://host:port, mqtt://host:port
	// or a bare host:port.
	BrokerURL string

	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte

	ConnectTimeout time.Duration
	IngestTimeout  time.Duration
	KeepAlive      time.Duration

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Topic == "" {
		c.Topic = defaultTopic
	}
	if c.ClientID == "" {
		c.ClientID = defaultClientID
	}
	if c.QoS == 0 {
		c.QoS = defaultQoS
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.IngestTimeout <= 0 {
		c.IngestTimeout = defaultIngestTimeout
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = defaultKeepAlive
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Bridge subscribes to the telemetry topic and ingests published batches.
type Bridge struct {
	pipeline IngestPort
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	conn    net.Conn
	client  *paho.Client
	started bool
	closed  atomic.Bool
}

// NewBridge creates a bridge that feeds broker batches into pipeline.
func NewBridge(pipeline IngestPort, cfg Config) *Bridge {
	cfg = cfg.withDefaults()
	return &Bridge{
		pipeline: pipeline,
		cfg:      cfg,
		logger:   cfg.Logger,
	}
}

// Start dials the broker, connects and subscribes to the telemetry topic.
// Received batches are handled on the client's read loop until Stop.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return errors.New("mqtt bridge already started")
	}

	addr, err := brokerAddress(b.cfg.BrokerURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.ConnectTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial broker %s: %w", addr, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		Conn:     conn,
		ClientID: b.cfg.ClientID,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			b.onPublish,
		},
		OnClientError: func(err error) {
			if b.closed.Load() {
				return
			}
			b.logger.Warn("broker connection error", "error", err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			if b.closed.Load() {
				return
			}
			b.logger.Warn("broker closed the connection", "reasonCode", d.ReasonCode)
		},
	})

	connack, err := client.Connect(ctx, &paho.Connect{
		ClientID:     b.cfg.ClientID,
		CleanStart:   true,
		KeepAlive:    uint16(b.cfg.KeepAlive.Seconds()),
		Username:     b.cfg.Username,
		UsernameFlag: b.cfg.Username != "",
		Password:     []byte(b.cfg.Password),
		PasswordFlag: b.cfg.Password != "",
	})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("connect to broker %s: %w", addr, err)
	}
	if connack.ReasonCode != 0 {
		_ = conn.Close()
		return fmt.Errorf("broker %s refused connection: reason code %d", addr, connack.ReasonCode)
	}

	if _, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: b.cfg.Topic, QoS: b.cfg.QoS},
		},
	}); err != nil {
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return fmt.Errorf("subscribe to %q: %w", b.cfg.Topic, err)
	}

	b.conn = conn
	b.client = client
	b.started = true
	b.logger.Info("mqtt ingest bridge started",
		"broker", addr, "topic", b.cfg.Topic, "qos", int(b.cfg.QoS))
	return nil
}

// Stop disconnects from the broker. Safe to call more than once.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}
	b.started = false
	b.closed.Store(true)

	b.logger.Info("stopping mqtt ingest bridge")
	if err := b.client.Disconnect(&paho.Disconnect{ReasonCode: 0}); err != nil {
		// The connection may already be gone; make sure it is.
		_ = b.conn.Close()
	}
	return nil
}

func (b *Bridge) onPublish(pb paho.PublishReceived) (bool, error) {
	if pb.Packet == nil || pb.AlreadyHandled {
		return false, nil
	}
	b.handleMessage(pb.Packet.Topic, pb.Packet.Payload)
	return true, nil
}

// handleMessage runs one published batch through the pipeline. Bad payloads
// and rejected batches are dropped; the subscription stays up either way.
func (b *Bridge) handleMessage(topic string, payload []byte) {
	start := time.Now()
	messagesReceived.Inc()

	items, err := decodeBatch(payload)
	if err != nil {
		batchesRejected.Inc()
		b.logger.Warn("dropping undecodable batch", "topic", topic, "error", err)
		return
	}
	if len(items) == 0 {
		batchesRejected.Inc()
		b.logger.Warn("dropping empty batch", "topic", topic)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.IngestTimeout)
	defer cancel()

	inserted, err := b.pipeline.Ingest(ctx, items)
	if err != nil {
		batchesRejected.Inc()
		b.logger.Warn("broker batch rejected", "topic", topic, "error", err)
		return
	}

	recordsIngested.Add(float64(len(inserted)))
	b.logger.Info("broker batch ingested",
		"topic", topic, "records", len(inserted), "elapsed", time.Since(start))
}

// decodeBatch parses a published payload with the same strictness as the
// HTTP ingest endpoint.
func decodeBatch(payload []byte) ([]record.BatchItem, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()

	var items []record.BatchItem
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after batch")
	}
	return items, nil
}

// brokerAddress resolves the configured broker URL to a host:port dial
// target. The default MQTT port is filled in when missing.
func brokerAddress(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("broker url is empty")
	}
	if !strings.Contains(raw, "://") {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse broker url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "tcp", "mqtt":
	default:
		return "", fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("broker url %q has no host", raw)
	}
	if u.Port() == "" {
		return net.JoinHostPort(u.Hostname(), "1883"), nil
	}
	return u.Host, nil
}
