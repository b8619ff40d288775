package telemetry

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/road-telemetry/rts/internal/record"
)

func startStreamServer(t *testing.T) (*httptest.Server, *Registry, *Broadcaster) {
	t.Helper()

	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, Config{Logger: slog.New(slog.DiscardHandler)})
	endpoint := NewEndpoint(registry, Config{Logger: slog.New(slog.DiscardHandler)})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint.Subscribe(w, r, r.URL.Query().Get("agent"))
	}))
	t.Cleanup(server.Close)

	return server, registry, broadcaster
}

func dialStream(t *testing.T, server *httptest.Server, agentID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/?agent=" + agentID
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial(%s) failed: %v", wsURL, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, registry *Registry, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if registry.SubscriberCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("SubscriberCount() = %d, want %d", registry.SubscriberCount(), want)
}

func TestSubscribeDeliversCommittedBatch(t *testing.T) {
	server, registry, broadcaster := startStreamServer(t)

	conn := dialStream(t, server, "agent-a")
	waitForSubscribers(t, registry, 1)

	broadcaster.Deliver([]record.Record{
		deliveryRecord(1, "agent-a", 0.1),
		deliveryRecord(2, "agent-a", 0.2),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() failed: %v", err)
	}

	var records []record.Record
	if err := json.Unmarshal(payload, &records); err != nil {
		t.Fatalf("payload is not a JSON record array: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("received %d records, want 2", len(records))
	}
	if records[0].ID != 1 || records[1].ID != 2 {
		t.Errorf("record IDs = [%d %d], want [1 2]", records[0].ID, records[1].ID)
	}
	if records[0].AgentID != "agent-a" {
		t.Errorf("record agent = %q, want agent-a", records[0].AgentID)
	}
}

func TestSubscribeUnregistersOnDisconnect(t *testing.T) {
	server, registry, _ := startStreamServer(t)

	conn := dialStream(t, server, "agent-a")
	waitForSubscribers(t, registry, 1)

	conn.Close()
	waitForSubscribers(t, registry, 0)
}

func TestSubscribeIsolatesAgents(t *testing.T) {
	server, registry, broadcaster := startStreamServer(t)

	connA := dialStream(t, server, "agent-a")
	connB := dialStream(t, server, "agent-b")
	waitForSubscribers(t, registry, 2)

	broadcaster.Deliver([]record.Record{deliveryRecord(1, "agent-a", 0.1)})

	connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := connA.ReadMessage(); err != nil {
		t.Fatalf("agent-a subscriber got no message: %v", err)
	}

	// agent-b's subscriber must see nothing for a batch that holds no
	// agent-b records.
	connB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, payload, err := connB.ReadMessage(); err == nil {
		t.Fatalf("agent-b subscriber received unexpected message: %s", payload)
	}
}

func TestSubscribeRejectsPlainHTTP(t *testing.T) {
	registry := NewRegistry()
	endpoint := NewEndpoint(registry, Config{Logger: slog.New(slog.DiscardHandler)})

	req := httptest.NewRequest(http.MethodGet, "/stream?agent=agent-a", nil)
	w := httptest.NewRecorder()

	// A failed handshake must leave nothing registered.
	if err := endpoint.Subscribe(w, req, "agent-a"); err == nil {
		t.Fatal("Subscribe() accepted a request without an upgrade handshake")
	}
	if got := registry.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() = %d after failed handshake, want 0", got)
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCloseAllDisconnectsSubscribers(t *testing.T) {
	server, registry, _ := startStreamServer(t)

	connA := dialStream(t, server, "agent-a")
	dialStream(t, server, "agent-b")
	waitForSubscribers(t, registry, 2)

	registry.CloseAll()
	waitForSubscribers(t, registry, 0)

	connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := connA.ReadMessage(); err != nil {
			break
		}
	}
}
