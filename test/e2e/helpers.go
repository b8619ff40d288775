// Package e2e exercises the Road Telemetry Store over its HTTP and
// WebSocket surface, the way deployed agents and dashboards use it.
package e2e

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/road-telemetry/rts/internal/record"
	"github.com/road-telemetry/rts/internal/telemetry"
)

type envelope struct {
	Result  string          `json:"result"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()

	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response envelope: %v", err)
	}
	return env
}

func postBatch(t *testing.T, baseURL string, items []record.BatchItem) *http.Response {
	t.Helper()

	body, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal batch: %v", err)
	}
	resp, err := http.Post(baseURL+"/api/v1/records", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("POST records failed: %v", err)
	}
	return resp
}

// postBatch200 ingests a batch and returns the acknowledged records.
func postBatch200(t *testing.T, baseURL string, items []record.BatchItem) []record.Record {
	t.Helper()

	resp := postBatch(t, baseURL, items)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST records returned status %d", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Result != "ok" {
		t.Fatalf("POST records result %q, code %q", env.Result, env.Code)
	}

	var inserted []record.Record
	if err := json.Unmarshal(env.Data, &inserted); err != nil {
		t.Fatalf("decode inserted records: %v", err)
	}
	return inserted
}

func doGet(t *testing.T, url string) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return resp
}

func listRecords(t *testing.T, baseURL string) []record.Record {
	t.Helper()

	resp := doGet(t, baseURL+"/api/v1/records")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET records returned status %d", resp.StatusCode)
	}

	var records []record.Record
	if err := json.Unmarshal(decodeEnvelope(t, resp).Data, &records); err != nil {
		t.Fatalf("decode record list: %v", err)
	}
	return records
}

// dialStream opens a live subscription for the given agent.
func dialStream(t *testing.T, baseURL, agentID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/agents/" + agentID + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial stream for %s: %v", agentID, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readDelivery reads one pushed message and decodes it as a record array.
func readDelivery(t *testing.T, conn *websocket.Conn, timeout time.Duration) []record.Record {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read delivery: %v", err)
	}

	var records []record.Record
	if err := json.Unmarshal(payload, &records); err != nil {
		t.Fatalf("delivery is not a record array: %v\npayload: %s", err, payload)
	}
	return records
}

// expectSilence fails if the subscriber receives anything before the
// timeout elapses.
func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	if _, payload, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no delivery, got: %s", payload)
	}
}

// waitForSubscribers blocks until the registry holds want handles. Dialing
// returns before the server side finishes registering, so tests must wait.
func waitForSubscribers(t *testing.T, registry *telemetry.Registry, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if registry.SubscriberCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscriber count never reached %d, have %d", want, registry.SubscriberCount())
}
