package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/road-telemetry/rts/internal/record"
)

func deliveryRecord(id int64, agentID string, x float64) record.Record {
	ts, _ := record.ParseTimestamp("2024-01-01T00:00:00Z")
	return record.Record{
		ID:        id,
		RoadState: "smooth",
		AgentID:   agentID,
		X:         x,
		Y:         0,
		Z:         9.8,
		Latitude:  1,
		Longitude: 2,
		Timestamp: ts,
	}
}

// receivePartition pops one queued message from the handle and decodes it as
// a JSON array of records.
func receivePartition(t *testing.T, c *Client) []record.Record {
	t.Helper()

	select {
	case payload := <-c.send:
		var records []record.Record
		if err := json.Unmarshal(payload, &records); err != nil {
			t.Fatalf("partition payload is not a JSON record array: %v", err)
		}
		return records
	case <-time.After(time.Second):
		t.Fatal("no partition message received")
		return nil
	}
}

func expectNoMessage(t *testing.T, c *Client) {
	t.Helper()

	select {
	case payload := <-c.send:
		t.Fatalf("unexpected message queued: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDeliverPartitionsByAgent(t *testing.T) {
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, Config{})

	a1 := newTestClient("agent-a", registry, 16)
	a2 := newTestClient("agent-a", registry, 16)
	b1 := newTestClient("agent-b", registry, 16)
	registry.Register(a1)
	registry.Register(a2)
	registry.Register(b1)

	broadcaster.Deliver([]record.Record{
		deliveryRecord(1, "agent-a", 0.1),
		deliveryRecord(2, "agent-a", 0.2),
		deliveryRecord(3, "agent-a", 0.3),
	})

	// Both agent-a handles get the full partition in batch order.
	for _, c := range []*Client{a1, a2} {
		records := receivePartition(t, c)
		if len(records) != 3 {
			t.Fatalf("partition holds %d records, want 3", len(records))
		}
		for i, rec := range records {
			if rec.AgentID != "agent-a" {
				t.Errorf("record %d has agent %q, want agent-a", i, rec.AgentID)
			}
			if rec.ID != int64(i+1) {
				t.Errorf("record %d has ID %d, want %d", i, rec.ID, i+1)
			}
		}
	}

	// The batch held nothing for agent-b.
	expectNoMessage(t, b1)
}

func TestDeliverGroupsInterleavedBatch(t *testing.T) {
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, Config{})

	a := newTestClient("agent-a", registry, 16)
	b := newTestClient("agent-b", registry, 16)
	registry.Register(a)
	registry.Register(b)

	broadcaster.Deliver([]record.Record{
		deliveryRecord(1, "agent-a", 0.1),
		deliveryRecord(2, "agent-b", 0.2),
		deliveryRecord(3, "agent-a", 0.3),
		deliveryRecord(4, "agent-b", 0.4),
		deliveryRecord(5, "agent-a", 0.5),
	})

	aRecords := receivePartition(t, a)
	if got := recordIDs(aRecords); !equalIDs(got, []int64{1, 3, 5}) {
		t.Errorf("agent-a partition IDs = %v, want [1 3 5]", got)
	}

	bRecords := receivePartition(t, b)
	if got := recordIDs(bRecords); !equalIDs(got, []int64{2, 4}) {
		t.Errorf("agent-b partition IDs = %v, want [2 4]", got)
	}

	// One message per handle per batch, however the records interleave.
	expectNoMessage(t, a)
	expectNoMessage(t, b)
}

func TestDeliverWithoutSubscribers(t *testing.T) {
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, Config{})

	broadcaster.Deliver([]record.Record{deliveryRecord(1, "agent-a", 0.1)})
	broadcaster.Deliver(nil)
}

func TestPartitionByAgentOrdering(t *testing.T) {
	agents, partitions := partitionByAgent([]record.Record{
		deliveryRecord(1, "agent-a", 0),
		deliveryRecord(2, "agent-b", 0),
		deliveryRecord(3, "agent-a", 0),
		deliveryRecord(4, "agent-c", 0),
		deliveryRecord(5, "agent-b", 0),
	})

	wantAgents := []string{"agent-a", "agent-b", "agent-c"}
	if len(agents) != len(wantAgents) {
		t.Fatalf("got %d agents, want %d", len(agents), len(wantAgents))
	}
	for i, agentID := range wantAgents {
		if agents[i] != agentID {
			t.Errorf("agents[%d] = %q, want %q", i, agents[i], agentID)
		}
	}

	if got := recordIDs(partitions["agent-a"]); !equalIDs(got, []int64{1, 3}) {
		t.Errorf("agent-a partition IDs = %v, want [1 3]", got)
	}
	if got := recordIDs(partitions["agent-b"]); !equalIDs(got, []int64{2, 5}) {
		t.Errorf("agent-b partition IDs = %v, want [2 5]", got)
	}
	if got := recordIDs(partitions["agent-c"]); !equalIDs(got, []int64{4}) {
		t.Errorf("agent-c partition IDs = %v, want [4]", got)
	}
}

// TestDeliveryContract_SlowSubscriberIsolation tests that a handle that
// cannot accept a message does not block delivery to the agent's other
// handles.
func TestDeliveryContract_SlowSubscriberIsolation(t *testing.T) {
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, Config{SendTimeout: 20 * time.Millisecond})

	// Unbuffered queue with no reader: every send to this handle times out.
	slow := newTestClient("agent-a", registry, 0)
	fast := newTestClient("agent-a", registry, 16)
	registry.Register(slow)
	registry.Register(fast)

	start := time.Now()
	broadcaster.Deliver([]record.Record{deliveryRecord(1, "agent-a", 0.1)})
	elapsed := time.Since(start)

	records := receivePartition(t, fast)
	if len(records) != 1 {
		t.Fatalf("fast handle received %d records, want 1", len(records))
	}
	expectNoMessage(t, slow)

	if elapsed > time.Second {
		t.Errorf("Deliver() took %v, a slow handle must cost at most its send timeout", elapsed)
	}
}

// TestDeliveryContract_LateSubscriberExcluded tests that a handle registered
// after a batch's snapshot was taken does not receive that batch.
func TestDeliveryContract_LateSubscriberExcluded(t *testing.T) {
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, Config{SendTimeout: 150 * time.Millisecond})

	// The slow handle keeps Deliver inside its send window long enough to
	// register another handle strictly after the snapshot was taken.
	slow := newTestClient("agent-a", registry, 0)
	registry.Register(slow)

	done := make(chan struct{})
	go func() {
		broadcaster.Deliver([]record.Record{deliveryRecord(1, "agent-a", 0.1)})
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	late := newTestClient("agent-a", registry, 16)
	registry.Register(late)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver() did not return")
	}

	expectNoMessage(t, late)
}

func recordIDs(records []record.Record) []int64 {
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	return ids
}

func equalIDs(got, want []int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
