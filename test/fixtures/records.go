// Package fixtures provides canonical telemetry payloads shared by tests.
package fixtures

import (
	"time"

	"github.com/road-telemetry/rts/internal/record"
)

// Agent ids used across test scenarios.
const (
	AgentTruck = "truck-07"
	AgentVan   = "van-02"
)

// BaseTime is the instant fixture timestamps count from.
var BaseTime = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

// Item builds a valid batch item for the given agent, offset from BaseTime.
func Item(agentID, roadState string, offset time.Duration) record.BatchItem {
	return record.BatchItem{
		RoadState:     roadState,
		AgentID:       agentID,
		Accelerometer: &record.Accelerometer{X: 0.12, Y: -0.03, Z: 9.81},
		GPS:           &record.GPS{Latitude: 52.5200, Longitude: 13.4050},
		Timestamp:     BaseTime.Add(offset).Format(time.RFC3339),
	}
}

// TruckBatch returns n records for the truck agent with increasing
// timestamps and alternating road states.
func TruckBatch(n int) []record.BatchItem {
	states := []string{"smooth", "rough", "pothole"}
	items := make([]record.BatchItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, Item(AgentTruck, states[i%len(states)], time.Duration(i)*time.Second))
	}
	return items
}

// MixedBatch returns a batch spanning both agents: two truck records around
// one van record, in that order.
func MixedBatch() []record.BatchItem {
	return []record.BatchItem{
		Item(AgentTruck, "smooth", 0),
		Item(AgentVan, "rough", time.Second),
		Item(AgentTruck, "pothole", 2*time.Second),
	}
}

// InvalidTimestampBatch returns a batch whose second item has a broken
// timestamp, so the whole batch must be rejected.
func InvalidTimestampBatch() []record.BatchItem {
	items := []record.BatchItem{
		Item(AgentTruck, "smooth", 0),
		Item(AgentVan, "rough", time.Second),
	}
	items[1].Timestamp = "yesterday around noon"
	return items
}
