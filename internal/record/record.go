package record

import "fmt"

// Record is the persisted shape of one processed telemetry reading.
// The id is assigned by the store on insert and is never reused.
type Record struct {
	ID        int64     `json:"id"`
	RoadState string    `json:"road_state"`
	AgentID   string    `json:"agent_id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp Timestamp `json:"timestamp"`
}

// Accelerometer is one three-axis accelerometer sample.
type Accelerometer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// GPS is one GPS fix.
type GPS struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BatchItem is one inbound telemetry reading as submitted by an agent.
// The timestamp stays a raw string until Normalize so that a malformed
// value is reported against its batch position instead of failing the
// whole decode.
type BatchItem struct {
	RoadState     string         `json:"road_state"`
	AgentID       string         `json:"agent_id"`
	Accelerometer *Accelerometer `json:"accelerometer"`
	GPS           *GPS           `json:"gps"`
	Timestamp     string         `json:"timestamp"`
}

// ValidationError reports the first invalid item in an inbound batch.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("item %d: field %q: %s", e.Index, e.Field, e.Reason)
}

// Normalize validates the item and converts it into the persisted record
// shape, with the id left zero for the store to assign. The batch index is
// carried into any returned ValidationError.
func (i BatchItem) Normalize(index int) (Record, error) {
	if i.RoadState == "" {
		return Record{}, &ValidationError{Index: index, Field: "road_state", Reason: "must not be empty"}
	}
	if i.AgentID == "" {
		return Record{}, &ValidationError{Index: index, Field: "agent_id", Reason: "must not be empty"}
	}
	if i.Accelerometer == nil {
		return Record{}, &ValidationError{Index: index, Field: "accelerometer", Reason: "is required"}
	}
	if i.GPS == nil {
		return Record{}, &ValidationError{Index: index, Field: "gps", Reason: "is required"}
	}
	if i.Timestamp == "" {
		return Record{}, &ValidationError{Index: index, Field: "timestamp", Reason: "is required"}
	}
	ts, err := ParseTimestamp(i.Timestamp)
	if err != nil {
		return Record{}, &ValidationError{Index: index, Field: "timestamp", Reason: fmt.Sprintf("not a valid ISO 8601 instant: %v", err)}
	}

	return Record{
		RoadState: i.RoadState,
		AgentID:   i.AgentID,
		X:         i.Accelerometer.X,
		Y:         i.Accelerometer.Y,
		Z:         i.Accelerometer.Z,
		Latitude:  i.GPS.Latitude,
		Longitude: i.GPS.Longitude,
		Timestamp: ts,
	}, nil
}

// NormalizeBatch validates every item and converts the whole batch before
// anything is persisted. The first invalid item fails the entire batch.
func NormalizeBatch(items []BatchItem) ([]Record, error) {
	records := make([]Record, 0, len(items))
	for index, item := range items {
		rec, err := item.Normalize(index)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
