package record

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func validItem() BatchItem {
	return BatchItem{
		RoadState:     "pothole",
		AgentID:       "u1",
		Accelerometer: &Accelerometer{X: 0.1, Y: 0.2, Z: 9.8},
		GPS:           &GPS{Latitude: 1.0, Longitude: 2.0},
		Timestamp:     "2024-01-01T00:00:00Z",
	}
}

func TestNormalizeCopiesAllFields(t *testing.T) {
	rec, err := validItem().Normalize(0)
	if err != nil {
		t.Fatalf("Normalize() failed: %v", err)
	}

	if rec.ID != 0 {
		t.Errorf("ID = %d, want 0 before insert", rec.ID)
	}
	if rec.RoadState != "pothole" {
		t.Errorf("RoadState = %q, want %q", rec.RoadState, "pothole")
	}
	if rec.AgentID != "u1" {
		t.Errorf("AgentID = %q, want %q", rec.AgentID, "u1")
	}
	if rec.X != 0.1 || rec.Y != 0.2 || rec.Z != 9.8 {
		t.Errorf("accelerometer = (%v, %v, %v), want (0.1, 0.2, 9.8)", rec.X, rec.Y, rec.Z)
	}
	if rec.Latitude != 1.0 || rec.Longitude != 2.0 {
		t.Errorf("gps = (%v, %v), want (1.0, 2.0)", rec.Latitude, rec.Longitude)
	}

	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !rec.Timestamp.Time().Equal(want) {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp.Time(), want)
	}
}

func TestNormalizeRejectsIncompleteItems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BatchItem)
		field  string
	}{
		{"empty road_state", func(i *BatchItem) { i.RoadState = "" }, "road_state"},
		{"empty agent_id", func(i *BatchItem) { i.AgentID = "" }, "agent_id"},
		{"missing accelerometer", func(i *BatchItem) { i.Accelerometer = nil }, "accelerometer"},
		{"missing gps", func(i *BatchItem) { i.GPS = nil }, "gps"},
		{"empty timestamp", func(i *BatchItem) { i.Timestamp = "" }, "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := validItem()
			tt.mutate(&item)

			_, err := item.Normalize(3)
			if err == nil {
				t.Fatal("Normalize() succeeded, want validation error")
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if verr.Index != 3 {
				t.Errorf("Index = %d, want 3", verr.Index)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestNormalizeRejectsMalformedTimestamps(t *testing.T) {
	malformed := []string{
		"not-a-date",
		"2025-13-45T99:99:99",
		"01/02/2024 15:04",
	}

	for _, ts := range malformed {
		item := validItem()
		item.Timestamp = ts

		_, err := item.Normalize(0)
		if err == nil {
			t.Errorf("Normalize() accepted timestamp %q", ts)
			continue
		}

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("timestamp %q: error type = %T, want *ValidationError", ts, err)
			continue
		}
		if verr.Field != "timestamp" {
			t.Errorf("timestamp %q: Field = %q, want %q", ts, verr.Field, "timestamp")
		}
	}
}

func TestNormalizeAcceptsTimestampVariants(t *testing.T) {
	variants := []string{
		"2024-01-01T00:00:00Z",
		"2024-01-01T12:30:45.123Z",
		"2024-01-01T10:00:00+02:00",
	}

	for _, ts := range variants {
		item := validItem()
		item.Timestamp = ts

		if _, err := item.Normalize(0); err != nil {
			t.Errorf("Normalize() rejected timestamp %q: %v", ts, err)
		}
	}
}

func TestNormalizeBatchRejectsWholeBatchOnOneBadItem(t *testing.T) {
	bad := validItem()
	bad.Timestamp = "not-a-date"

	records, err := NormalizeBatch([]BatchItem{validItem(), bad, validItem()})
	if err == nil {
		t.Fatal("NormalizeBatch() succeeded with an invalid item")
	}
	if records != nil {
		t.Errorf("records = %v, want nil on validation failure", records)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if verr.Index != 1 {
		t.Errorf("Index = %d, want 1", verr.Index)
	}
}

func TestNormalizeBatchEmptyInput(t *testing.T) {
	records, err := NormalizeBatch(nil)
	if err != nil {
		t.Fatalf("NormalizeBatch(nil) failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}

func TestRecordJSONShape(t *testing.T) {
	rec, err := validItem().Normalize(0)
	if err != nil {
		t.Fatalf("Normalize() failed: %v", err)
	}
	rec.ID = 42

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	for _, field := range []string{`"id":42`, `"road_state":"pothole"`, `"agent_id":"u1"`, `"timestamp":"2024-01-01T00:00:00Z"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("marshaled record missing %s: %s", field, data)
		}
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	ts, err := ParseTimestamp("2024-06-15T08:30:00.5+02:00")
	if err != nil {
		t.Fatalf("ParseTimestamp() failed: %v", err)
	}

	text, err := ts.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() failed: %v", err)
	}

	var back Timestamp
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText(%q) failed: %v", text, err)
	}

	if !back.Time().Equal(ts.Time()) {
		t.Errorf("round trip = %v, want %v", back.Time(), ts.Time())
	}
}
