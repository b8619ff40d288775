package record

import (
	"time"

	"github.com/relvacode/iso8601"
)

// Timestamp is an absolute instant that serializes as an ISO 8601 string,
// per RFC 3339.
type Timestamp time.Time

// String returns the timestamp as an ISO 8601 string in UTC.
func (t Timestamp) String() string {
	return time.Time(t).UTC().Format(time.RFC3339Nano)
}

// MarshalText marshals the timestamp to an ISO 8601 string.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText unmarshals the timestamp from an ISO 8601 string.
func (t *Timestamp) UnmarshalText(b []byte) error {
	parsed, err := iso8601.Parse(b)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the timestamp as a native time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// ParseTimestamp parses an ISO 8601 string into a Timestamp.
func ParseTimestamp(s string) (Timestamp, error) {
	parsed, err := iso8601.ParseString(s)
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp(parsed), nil
}
