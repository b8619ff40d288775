// Package ingest defines ports (interfaces) and the pipeline for the
// telemetry write path.
package ingest

import (
	"context"
	"time"

	"github.com/road-telemetry/rts/internal/record"
)

// RecordStore is the durable store surface the pipeline writes through.
type RecordStore interface {
	InsertBatch(ctx context.Context, records []record.Record) ([]record.Record, error)
	Update(ctx context.Context, id int64, rec record.Record) error
	Delete(ctx context.Context, id int64) error
}

// Deliverer pushes committed records to live subscribers.
type Deliverer interface {
	Deliver(records []record.Record)
}

// AuditLogger records the outcome of write operations.
type AuditLogger interface {
	LogAction(ctx context.Context, action, subject, outcome string, latency time.Duration)
	LogIngest(ctx context.Context, records, agents int, outcome string, latency time.Duration)
}
