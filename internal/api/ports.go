package api

import (
	"context"
	"net/http"

	"github.com/road-telemetry/rts/internal/ingest"
	"github.com/road-telemetry/rts/internal/record"
	"github.com/road-telemetry/rts/internal/store"
	"github.com/road-telemetry/rts/internal/telemetry"
)

// PipelinePort is the write path the API depends on. Mutations go through
// the pipeline so that validation, persistence and delivery stay ordered.
type PipelinePort interface {
	// Ingest validates and persists a batch, then returns the stored
	// records with their assigned ids.
	Ingest(ctx context.Context, items []record.BatchItem) ([]record.Record, error)

	// Update replaces the record with the given id.
	Update(ctx context.Context, id int64, item record.BatchItem) (record.Record, error)

	// Delete removes the record with the given id.
	Delete(ctx context.Context, id int64) error
}

// ReadPort is the read path the API depends on.
type ReadPort interface {
	// Get returns the record with the given id.
	Get(ctx context.Context, id int64) (record.Record, error)

	// List returns all records ordered by id.
	List(ctx context.Context) ([]record.Record, error)
}

// StreamPort upgrades HTTP requests into live subscriber handles.
type StreamPort interface {
	// Subscribe upgrades the request and registers the connection under
	// the given agent id until the peer disconnects.
	Subscribe(w http.ResponseWriter, r *http.Request, agentID string) error
}

var _ PipelinePort = (*ingest.Pipeline)(nil)
var _ ReadPort = (*store.Store)(nil)
var _ StreamPort = (*telemetry.Endpoint)(nil)
