package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/road-telemetry/rts/internal/record"
	"github.com/road-telemetry/rts/internal/store"
	"github.com/road-telemetry/rts/internal/telemetry"
)

// Compile-time assertions that the concrete implementations satisfy the ports.
var (
	_ RecordStore = (*store.Store)(nil)
	_ Deliverer   = (*telemetry.Broadcaster)(nil)
)

const (
	defaultIngestTimeout = 10 * time.Second
	defaultWriteTimeout  = 5 * time.Second
)

// Config carries the pipeline timeouts.
type Config struct {
	// IngestTimeout bounds the batch commit. The fan-out that follows the
	// commit is bounded by the broadcaster's own send timeout.
	IngestTimeout time.Duration

	// WriteTimeout bounds single-record updates and deletes.
	WriteTimeout time.Duration

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.IngestTimeout <= 0 {
		c.IngestTimeout = defaultIngestTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Pipeline runs the telemetry write path: validate every item of a batch,
// commit the batch atomically, then push the committed records to live
// subscribers.
type Pipeline struct {
	store       RecordStore
	broadcaster Deliverer
	audit       AuditLogger
	logger      *slog.Logger

	ingestTimeout time.Duration
	writeTimeout  time.Duration
}

// NewPipeline creates an ingest pipeline over the given store and deliverer.
func NewPipeline(recordStore RecordStore, broadcaster Deliverer, cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		store:         recordStore,
		broadcaster:   broadcaster,
		logger:        cfg.Logger,
		ingestTimeout: cfg.IngestTimeout,
		writeTimeout:  cfg.WriteTimeout,
	}
}

// SetAuditLogger sets the audit logger.
func (p *Pipeline) SetAuditLogger(logger AuditLogger) {
	p.audit = logger
}

// Ingest validates all items of a batch, persists them in one transaction,
// and pushes the committed records to live subscribers. No record is
// persisted when any item is invalid, and nothing is pushed when the commit
// fails. The returned records carry their assigned IDs in batch order.
func (p *Pipeline) Ingest(ctx context.Context, items []record.BatchItem) ([]record.Record, error) {
	start := time.Now()

	records, err := record.NormalizeBatch(items)
	if err != nil {
		batchesRejected.Inc()
		p.logIngest(ctx, len(items), 0, "VALIDATION_ERROR", time.Since(start))
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.ingestTimeout)
	defer cancel()

	inserted, err := p.store.InsertBatch(ctx, records)
	latency := time.Since(start)

	if err != nil {
		batchesRejected.Inc()
		p.logIngest(ctx, len(items), 0, "PERSISTENCE_ERROR", latency)
		return nil, err
	}

	recordsPersisted.Add(float64(len(inserted)))
	commitDuration.Observe(latency.Seconds())
	p.logIngest(ctx, len(inserted), countAgents(inserted), "SUCCESS", latency)

	// Push strictly after the commit. Delivery problems are absorbed by the
	// broadcaster and never change the ingest outcome.
	p.broadcaster.Deliver(inserted)

	return inserted, nil
}

// Update validates the replacement fields and overwrites the stored record.
func (p *Pipeline) Update(ctx context.Context, id int64, item record.BatchItem) (record.Record, error) {
	start := time.Now()
	subject := strconv.FormatInt(id, 10)

	rec, err := item.Normalize(0)
	if err != nil {
		p.logAction(ctx, "updateRecord", subject, "VALIDATION_ERROR", time.Since(start))
		return record.Record{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	err = p.store.Update(ctx, id, rec)
	latency := time.Since(start)

	if err != nil {
		p.logAction(ctx, "updateRecord", subject, outcomeForError(err), latency)
		return record.Record{}, err
	}

	p.logAction(ctx, "updateRecord", subject, "SUCCESS", latency)

	rec.ID = id
	return rec, nil
}

// Delete removes the stored record with the given ID.
func (p *Pipeline) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	subject := strconv.FormatInt(id, 10)

	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	err := p.store.Delete(ctx, id)
	latency := time.Since(start)

	if err != nil {
		p.logAction(ctx, "deleteRecord", subject, outcomeForError(err), latency)
		return err
	}

	p.logAction(ctx, "deleteRecord", subject, "SUCCESS", latency)
	return nil
}

// logIngest logs an audit record for a batch ingest.
func (p *Pipeline) logIngest(ctx context.Context, records, agents int, outcome string, latency time.Duration) {
	if p.audit != nil {
		p.audit.LogIngest(ctx, records, agents, outcome, latency)
	}
}

// logAction logs an audit record for a single-record operation.
func (p *Pipeline) logAction(ctx context.Context, action, subject, outcome string, latency time.Duration) {
	if p.audit != nil {
		p.audit.LogAction(ctx, action, subject, outcome, latency)
	}
}

func outcomeForError(err error) string {
	if errors.Is(err, store.ErrNotFound) {
		return "NOT_FOUND"
	}
	return "PERSISTENCE_ERROR"
}

func countAgents(records []record.Record) int {
	agents := make(map[string]struct{}, len(records))
	for _, rec := range records {
		agents[rec.AgentID] = struct{}{}
	}
	return len(agents)
}
