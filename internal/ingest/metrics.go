package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rts_ingest_records_persisted_total",
		Help: "Total number of telemetry records committed to the store",
	})

	batchesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rts_ingest_batches_rejected_total",
		Help: "Number of batches rejected with no record persisted",
	})

	commitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rts_ingest_commit_duration_seconds",
		Help:    "Duration of batch validation and commit",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
)
