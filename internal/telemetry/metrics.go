package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rts_stream_subscribers",
		Help: "Current number of connected WebSocket subscribers",
	})

	partitionsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rts_stream_partitions_delivered_total",
		Help: "Total number of per-agent record batches pushed to subscribers",
	})

	messagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rts_stream_dropped_total",
		Help: "Number of messages dropped because a subscriber could not keep up",
	})
)
