package mqtt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rts_mqtt_messages_received_total",
		Help: "Messages received on the telemetry topic",
	})

	batchesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rts_mqtt_batches_rejected_total",
		Help: "Published batches dropped for decode or ingest failures",
	})

	recordsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rts_mqtt_records_ingested_total",
		Help: "Records committed from broker-published batches",
	})
)
