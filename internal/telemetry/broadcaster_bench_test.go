package telemetry

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/road-telemetry/rts/internal/record"
)

func benchBatch(size int) []record.Record {
	ts, _ := record.ParseTimestamp("2024-01-01T00:00:00Z")
	batch := make([]record.Record, 0, size)
	for i := 0; i < size; i++ {
		batch = append(batch, record.Record{
			ID:        int64(i + 1),
			RoadState: "smooth",
			AgentID:   fmt.Sprintf("agent-%02d", i%4),
			X:         float64(i) * 0.1,
			Z:         9.8,
			Latitude:  1,
			Longitude: 2,
			Timestamp: ts,
		})
	}
	return batch
}

func BenchmarkDeliverWithSubscribers(b *testing.B) {
	for _, count := range []int{1, 5, 10} {
		b.Run(fmt.Sprintf("Subscribers_%d", count), func(b *testing.B) {
			registry := NewRegistry()
			broadcaster := NewBroadcaster(registry, Config{})

			stop := make(chan struct{})
			defer close(stop)

			// Drain each subscriber so the outbound queues never fill.
			for i := 0; i < count; i++ {
				c := newClient(nil, "agent-00", registry, Config{
					SendBuffer: 64,
					Logger:     slog.New(slog.DiscardHandler),
				})
				registry.Register(c)
				go func(c *Client) {
					for {
						select {
						case <-c.send:
						case <-stop:
							return
						}
					}
				}(c)
			}

			batch := benchBatch(8)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				broadcaster.Deliver(batch)
			}
		})
	}
}

func BenchmarkDeliverWithoutSubscribers(b *testing.B) {
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, Config{})

	batch := benchBatch(8)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		broadcaster.Deliver(batch)
	}
}

func BenchmarkPartitionByAgent(b *testing.B) {
	batch := benchBatch(64)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		partitionByAgent(batch)
	}
}
