// Package mqtt bridges broker-published telemetry into the ingest pipeline.
//
// Field agents that cannot hold an HTTP connection publish record batches
// to a broker topic instead. The bridge subscribes to that topic and feeds
// every decoded batch through the same validate-commit-deliver path as the
// HTTP API, so subscribers see broker-published records too.
package mqtt
