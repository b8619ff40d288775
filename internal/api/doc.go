// Package api implements the HTTP surface of the Road Telemetry Store.
//
// The API exposes batch ingest, record CRUD and the per-agent WebSocket
// stream over HTTP/JSON, translating requests into pipeline and store calls
// and mapping their errors onto a unified response envelope.
package api
