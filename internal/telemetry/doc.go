// Package telemetry implements the live delivery path for the Road Telemetry Store.
//
// The registry tracks active WebSocket subscribers keyed by agent ID, the
// broadcaster partitions committed record batches by agent and pushes each
// partition to that agent's subscribers only, and the endpoint upgrades
// subscriber requests and runs the connection pumps.
package telemetry
