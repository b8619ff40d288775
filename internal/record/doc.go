// Package record defines the telemetry record model for the Road Telemetry Store.
//
// A record carries one road-state classification together with the
// accelerometer and GPS readings it was derived from, keyed by the
// originating agent. Inbound batch items are validated and normalized here
// before anything touches the store or the stream.
package record
