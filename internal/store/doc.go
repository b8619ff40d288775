// Package store implements the persistence layer for the Road Telemetry Store.
//
// Records live in a single SQLite database accessed through a fixed-size
// connection pool. Batch inserts run in one IMMEDIATE transaction so a batch
// is either fully committed or not visible at all; broadcast to live
// subscribers happens only after that commit returns.
package store
