// Package audit implements the audit trail for the Road Telemetry Store.
//
// Every write against the record store (batch ingest, update, delete) is
// appended as one JSON line to a rotating audit log, recording who acted,
// what they touched, the outcome code, and the latency. The log is the
// system of record for answering "which agent submitted what, and when".
package audit
