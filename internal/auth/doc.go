// Package auth implements authentication and authorization for the Road Telemetry Store.
//
// The auth package validates bearer tokens and enforces scopes on the record
// API, separating agents that submit telemetry from operators that read and
// maintain stored records.
package auth
