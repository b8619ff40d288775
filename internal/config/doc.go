// Package config implements configuration loading for the Road Telemetry
// Store.
//
// Configuration is resolved in three layers: baseline defaults, an optional
// YAML file, and RTS_* environment variables, each layer overriding the one
// before it. The merged result is validated before the service starts; a
// config the service cannot run with is rejected at load time, not at first
// use.
package config
