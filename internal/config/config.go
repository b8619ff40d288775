package config

import "time"

// Config is the complete configuration for the service.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Stream StreamConfig `yaml:"stream"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Auth   AuthConfig   `yaml:"auth"`
	Audit  AuditConfig  `yaml:"audit"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	ReadTimeoutSec     int    `yaml:"readTimeoutSec"`
	WriteTimeoutSec    int    `yaml:"writeTimeoutSec"`
	IdleTimeoutSec     int    `yaml:"idleTimeoutSec"`
	ShutdownTimeoutSec int    `yaml:"shutdownTimeoutSec"`
}

// ReadTimeout returns the read timeout as a duration.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSec) * time.Second
}

// WriteTimeout returns the write timeout as a duration.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSec) * time.Second
}

// IdleTimeout returns the idle timeout as a duration.
func (s ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSec) * time.Second
}

// ShutdownTimeout returns the graceful shutdown timeout as a duration.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSec) * time.Second
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Path     string `yaml:"path"`
	PoolSize int    `yaml:"poolSize"`
}

// StreamConfig holds live delivery settings.
type StreamConfig struct {
	SendBuffer    int   `yaml:"sendBuffer"`
	SendTimeoutMs int   `yaml:"sendTimeoutMs"`
	PongWaitSec   int   `yaml:"pongWaitSec"` // Pings go out at 90% of this.
	ReadLimit     int64 `yaml:"readLimit"`
}

// SendTimeout returns the per-subscriber send timeout as a duration.
func (s StreamConfig) SendTimeout() time.Duration {
	return time.Duration(s.SendTimeoutMs) * time.Millisecond
}

// PongWait returns the pong deadline as a duration.
func (s StreamConfig) PongWait() time.Duration {
	return time.Duration(s.PongWaitSec) * time.Second
}

// MQTTConfig holds the optional MQTT ingest bridge settings. The bridge is
// disabled while BrokerURL is empty.
type MQTTConfig struct {
	BrokerURL string `yaml:"brokerUrl"`
	Topic     string `yaml:"topic"`
	ClientID  string `yaml:"clientId"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	QoS       int    `yaml:"qos"`
}

// Enabled reports whether the MQTT bridge should run.
func (m MQTTConfig) Enabled() bool {
	return m.BrokerURL != ""
}

// AuthConfig holds bearer-token verification settings. Auth is enforced only
// while Enabled is true.
type AuthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Algorithm     string `yaml:"algorithm"`
	SecretKey     string `yaml:"secretKey"`
	PublicKeyFile string `yaml:"publicKeyFile"`
	JWKSURL       string `yaml:"jwksUrl"`
}

// AuditConfig holds audit log settings.
type AuditConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// LogConfig holds application log settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Baseline returns the configuration the service runs with when nothing else
// is provided.
func Baseline() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			ReadTimeoutSec:     15,
			WriteTimeoutSec:    15,
			IdleTimeoutSec:     60,
			ShutdownTimeoutSec: 10,
		},
		Store: StoreConfig{
			Path:     "data/records.db",
			PoolSize: 4,
		},
		Stream: StreamConfig{
			SendBuffer:    16,
			SendTimeoutMs: 100,
			PongWaitSec:   60,
			ReadLimit:     512,
		},
		MQTT: MQTTConfig{
			Topic:    "telemetry/records",
			ClientID: "rts-ingest",
			QoS:      1,
		},
		Auth: AuthConfig{
			Algorithm: "HS256",
		},
		Audit: AuditConfig{
			Dir:        "logs",
			MaxSizeMB:  50,
			MaxBackups: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
