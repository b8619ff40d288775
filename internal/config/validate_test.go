package config

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "baseline",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty listen address",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: true,
		},
		{
			name:    "zero read timeout",
			mutate:  func(c *Config) { c.Server.ReadTimeoutSec = 0 },
			wantErr: true,
		},
		{
			name:    "negative shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeoutSec = -1 },
			wantErr: true,
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantErr: true,
		},
		{
			name:    "zero pool size",
			mutate:  func(c *Config) { c.Store.PoolSize = 0 },
			wantErr: true,
		},
		{
			name:    "zero send buffer",
			mutate:  func(c *Config) { c.Stream.SendBuffer = 0 },
			wantErr: true,
		},
		{
			name:    "zero send timeout",
			mutate:  func(c *Config) { c.Stream.SendTimeoutMs = 0 },
			wantErr: true,
		},
		{
			name:    "zero pong wait",
			mutate:  func(c *Config) { c.Stream.PongWaitSec = 0 },
			wantErr: true,
		},
		{
			name:    "zero read limit",
			mutate:  func(c *Config) { c.Stream.ReadLimit = 0 },
			wantErr: true,
		},
		{
			name: "mqtt broker without topic",
			mutate: func(c *Config) {
				c.MQTT.BrokerURL = "tcp://broker:1883"
				c.MQTT.Topic = ""
			},
			wantErr: true,
		},
		{
			name: "mqtt broker without client id",
			mutate: func(c *Config) {
				c.MQTT.BrokerURL = "tcp://broker:1883"
				c.MQTT.ClientID = ""
			},
			wantErr: true,
		},
		{
			name: "mqtt invalid qos",
			mutate: func(c *Config) {
				c.MQTT.BrokerURL = "tcp://broker:1883"
				c.MQTT.QoS = 3
			},
			wantErr: true,
		},
		{
			name:   "mqtt enabled and well formed",
			mutate: func(c *Config) { c.MQTT.BrokerURL = "tcp://broker:1883" },
		},
		{
			name:   "mqtt disabled skips bridge checks",
			mutate: func(c *Config) { c.MQTT.Topic = "" },
		},
		{
			name:    "auth enabled HS256 without secret",
			mutate:  func(c *Config) { c.Auth.Enabled = true },
			wantErr: true,
		},
		{
			name: "auth enabled HS256 with secret",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.SecretKey = "secret"
			},
		},
		{
			name: "auth enabled RS256 without key material",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.Algorithm = "RS256"
			},
			wantErr: true,
		},
		{
			name: "auth enabled RS256 with JWKS URL",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.Algorithm = "RS256"
				c.Auth.JWKSURL = "https://issuer/.well-known/jwks.json"
			},
		},
		{
			name: "auth unsupported algorithm",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.Algorithm = "ES256"
			},
			wantErr: true,
		},
		{
			name:   "auth disabled skips key checks",
			mutate: func(c *Config) { c.Auth.Algorithm = "ES256" },
		},
		{
			name:    "empty audit dir",
			mutate:  func(c *Config) { c.Audit.Dir = "" },
			wantErr: true,
		},
		{
			name:    "zero audit max size",
			mutate:  func(c *Config) { c.Audit.MaxSizeMB = 0 },
			wantErr: true,
		},
		{
			name:    "negative audit backups",
			mutate:  func(c *Config) { c.Audit.MaxBackups = -1 },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:   "debug log level",
			mutate: func(c *Config) { c.Log.Level = "debug" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Baseline()
			tt.mutate(cfg)

			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNilConfig(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}
