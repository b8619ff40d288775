package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// defaultConfigFile is picked up from the working directory when no explicit
// path is given.
const defaultConfigFile = "config.yaml"

// Load resolves the configuration: baseline defaults, then the YAML file at
// path (or ./config.yaml when path is empty and the file exists), then RTS_*
// environment overrides, validated as a whole.
func Load(path string) (*Config, error) {
	cfg := Baseline()

	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile unmarshals a YAML file over the current configuration. Fields
// absent from the file keep their current values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies RTS_* environment variables to the config.
// Malformed numeric values are ignored and the previous value kept.
func applyEnvOverrides(cfg *Config) {
	// Server
	if val := os.Getenv("RTS_SERVER_ADDR"); val != "" {
		cfg.Server.Addr = val
	}

	// Store
	if val := os.Getenv("RTS_STORE_PATH"); val != "" {
		cfg.Store.Path = val
	}
	if val := os.Getenv("RTS_STORE_POOL_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			cfg.Store.PoolSize = size
		}
	}

	// Stream
	if val := os.Getenv("RTS_STREAM_SEND_BUFFER"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			cfg.Stream.SendBuffer = size
		}
	}
	if val := os.Getenv("RTS_STREAM_SEND_TIMEOUT_MS"); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			cfg.Stream.SendTimeoutMs = ms
		}
	}
	if val := os.Getenv("RTS_STREAM_PONG_WAIT_SEC"); val != "" {
		if sec, err := strconv.Atoi(val); err == nil {
			cfg.Stream.PongWaitSec = sec
		}
	}

	// MQTT
	if val := os.Getenv("RTS_MQTT_BROKER_URL"); val != "" {
		cfg.MQTT.BrokerURL = val
	}
	if val := os.Getenv("RTS_MQTT_TOPIC"); val != "" {
		cfg.MQTT.Topic = val
	}
	if val := os.Getenv("RTS_MQTT_CLIENT_ID"); val != "" {
		cfg.MQTT.ClientID = val
	}
	if val := os.Getenv("RTS_MQTT_USERNAME"); val != "" {
		cfg.MQTT.Username = val
	}
	if val := os.Getenv("RTS_MQTT_PASSWORD"); val != "" {
		cfg.MQTT.Password = val
	}

	// Auth
	if val := os.Getenv("RTS_AUTH_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.Auth.Enabled = enabled
		}
	}
	if val := os.Getenv("RTS_AUTH_ALGORITHM"); val != "" {
		cfg.Auth.Algorithm = val
	}
	if val := os.Getenv("RTS_AUTH_SECRET_KEY"); val != "" {
		cfg.Auth.SecretKey = val
	}
	if val := os.Getenv("RTS_AUTH_PUBLIC_KEY_FILE"); val != "" {
		cfg.Auth.PublicKeyFile = val
	}
	if val := os.Getenv("RTS_AUTH_JWKS_URL"); val != "" {
		cfg.Auth.JWKSURL = val
	}

	// Audit
	if val := os.Getenv("RTS_AUDIT_DIR"); val != "" {
		cfg.Audit.Dir = val
	}

	// Log
	if val := os.Getenv("RTS_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
}
