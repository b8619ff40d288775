package config

import "fmt"

// Validate checks that the merged configuration is one the service can run
// with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateServer(cfg.Server); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := validateStore(cfg.Store); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}
	if err := validateStream(cfg.Stream); err != nil {
		return fmt.Errorf("stream validation failed: %w", err)
	}
	if err := validateMQTT(cfg.MQTT); err != nil {
		return fmt.Errorf("mqtt validation failed: %w", err)
	}
	if err := validateAuth(cfg.Auth); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}
	if err := validateAudit(cfg.Audit); err != nil {
		return fmt.Errorf("audit validation failed: %w", err)
	}
	if err := validateLog(cfg.Log); err != nil {
		return fmt.Errorf("log validation failed: %w", err)
	}

	return nil
}

func validateServer(server ServerConfig) error {
	if server.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	if server.ReadTimeoutSec <= 0 {
		return fmt.Errorf("read timeout must be positive, got %d", server.ReadTimeoutSec)
	}
	if server.WriteTimeoutSec <= 0 {
		return fmt.Errorf("write timeout must be positive, got %d", server.WriteTimeoutSec)
	}
	if server.IdleTimeoutSec <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %d", server.IdleTimeoutSec)
	}
	if server.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %d", server.ShutdownTimeoutSec)
	}
	return nil
}

func validateStore(store StoreConfig) error {
	if store.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if store.PoolSize < 1 {
		return fmt.Errorf("pool size must be at least 1, got %d", store.PoolSize)
	}
	return nil
}

func validateStream(stream StreamConfig) error {
	if stream.SendBuffer < 1 {
		return fmt.Errorf("send buffer must be at least 1, got %d", stream.SendBuffer)
	}
	if stream.SendTimeoutMs < 1 {
		return fmt.Errorf("send timeout must be at least 1ms, got %d", stream.SendTimeoutMs)
	}
	if stream.PongWaitSec < 1 {
		return fmt.Errorf("pong wait must be at least 1s, got %d", stream.PongWaitSec)
	}
	if stream.ReadLimit < 1 {
		return fmt.Errorf("read limit must be positive, got %d", stream.ReadLimit)
	}
	return nil
}

func validateMQTT(mqtt MQTTConfig) error {
	if !mqtt.Enabled() {
		return nil
	}
	if mqtt.Topic == "" {
		return fmt.Errorf("topic is required when a broker URL is set")
	}
	if mqtt.ClientID == "" {
		return fmt.Errorf("client id is required when a broker URL is set")
	}
	if mqtt.QoS < 0 || mqtt.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", mqtt.QoS)
	}
	return nil
}

func validateAuth(auth AuthConfig) error {
	if !auth.Enabled {
		return nil
	}

	switch auth.Algorithm {
	case "HS256":
		if auth.SecretKey == "" {
			return fmt.Errorf("HS256 requires a secret key")
		}
	case "RS256":
		if auth.PublicKeyFile == "" && auth.JWKSURL == "" {
			return fmt.Errorf("RS256 requires a public key file or a JWKS URL")
		}
	default:
		return fmt.Errorf("unsupported algorithm: %q", auth.Algorithm)
	}
	return nil
}

func validateAudit(audit AuditConfig) error {
	if audit.Dir == "" {
		return fmt.Errorf("audit log directory is required")
	}
	if audit.MaxSizeMB < 1 {
		return fmt.Errorf("max size must be at least 1MB, got %d", audit.MaxSizeMB)
	}
	if audit.MaxBackups < 0 {
		return fmt.Errorf("max backups must be non-negative, got %d", audit.MaxBackups)
	}
	if audit.MaxAgeDays < 0 {
		return fmt.Errorf("max age must be non-negative, got %d", audit.MaxAgeDays)
	}
	return nil
}

func validateLog(log LogConfig) error {
	switch log.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unknown log level: %q", log.Level)
	}
}
