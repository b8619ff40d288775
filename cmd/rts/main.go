// Package main implements the Road Telemetry Store entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"

	"github.com/road-telemetry/rts/internal/api"
	"github.com/road-telemetry/rts/internal/audit"
	"github.com/road-telemetry/rts/internal/auth"
	"github.com/road-telemetry/rts/internal/config"
	"github.com/road-telemetry/rts/internal/ingest"
	"github.com/road-telemetry/rts/internal/mqtt"
	"github.com/road-telemetry/rts/internal/store"
	"github.com/road-telemetry/rts/internal/telemetry"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("rts", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to the configuration file")
	addr := flags.String("addr", "", "listen address, overrides the configuration")
	dbPath := flags.String("db", "", "SQLite database path, overrides the configuration")
	logLevel := flags.String("log-level", "", "log level: debug, info, warn or error")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// Step 1: load configuration. Flags beat environment beats file.
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("starting road telemetry store", "version", version)

	// Step 2: open the record store.
	st, err := store.Open(store.Config{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
		Logger:   logger.With("component", "store"),
	})
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	logger.Info("record store opened", "path", cfg.Store.Path)

	// Step 3: build the subscriber registry, broadcaster and endpoint.
	registry := telemetry.NewRegistry()
	streamCfg := telemetry.Config{
		SendTimeout: cfg.Stream.SendTimeout(),
		SendBuffer:  cfg.Stream.SendBuffer,
		PongWait:    cfg.Stream.PongWait(),
		ReadLimit:   cfg.Stream.ReadLimit,
		Logger:      logger.With("component", "stream"),
	}
	broadcaster := telemetry.NewBroadcaster(registry, streamCfg)
	endpoint := telemetry.NewEndpoint(registry, streamCfg)

	// Step 4: start the audit trail.
	auditLogger, err := audit.NewLogger(audit.Config{
		Dir:        cfg.Audit.Dir,
		MaxSizeMB:  cfg.Audit.MaxSizeMB,
		MaxBackups: cfg.Audit.MaxBackups,
		MaxAgeDays: cfg.Audit.MaxAgeDays,
	})
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("open audit log: %w", err)
	}
	logger.Info("audit trail opened", "path", auditLogger.GetFilePath())

	// Step 5: assemble the ingest pipeline.
	pipeline := ingest.NewPipeline(st, broadcaster, ingest.Config{
		Logger: logger.With("component", "ingest"),
	})
	pipeline.SetAuditLogger(auditLogger)

	// Step 6: optional bearer-token auth for the record routes.
	var authMiddleware *auth.Middleware
	if cfg.Auth.Enabled {
		authMiddleware, err = newAuthMiddleware(cfg.Auth)
		if err != nil {
			_ = auditLogger.Close()
			_ = st.Close()
			return fmt.Errorf("configure auth: %w", err)
		}
		logger.Info("request auth enabled", "algorithm", cfg.Auth.Algorithm)
	}

	// Step 7: build the HTTP server.
	server := api.NewServerWithAuth(pipeline, st, endpoint, authMiddleware, api.Config{
		ReadTimeout:     cfg.Server.ReadTimeout(),
		WriteTimeout:    cfg.Server.WriteTimeout(),
		IdleTimeout:     cfg.Server.IdleTimeout(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout(),
		Logger:          logger.With("component", "api"),
	})

	// Step 8: optional broker bridge for agents that publish over MQTT.
	var bridge *mqtt.Bridge
	if cfg.MQTT.Enabled() {
		bridge = mqtt.NewBridge(pipeline, mqtt.Config{
			BrokerURL: cfg.MQTT.BrokerURL,
			Topic:     cfg.MQTT.Topic,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			QoS:       byte(cfg.MQTT.QoS),
			Logger:    logger.With("component", "mqtt"),
		})
		if err := bridge.Start(context.Background()); err != nil {
			_ = auditLogger.Close()
			_ = st.Close()
			return fmt.Errorf("start mqtt bridge: %w", err)
		}
	}

	// Step 9: serve until a signal arrives or the listener fails.
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.Server.Addr)
	}()
	logger.Info("road telemetry store started", "addr", cfg.Server.Addr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
		}
	}

	// Step 10: ordered shutdown. Stop intake first, then drain HTTP, then
	// drop subscribers, then close the trail and the store.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if bridge != nil {
		if err := bridge.Stop(); err != nil {
			logger.Warn("error stopping mqtt bridge", "error", err)
		}
	}
	if err := server.Stop(ctx); err != nil {
		logger.Warn("error stopping HTTP server", "error", err)
	}
	registry.CloseAll()
	if err := auditLogger.Close(); err != nil {
		logger.Warn("error closing audit log", "error", err)
	}
	if err := st.Close(); err != nil {
		logger.Warn("error closing record store", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: lvl}))
}

func newAuthMiddleware(cfg config.AuthConfig) (*auth.Middleware, error) {
	vc := auth.VerifierConfig{
		Algorithm:           cfg.Algorithm,
		SecretKey:           cfg.SecretKey,
		JWKSURL:             cfg.JWKSURL,
		JWKSRefreshInterval: 5 * time.Minute,
		JWKSCacheTimeout:    1 * time.Hour,
	}
	if cfg.PublicKeyFile != "" {
		pemBytes, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read public key file: %w", err)
		}
		vc.PublicKeyPEM = string(pemBytes)
	}

	verifier, err := auth.NewVerifier(vc)
	if err != nil {
		return nil, err
	}
	return auth.NewMiddleware(verifier), nil
}
