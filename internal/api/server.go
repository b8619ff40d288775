package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/road-telemetry/rts/internal/auth"
)

// Config carries the HTTP server tunables.
type Config struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Server serves the Road Telemetry Store HTTP API.
type Server struct {
	httpServer      *http.Server
	pipeline        PipelinePort
	reader          ReadPort
	stream          StreamPort
	authMiddleware  *auth.Middleware
	logger          *slog.Logger
	startTime       time.Time
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
}

// NewServer builds a server without request authentication.
func NewServer(pipeline PipelinePort, reader ReadPort, stream StreamPort, cfg Config) *Server {
	return NewServerWithAuth(pipeline, reader, stream, nil, cfg)
}

// NewServerWithAuth builds a server that guards the record routes with the
// given middleware. A nil middleware leaves all routes open.
func NewServerWithAuth(pipeline PipelinePort, reader ReadPort, stream StreamPort, mw *auth.Middleware, cfg Config) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		pipeline:        pipeline,
		reader:          reader,
		stream:          stream,
		authMiddleware:  mw,
		logger:          cfg.Logger,
		startTime:       time.Now(),
		readTimeout:     cfg.ReadTimeout,
		writeTimeout:    cfg.WriteTimeout,
		idleTimeout:     cfg.IdleTimeout,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Start listens on addr and serves until Stop is called. It blocks, so run
// it from a goroutine and watch the returned error.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down. The shutdown
// timeout bounds how long draining may take.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	s.logger.Info("stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}
