// Package harness wires a complete in-process Road Telemetry Store for
// end-to-end tests: store, stream stack, audit trail and HTTP server, all
// backed by temporary directories.
package harness

import (
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/road-telemetry/rts/internal/api"
	"github.com/road-telemetry/rts/internal/audit"
	"github.com/road-telemetry/rts/internal/auth"
	"github.com/road-telemetry/rts/internal/ingest"
	"github.com/road-telemetry/rts/internal/store"
	"github.com/road-telemetry/rts/internal/telemetry"
)

// Options configures the test harness.
type Options struct {
	StreamSendBuffer  int
	StreamSendTimeout time.Duration
	AuthMiddleware    *auth.Middleware
	TempDir           string
}

// DefaultOptions returns the harness defaults used by most tests.
func DefaultOptions() Options {
	return Options{
		StreamSendBuffer:  16,
		StreamSendTimeout: 100 * time.Millisecond,
	}
}

// Server is a fully-wired test server.
type Server struct {
	URL         string
	Registry    *telemetry.Registry
	Store       *store.Store
	AuditLogger *audit.Logger

	ts   *httptest.Server
	once sync.Once
}

// NewServer builds and starts a test server. Shutdown is also registered as
// a cleanup, so calling it from the test is optional.
func NewServer(t *testing.T, opts Options) *Server {
	t.Helper()

	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = t.TempDir()
	}
	discard := slog.New(slog.DiscardHandler)

	st, err := store.Open(store.Config{Path: filepath.Join(tempDir, "records.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	registry := telemetry.NewRegistry()
	streamCfg := telemetry.Config{
		SendTimeout: opts.StreamSendTimeout,
		SendBuffer:  opts.StreamSendBuffer,
		Logger:      discard,
	}
	broadcaster := telemetry.NewBroadcaster(registry, streamCfg)
	endpoint := telemetry.NewEndpoint(registry, streamCfg)

	auditLogger, err := audit.NewLogger(audit.Config{Dir: filepath.Join(tempDir, "audit")})
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}

	pipeline := ingest.NewPipeline(st, broadcaster, ingest.Config{Logger: discard})
	pipeline.SetAuditLogger(auditLogger)

	apiServer := api.NewServerWithAuth(pipeline, st, endpoint, opts.AuthMiddleware, api.Config{Logger: discard})
	ts := httptest.NewServer(apiServer.Router())

	s := &Server{
		URL:         ts.URL,
		Registry:    registry,
		Store:       st,
		AuditLogger: auditLogger,
		ts:          ts,
	}
	t.Cleanup(s.Shutdown)
	return s
}

// Shutdown stops the server and releases every component. Safe to call
// more than once.
func (s *Server) Shutdown() {
	s.once.Do(func() {
		s.Registry.CloseAll()
		s.ts.Close()
		_ = s.AuditLogger.Close()
		_ = s.Store.Close()
	})
}
