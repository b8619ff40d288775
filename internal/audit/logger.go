package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/road-telemetry/rts/internal/auth"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp time.Time              `json:"ts"`
	User      string                 `json:"user"`
	Action    string                 `json:"action"`
	Subject   string                 `json:"subject,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Outcome   string                 `json:"outcome"`
	LatencyMs int64                  `json:"latencyMs"`
}

// Config holds audit log configuration.
type Config struct {
	// Dir is the directory the audit log is written to.
	Dir string

	// MaxSizeMB is the size at which the log rotates, in megabytes.
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int

	// MaxAgeDays is the age in days after which rotated files are deleted.
	MaxAgeDays int
}

func (c Config) withDefaults() Config {
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 5
	}
	return c
}

// Logger appends audit entries to a rotating JSONL file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      *lumberjack.Logger
}

// NewLogger creates an audit logger writing to audit.jsonl under cfg.Dir.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("audit log directory is required")
	}
	cfg = cfg.withDefaults()

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}

	filePath := filepath.Join(cfg.Dir, "audit.jsonl")
	return &Logger{
		filePath: filePath,
		out: &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		},
	}, nil
}

// LogAction records a single-record action such as an update or delete.
func (l *Logger) LogAction(ctx context.Context, action, subject, outcome string, latency time.Duration) {
	l.writeEntry(Entry{
		Timestamp: time.Now().UTC(),
		User:      userFromContext(ctx),
		Action:    action,
		Subject:   subject,
		Outcome:   outcome,
		LatencyMs: latency.Milliseconds(),
	})
}

// LogIngest records the outcome of a batch ingest.
func (l *Logger) LogIngest(ctx context.Context, records, agents int, outcome string, latency time.Duration) {
	l.writeEntry(Entry{
		Timestamp: time.Now().UTC(),
		User:      userFromContext(ctx),
		Action:    "ingestBatch",
		Details: map[string]interface{}{
			"records": records,
			"agents":  agents,
		},
		Outcome:   outcome,
		LatencyMs: latency.Milliseconds(),
	})
}

// writeEntry appends one JSON line to the audit log. Failures go to stderr;
// auditing never fails the operation it records.
func (l *Logger) writeEntry(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	if _, err := l.out.Write(append(jsonData, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// userFromContext extracts the caller identity set by the auth middleware.
func userFromContext(ctx context.Context) string {
	if claims := auth.ClaimsFromContext(ctx); claims != nil {
		return claims.Subject
	}
	return "unknown"
}

// GetFilePath returns the path to the audit log file.
func (l *Logger) GetFilePath() string {
	return l.filePath
}

// Rotate forces a rotation of the audit log file.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Rotate()
}

// Close closes the audit logger and its file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
