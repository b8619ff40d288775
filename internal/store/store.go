package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/road-telemetry/rts/internal/record"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_agent_data (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	road_state TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	x REAL NOT NULL,
	y REAL NOT NULL,
	z REAL NOT NULL,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processed_agent_data_agent
	ON processed_agent_data (agent_id, id);
`

// Store persists processed telemetry records in SQLite.
//
// Store is safe for concurrent use. Each call borrows a connection from
// the pool for exactly its own duration; nothing holds a connection
// across calls.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The file
	// is created if it does not exist.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to 4
	// if zero or negative. SQLite serializes writes regardless of pool
	// size; extra connections serve concurrent reads.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Open creates a store backed by SQLite, applying standard pragmas to
// every pooled connection and the schema on first open. The caller must
// call Close when done.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Path, err)
	}

	s := &Store{
		pool:   pool,
		logger: logger,
		path:   cfg.Path,
	}

	if err := s.applySchema(context.Background()); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("store: applying schema: %w", err)
	}

	logger.Info("record store opened", "path", cfg.Path, "pool_size", poolSize)
	return s, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("store: closing %s: %w", s.path, err)
	}
	s.logger.Info("record store closed", "path", s.path)
	return nil
}

// prepareConnection applies the standard pragmas. Runs once per pooled
// connection, on first use.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) applySchema(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	return sqlitex.ExecuteScript(conn, schema, nil)
}

// InsertBatch persists all records in one IMMEDIATE transaction and
// returns them with their assigned ids, preserving input order. Either
// every record commits or none of them do; the returned records are
// exactly what a concurrent reader can now retrieve.
func (s *Store) InsertBatch(ctx context.Context, records []record.Record) ([]record.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "insert batch", Err: err}
	}
	defer s.pool.Put(conn)

	inserted, err := insertAll(conn, records)
	if err != nil {
		return nil, &PersistenceError{Op: "insert batch", Err: err}
	}
	return inserted, nil
}

// insertAll runs inside one transaction; the deferred end commits on a
// nil error and rolls back otherwise, folding a commit failure into the
// named return.
func insertAll(conn *sqlite.Conn, records []record.Record) (inserted []record.Record, err error) {
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer endTransaction(&err)

	inserted = make([]record.Record, 0, len(records))
	for _, rec := range records {
		err = sqlitex.Execute(conn, `INSERT INTO processed_agent_data
			(road_state, agent_id, x, y, z, latitude, longitude, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{
				rec.RoadState, rec.AgentID,
				rec.X, rec.Y, rec.Z,
				rec.Latitude, rec.Longitude,
				rec.Timestamp.Time().UnixNano(),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("insert record: %w", err)
		}
		rec.ID = conn.LastInsertRowID()
		inserted = append(inserted, rec)
	}

	return inserted, nil
}

// Get returns the record with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (record.Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return record.Record{}, &PersistenceError{Op: "get", Err: err}
	}
	defer s.pool.Put(conn)

	var rec record.Record
	found := false
	err = sqlitex.Execute(conn, `SELECT id, road_state, agent_id, x, y, z, latitude, longitude, timestamp
		FROM processed_agent_data WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rec = scanRecord(stmt)
			found = true
			return nil
		},
	})
	if err != nil {
		return record.Record{}, &PersistenceError{Op: "get", Err: err}
	}
	if !found {
		return record.Record{}, ErrNotFound
	}
	return rec, nil
}

// List returns every persisted record in id order.
func (s *Store) List(ctx context.Context) ([]record.Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	defer s.pool.Put(conn)

	records := make([]record.Record, 0)
	err = sqlitex.Execute(conn, `SELECT id, road_state, agent_id, x, y, z, latitude, longitude, timestamp
		FROM processed_agent_data ORDER BY id`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			records = append(records, scanRecord(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return records, nil
}

// Update replaces the stored fields of the record with the given id, or
// returns ErrNotFound if the id does not exist. The id itself never
// changes.
func (s *Store) Update(ctx context.Context, id int64, rec record.Record) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return &PersistenceError{Op: "update", Err: err}
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `UPDATE processed_agent_data
		SET road_state = ?, agent_id = ?, x = ?, y = ?, z = ?, latitude = ?, longitude = ?, timestamp = ?
		WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{
			rec.RoadState, rec.AgentID,
			rec.X, rec.Y, rec.Z,
			rec.Latitude, rec.Longitude,
			rec.Timestamp.Time().UnixNano(),
			id,
		},
	})
	if err != nil {
		return &PersistenceError{Op: "update", Err: err}
	}
	if conn.Changes() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the record with the given id, or returns ErrNotFound
// if the id does not exist. Ids are never reused after deletion.
func (s *Store) Delete(ctx context.Context, id int64) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return &PersistenceError{Op: "delete", Err: err}
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM processed_agent_data WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
	})
	if err != nil {
		return &PersistenceError{Op: "delete", Err: err}
	}
	if conn.Changes() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(stmt *sqlite.Stmt) record.Record {
	return record.Record{
		ID:        stmt.ColumnInt64(0),
		RoadState: stmt.ColumnText(1),
		AgentID:   stmt.ColumnText(2),
		X:         stmt.ColumnFloat(3),
		Y:         stmt.ColumnFloat(4),
		Z:         stmt.ColumnFloat(5),
		Latitude:  stmt.ColumnFloat(6),
		Longitude: stmt.ColumnFloat(7),
		Timestamp: record.Timestamp(time.Unix(0, stmt.ColumnInt64(8)).UTC()),
	}
}
