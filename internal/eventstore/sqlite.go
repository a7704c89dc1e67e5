package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite-based event store.
// Use ":memory:" for in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "could not open journal database").
			WithContext("path", dbPath).
			Build()
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to initialize journal schema").
			WithContext("path", dbPath).
			Build()
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		path TEXT NOT NULL,
		format TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_session_id ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a new event to the store.
func (s *SQLiteStore) Append(ctx context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if e.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(e.Metadata)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal event metadata").Build()
		}
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	payload := e.Payload
	if payload == nil {
		payload = []byte{}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (session_id, event_type, path, format, timestamp, payload, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.SessionID, e.Type, e.Path, e.Format, ts.UnixMilli(), payload, metadataJSON,
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to append event to journal").Build()
	}
	return nil
}

const selectEvents = "SELECT id, session_id, event_type, path, format, timestamp, payload, metadata FROM events"

// GetBySession retrieves all events of a document session.
func (s *SQLiteStore) GetBySession(ctx context.Context, sessionID string) ([]Event, error) {
	return s.query(ctx, selectEvents+" WHERE session_id = ? ORDER BY id", sessionID)
}

// GetRange retrieves events within a time range.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	return s.query(ctx, selectEvents+" WHERE timestamp >= ? AND timestamp <= ? ORDER BY id",
		start.UnixMilli(), end.UnixMilli())
}

// Recent retrieves the newest limit events, oldest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	events, err := s.query(ctx, selectEvents+" ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to query journal").Build()
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		var metadataJSON []byte
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Type, &e.Path, &e.Format, &ts, &e.Payload, &metadataJSON); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to scan journal rows").Build()
		}
		e.Timestamp = time.UnixMilli(ts)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to decode event metadata").Build()
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to read journal").Build()
	}
	return events, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
