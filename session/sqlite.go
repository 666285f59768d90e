package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/artdevesa7/Agentic-AI-designs/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS threads (
	thread_id  TEXT PRIMARY KEY,
	pattern    TEXT NOT NULL,
	node       TEXT NOT NULL,
	version    INTEGER NOT NULL,
	state_json TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore persists one JSON checkpoint row per thread. Each Save is a
// single transaction, so a crash leaves the previous checkpoint intact.
type SQLiteStore struct {
	db    *sql.DB
	locks *KeyedLocker
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite only supports one writer; a single connection also keeps
	// ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store, err := NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an existing handle and applies the schema.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db, locks: NewKeyedLocker()}, nil
}

// Load decodes the stored checkpoint.
func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*core.AgentState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state_json FROM threads WHERE thread_id = ?`, threadID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load thread %q: %w", threadID, err)
	}

	var st core.AgentState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("decode thread %q: %w", threadID, err)
	}
	return &st, nil
}

// Save checks the version and upserts the checkpoint in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, state *core.AgentState) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM threads WHERE thread_id = ?`, state.ThreadID).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = 0
	case err != nil:
		return fmt.Errorf("read version of %q: %w", state.ThreadID, err)
	}
	if state.Version != current {
		return fmt.Errorf("%w: thread %q expected version %d, got %d", ErrVersionConflict, state.ThreadID, current, state.Version)
	}

	next := state.Clone()
	next.Version = current + 1
	next.Updated = time.Now().UTC()
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode thread %q: %w", state.ThreadID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO threads (thread_id, pattern, node, version, state_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			pattern = excluded.pattern,
			node = excluded.node,
			version = excluded.version,
			state_json = excluded.state_json,
			updated_at = excluded.updated_at
	`, next.ThreadID, string(next.Pattern), next.Node, next.Version, string(payload), next.Updated.UnixNano())
	if err != nil {
		return fmt.Errorf("write thread %q: %w", state.ThreadID, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit thread %q: %w", state.ThreadID, err)
	}

	state.Version = next.Version
	state.Updated = next.Updated
	return nil
}

// Delete removes the thread row.
func (s *SQLiteStore) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete thread %q: %w", threadID, err)
	}
	return nil
}

// Lock grants exclusive ownership of threadID within this process.
func (s *SQLiteStore) Lock(ctx context.Context, threadID string) (func(), error) {
	return s.locks.Lock(ctx, threadID)
}

// ThreadSummary is a row of List.
type ThreadSummary struct {
	ThreadID string
	Pattern  core.Pattern
	Node     string
	Version  int64
	Updated  time.Time
}

// List returns stored threads, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]ThreadSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, pattern, node, version, updated_at
		FROM threads ORDER BY updated_at DESC, thread_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var out []ThreadSummary
	for rows.Next() {
		var (
			ts      ThreadSummary
			pattern string
			updated int64
		)
		if err := rows.Scan(&ts.ThreadID, &pattern, &ts.Node, &ts.Version, &updated); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		ts.Pattern = core.Pattern(pattern)
		ts.Updated = time.Unix(0, updated).UTC()
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
