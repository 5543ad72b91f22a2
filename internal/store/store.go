// Package store provides a SQLite-backed checkpoint store for conversation
// threads. Each thread id maps to the full ordered message list of the
// conversation graph, so a thread survives server restarts and can be resumed
// by id.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudwego/eino/schema"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// CheckpointStore persists conversation threads keyed by thread id.
// Implementations must be safe for concurrent use. Concurrent saves to the
// same thread resolve as last write wins.
type CheckpointStore interface {
	// Load returns the thread's messages oldest-first, or an empty slice if
	// the thread has never been saved.
	Load(ctx context.Context, threadID string) ([]*schema.Message, error)
	// Save replaces the thread's messages.
	Save(ctx context.Context, threadID string, msgs []*schema.Message) error
	// Delete removes a thread and reports whether it existed.
	Delete(ctx context.Context, threadID string) (bool, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a CheckpointStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the checkpoint database.
// It resolves to ~/.helpdesk/checkpoints.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".helpdesk")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "checkpoints.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS checkpoints (
    thread_id    TEXT    PRIMARY KEY,
    messages     TEXT    NOT NULL,  -- JSON array of schema.Message
    turns        INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL   -- Unix timestamp (seconds)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Load returns the checkpointed messages for threadID.
func (s *SQLiteStore) Load(ctx context.Context, threadID string) ([]*schema.Message, error) {
	const q = `SELECT messages FROM checkpoints WHERE thread_id = ?`

	var raw string
	err := s.db.QueryRowContext(ctx, q, threadID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []*schema.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", threadID, err)
	}

	var msgs []*schema.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", threadID, err)
	}
	return msgs, nil
}

// Save upserts the checkpoint for threadID.
func (s *SQLiteStore) Save(ctx context.Context, threadID string, msgs []*schema.Message) error {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", threadID, err)
	}

	const q = `
INSERT INTO checkpoints (thread_id, messages, turns, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(thread_id) DO UPDATE SET
    messages   = excluded.messages,
    turns      = excluded.turns,
    updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, q, threadID, string(raw), countTurns(msgs), time.Now().Unix()); err != nil {
		return fmt.Errorf("store: save %s: %w", threadID, err)
	}
	return nil
}

// Delete removes the checkpoint for threadID.
func (s *SQLiteStore) Delete(ctx context.Context, threadID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID)
	if err != nil {
		return false, fmt.Errorf("store: delete %s: %w", threadID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: delete %s: %w", threadID, err)
	}
	return n > 0, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// countTurns counts user messages, one per graph invocation.
func countTurns(msgs []*schema.Message) int {
	n := 0
	for _, m := range msgs {
		if m != nil && m.Role == schema.User {
			n++
		}
	}
	return n
}
