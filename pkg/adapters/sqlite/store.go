// Package sqlite provides a Store backed by a SQLite database through
// database/sql and the mattn/go-sqlite3 driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/hitch/pkg/domain"
	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS threads (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT    NOT NULL,
	step_index INTEGER NOT NULL,
	run        INTEGER NOT NULL,
	name       TEXT    NOT NULL,
	kind       TEXT    NOT NULL,
	value      TEXT,
	created_at TEXT    NOT NULL,
	PRIMARY KEY (thread_id, step_index)
);
`

// Store implements ports.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file at path and initializes the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	store, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing database handle and initializes the schema.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Append inserts the checkpoint; the primary key rejects a duplicate index.
func (s *Store) Append(ctx context.Context, threadID string, cp domain.Checkpoint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (thread_id, step_index, run, name, kind, value, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		threadID, cp.Index, cp.Run, cp.Name, string(cp.Kind), nullableRaw(cp.Value), formatTime(cp.Timestamp),
	)
	if err != nil {
		if isConstraint(err) {
			return domain.ErrCheckpointConflict
		}
		return fmt.Errorf("failed to append checkpoint: %w", err)
	}
	return nil
}

// List returns the thread's checkpoints ordered by index.
func (s *Store) List(ctx context.Context, threadID string) ([]domain.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step_index, run, name, kind, value, created_at FROM checkpoints WHERE thread_id = ? ORDER BY step_index`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	cps := []domain.Checkpoint{}
	for rows.Next() {
		var (
			cp      domain.Checkpoint
			kind    string
			value   sql.NullString
			created string
		)
		if err := rows.Scan(&cp.Index, &cp.Run, &cp.Name, &kind, &value, &created); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		cp.ThreadID = threadID
		cp.Kind = domain.CheckpointKind(kind)
		if value.Valid {
			cp.Value = json.RawMessage(value.String)
		}
		cp.Timestamp, _ = time.Parse(time.RFC3339Nano, created)
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

// SaveThread upserts the thread record.
func (s *Store) SaveThread(ctx context.Context, thread *domain.Thread) error {
	data, err := json.Marshal(thread)
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO threads (id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		thread.ID, string(data), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save thread: %w", err)
	}
	return nil
}

// LoadThread retrieves the thread record.
func (s *Store) LoadThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM threads WHERE id = ?`, threadID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrThreadNotFound
		}
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}

	var thread domain.Thread
	if err := json.Unmarshal([]byte(data), &thread); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread: %w", err)
	}
	return &thread, nil
}

// DeleteThread removes the thread record and its checkpoints in one transaction.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete checkpoints: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return tx.Commit()
}

// ListThreads returns thread IDs, most recently updated first.
func (s *Store) ListThreads(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM threads ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func nullableRaw(raw json.RawMessage) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
