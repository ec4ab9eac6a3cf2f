// Package store persists epics, agent sessions and the resumable wizard
// draft in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound is wrapped by lookups that match no live row.
var ErrNotFound = errors.New("not found")

// Error is a storage failure tagged with the operation that hit it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Config locates the database file.
type Config struct {
	Path       string
	DisableWAL bool
}

// Store owns the database handle.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the parent directory, opens the database and migrates the
// schema.
func Open(cfg Config) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, wrap("create data dir", err)
		}
	}

	db, err := openDB("sqlite", cfg.Path)
	if err != nil {
		return nil, wrap("open database", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	if !cfg.DisableWAL {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, wrap("pragma", fmt.Errorf("%s: %w", p, err))
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, wrap("migrate", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS epics (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			title        TEXT    NOT NULL,
			description  TEXT    NOT NULL,
			progress_log TEXT    NOT NULL DEFAULT '',
			created_at   INTEGER NOT NULL,
			updated_at   INTEGER NOT NULL,
			deleted_at   INTEGER
		);

		CREATE TABLE IF NOT EXISTS agent_sessions (
			id                TEXT PRIMARY KEY,
			epic_id           INTEGER REFERENCES epics(id) ON DELETE SET NULL,
			claude_session_id TEXT    NOT NULL,
			kind              TEXT    NOT NULL DEFAULT '',
			status            TEXT    NOT NULL CHECK(status IN ('running', 'paused', 'completed', 'failed')),
			cost_usd          REAL    NOT NULL DEFAULT 0,
			duration_ms       INTEGER NOT NULL DEFAULT 0,
			num_turns         INTEGER NOT NULL DEFAULT 0,
			error             TEXT    NOT NULL DEFAULT '',
			created_at        INTEGER NOT NULL,
			updated_at        INTEGER NOT NULL,
			deleted_at        INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_agent_sessions_epic ON agent_sessions(epic_id);
		CREATE INDEX IF NOT EXISTS idx_agent_sessions_claude ON agent_sessions(claude_session_id);

		CREATE TABLE IF NOT EXISTS epic_drafts (
			id                     INTEGER PRIMARY KEY,
			wizard_step            TEXT    NOT NULL,
			description            TEXT    NOT NULL DEFAULT '',
			spec_content           TEXT    NOT NULL DEFAULT '',
			session_id             TEXT,
			feedback               TEXT    NOT NULL DEFAULT '',
			open_questions         TEXT    NOT NULL DEFAULT '[]',
			question_answers       TEXT    NOT NULL DEFAULT '{}',
			current_question_index INTEGER NOT NULL DEFAULT 0,
			custom_input_mode      INTEGER NOT NULL DEFAULT 0,
			created_at             INTEGER NOT NULL,
			updated_at             INTEGER NOT NULL,
			deleted_at             INTEGER
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) stamp() int64 {
	return s.now().UnixMilli()
}

func fromStamp(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func fromNullStamp(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := time.UnixMilli(ms.Int64)
	return &t
}

// affectedOne turns a zero-row update into ErrNotFound.
func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Epics returns the epic repository.
func (s *Store) Epics() *EpicRepository { return &EpicRepository{s: s} }

// Drafts returns the draft repository.
func (s *Store) Drafts() *DraftRepository { return &DraftRepository{s: s} }

// Sessions returns the agent session repository.
func (s *Store) Sessions() *SessionRepository { return &SessionRepository{s: s} }
