package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of an agent session record.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Session records one agent run.
type Session struct {
	ID              string
	EpicID          *int64
	ClaudeSessionID string
	Kind            string
	Status          SessionStatus
	CostUSD         float64
	DurationMs      int64
	NumTurns        int
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

// SessionRepository stores agent session history.
type SessionRepository struct {
	s *Store
}

const sessionColumns = `id, epic_id, claude_session_id, kind, status, cost_usd, duration_ms, num_turns, error, created_at, updated_at, deleted_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var (
		ss               Session
		epicID           sql.NullInt64
		status           string
		created, updated int64
		deleted          sql.NullInt64
	)
	err := row.Scan(&ss.ID, &epicID, &ss.ClaudeSessionID, &ss.Kind, &status,
		&ss.CostUSD, &ss.DurationMs, &ss.NumTurns, &ss.Error, &created, &updated, &deleted)
	if err != nil {
		return Session{}, err
	}
	if epicID.Valid {
		id := epicID.Int64
		ss.EpicID = &id
	}
	ss.Status = SessionStatus(status)
	ss.CreatedAt = fromStamp(created)
	ss.UpdatedAt = fromStamp(updated)
	ss.DeletedAt = fromNullStamp(deleted)
	return ss, nil
}

// Record inserts a session. An empty ID is replaced with a fresh UUID and
// an empty status with running. The stored record is returned.
func (r *SessionRepository) Record(ctx context.Context, ss Session) (Session, error) {
	if ss.ID == "" {
		ss.ID = uuid.NewString()
	}
	if ss.Status == "" {
		ss.Status = SessionRunning
	}
	now := r.s.now()
	ss.CreatedAt = time.UnixMilli(now.UnixMilli())
	ss.UpdatedAt = ss.CreatedAt

	var epicID sql.NullInt64
	if ss.EpicID != nil {
		epicID = sql.NullInt64{Int64: *ss.EpicID, Valid: true}
	}
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO agent_sessions (
			id, epic_id, claude_session_id, kind, status, cost_usd, duration_ms, num_turns, error,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ss.ID, epicID, ss.ClaudeSessionID, ss.Kind, string(ss.Status),
		ss.CostUSD, ss.DurationMs, ss.NumTurns, ss.Error,
		now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return Session{}, wrap("record session", err)
	}
	return ss, nil
}

// UpdateStatus moves a live session to status, recording errMsg.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status SessionStatus, errMsg string) error {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE agent_sessions SET status = ?, error = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		string(status), errMsg, r.s.stamp(), id)
	if err != nil {
		return wrap("update session", err)
	}
	return wrap("update session", affectedOne(res))
}

// LinkEpic attaches every session of a claude session id to an epic. It
// reports how many records were linked.
func (r *SessionRepository) LinkEpic(ctx context.Context, claudeSessionID string, epicID int64) (int64, error) {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE agent_sessions SET epic_id = ?, updated_at = ? WHERE claude_session_id = ? AND deleted_at IS NULL`,
		epicID, r.s.stamp(), claudeSessionID)
	if err != nil {
		return 0, wrap("link session", err)
	}
	n, err := res.RowsAffected()
	return n, wrap("link session", err)
}

// FindByID returns a live session.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (Session, error) {
	row := r.s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM agent_sessions WHERE id = ? AND deleted_at IS NULL`, id)
	ss, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, wrap("find session", fmt.Errorf("session %s: %w", id, ErrNotFound))
	}
	if err != nil {
		return Session{}, wrap("find session", err)
	}
	return ss, nil
}

// FindByEpic lists the live sessions of an epic, oldest first.
func (r *SessionRepository) FindByEpic(ctx context.Context, epicID int64) ([]Session, error) {
	return r.list(ctx, "list sessions by epic",
		`SELECT `+sessionColumns+` FROM agent_sessions WHERE epic_id = ? AND deleted_at IS NULL ORDER BY created_at, id`, epicID)
}

// FindByStatus lists the live sessions with the given status, oldest first.
func (r *SessionRepository) FindByStatus(ctx context.Context, status SessionStatus) ([]Session, error) {
	return r.list(ctx, "list sessions by status",
		`SELECT `+sessionColumns+` FROM agent_sessions WHERE status = ? AND deleted_at IS NULL ORDER BY created_at, id`, string(status))
}

func (r *SessionRepository) list(ctx context.Context, op, q string, args ...any) ([]Session, error) {
	rows, err := r.s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		ss, err := scanSession(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, ss)
	}
	return out, wrap(op, rows.Err())
}

// SoftDelete hides a session from normal reads.
func (r *SessionRepository) SoftDelete(ctx context.Context, id string) error {
	now := r.s.stamp()
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE agent_sessions SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, now, now, id)
	if err != nil {
		return wrap("soft delete session", err)
	}
	return wrap("soft delete session", affectedOne(res))
}

// Restore undoes SoftDelete.
func (r *SessionRepository) Restore(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE agent_sessions SET deleted_at = NULL, updated_at = ? WHERE id = ? AND deleted_at IS NOT NULL`, r.s.stamp(), id)
	if err != nil {
		return wrap("restore session", err)
	}
	return wrap("restore session", affectedOne(res))
}

// HardDelete removes the row.
func (r *SessionRepository) HardDelete(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM agent_sessions WHERE id = ?`, id)
	if err != nil {
		return wrap("hard delete session", err)
	}
	return wrap("hard delete session", affectedOne(res))
}
