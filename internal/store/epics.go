package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Epic is a saved specification.
type Epic struct {
	ID          int64
	Title       string
	Description string
	ProgressLog string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// EpicUpdate changes the non-nil fields of an epic.
type EpicUpdate struct {
	Title       *string
	Description *string
	ProgressLog *string
}

// EpicRepository is CRUD with soft delete over the epics table.
type EpicRepository struct {
	s *Store
}

const epicColumns = `id, title, description, progress_log, created_at, updated_at, deleted_at`

func scanEpic(row interface{ Scan(...any) error }) (Epic, error) {
	var (
		e                Epic
		created, updated int64
		deleted          sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.ProgressLog, &created, &updated, &deleted); err != nil {
		return Epic{}, err
	}
	e.CreatedAt = fromStamp(created)
	e.UpdatedAt = fromStamp(updated)
	e.DeletedAt = fromNullStamp(deleted)
	return e, nil
}

// Create inserts an epic and returns its id.
func (r *EpicRepository) Create(ctx context.Context, title, description string) (int64, error) {
	now := r.s.stamp()
	res, err := r.s.db.ExecContext(ctx,
		`INSERT INTO epics (title, description, progress_log, created_at, updated_at) VALUES (?, ?, '', ?, ?)`,
		title, description, now, now)
	if err != nil {
		return 0, wrap("create epic", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("create epic", err)
	}
	if id == 0 {
		return 0, wrap("create epic", errors.New("no id returned"))
	}
	return id, nil
}

// CreateEpic lets the repository serve as the wizard's epic sink.
func (r *EpicRepository) CreateEpic(ctx context.Context, title, description string) (int64, error) {
	return r.Create(ctx, title, description)
}

// FindByID returns a live epic.
func (r *EpicRepository) FindByID(ctx context.Context, id int64) (Epic, error) {
	row := r.s.db.QueryRowContext(ctx,
		`SELECT `+epicColumns+` FROM epics WHERE id = ? AND deleted_at IS NULL`, id)
	e, err := scanEpic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Epic{}, wrap("find epic", fmt.Errorf("epic %d: %w", id, ErrNotFound))
	}
	if err != nil {
		return Epic{}, wrap("find epic", err)
	}
	return e, nil
}

// FindAll lists epics newest first. Soft-deleted epics are included only
// when includeDeleted is set.
func (r *EpicRepository) FindAll(ctx context.Context, includeDeleted bool) ([]Epic, error) {
	q := `SELECT ` + epicColumns + ` FROM epics`
	if !includeDeleted {
		q += ` WHERE deleted_at IS NULL`
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, wrap("list epics", err)
	}
	defer rows.Close()

	var epics []Epic
	for rows.Next() {
		e, err := scanEpic(rows)
		if err != nil {
			return nil, wrap("list epics", err)
		}
		epics = append(epics, e)
	}
	return epics, wrap("list epics", rows.Err())
}

// Update applies the set fields of u to a live epic.
func (r *EpicRepository) Update(ctx context.Context, id int64, u EpicUpdate) error {
	var (
		sets []string
		args []any
	)
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if u.ProgressLog != nil {
		sets = append(sets, "progress_log = ?")
		args = append(args, *u.ProgressLog)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.s.stamp(), id)

	res, err := r.s.db.ExecContext(ctx,
		`UPDATE epics SET `+strings.Join(sets, ", ")+` WHERE id = ? AND deleted_at IS NULL`, args...)
	if err != nil {
		return wrap("update epic", err)
	}
	return wrap("update epic", affectedOne(res))
}

// AppendProgress adds a line to the epic's progress log.
func (r *EpicRepository) AppendProgress(ctx context.Context, id int64, line string) error {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE epics
		 SET progress_log = CASE WHEN progress_log = '' THEN ? ELSE progress_log || char(10) || ? END,
		     updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		line, line, r.s.stamp(), id)
	if err != nil {
		return wrap("append progress", err)
	}
	return wrap("append progress", affectedOne(res))
}

// SoftDelete hides an epic from normal reads.
func (r *EpicRepository) SoftDelete(ctx context.Context, id int64) error {
	now := r.s.stamp()
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE epics SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, now, now, id)
	if err != nil {
		return wrap("soft delete epic", err)
	}
	return wrap("soft delete epic", affectedOne(res))
}

// Restore undoes SoftDelete.
func (r *EpicRepository) Restore(ctx context.Context, id int64) error {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE epics SET deleted_at = NULL, updated_at = ? WHERE id = ? AND deleted_at IS NOT NULL`, r.s.stamp(), id)
	if err != nil {
		return wrap("restore epic", err)
	}
	return wrap("restore epic", affectedOne(res))
}

// HardDelete removes the row. Linked agent sessions keep their history
// with the epic reference cleared.
func (r *EpicRepository) HardDelete(ctx context.Context, id int64) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM epics WHERE id = ?`, id)
	if err != nil {
		return wrap("hard delete epic", err)
	}
	return wrap("hard delete epic", affectedOne(res))
}
