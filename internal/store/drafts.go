package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/manasm11/ralph/internal/specdoc"
	"github.com/manasm11/ralph/internal/wizard"
)

// draftID is the id of the single draft row.
const draftID = 1

// DraftRepository stores the one resumable wizard draft.
type DraftRepository struct {
	s *Store
}

// Save replaces the draft with d.
func (r *DraftRepository) Save(ctx context.Context, d wizard.DraftState) error {
	step, err := wizard.EncodeStep(d.Step)
	if err != nil {
		return wrap("save draft", err)
	}
	questions := d.Questions
	if questions == nil {
		questions = []specdoc.OpenQuestion{}
	}
	qs, err := json.Marshal(questions)
	if err != nil {
		return wrap("save draft", fmt.Errorf("encoding questions: %w", err))
	}
	answers := d.Answers
	if answers == nil {
		answers = map[string]specdoc.QuestionAnswer{}
	}
	as, err := json.Marshal(answers)
	if err != nil {
		return wrap("save draft", fmt.Errorf("encoding answers: %w", err))
	}

	var sessionID sql.NullString
	if d.SessionID != "" {
		sessionID = sql.NullString{String: d.SessionID, Valid: true}
	}

	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("save draft", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM epic_drafts WHERE id = ?`, draftID); err != nil {
		return wrap("save draft", err)
	}
	now := r.s.stamp()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO epic_drafts (
			id, wizard_step, description, spec_content, session_id, feedback,
			open_questions, question_answers, current_question_index, custom_input_mode,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		draftID, string(step), d.Description, d.Spec, sessionID, d.Feedback,
		string(qs), string(as), d.QuestionIndex, d.CustomInputMode,
		now, now)
	if err != nil {
		return wrap("save draft", err)
	}
	return wrap("save draft", tx.Commit())
}

// Load returns the draft, or nil when there is none.
func (r *DraftRepository) Load(ctx context.Context) (*wizard.DraftState, error) {
	var (
		step, qs, as string
		sessionID    sql.NullString
		d            wizard.DraftState
	)
	err := r.s.db.QueryRowContext(ctx, `
		SELECT wizard_step, description, spec_content, session_id, feedback,
		       open_questions, question_answers, current_question_index, custom_input_mode
		FROM epic_drafts WHERE id = ? AND deleted_at IS NULL`, draftID).
		Scan(&step, &d.Description, &d.Spec, &sessionID, &d.Feedback, &qs, &as, &d.QuestionIndex, &d.CustomInputMode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("load draft", err)
	}

	if d.Step, err = wizard.DecodeStep([]byte(step)); err != nil {
		return nil, wrap("load draft", err)
	}
	d.SessionID = sessionID.String
	if err := json.Unmarshal([]byte(qs), &d.Questions); err != nil {
		return nil, wrap("load draft", fmt.Errorf("decoding questions: %w", err))
	}
	if err := json.Unmarshal([]byte(as), &d.Answers); err != nil {
		return nil, wrap("load draft", fmt.Errorf("decoding answers: %w", err))
	}
	return &d, nil
}

// Exists reports whether a draft is stored.
func (r *DraftRepository) Exists(ctx context.Context) (bool, error) {
	var n int
	err := r.s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM epic_drafts WHERE id = ? AND deleted_at IS NULL`, draftID).Scan(&n)
	if err != nil {
		return false, wrap("check draft", err)
	}
	return n > 0, nil
}

// Clear deletes the draft. Clearing when there is none is not an error.
func (r *DraftRepository) Clear(ctx context.Context) error {
	_, err := r.s.db.ExecContext(ctx, `DELETE FROM epic_drafts WHERE id = ?`, draftID)
	return wrap("clear draft", err)
}
