// Package wizard implements the epic-creation state machine: description,
// streamed generation, clarifying questions, patching, review and save.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/manasm11/ralph/internal/agent"
	"github.com/manasm11/ralph/internal/specdoc"
	"github.com/manasm11/ralph/internal/stream"
)

var (
	// ErrInvalidTransition is returned when a trigger does not apply to the
	// current step. The wizard state is left untouched.
	ErrInvalidTransition = errors.New("invalid wizard transition")
	// ErrEmptyInput is returned for blank descriptions, feedback and custom answers.
	ErrEmptyInput = errors.New("input is empty")
)

// Config holds the agent settings applied to every run.
type Config struct {
	Cwd                string
	Model              string
	GenerationMaxTurns int
	PatchMaxTurns      int
	MaxBudgetUSD       float64
	// Env is passed to CLI agent backends, e.g. to point claude at Ollama.
	Env map[string]string
}

// DefaultConfig returns the stock run limits.
func DefaultConfig() Config {
	return Config{GenerationMaxTurns: 10, PatchMaxTurns: 3}
}

// Run is an agent session the caller must start. Events and the final
// error are fed back with HandleEvent and FinishRun using ID.
type Run struct {
	ID      int
	Kind    stream.Kind
	Prompt  string
	Options agent.QueryOptions
}

// RunRecord describes a finished run for bookkeeping.
type RunRecord struct {
	RunID   int
	Kind    stream.Kind
	Summary stream.Summary
	Err     string
}

// EpicCreator persists a finished spec as a new epic.
type EpicCreator interface {
	CreateEpic(ctx context.Context, title, description string) (int64, error)
}

// DraftClearer removes the saved draft.
type DraftClearer interface {
	Clear(ctx context.Context) error
}

type activeRun struct {
	run     Run
	reducer *stream.Reducer
	// spec as it was when the run started
	baseSpec string
}

// Wizard owns all epic-creation state. It is not safe for concurrent use;
// the UI loop is its only caller.
type Wizard struct {
	cfg Config
	now func() time.Time

	step        Step
	description string
	spec        string
	sessionID   string
	feedback    string

	questions  []specdoc.OpenQuestion
	answers    map[string]specdoc.QuestionAnswer
	index      int
	customMode bool

	status     stream.Status
	errMessage string
	lastChange specdoc.ChangeSummary

	active    *activeRun
	lastRun   Run
	finished  *RunRecord
	nextRunID int
}

// New returns a wizard at the description step.
func New(cfg Config) *Wizard {
	if cfg.GenerationMaxTurns <= 0 {
		cfg.GenerationMaxTurns = DefaultConfig().GenerationMaxTurns
	}
	if cfg.PatchMaxTurns <= 0 {
		cfg.PatchMaxTurns = DefaultConfig().PatchMaxTurns
	}
	w := &Wizard{cfg: cfg, now: time.Now}
	w.Reset()
	return w
}

// SetClock replaces the time source used for status timestamps.
func (w *Wizard) SetClock(now func() time.Time) { w.now = now }

// Reset returns to an empty description step, abandoning any active run.
func (w *Wizard) Reset() {
	w.step = StepDescription{}
	w.description = ""
	w.spec = ""
	w.sessionID = ""
	w.feedback = ""
	w.questions = nil
	w.answers = map[string]specdoc.QuestionAnswer{}
	w.index = 0
	w.customMode = false
	w.status = stream.Idle{}
	w.errMessage = ""
	w.lastChange = specdoc.ChangeSummary{}
	w.active = nil
}

func (w *Wizard) Step() Step                                 { return w.step }
func (w *Wizard) Description() string                        { return w.description }
func (w *Wizard) Spec() string                               { return w.spec }
func (w *Wizard) SessionID() string                          { return w.sessionID }
func (w *Wizard) Feedback() string                           { return w.feedback }
func (w *Wizard) Questions() []specdoc.OpenQuestion          { return w.questions }
func (w *Wizard) QuestionIndex() int                         { return w.index }
func (w *Wizard) CustomInputMode() bool                      { return w.customMode }
func (w *Wizard) Status() stream.Status                      { return w.status }
func (w *Wizard) ErrorMessage() string                       { return w.errMessage }
func (w *Wizard) LastChange() specdoc.ChangeSummary          { return w.lastChange }
func (w *Wizard) Answers() map[string]specdoc.QuestionAnswer { return maps.Clone(w.answers) }

// CurrentQuestion returns the question being answered.
func (w *Wizard) CurrentQuestion() (specdoc.OpenQuestion, bool) {
	if w.index < 0 || w.index >= len(w.questions) {
		return specdoc.OpenQuestion{}, false
	}
	return w.questions[w.index], true
}

// ActiveRunID returns the id of the run in flight, or 0.
func (w *Wizard) ActiveRunID() int {
	if w.active == nil {
		return 0
	}
	return w.active.run.ID
}

// TakeFinishedRun returns the most recently finished run once.
func (w *Wizard) TakeFinishedRun() (RunRecord, bool) {
	if w.finished == nil {
		return RunRecord{}, false
	}
	rec := *w.finished
	w.finished = nil
	return rec, true
}

// ClearError drops the inline error message.
func (w *Wizard) ClearError() { w.errMessage = "" }

func invalid(step Step, action string) error {
	return fmt.Errorf("%w: %s during %s", ErrInvalidTransition, action, step.Name())
}

// SetDescription updates the description being typed.
func (w *Wizard) SetDescription(text string) {
	if _, ok := w.step.(StepDescription); ok {
		w.description = text
	}
}

// SubmitDescription starts spec generation.
func (w *Wizard) SubmitDescription(text string) (Run, error) {
	if _, ok := w.step.(StepDescription); !ok {
		return Run{}, invalid(w.step, "submit description")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Run{}, ErrEmptyInput
	}
	w.description = text
	return w.startRun(stream.KindGenerate, buildSpecPrompt(text)), nil
}

// Retry restarts the last generation or regeneration after it failed.
func (w *Wizard) Retry() (Run, error) {
	if _, ok := w.step.(StepGenerating); !ok || w.active != nil {
		return Run{}, invalid(w.step, "retry")
	}
	if _, failed := w.status.(stream.Failed); !failed || w.lastRun.Prompt == "" {
		return Run{}, invalid(w.step, "retry")
	}
	return w.startRun(w.lastRun.Kind, w.lastRun.Prompt), nil
}

func (w *Wizard) startRun(kind stream.Kind, prompt string) Run {
	w.nextRunID++
	opts := agent.QueryOptions{
		Cwd:                w.cfg.Cwd,
		Model:              w.cfg.Model,
		MaxTurns:           w.cfg.GenerationMaxTurns,
		MaxBudgetUSD:       w.cfg.MaxBudgetUSD,
		SystemPromptAppend: specSystemPrompt,
		Env:                w.cfg.Env,
	}
	if kind == stream.KindPatch {
		opts.MaxTurns = w.cfg.PatchMaxTurns
		opts.SystemPromptAppend = patchSystemPrompt
	}
	run := Run{ID: w.nextRunID, Kind: kind, Prompt: prompt, Options: opts}

	r := stream.NewReducer(kind, w.now)
	w.active = &activeRun{run: run, reducer: r, baseSpec: w.spec}
	w.lastRun = run
	w.status = r.Status()
	w.errMessage = ""

	if kind == stream.KindPatch {
		w.step = StepPatching{}
	} else {
		w.spec = ""
		w.step = StepGenerating{}
	}
	return run
}

// HandleEvent folds one event of run runID into the wizard. Events for any
// run other than the active one are dropped; it reports whether the event
// was applied.
func (w *Wizard) HandleEvent(runID int, ev agent.Event) bool {
	if w.active == nil || w.active.run.ID != runID {
		return false
	}
	r := w.active.reducer
	r.Apply(ev)
	w.status = r.Status()
	if id := r.SessionID(); id != "" {
		w.sessionID = id
	}
	if r.Kind() != stream.KindPatch {
		w.spec = r.Text()
	}
	if r.Terminal() {
		w.finish(nil)
	}
	return true
}

// FinishRun is called once the run's stream has ended. err is the
// transport error, if any. A stream that ends without a terminal event is
// treated as a failure.
func (w *Wizard) FinishRun(runID int, err error) {
	if w.active == nil || w.active.run.ID != runID {
		return
	}
	if err == nil {
		err = errors.New("agent stream ended without a result")
	}
	w.active.reducer.Fail(err)
	w.finish(err)
}

func (w *Wizard) finish(transportErr error) {
	a := w.active
	w.active = nil
	r := a.reducer
	w.status = r.Status()

	rec := RunRecord{RunID: a.run.ID, Kind: a.run.Kind, Summary: r.Summary()}
	if f, ok := r.Status().(stream.Failed); ok {
		rec.Err = f.Message
	}
	if transportErr != nil {
		rec.Err = transportErr.Error()
	}
	w.finished = &rec

	if a.run.Kind == stream.KindPatch {
		w.finishPatch(a, r)
		return
	}
	if !r.Succeeded() {
		// stays on generating with an error status until retried or cancelled
		return
	}
	w.lastChange = specdoc.ChangeSummary{}
	if qs := specdoc.ParseOpenQuestions(w.spec); len(qs) > 0 {
		w.questions = qs
		w.answers = map[string]specdoc.QuestionAnswer{}
		w.index = 0
		w.customMode = false
		w.step = StepQuestions{}
		return
	}
	w.step = StepReview{}
}

func (w *Wizard) finishPatch(a *activeRun, r *stream.Reducer) {
	if !r.Succeeded() {
		w.step = StepQuestions{}
		w.customMode = false
		return
	}

	updated := a.baseSpec
	if p, ok := specdoc.ParsePatchResponse(r.Text()); ok && len(p.Patches) > 0 {
		updated = specdoc.ApplyPatches(updated, *p)
	}
	ids := slices.Sorted(maps.Keys(w.answers))
	updated = specdoc.RemoveAnsweredQuestions(updated, ids)

	w.lastChange = specdoc.SummarizeChange(a.baseSpec, updated)
	w.spec = updated
	w.status = stream.Complete{Result: "Patches applied", TokenCount: r.TokenCount()}
	w.questions = nil
	w.answers = map[string]specdoc.QuestionAnswer{}
	w.index = 0
	w.customMode = false
	w.step = StepReview{}
}

// Cancel backs out of the current step. For generating and patching the
// active run is abandoned; the caller must stop its stream.
func (w *Wizard) Cancel() error {
	switch w.step.(type) {
	case StepGenerating:
		w.active = nil
		w.status = stream.Idle{}
		w.step = StepDescription{}
	case StepPatching:
		w.active = nil
		w.status = stream.Idle{}
		w.customMode = false
		w.step = StepQuestions{}
	case StepFeedback:
		w.step = StepReview{}
	default:
		return invalid(w.step, "cancel")
	}
	return nil
}

// SelectOption answers the current question with optionID. Selecting the
// custom option switches to free-text input instead. A non-nil Run is
// returned when this was the last question.
func (w *Wizard) SelectOption(optionID string) (*Run, error) {
	if _, ok := w.step.(StepQuestions); !ok || w.customMode {
		return nil, invalid(w.step, "select option")
	}
	q, ok := w.CurrentQuestion()
	if !ok {
		return nil, invalid(w.step, "select option")
	}
	if _, found := q.Option(optionID); !found {
		return nil, fmt.Errorf("question %q has no option %q", q.ID, optionID)
	}
	if optionID == specdoc.CustomOptionID {
		w.customMode = true
		return nil, nil
	}
	w.answers[q.ID] = specdoc.QuestionAnswer{QuestionID: q.ID, SelectedOptionID: optionID}
	return w.advance(), nil
}

// SubmitCustom answers the current question with free text.
func (w *Wizard) SubmitCustom(text string) (*Run, error) {
	if _, ok := w.step.(StepQuestions); !ok || !w.customMode {
		return nil, invalid(w.step, "submit custom answer")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	q, ok := w.CurrentQuestion()
	if !ok {
		return nil, invalid(w.step, "submit custom answer")
	}
	w.answers[q.ID] = specdoc.QuestionAnswer{
		QuestionID:       q.ID,
		SelectedOptionID: specdoc.CustomOptionID,
		CustomResponse:   text,
	}
	w.customMode = false
	return w.advance(), nil
}

func (w *Wizard) advance() *Run {
	if w.index < len(w.questions)-1 {
		w.index++
		return nil
	}
	run := w.startRun(stream.KindPatch, buildPatchPrompt(w.spec, w.questions, w.answers))
	return &run
}

// Back leaves custom input, steps to the previous question, or from the
// first question skips ahead to review.
func (w *Wizard) Back() error {
	if _, ok := w.step.(StepQuestions); !ok {
		return invalid(w.step, "back")
	}
	switch {
	case w.customMode:
		w.customMode = false
	case w.index > 0:
		w.index--
	default:
		w.step = StepReview{}
	}
	return nil
}

// RequestFeedback opens the feedback step.
func (w *Wizard) RequestFeedback() error {
	if _, ok := w.step.(StepReview); !ok {
		return invalid(w.step, "request feedback")
	}
	w.errMessage = ""
	w.step = StepFeedback{}
	return nil
}

// SetFeedback updates the feedback being typed.
func (w *Wizard) SetFeedback(text string) {
	if _, ok := w.step.(StepFeedback); ok {
		w.feedback = text
	}
}

// SubmitFeedback regenerates the spec with the feedback folded in.
func (w *Wizard) SubmitFeedback(text string) (Run, error) {
	if _, ok := w.step.(StepFeedback); !ok {
		return Run{}, invalid(w.step, "submit feedback")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Run{}, ErrEmptyInput
	}
	prompt := buildFeedbackPrompt(w.description, w.spec, text)
	w.feedback = ""
	return w.startRun(stream.KindRegenerate, prompt), nil
}

// EditText returns the spec for editing in an external editor.
func (w *Wizard) EditText() (string, error) {
	if _, ok := w.step.(StepReview); !ok {
		return "", invalid(w.step, "edit")
	}
	w.errMessage = ""
	return w.spec, nil
}

// ApplyEdit takes the editor's result. On error the spec is unchanged and
// the message is shown inline.
func (w *Wizard) ApplyEdit(text string, err error) {
	if _, ok := w.step.(StepReview); !ok {
		return
	}
	if err != nil {
		w.errMessage = "Editor error: " + err.Error()
		return
	}
	w.spec = text
}

// Discard throws the current work away.
func (w *Wizard) Discard() error {
	switch w.step.(type) {
	case StepReview, StepDescription:
		w.Reset()
		return nil
	}
	return invalid(w.step, "discard")
}

// BeginSave moves to the saving step and returns the epic title and body.
func (w *Wizard) BeginSave() (title, body string, err error) {
	if _, ok := w.step.(StepReview); !ok {
		return "", "", invalid(w.step, "save")
	}
	w.errMessage = ""
	w.step = StepSaving{}
	return specdoc.ExtractTitle(w.spec), w.spec, nil
}

// FinishSave completes a save started with BeginSave.
func (w *Wizard) FinishSave(epicID int64, err error) {
	if _, ok := w.step.(StepSaving); !ok {
		return
	}
	if err != nil {
		w.errMessage = "Database error: " + err.Error()
		w.step = StepReview{}
		return
	}
	w.step = StepSuccess{EpicID: epicID}
}

// Save creates the epic and clears the draft. A draft that cannot be
// cleared does not undo the save; its error is still returned.
func (w *Wizard) Save(ctx context.Context, epics EpicCreator, drafts DraftClearer) (int64, error) {
	title, body, err := w.BeginSave()
	if err != nil {
		return 0, err
	}
	id, err := epics.CreateEpic(ctx, title, body)
	if err != nil {
		w.FinishSave(0, err)
		return 0, fmt.Errorf("creating epic: %w", err)
	}
	w.FinishSave(id, nil)
	if drafts != nil {
		if err := drafts.Clear(ctx); err != nil {
			return id, fmt.Errorf("clearing draft: %w", err)
		}
	}
	return id, nil
}

// Acknowledge leaves the success step for a fresh wizard.
func (w *Wizard) Acknowledge() error {
	if _, ok := w.step.(StepSuccess); !ok {
		return invalid(w.step, "acknowledge")
	}
	w.Reset()
	return nil
}

// Fail moves to the error step, abandoning any active run.
func (w *Wizard) Fail(message string) {
	w.active = nil
	w.status = stream.Idle{}
	w.step = StepError{Message: message}
}

// Recover leaves the error step for review, or for the description step
// when there is no spec yet.
func (w *Wizard) Recover() error {
	if _, ok := w.step.(StepError); !ok {
		return invalid(w.step, "recover")
	}
	if w.spec == "" {
		w.step = StepDescription{}
	} else {
		w.step = StepReview{}
	}
	return nil
}
