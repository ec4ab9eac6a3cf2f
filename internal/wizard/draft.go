package wizard

import (
	"maps"
	"slices"

	"github.com/manasm11/ralph/internal/specdoc"
	"github.com/manasm11/ralph/internal/stream"
)

// DraftState is the resumable part of the wizard.
type DraftState struct {
	Step            Step
	Description     string
	Spec            string
	SessionID       string
	Feedback        string
	Questions       []specdoc.OpenQuestion
	Answers         map[string]specdoc.QuestionAnswer
	QuestionIndex   int
	CustomInputMode bool
}

// Snapshot copies the resumable state.
func (w *Wizard) Snapshot() DraftState {
	return DraftState{
		Step:            w.step,
		Description:     w.description,
		Spec:            w.spec,
		SessionID:       w.sessionID,
		Feedback:        w.feedback,
		Questions:       slices.Clone(w.questions),
		Answers:         maps.Clone(w.answers),
		QuestionIndex:   w.index,
		CustomInputMode: w.customMode,
	}
}

// Restore replaces the wizard state with a draft. A draft caught in a
// transient step resumes from the step that started the work.
func (w *Wizard) Restore(d DraftState) {
	w.Reset()
	w.description = d.Description
	w.spec = d.Spec
	w.sessionID = d.SessionID
	w.feedback = d.Feedback
	w.questions = slices.Clone(d.Questions)
	if d.Answers != nil {
		w.answers = maps.Clone(d.Answers)
	}
	w.index = d.QuestionIndex
	w.customMode = d.CustomInputMode
	w.status = stream.Idle{}

	step := d.Step
	switch step.(type) {
	case nil, StepGenerating, StepSuccess:
		step = StepDescription{}
	case StepPatching:
		step = StepQuestions{}
	case StepSaving:
		step = StepReview{}
	}
	if _, ok := step.(StepQuestions); ok && len(w.questions) == 0 {
		step = StepReview{}
	}
	if w.index < 0 || w.index >= len(w.questions) {
		w.index = 0
	}
	w.step = step
}
