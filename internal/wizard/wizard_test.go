package wizard

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/manasm11/ralph/internal/agent"
	"github.com/manasm11/ralph/internal/specdoc"
	"github.com/manasm11/ralph/internal/stream"
)

const specWithQuestions = `<specification>
  <name>Rate limiter</name>
  <overview>Limit requests with a STORE backend.</overview>
  <open_questions>
    <question id="store">
      <text>Which storage backend?</text>
      <context>Counters must survive restarts.</context>
      <options>
        <option id="a" recommended="true">
          <label>Redis</label>
          <description>Shared counters.</description>
        </option>
        <option id="custom">
          <label>Custom response</label>
          <description>Provide your own answer to this question.</description>
        </option>
      </options>
    </question>
    <question id="window">
      <text>What window type?</text>
      <context>Affects bursts.</context>
      <options>
        <option id="a">
          <label>Fixed</label>
          <description>Simple buckets.</description>
        </option>
        <option id="custom">
          <label>Custom response</label>
          <description>Provide your own answer to this question.</description>
        </option>
      </options>
    </question>
  </open_questions>
</specification>`

// feed delivers a successful session streaming text as chunks.
func feed(w *Wizard, run Run, chunks ...string) {
	w.HandleEvent(run.ID, agent.SessionInitEvent{SessionID: "sess-1"})
	for _, c := range chunks {
		w.HandleEvent(run.ID, agent.TokenEvent{Content: c})
	}
	w.HandleEvent(run.ID, agent.ResultEvent{Success: true, Result: "done"})
	w.HandleEvent(run.ID, agent.TurnCompleteEvent{})
	w.FinishRun(run.ID, nil)
}

func mustSubmit(t *testing.T, w *Wizard, text string) Run {
	t.Helper()
	run, err := w.SubmitDescription(text)
	if err != nil {
		t.Fatalf("SubmitDescription: %v", err)
	}
	return run
}

func stepName(w *Wizard) string { return w.Step().Name() }

// =============================================================================
// Generation
// =============================================================================

func TestGenerate_NoQuestionsGoesToReview(t *testing.T) {
	t.Parallel()
	w := New(DefaultConfig())
	run := mustSubmit(t, w, "A rate limiter")

	if stepName(w) != "generating" {
		t.Fatalf("step = %s, want generating", stepName(w))
	}
	if run.Kind != stream.KindGenerate || run.Options.MaxTurns != 10 {
		t.Errorf("run = %+v", run)
	}
	if !strings.Contains(run.Prompt, "A rate limiter") || run.Options.SystemPromptAppend == "" {
		t.Error("prompt should embed the description and carry a system prompt")
	}

	feed(w, run, "<specification>", "<name>X</name>", "</specification>")

	if stepName(w) != "review" {
		t.Errorf("step = %s, want review", stepName(w))
	}
	if w.Spec() != "<specification><name>X</name></specification>" {
		t.Errorf("spec = %q", w.Spec())
	}
	if got, want := w.Status(), (stream.Complete{Result: "done", TokenCount: 3}); got != want {
		t.Errorf("status = %#v, want %#v", got, want)
	}
	if w.SessionID() != "sess-1" {
		t.Errorf("session = %q", w.SessionID())
	}
	rec, ok := w.TakeFinishedRun()
	if !ok || rec.Err != "" || rec.Summary.SessionID != "sess-1" {
		t.Errorf("finished run = %+v, %v", rec, ok)
	}
	if _, again := w.TakeFinishedRun(); again {
		t.Error("finished run should be taken once")
	}
}

func TestGenerate_QuestionsFound(t *testing.T) {
	t.Parallel()
	w := New(DefaultConfig())
	run := mustSubmit(t, w, "A rate limiter")
	feed(w, run, specWithQuestions[:100], specWithQuestions[100:])

	if stepName(w) != "questions" {
		t.Fatalf("step = %s, want questions", stepName(w))
	}
	if len(w.Questions()) != 2 || w.QuestionIndex() != 0 || w.CustomInputMode() || len(w.Answers()) != 0 {
		t.Errorf("questions=%d index=%d custom=%v answers=%d",
			len(w.Questions()), w.QuestionIndex(), w.CustomInputMode(), len(w.Answers()))
	}
}

func TestGenerate_EmptyDescriptionRejected(t *testing.T) {
	t.Parallel()
	w := New(DefaultConfig())
	if _, err := w.SubmitDescription("   \n"); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}
	if stepName(w) != "description" {
		t.Errorf("step = %s", stepName(w))
	}
}

func TestGenerate_FailedResultStaysWithError(t *testing.T) {
	t.Parallel()
	w := New(DefaultConfig())
	run := mustSubmit(t, w, "x")
	w.HandleEvent(run.ID, agent.ResultEvent{Success: false, Result: "overloaded"})

	if stepName(w) != "generating" {
		t.Errorf("step = %s, want generating", stepName(w))
	}
	f, ok := w.Status().(stream.Failed)
	if !ok || f.Message != "Generation failed" || len(f.Details) != 1 || f.Details[0] != "overloaded" {
		t.Errorf("status = %#v", w.Status())
	}

	retry, err := w.Retry()
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if retry.ID == run.ID || retry.Prompt != run.Prompt {
		t.Errorf("retry run = %+v", retry)
	}
}

func TestGenerate_TransportError(t *testing.T) {
	t.Parallel()
	w := New(DefaultConfig())
	run := mustSubmit(t, w, "x")
	w.HandleEvent(run.ID, agent.TokenEvent{Content: "partial"})
	w.FinishRun(run.ID, &agent.Error{Op: "stream", Err: errors.New("broken pipe")})

	f, ok := w.Status().(stream.Failed)
	if !ok || !strings.Contains(f.Message, "broken pipe") {
		t.Errorf("status = %#v", w.Status())
	}
	if w.ActiveRunID() != 0 {
		t.Error("run should no longer be active")
	}
}

func TestGenerate_StreamWithoutResultFails(t *testing.T) {
	t.Parallel()
	w := New(DefaultConfig())
	run := mustSubmit(t, w, "x")
	w.FinishRun(run.ID, nil)
	if _, ok := w.Status().(stream.Failed); !ok {
		t.Errorf("status = %#v, want Failed", w.Status())
	}
}

func TestCancelGeneration_DropsLateEvents(t *testing.T) {
	t.Parallel()
	w := New(DefaultConfig())
	run := mustSubmit(t, w, "x")
	w.HandleEvent(run.ID, agent.TokenEvent{Content: "abc"})

	if err := w.Cancel(); err != nil {
		t.Fatal(err)
	}
	if stepName(w) != "description" || stream.Name(w.Status()) != "idle" {
		t.Fatalf("step=%s status=%s", stepName(w), stream.Name(w.Status()))
	}
	if w.HandleEvent(run.ID, agent.TokenEvent{Content: "late"}) {
		t.Error("late event applied after cancel")
	}
	w.FinishRun(run.ID, nil)
	if stream.Name(w.Status()) != "idle" {
		t.Error("late finish changed the status")
	}
	if w.Description() != "x" {
		t.Errorf("description = %q, should survive cancel", w.Description())
	}
}

// =============================================================================
// Questions and patching
// =============================================================================

func toQuestions(t *testing.T) *Wizard {
	t.Helper()
	w := New(DefaultConfig())
	run := mustSubmit(t, w, "A rate limiter")
	feed(w, run, specWithQuestions)
	if stepName(w) != "questions" {
		t.Fatalf("step = %s, want questions", stepName(w))
	}
	return w
}

func TestQuestions_CustomAnswerThenPatch(t *testing.T) {
	t.Parallel()
	w := toQuestions(t)

	run, err := w.SelectOption("a")
	if err != nil || run != nil {
		t.Fatalf("SelectOption: run=%v err=%v", run, err)
	}
	if w.QuestionIndex() != 1 {
		t.Fatalf("index = %d, want 1", w.QuestionIndex())
	}

	if run, err := w.SelectOption(specdoc.CustomOptionID); err != nil || run != nil {
		t.Fatalf("custom select: run=%v err=%v", run, err)
	}
	if !w.CustomInputMode() {
		t.Fatal("custom mode should be on")
	}
	if _, err := w.SubmitCustom("  "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("blank custom answer: err = %v", err)
	}

	patchRun, err := w.SubmitCustom("Sliding log")
	if err != nil || patchRun == nil {
		t.Fatalf("SubmitCustom: run=%v err=%v", patchRun, err)
	}
	if stepName(w) != "patching" {
		t.Fatalf("step = %s, want patching", stepName(w))
	}
	if patchRun.Kind != stream.KindPatch || patchRun.Options.MaxTurns != 3 {
		t.Errorf("patch run = %+v", patchRun)
	}
	for _, want := range []string{"**Selected:** Redis", "**User's answer:** Sliding log", "## Current Specification"} {
		if !strings.Contains(patchRun.Prompt, want) {
			t.Errorf("patch prompt missing %q", want)
		}
	}

	w.HandleEvent(patchRun.ID, agent.TokenEvent{Content: "```json\n"})
	if w.Spec() != specWithQuestions {
		t.Error("patch tokens must not stream into the spec")
	}
	feed(w, *patchRun, `{"patches":[{"find":"a STORE backend","replace":"Redis with a sliding log"}]}`, "\n```")

	if stepName(w) != "review" {
		t.Fatalf("step = %s, want review", stepName(w))
	}
	if !strings.Contains(w.Spec(), "Redis with a sliding log") {
		t.Errorf("patch not applied: %s", w.Spec())
	}
	if strings.Contains(w.Spec(), "open_questions") {
		t.Errorf("open questions left in spec: %s", w.Spec())
	}
	if got, want := w.Status(), (stream.Complete{Result: "Patches applied", TokenCount: 3}); got != want {
		t.Errorf("status = %#v, want %#v", got, want)
	}
	if len(w.Questions()) != 0 || len(w.Answers()) != 0 {
		t.Error("questions and answers should be cleared")
	}
	if w.LastChange().Empty() {
		t.Error("change summary should record the edit")
	}
}

func TestPatching_UnparseableResponseStillStripsQuestions(t *testing.T) {
	t.Parallel()
	w := toQuestions(t)
	w.SelectOption("a")
	run, _ := w.SelectOption("a")
	if run == nil {
		t.Fatal("expected a patch run")
	}
	feed(w, *run, "Sorry, no JSON today.")

	if stepName(w) != "review" {
		t.Fatalf("step = %s", stepName(w))
	}
	if specdoc.HasOpenQuestions(w.Spec()) {
		t.Error("answered questions should still be removed")
	}
	if !strings.Contains(w.Spec(), "a STORE backend") {
		t.Error("spec body should be untouched")
	}
}

func TestPatching_FailureReturnsToQuestions(t *testing.T) {
	t.Parallel()
	w := toQuestions(t)
	w.SelectOption("a")
	run, _ := w.SelectOption("a")
	w.HandleEvent(run.ID, agent.ErrorEvent{Message: "Query failed: error_max_turns"})

	if stepName(w) != "questions" {
		t.Fatalf("step = %s, want questions", stepName(w))
	}
	if len(w.Answers()) != 2 {
		t.Errorf("answers = %d, want 2 kept", len(w.Answers()))
	}
	if w.Spec() != specWithQuestions {
		t.Error("spec must be unchanged after a failed patch")
	}
}

func TestPatching_CancelReturnsToQuestions(t *testing.T) {
	t.Parallel()
	w := toQuestions(t)
	w.SelectOption("a")
	run, _ := w.SelectOption("a")
	if err := w.Cancel(); err != nil {
		t.Fatal(err)
	}
	if stepName(w) != "questions" || stream.Name(w.Status()) != "idle" {
		t.Errorf("step=%s status=%s", stepName(w), stream.Name(w.Status()))
	}
	if w.HandleEvent(run.ID, agent.ResultEvent{Success: true}) {
		t.Error("event for a cancelled patch run was applied")
	}
}

func TestQuestions_Back(t *testing.T) {
	t.Parallel()
	w := toQuestions(t)

	w.SelectOption(specdoc.CustomOptionID)
	if err := w.Back(); err != nil || w.CustomInputMode() || w.QuestionIndex() != 0 {
		t.Fatalf("back from custom: err=%v custom=%v index=%d", err, w.CustomInputMode(), w.QuestionIndex())
	}

	w.SelectOption("a")
	if err := w.Back(); err != nil || w.QuestionIndex() != 0 {
		t.Fatalf("back to previous question: index=%d", w.QuestionIndex())
	}

	if err := w.Back(); err != nil || stepName(w) != "review" {
		t.Fatalf("back from first question: step=%s", stepName(w))
	}
	if !specdoc.HasOpenQuestions(w.Spec()) {
		t.Error("skipping questions keeps them in the spec")
	}
}

func TestQuestions_UnknownOption(t *testing.T) {
	t.Parallel()
	w := toQuestions(t)
	if _, err := w.SelectOption("zzz"); err == nil {
		t.Error("expected an error for an unknown option")
	}
	if w.QuestionIndex() != 0 || len(w.Answers()) != 0 {
		t.Error("state changed on a rejected option")
	}
}

// =============================================================================
// Invalid transitions
// =============================================================================

func TestInvalidTransitions(t *testing.T) {
	t.Parallel()
	w := New(DefaultConfig())
	checks := map[string]error{
		"cancel":           w.Cancel(),
		"back":             w.Back(),
		"request feedback": w.RequestFeedback(),
		"acknowledge":      w.Acknowledge(),
		"recover":          w.Recover(),
	}
	if _, err := w.SelectOption("a"); err != nil {
		checks["select"] = err
	}
	if _, _, err := w.BeginSave(); err != nil {
		checks["save"] = err
	}
	if _, err := w.SubmitFeedback("x"); err != nil {
		checks["feedback"] = err
	}
	if _, err := w.EditText(); err != nil {
		checks["edit"] = err
	}
	for name, err := range checks {
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s: err = %v, want ErrInvalidTransition", name, err)
		}
	}
	if len(checks) != 9 {
		t.Errorf("only %d triggers were rejected", len(checks))
	}
	if stepName(w) != "description" {
		t.Errorf("step = %s after rejected triggers", stepName(w))
	}
}

// =============================================================================
// Review: feedback, edit, save
// =============================================================================

func toReview(t *testing.T) *Wizard {
	t.Helper()
	w := New(DefaultConfig())
	run := mustSubmit(t, w, "A rate limiter")
	feed(w, run, "<specification><name>Limiter</name></specification>")
	if stepName(w) != "review" {
		t.Fatalf("step = %s, want review", stepName(w))
	}
	return w
}

func TestFeedback_Regenerates(t *testing.T) {
	t.Parallel()
	w := toReview(t)
	if err := w.RequestFeedback(); err != nil {
		t.Fatal(err)
	}
	w.SetFeedback("add quotas")
	if _, err := w.SubmitFeedback(""); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty feedback: err = %v", err)
	}
	run, err := w.SubmitFeedback("add quotas")
	if err != nil {
		t.Fatal(err)
	}
	if run.Kind != stream.KindRegenerate {
		t.Errorf("kind = %s", run.Kind)
	}
	for _, want := range []string{"## Original Request\n\nA rate limiter", "<name>Limiter</name>", "## User Feedback\n\nadd quotas"} {
		if !strings.Contains(run.Prompt, want) {
			t.Errorf("feedback prompt missing %q", want)
		}
	}
	if w.Feedback() != "" || w.Spec() != "" {
		t.Error("feedback and spec should be cleared while regenerating")
	}
	if g, ok := w.Status().(stream.Generating); !ok || g.CurrentActivity != "Incorporating feedback..." {
		t.Errorf("status = %#v", w.Status())
	}
	feed(w, run, "<specification><name>Limiter v2</name></specification>")
	if stepName(w) != "review" || !strings.Contains(w.Spec(), "v2") {
		t.Errorf("step=%s spec=%q", stepName(w), w.Spec())
	}
}

func TestFeedback_Cancel(t *testing.T) {
	t.Parallel()
	w := toReview(t)
	w.RequestFeedback()
	if err := w.Cancel(); err != nil || stepName(w) != "review" {
		t.Errorf("err=%v step=%s", err, stepName(w))
	}
}

func TestEdit(t *testing.T) {
	t.Parallel()
	w := toReview(t)
	text, err := w.EditText()
	if err != nil {
		t.Fatal(err)
	}
	w.ApplyEdit(text+"\n<!-- edited -->", nil)
	if !strings.HasSuffix(w.Spec(), "<!-- edited -->") {
		t.Errorf("spec = %q", w.Spec())
	}

	before := w.Spec()
	w.ApplyEdit("", errors.New("exit status 1"))
	if w.Spec() != before {
		t.Error("failed edit changed the spec")
	}
	if w.ErrorMessage() != "Editor error: exit status 1" {
		t.Errorf("error message = %q", w.ErrorMessage())
	}
	if stepName(w) != "review" {
		t.Errorf("step = %s", stepName(w))
	}
}

type fakeEpics struct {
	id    int64
	err   error
	title string
	body  string
}

func (f *fakeEpics) CreateEpic(_ context.Context, title, description string) (int64, error) {
	f.title, f.body = title, description
	return f.id, f.err
}

type fakeDrafts struct {
	cleared int
	err     error
}

func (f *fakeDrafts) Clear(context.Context) error {
	f.cleared++
	return f.err
}

func TestSave(t *testing.T) {
	t.Parallel()
	w := toReview(t)
	epics := &fakeEpics{id: 42}
	drafts := &fakeDrafts{}

	id, err := w.Save(context.Background(), epics, drafts)
	if err != nil || id != 42 {
		t.Fatalf("Save = %d, %v", id, err)
	}
	if epics.title != "Limiter" || !strings.Contains(epics.body, "<name>Limiter</name>") {
		t.Errorf("created epic title=%q body=%q", epics.title, epics.body)
	}
	if drafts.cleared != 1 {
		t.Errorf("draft cleared %d times, want 1", drafts.cleared)
	}
	if got := w.Step(); got != (StepSuccess{EpicID: 42}) {
		t.Errorf("step = %#v", got)
	}

	if err := w.Acknowledge(); err != nil || stepName(w) != "description" || w.Spec() != "" {
		t.Errorf("acknowledge: err=%v step=%s", err, stepName(w))
	}
}

func TestSave_StorageError(t *testing.T) {
	t.Parallel()
	w := toReview(t)
	drafts := &fakeDrafts{}
	_, err := w.Save(context.Background(), &fakeEpics{err: errors.New("disk full")}, drafts)
	if err == nil {
		t.Fatal("expected an error")
	}
	if stepName(w) != "review" {
		t.Errorf("step = %s, want review", stepName(w))
	}
	if w.ErrorMessage() != "Database error: disk full" {
		t.Errorf("error message = %q", w.ErrorMessage())
	}
	if drafts.cleared != 0 {
		t.Error("draft must survive a failed save")
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	w := toReview(t)
	if err := w.Discard(); err != nil {
		t.Fatal(err)
	}
	if stepName(w) != "description" || w.Description() != "" || w.Spec() != "" {
		t.Errorf("step=%s description=%q spec=%q", stepName(w), w.Description(), w.Spec())
	}
}

func TestFailAndRecover(t *testing.T) {
	t.Parallel()
	w := toReview(t)
	w.Fail("agent unavailable")
	if got := w.Step(); got != (StepError{Message: "agent unavailable"}) {
		t.Fatalf("step = %#v", got)
	}
	if err := w.Recover(); err != nil || stepName(w) != "review" {
		t.Errorf("recover: err=%v step=%s", err, stepName(w))
	}

	fresh := New(DefaultConfig())
	fresh.Fail("boom")
	fresh.Recover()
	if stepName(fresh) != "description" {
		t.Errorf("recover without spec: step = %s", stepName(fresh))
	}
}
