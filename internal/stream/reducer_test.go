package stream

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/manasm11/ralph/internal/agent"
)

var fixedNow = func() time.Time { return time.Unix(1700000000, 0) }

func activity(t *testing.T, s Status) string {
	t.Helper()
	g, ok := s.(Generating)
	if !ok {
		t.Fatalf("status = %#v, want Generating", s)
	}
	return g.CurrentActivity
}

// =============================================================================
// Labels per event
// =============================================================================

func TestReducer_ActivityLabels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		kind Kind
		ev   agent.Event
		want string
	}{
		{"token generate", KindGenerate, agent.TokenEvent{Content: "x"}, "Generating specification..."},
		{"token regenerate", KindRegenerate, agent.TokenEvent{Content: "x"}, "Regenerating specification..."},
		{"token patch", KindPatch, agent.TokenEvent{Content: "x"}, "Generating patches..."},
		{"session init", KindGenerate, agent.SessionInitEvent{SessionID: "s"}, "Session initialized"},
		{"tool start", KindGenerate, agent.ToolStartEvent{Tool: "Read"}, "Using tool: Read"},
		{"tool end", KindGenerate, agent.ToolEndEvent{Tool: "unknown"}, "Tool completed: unknown"},
		{"turn complete", KindGenerate, agent.TurnCompleteEvent{}, "Processing turn..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewReducer(tt.kind, fixedNow)
			r.Apply(tt.ev)
			if got := activity(t, r.Status()); got != tt.want {
				t.Errorf("activity = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReducer_StartLabels(t *testing.T) {
	t.Parallel()
	want := map[Kind]string{
		KindGenerate:   "Starting...",
		KindRegenerate: "Incorporating feedback...",
		KindPatch:      "Generating patches...",
	}
	for kind, label := range want {
		if got := activity(t, NewReducer(kind, fixedNow).Status()); got != label {
			t.Errorf("%s: start label = %q, want %q", kind, got, label)
		}
	}
}

// =============================================================================
// Accumulation and terminal events
// =============================================================================

func TestReducer_AccumulatesInOrder(t *testing.T) {
	t.Parallel()
	r := NewReducer(KindGenerate, fixedNow)
	for _, ev := range []agent.Event{
		agent.SessionInitEvent{SessionID: "sess-1"},
		agent.TokenEvent{Content: "<spec"},
		agent.ToolStartEvent{Tool: "Grep"},
		agent.TokenEvent{Content: "ification>"},
		agent.ResultEvent{Success: true, Result: "ok", TotalCostUSD: 0.1, NumTurns: 2},
		agent.TurnCompleteEvent{Usage: agent.Usage{OutputTokens: 7}},
	} {
		r.Apply(ev)
	}

	if r.Text() != "<specification>" {
		t.Errorf("text = %q", r.Text())
	}
	if r.TokenCount() != 2 {
		t.Errorf("tokens = %d, want 2", r.TokenCount())
	}
	if r.SessionID() != "sess-1" {
		t.Errorf("session = %q", r.SessionID())
	}
	if !r.Terminal() || !r.Succeeded() {
		t.Error("expected a successful terminal run")
	}
	if got, want := r.Status(), (Complete{Result: "ok", TokenCount: 2}); got != want {
		t.Errorf("status = %#v, want %#v", got, want)
	}
	s := r.Summary()
	if s.CostUSD != 0.1 || s.NumTurns != 2 || s.Usage.OutputTokens != 7 {
		t.Errorf("summary = %+v", s)
	}
}

func TestReducer_FailedResult(t *testing.T) {
	t.Parallel()
	r := NewReducer(KindPatch, fixedNow)
	r.Apply(agent.ResultEvent{Success: false, Result: "max turns"})
	want := Failed{Message: "Patching failed", Details: []string{"max turns"}}
	if !reflect.DeepEqual(r.Status(), want) {
		t.Errorf("status = %#v, want %#v", r.Status(), want)
	}
	if r.Succeeded() {
		t.Error("failed result reported as success")
	}
}

func TestReducer_ErrorEvent(t *testing.T) {
	t.Parallel()
	r := NewReducer(KindGenerate, fixedNow)
	r.Apply(agent.TokenEvent{Content: "partial"})
	r.Apply(agent.ErrorEvent{Message: "Query failed: error_max_budget_usd", Errors: []string{"budget"}})
	want := Failed{Message: "Query failed: error_max_budget_usd", Details: []string{"budget"}}
	if !reflect.DeepEqual(r.Status(), want) {
		t.Errorf("status = %#v, want %#v", r.Status(), want)
	}
	if r.Text() != "partial" {
		t.Errorf("text = %q, partial output should be kept", r.Text())
	}
}

func TestReducer_IgnoresEventsAfterTerminal(t *testing.T) {
	t.Parallel()
	r := NewReducer(KindGenerate, fixedNow)
	r.Apply(agent.ResultEvent{Success: true, Result: "done"})
	r.Apply(agent.TokenEvent{Content: "late"})
	if r.Text() != "" || !r.Succeeded() {
		t.Errorf("late token mutated state: text=%q status=%#v", r.Text(), r.Status())
	}
}

func TestReducer_Fail(t *testing.T) {
	t.Parallel()
	r := NewReducer(KindGenerate, fixedNow)
	r.Fail(errors.New("pipe closed"))
	if got := r.Status(); !reflect.DeepEqual(got, Failed{Message: "pipe closed"}) {
		t.Errorf("status = %#v", got)
	}

	done := NewReducer(KindGenerate, fixedNow)
	done.Apply(agent.ResultEvent{Success: true})
	done.Fail(errors.New("late"))
	if !done.Succeeded() {
		t.Error("transport failure after result must not override it")
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	for s, want := range map[Status]string{
		Idle{}:       "idle",
		Generating{}: "generating",
		Complete{}:   "complete",
	} {
		if Name(s) != want {
			t.Errorf("Name(%#v) = %q, want %q", s, Name(s), want)
		}
	}
	if Name(nil) != "idle" {
		t.Error("nil status should read as idle")
	}
}
