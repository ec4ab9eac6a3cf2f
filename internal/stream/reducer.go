// Package stream folds agent session events into the state the wizard
// screens display.
package stream

import (
	"strings"
	"time"

	"github.com/manasm11/ralph/internal/agent"
)

// Kind identifies what an agent run is producing.
type Kind int

const (
	KindGenerate Kind = iota
	KindRegenerate
	KindPatch
)

func (k Kind) String() string {
	switch k {
	case KindGenerate:
		return "generate"
	case KindRegenerate:
		return "regenerate"
	case KindPatch:
		return "patch"
	default:
		return "unknown"
	}
}

// StartLabel is the activity shown before the first event arrives.
func (k Kind) StartLabel() string {
	switch k {
	case KindRegenerate:
		return "Incorporating feedback..."
	case KindPatch:
		return "Generating patches..."
	default:
		return "Starting..."
	}
}

func (k Kind) tokenLabel() string {
	switch k {
	case KindRegenerate:
		return "Regenerating specification..."
	case KindPatch:
		return "Generating patches..."
	default:
		return "Generating specification..."
	}
}

// FailureMessage is the status message for a result that reports failure.
func (k Kind) FailureMessage() string {
	switch k {
	case KindRegenerate:
		return "Regeneration failed"
	case KindPatch:
		return "Patching failed"
	default:
		return "Generation failed"
	}
}

// Summary is the bookkeeping a finished run leaves behind.
type Summary struct {
	SessionID  string
	Success    bool
	CostUSD    float64
	DurationMs int64
	NumTurns   int
	Usage      agent.Usage
}

// Reducer accumulates one run's events in arrival order.
type Reducer struct {
	kind     Kind
	text     strings.Builder
	tokens   int
	status   Status
	summary  Summary
	terminal bool
	now      func() time.Time
}

// NewReducer starts a run of the given kind with a fresh generating status.
func NewReducer(kind Kind, now func() time.Time) *Reducer {
	if now == nil {
		now = time.Now
	}
	r := &Reducer{kind: kind, now: now}
	r.status = Generating{CurrentActivity: kind.StartLabel(), LastUpdate: now()}
	return r
}

// Apply folds one event into the reducer. After a terminal event only
// usage accounting is still taken in.
func (r *Reducer) Apply(ev agent.Event) {
	if r.terminal {
		if tc, ok := ev.(agent.TurnCompleteEvent); ok {
			r.summary.Usage = tc.Usage
		}
		return
	}

	switch e := ev.(type) {
	case agent.TokenEvent:
		r.tokens++
		r.text.WriteString(e.Content)
		r.generating(r.kind.tokenLabel())

	case agent.SessionInitEvent:
		r.summary.SessionID = e.SessionID
		r.generating("Session initialized")

	case agent.ToolStartEvent:
		r.generating("Using tool: " + e.Tool)

	case agent.ToolEndEvent:
		r.generating("Tool completed: " + e.Tool)

	case agent.TurnCompleteEvent:
		r.summary.Usage = e.Usage
		r.generating("Processing turn...")

	case agent.ResultEvent:
		r.terminal = true
		r.summary.Success = e.Success
		r.summary.CostUSD = e.TotalCostUSD
		r.summary.DurationMs = e.DurationMs
		r.summary.NumTurns = e.NumTurns
		if e.Success {
			r.status = Complete{Result: e.Result, TokenCount: r.tokens}
		} else {
			r.status = Failed{Message: r.kind.FailureMessage(), Details: []string{e.Result}}
		}

	case agent.ErrorEvent:
		r.terminal = true
		r.status = Failed{Message: e.Message, Details: e.Errors}
	}
}

// Fail records a transport failure. It is ignored once a terminal event
// has been applied.
func (r *Reducer) Fail(err error) {
	if r.terminal || err == nil {
		return
	}
	r.terminal = true
	r.status = Failed{Message: err.Error()}
}

// SetActivity replaces the activity label of a generating status.
func (r *Reducer) SetActivity(label string) {
	if _, ok := r.status.(Generating); ok {
		r.generating(label)
	}
}

func (r *Reducer) generating(label string) {
	r.status = Generating{TokenCount: r.tokens, CurrentActivity: label, LastUpdate: r.now()}
}

func (r *Reducer) Kind() Kind        { return r.kind }
func (r *Reducer) Text() string      { return r.text.String() }
func (r *Reducer) TokenCount() int   { return r.tokens }
func (r *Reducer) Status() Status    { return r.status }
func (r *Reducer) Summary() Summary  { return r.summary }
func (r *Reducer) Terminal() bool    { return r.terminal }
func (r *Reducer) SessionID() string { return r.summary.SessionID }

// Succeeded reports whether the run ended with a successful result.
func (r *Reducer) Succeeded() bool {
	_, ok := r.status.(Complete)
	return ok
}
