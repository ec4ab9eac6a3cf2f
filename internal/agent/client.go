package agent

import (
	"context"
	"fmt"
)

// QueryOptions configures one agent session.
type QueryOptions struct {
	Cwd                string
	Model              string
	MaxTurns           int
	MaxBudgetUSD       float64
	SystemPromptAppend string
	// Resume continues an earlier session instead of starting a new one.
	Resume string
	// Env is merged over the process environment for CLI backends.
	Env map[string]string
}

// Client runs agent sessions. RunQuery blocks until the stream ends,
// calling emit for every event in arrival order. A non-nil error means the
// stream could not be started or broke mid-way; a failure reported by the
// agent itself arrives as an ErrorEvent and RunQuery returns nil.
type Client interface {
	RunQuery(ctx context.Context, prompt string, opts QueryOptions, emit func(Event)) error
}

// Error is a transport failure: the session could not be started, or the
// stream broke before a terminal event.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
