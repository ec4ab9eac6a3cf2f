package agent

// Event is one item of an agent session stream. The concrete types below
// are the only implementations.
type Event interface {
	eventType() string
}

// TokenEvent carries an incremental piece of generated text.
type TokenEvent struct {
	Content string
}

// ToolStartEvent reports that the agent invoked a tool.
type ToolStartEvent struct {
	Tool      string
	ToolUseID string
	Input     map[string]any
}

// ToolEndEvent reports a tool result. The tool name is not always known
// when the result arrives; backends use "unknown" then.
type ToolEndEvent struct {
	Tool      string
	ToolUseID string
	Result    string
}

// Usage is token accounting for one turn.
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
}

// TurnCompleteEvent closes a turn.
type TurnCompleteEvent struct {
	Usage Usage
}

// SessionInitEvent is the first event of a session.
type SessionInitEvent struct {
	SessionID string
	Model     string
	Tools     []string
}

// ResultEvent is the terminal event of a session that ran to completion.
type ResultEvent struct {
	Success      bool
	Result       string
	TotalCostUSD float64
	DurationMs   int64
	NumTurns     int
}

// ErrorEvent is the terminal event of a session that the agent itself
// reported as failed.
type ErrorEvent struct {
	Message string
	Errors  []string
}

func (TokenEvent) eventType() string        { return "token" }
func (ToolStartEvent) eventType() string    { return "tool_start" }
func (ToolEndEvent) eventType() string      { return "tool_end" }
func (TurnCompleteEvent) eventType() string { return "turn_complete" }
func (SessionInitEvent) eventType() string  { return "session_init" }
func (ResultEvent) eventType() string       { return "result" }
func (ErrorEvent) eventType() string        { return "error" }

// TypeOf returns the wire name of an event, e.g. "token" or "result".
func TypeOf(e Event) string {
	if e == nil {
		return ""
	}
	return e.eventType()
}

// IsTerminal reports whether e ends a session.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case ResultEvent, ErrorEvent:
		return true
	}
	return false
}
