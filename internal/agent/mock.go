package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// MockClient is a test double that replays scripted sessions.
type MockClient struct {
	// Sessions is a queue of scripted sessions. Each call pops the next one.
	Sessions []MockSession
	// Calls records every call made for assertion.
	Calls []MockCall

	mu      sync.Mutex
	callIdx int
}

// MockSession scripts a single RunQuery call.
type MockSession struct {
	Events []Event
	// Err is returned after Events have been emitted.
	Err error
	// Block makes RunQuery wait for context cancellation after emitting Events.
	Block bool
}

// MockCall records a single RunQuery call.
type MockCall struct {
	Prompt  string
	Options QueryOptions
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock with the given session queue.
func NewMockClient(sessions ...MockSession) *MockClient {
	return &MockClient{Sessions: sessions}
}

// TextSession scripts a successful session that streams chunks.
func TextSession(chunks ...string) MockSession {
	events := []Event{SessionInitEvent{SessionID: "mock-session", Model: "mock"}}
	for _, c := range chunks {
		events = append(events, TokenEvent{Content: c})
	}
	events = append(events,
		ResultEvent{Success: true, Result: strings.Join(chunks, ""), NumTurns: 1},
		TurnCompleteEvent{},
	)
	return MockSession{Events: events}
}

func (m *MockClient) RunQuery(ctx context.Context, prompt string, opts QueryOptions, emit func(Event)) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Prompt: prompt, Options: opts})
	if m.callIdx >= len(m.Sessions) {
		idx := m.callIdx
		m.mu.Unlock()
		return &Error{Op: "start", Err: fmt.Errorf("mock: no more sessions (call %d)", idx)}
	}
	s := m.Sessions[m.callIdx]
	m.callIdx++
	m.mu.Unlock()

	for _, ev := range s.Events {
		if ctx.Err() != nil {
			return &Error{Op: "stream", Err: ctx.Err()}
		}
		emit(ev)
	}
	if s.Block {
		<-ctx.Done()
		return &Error{Op: "stream", Err: ctx.Err()}
	}
	return s.Err
}

// CallCount returns the number of RunQuery calls so far.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// AssertCallCount verifies the expected number of calls were made.
func (m *MockClient) AssertCallCount(t *testing.T, expected int) {
	t.Helper()
	if n := m.CallCount(); n != expected {
		t.Errorf("MockClient: call count = %d, want %d", n, expected)
	}
}

// AssertPromptContains verifies that call i's prompt contains substr.
func (m *MockClient) AssertPromptContains(t *testing.T, i int, substr string) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= len(m.Calls) {
		t.Errorf("MockClient: call %d not made (only %d calls)", i, len(m.Calls))
		return
	}
	if !strings.Contains(m.Calls[i].Prompt, substr) {
		t.Errorf("MockClient: call %d prompt does not contain %q", i, substr)
	}
}
