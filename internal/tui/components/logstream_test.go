package components

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func TestLogStream_AppendAndClear(t *testing.T) {
	t.Parallel()
	m := NewLogStreamModel()
	m.SetSize(80, 10)

	m.AppendLine(LogLine{Text: "first", Type: LogInfo})
	m.AppendLine(LogLine{Text: "second", Type: LogTool})
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}

	m.follow = false
	m.Clear()
	if m.Len() != 0 || m.offset != 0 || !m.follow {
		t.Errorf("after Clear: len=%d offset=%d follow=%v", m.Len(), m.offset, m.follow)
	}
}

func TestLogStream_View(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		w, h  int
		lines []LogLine
		want  []string
	}{
		{"zero size", 0, 0, nil, nil},
		{"empty", 80, 10, nil, []string{"Waiting for the agent..."}},
		{
			"all types",
			80, 10,
			[]LogLine{
				{Text: "info line", Type: LogInfo},
				{Text: "success line", Type: LogSuccess},
				{Text: "error line", Type: LogError},
				{Text: "warning line", Type: LogWarning},
				{Text: "Read", Type: LogTool},
			},
			[]string{"info line", "success line", "error line", "warning line", "⚙ Read"},
		},
		{"first line only", 80, 10, []LogLine{{Text: "top\nhidden"}}, []string{"top"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewLogStreamModel()
			m.SetSize(tt.w, tt.h)
			for _, l := range tt.lines {
				m.AppendLine(l)
			}
			view := m.View()
			if tt.want == nil && view != "" {
				t.Errorf("view = %q, want empty", view)
			}
			for _, s := range tt.want {
				if !strings.Contains(view, s) {
					t.Errorf("view missing %q:\n%s", s, view)
				}
			}
			if strings.Contains(view, "hidden") {
				t.Error("only the first line of a multi-line entry is shown")
			}
		})
	}
}

func TestLogStream_TruncatesLongLines(t *testing.T) {
	t.Parallel()
	m := NewLogStreamModel()
	m.SetSize(20, 5)
	m.AppendLine(LogLine{Text: strings.Repeat("x", 100)})

	if w := lipgloss.Width(m.View()); w > 20 {
		t.Errorf("rendered width = %d, want <= 20", w)
	}
	if !strings.Contains(m.View(), "…") {
		t.Error("truncated line should end with an ellipsis")
	}
}

func TestLogStream_Scrolling(t *testing.T) {
	t.Parallel()
	m := NewLogStreamModel()
	m.SetSize(80, 5)
	for range 20 {
		m.AppendLine(LogLine{Text: "line"})
	}
	if m.offset != 15 {
		t.Fatalf("following offset = %d, want 15", m.offset)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g'}})
	if m.follow || m.offset != 0 {
		t.Errorf("g: follow=%v offset=%d", m.follow, m.offset)
	}
	m.AppendLine(LogLine{Text: "more"})
	if m.offset != 0 {
		t.Error("appending must not scroll when not following")
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}})
	if !m.follow || m.offset != 16 {
		t.Errorf("G: follow=%v offset=%d", m.follow, m.offset)
	}
}
