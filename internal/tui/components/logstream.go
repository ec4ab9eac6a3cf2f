package components

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

// LogLineType classifies a line of agent activity.
type LogLineType int

const (
	LogInfo LogLineType = iota
	LogSuccess
	LogError
	LogWarning
	LogTool
)

// LogLine is a single line in the activity log.
type LogLine struct {
	Text string
	Type LogLineType
}

// LogStreamModel shows agent activity (tool calls, session and result
// notices) for the run in progress. It follows the tail unless the user
// scrolls to the top.
type LogStreamModel struct {
	lines  []LogLine
	offset int
	width  int
	height int
	follow bool
}

var (
	logInfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB"))
	logSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	logErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	logWarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	logToolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	logMutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func NewLogStreamModel() LogStreamModel {
	return LogStreamModel{follow: true}
}

func (m *LogStreamModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.follow {
		m.scrollToBottom()
	}
}

// AppendLine adds a line, scrolling along when following.
func (m *LogStreamModel) AppendLine(line LogLine) {
	m.lines = append(m.lines, line)
	if m.follow {
		m.scrollToBottom()
	}
}

// Clear empties the log for a new run.
func (m *LogStreamModel) Clear() {
	m.lines = nil
	m.offset = 0
	m.follow = true
}

// Len is the number of lines held.
func (m LogStreamModel) Len() int {
	return len(m.lines)
}

func (m *LogStreamModel) scrollToBottom() {
	if m.height > 0 && len(m.lines) > m.height {
		m.offset = len(m.lines) - m.height
	} else {
		m.offset = 0
	}
}

// Update handles g/G scrolling.
func (m LogStreamModel) Update(msg tea.Msg) (LogStreamModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "G":
			m.follow = true
			m.scrollToBottom()
		case "g":
			m.follow = false
			m.offset = 0
		}
	}
	return m, nil
}

func (m LogStreamModel) View() string {
	if m.height <= 0 || m.width <= 0 {
		return ""
	}
	if len(m.lines) == 0 {
		return logMutedStyle.Render("  Waiting for the agent...")
	}

	end := min(m.offset+m.height, len(m.lines))
	rendered := make([]string, 0, m.height)
	for _, line := range m.lines[max(m.offset, 0):end] {
		rendered = append(rendered, m.renderLine(line))
	}
	return strings.Join(rendered, "\n")
}

func (m LogStreamModel) renderLine(line LogLine) string {
	prefix := "  > "
	style := logInfoStyle
	switch line.Type {
	case LogSuccess:
		style = logSuccessStyle
	case LogError:
		style = logErrorStyle
	case LogWarning:
		style = logWarningStyle
	case LogTool:
		style = logToolStyle
		prefix = "  ⚙ "
	}

	text, _, _ := strings.Cut(line.Text, "\n")
	if room := m.width - lipgloss.Width(prefix) - 1; room > 1 {
		text = truncate.StringWithTail(text, uint(room), "…")
	}
	return style.Render(prefix + text)
}
