package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ProgressBarModel renders "label ███░░ 2/5 (40%)".
type ProgressBarModel struct {
	label string
	done  int
	total int
	width int
}

var (
	progressBarFilled = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	progressBarEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	progressBarText   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB"))
)

func NewProgressBarModel(label string, total, width int) ProgressBarModel {
	return ProgressBarModel{label: label, total: total, width: width}
}

// Set updates the counts; done is clamped to [0, total].
func (m *ProgressBarModel) Set(done, total int) {
	m.total = max(total, 0)
	m.done = min(max(done, 0), m.total)
}

func (m *ProgressBarModel) SetWidth(width int) {
	m.width = width
}

func (m ProgressBarModel) View() string {
	label := ""
	if m.label != "" {
		label = progressBarText.Render(m.label) + " "
	}
	barWidth := max(m.width-lipgloss.Width(label)-16, 5)

	filled, pct := 0, 0
	if m.total > 0 {
		filled = m.done * barWidth / m.total
		pct = m.done * 100 / m.total
	}
	bar := progressBarFilled.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))
	counts := progressBarText.Render(fmt.Sprintf(" %d/%d (%d%%)", m.done, m.total, pct))

	return "  " + label + bar + counts
}
