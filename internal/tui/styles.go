package tui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	Primary   = lipgloss.Color("#F97316") // orange, brand and titles
	Secondary = lipgloss.Color("#38BDF8") // sky, focus and live runs
	Success   = lipgloss.Color("#22C55E")
	Warning   = lipgloss.Color("#EAB308")
	Danger    = lipgloss.Color("#F43F5E")
	Muted     = lipgloss.Color("#71717A")
	Text      = lipgloss.Color("#F4F4F5")
	Border    = lipgloss.Color("#3F3F46")
	Surface   = lipgloss.Color("#18181B") // header and status bar
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary).Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().Foreground(Muted)
	HelpStyle     = lipgloss.NewStyle().Foreground(Muted).PaddingLeft(1)

	HeaderStyle = lipgloss.NewStyle().Background(Surface).PaddingLeft(1)
	StatusBar   = lipgloss.NewStyle().Foreground(Muted).Background(Surface).Padding(0, 1)

	// screen indicators in the header
	ScreenActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(Secondary)
	ScreenLabelStyle  = lipgloss.NewStyle().Foreground(Muted)

	// live agent run status and question headers
	RunStyle      = lipgloss.NewStyle().Foreground(Secondary)
	QuestionStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary)

	ErrorStyle   = lipgloss.NewStyle().Foreground(Danger)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
)
