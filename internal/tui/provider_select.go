package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/manasm11/ralph/internal/provider"
)

type providerChoice struct {
	typ   provider.Type
	icon  string
	name  string
	about string
}

// providerSelectModel is a minimal bubbletea model for inline provider selection.
type providerSelectModel struct {
	choices   []providerChoice
	cursor    int
	choice    provider.Type
	confirmed bool
	quit      bool
	width     int
}

func newProviderSelectModel(ollama provider.OllamaStatus, current provider.Type) providerSelectModel {
	m := providerSelectModel{
		choices: []providerChoice{
			{provider.Anthropic, "☁ ", "Claude (cloud)", "Standard claude CLI"},
			{provider.Ollama, "🖥 ", "Ollama (local)", ollamaSummary(ollama)},
			{provider.OpenAI, "⚡", "OpenAI-compatible", "Chat completions endpoint"},
		},
		width: 50,
	}
	for i, c := range m.choices {
		if c.typ == current {
			m.cursor = i
		}
	}
	return m
}

func ollamaSummary(s provider.OllamaStatus) string {
	if !s.Available {
		return "Local execution (not detected)"
	}
	parts := []string{"Local execution"}
	if len(s.Models) > 0 {
		parts = append(parts, fmt.Sprintf("%d models", len(s.Models)))
	}
	if s.Version != "" {
		parts = append(parts, s.Version)
	}
	return strings.Join(parts, " · ")
}

func (m providerSelectModel) Init() tea.Cmd {
	return nil
}

func (m providerSelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}
		case "1", "2", "3":
			m.cursor = int(key[0] - '1')
			m.choice = m.choices[m.cursor].typ
			m.confirmed = true
			return m, tea.Quit
		case "enter", " ":
			m.choice = m.choices[m.cursor].typ
			m.confirmed = true
			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m providerSelectModel) View() string {
	if m.confirmed {
		done := lipgloss.NewStyle().Foreground(Success).Render("  ✓ Selected " + m.choices[m.cursor].name + " provider")
		return done + "\n"
	}

	if m.quit {
		return ""
	}

	title := TitleStyle.Render("◆ ralph · Select Provider")

	selectedStyle := lipgloss.NewStyle().Bold(true).Foreground(Secondary)
	normalStyle := lipgloss.NewStyle().Foreground(Text)

	var lines []string
	for i, c := range m.choices {
		lines = append(lines, "")
		label := fmt.Sprintf("%s %s", c.icon, c.name)
		if i == m.cursor {
			lines = append(lines, selectedStyle.Render("  ▸ "+label))
		} else {
			lines = append(lines, normalStyle.Render("    "+label))
		}
		lines = append(lines, SubtitleStyle.Render("       "+c.about))
	}
	lines = append(lines, "")

	boxWidth := 46
	if m.width > 10 && m.width-6 > boxWidth {
		boxWidth = min(m.width-6, 70)
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Width(boxWidth).
		PaddingLeft(1).
		PaddingRight(1).
		Render(strings.Join(lines, "\n"))

	help := HelpStyle.Render(" ↑/↓ navigate · 1-3 pick · enter confirm · q quit")

	return fmt.Sprintf("\n%s\n\n%s\n\n%s\n", title, box, help)
}

// RunProviderSelection runs an inline bubbletea program for provider selection.
// Returns the chosen provider type, or an error if the user quit without selecting.
func RunProviderSelection(ollama provider.OllamaStatus, current provider.Type) (provider.Type, error) {
	p := tea.NewProgram(newProviderSelectModel(ollama, current))

	finalModel, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("provider selection failed: %w", err)
	}

	result := finalModel.(providerSelectModel)
	if !result.confirmed {
		return "", fmt.Errorf("provider selection cancelled")
	}

	return result.choice, nil
}
