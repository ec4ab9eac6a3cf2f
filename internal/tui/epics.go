package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/manasm11/ralph/internal/store"
	"github.com/manasm11/ralph/internal/tui/components"
	"github.com/muesli/reflow/truncate"
)

// EpicsModel lists saved epics with a preview of the selected one.
type EpicsModel struct {
	store   EpicStore
	list    components.ListModel
	loading bool
	err     error
	count   int

	width, height int
}

func NewEpicsModel(epics EpicStore) EpicsModel {
	return EpicsModel{store: epics, list: components.NewListModel(nil)}
}

// Load fetches the epic list.
func (m *EpicsModel) Load() tea.Cmd {
	m.loading = true
	m.err = nil
	return loadEpics(m.store)
}

func (m *EpicsModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.list.SetSize(max(w-4, 10), max(h-4, 3))
}

func (m EpicsModel) Update(msg tea.Msg) (EpicsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case epicsLoadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.count = len(msg.epics)
			m.list.SetItems(EpicItems(msg.epics, max(m.width-10, 40)))
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q":
			return m, backToMenu
		case "r":
			return m, m.Load()
		}
		m.list, _ = m.list.Update(msg)
	}
	return m, nil
}

func (m EpicsModel) View() string {
	title := TitleStyle.Render(fmt.Sprintf("Epics (%d)", m.count))
	var body string
	switch {
	case m.loading:
		body = SubtitleStyle.Render("  Loading...")
	case m.err != nil:
		body = ErrorStyle.Render("  Could not load epics: " + m.err.Error())
	case m.count == 0:
		body = SubtitleStyle.Render("  No epics yet. Create one from the menu.")
	default:
		body = m.list.View()
	}
	help := HelpStyle.Render("↑/↓: choose  |  r: reload  |  esc: menu")
	return lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help)
}

// EpicItems converts epics to list rows, previewing the start of each body.
func EpicItems(epics []store.Epic, previewWidth int) []components.ListItem {
	items := make([]components.ListItem, 0, len(epics))
	for _, e := range epics {
		items = append(items, components.ListItem{
			ID:     strconv.FormatInt(e.ID, 10),
			Label:  fmt.Sprintf("#%d %s", e.ID, e.Title),
			Hint:   e.CreatedAt.Format("2006-01-02 15:04"),
			Detail: EpicPreview(e.Description, previewWidth, 8),
		})
	}
	return items
}

// EpicPreview keeps the first n non-blank lines of an epic body, with
// markup tags stripped.
func EpicPreview(body string, width, n int) string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(stripTags(line))
		if line == "" {
			continue
		}
		if width > 1 {
			line = truncate.StringWithTail(line, uint(width), "…")
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func stripTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
