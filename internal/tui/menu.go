package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/manasm11/ralph/internal/tui/components"
)

type openCreateMsg struct{}

type openEpicsMsg struct{}

const (
	menuCreate = "create"
	menuEpics  = "epics"
	menuQuit   = "quit"
)

// MenuModel is the start screen.
type MenuModel struct {
	list          components.ListModel
	draft         bool
	width, height int
}

func NewMenuModel() MenuModel {
	m := MenuModel{list: components.NewListModel(nil)}
	m.list.SetShowDetail(false)
	m.SetDraft(false)
	return m
}

// SetDraft marks whether a resumable draft is waiting.
func (m *MenuModel) SetDraft(exists bool) {
	m.draft = exists
	create := components.ListItem{ID: menuCreate, Label: "Create epic", Hint: "describe it, answer questions, save"}
	if exists {
		create.Label = "Continue epic"
		create.Badge = "draft"
		create.Hint = "resume where you left off"
	}
	m.list.SetItems([]components.ListItem{
		create,
		{ID: menuEpics, Label: "Browse epics"},
		{ID: menuQuit, Label: "Quit"},
	})
}

func (m *MenuModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.list.SetSize(max(w-4, 10), 3)
}

func (m MenuModel) Update(msg tea.Msg) (MenuModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "enter", " ":
		item, ok := m.list.Selected()
		if !ok {
			return m, nil
		}
		return m, menuCmd(item.ID)
	case "c", "n":
		return m, menuCmd(menuCreate)
	case "b":
		return m, menuCmd(menuEpics)
	case "q", "esc":
		return m, tea.Quit
	}
	m.list, _ = m.list.Update(msg)
	return m, nil
}

func menuCmd(id string) tea.Cmd {
	switch id {
	case menuCreate:
		return func() tea.Msg { return openCreateMsg{} }
	case menuEpics:
		return func() tea.Msg { return openEpicsMsg{} }
	case menuQuit:
		return tea.Quit
	}
	return nil
}

func (m MenuModel) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1).
		Render("Turn rough ideas into agent-ready specifications")

	help := HelpStyle.Render("↑/↓: choose  |  enter: open  |  c: create  |  b: browse  |  q: quit")
	content := lipgloss.JoinVertical(lipgloss.Left, title, m.list.View(), "", help)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
