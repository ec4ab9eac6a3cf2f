package tui

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/manasm11/ralph/internal/agent"
	"github.com/manasm11/ralph/internal/draft"
	"github.com/manasm11/ralph/internal/store"
	"github.com/manasm11/ralph/internal/wizard"
)

// EpicStore is the epic storage the UI needs.
type EpicStore interface {
	CreateEpic(ctx context.Context, title, description string) (int64, error)
	FindAll(ctx context.Context, includeDeleted bool) ([]store.Epic, error)
}

// SessionRecorder keeps agent run history.
type SessionRecorder interface {
	Record(ctx context.Context, s store.Session) (store.Session, error)
	LinkEpic(ctx context.Context, claudeSessionID string, epicID int64) (int64, error)
}

// Editor edits text outside the TUI.
type Editor interface {
	OpenEditor(ctx context.Context, text string) (string, error)
}

// Deps are the services behind the screens.
type Deps struct {
	Agent    agent.Client
	Epics    EpicStore
	Sessions SessionRecorder
	Drafts   *draft.Controller
	Editor   Editor
	Wizard   wizard.Config
	Logger   *slog.Logger

	// send delivers messages from background goroutines
	send func(tea.Msg)
}

type screen int

const (
	screenMenu screen = iota
	screenCreate
	screenEpics
)

func (s screen) String() string {
	switch s {
	case screenCreate:
		return "Create"
	case screenEpics:
		return "Epics"
	default:
		return "Menu"
	}
}

// AppModel is the root bubbletea model switching between the menu, the
// epic wizard and the epic browser.
type AppModel struct {
	deps     *Deps
	screen   screen
	menu     MenuModel
	create   CreateModel
	epics    EpicsModel
	width    int
	height   int
	quitting bool
}

// NewAppModel creates the root model on the menu screen.
func NewAppModel(deps Deps) *AppModel {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	d := &deps
	d.send = func(tea.Msg) {}
	return &AppModel{
		deps:   d,
		menu:   NewMenuModel(),
		create: NewCreateModel(d),
		epics:  NewEpicsModel(d.Epics),
	}
}

// SetProgram connects background work to p.
// Must be called after tea.NewProgram() and before p.Run().
func (m *AppModel) SetProgram(p *tea.Program) {
	m.SetSender(p.Send)
}

// SetSender routes messages from agent streams and failed draft saves.
func (m *AppModel) SetSender(send func(tea.Msg)) {
	m.deps.send = send
	m.deps.Drafts.OnError(func(err error) {
		send(draftSaveFailedMsg{err: err})
	})
}

// Shutdown stops any agent run and flushes the draft.
func (m *AppModel) Shutdown() {
	m.create.Stop()
	m.create.Leave()
}

func (m *AppModel) Init() tea.Cmd {
	m.refreshMenu()
	return m.create.Init()
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Reserve space for header and status bar
		contentHeight := max(m.height-4, 0)

		m.menu.SetSize(m.width, contentHeight)
		m.create.SetSize(m.width, contentHeight)
		m.epics.SetSize(m.width, contentHeight)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case openCreateMsg:
		m.screen = screenCreate
		return m, m.create.Enter()

	case openEpicsMsg:
		m.screen = screenEpics
		return m, m.epics.Load()

	case backToMenuMsg:
		if m.screen == screenCreate {
			m.create.Leave()
		}
		m.screen = screenMenu
		m.refreshMenu()
		return m, nil

	case epicsLoadedMsg:
		var cmd tea.Cmd
		m.epics, cmd = m.epics.Update(msg)
		return m, cmd

	case spinner.TickMsg, runStartedMsg, agentEventMsg, runDoneMsg, sessionRecordedMsg,
		sessionsLinkedMsg, editorDoneMsg, epicSavedMsg, draftSaveFailedMsg:
		var cmd tea.Cmd
		m.create, cmd = m.create.Update(msg)
		return m, cmd
	}

	// Delegate to the active screen
	var cmd tea.Cmd
	switch m.screen {
	case screenMenu:
		m.menu, cmd = m.menu.Update(msg)
	case screenCreate:
		m.create, cmd = m.create.Update(msg)
	case screenEpics:
		m.epics, cmd = m.epics.Update(msg)
	}
	return m, cmd
}

func (m *AppModel) refreshMenu() {
	state, err := m.deps.Drafts.Check(context.Background())
	if err != nil {
		m.deps.Logger.Error("check draft", "error", err)
	}
	m.menu.SetDraft(state == draft.CheckExists)
}

func (m *AppModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.screen {
	case screenMenu:
		content = m.menu.View()
	case screenCreate:
		content = m.create.View()
	case screenEpics:
		content = m.epics.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), content, m.renderStatusBar())
}

func (m *AppModel) renderHeader() string {
	title := TitleStyle.Render("◆ ralph")

	screens := []screen{screenMenu, screenCreate, screenEpics}
	var indicators string
	for i, s := range screens {
		style := ScreenLabelStyle
		if s == m.screen {
			style = ScreenActiveStyle
		}
		if i > 0 {
			indicators += SubtitleStyle.Render("  ·  ")
		}
		indicators += style.Render(s.String())
	}

	headerContent := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", indicators)

	return HeaderStyle.Width(m.width).Render(headerContent)
}

func (m *AppModel) renderStatusBar() string {
	help := "ctrl+c: quit"
	if m.screen == screenCreate {
		if _, ok := m.create.Wizard().Step().(wizard.StepDescription); !ok {
			help = "draft autosaves  |  " + help
		}
	}
	return StatusBar.
		Width(m.width).
		Render(help)
}

// ProgramTerminal suspends a running program around an external editor.
type ProgramTerminal struct {
	p *tea.Program
}

func NewProgramTerminal(p *tea.Program) *ProgramTerminal {
	return &ProgramTerminal{p: p}
}

func (t *ProgramTerminal) Suspend() error { return t.p.ReleaseTerminal() }

func (t *ProgramTerminal) Resume() error { return t.p.RestoreTerminal() }
