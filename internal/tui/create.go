package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/manasm11/ralph/internal/draft"
	"github.com/manasm11/ralph/internal/specdoc"
	"github.com/manasm11/ralph/internal/stream"
	"github.com/manasm11/ralph/internal/tui/components"
	"github.com/manasm11/ralph/internal/wizard"
	"github.com/muesli/reflow/wordwrap"
)

// CreateModel drives the epic-creation wizard: description, streamed
// generation, questions, patching, review and save. The wizard itself
// holds the state; this model owns the widgets and the agent runs.
type CreateModel struct {
	deps *Deps
	wiz  *wizard.Wizard

	input    textarea.Model
	review   viewport.Model
	options  components.ListModel
	actions  components.ListModel
	activity components.LogStreamModel
	progress components.ProgressBarModel
	spinner  spinner.Model

	// cancel stops the stream of cancelRunID
	cancel      context.CancelFunc
	cancelRunID int
	shownRunID  int

	resumePrompt bool
	notice       string
	// agent sessions behind the current spec, linked to the epic on save
	sessionIDs []string
	// widget layout last applied, see sync
	layout string

	width, height int
}

// NewCreateModel returns the wizard screen at an empty description.
func NewCreateModel(deps *Deps) CreateModel {
	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")

	vp := viewport.New(80, 20)
	vp.KeyMap.PageDown.SetKeys("pgdown")
	vp.KeyMap.PageUp.SetKeys("pgup")
	vp.KeyMap.HalfPageDown.SetKeys("ctrl+d")
	vp.KeyMap.HalfPageUp.SetKeys("ctrl+u")
	vp.KeyMap.Down.SetKeys("shift+down")
	vp.KeyMap.Up.SetKeys("shift+up")

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = RunStyle

	return CreateModel{
		deps:     deps,
		wiz:      wizard.New(deps.Wizard),
		input:    ta,
		review:   vp,
		options:  components.NewListModel(nil),
		actions:  components.NewListModel(ReviewActions()),
		activity: components.NewLogStreamModel(),
		progress: components.NewProgressBarModel("Questions", 0, 40),
		spinner:  sp,
	}
}

// Wizard exposes the underlying state machine.
func (m CreateModel) Wizard() *wizard.Wizard { return m.wiz }

// ResumePrompt reports whether the saved-draft prompt is showing.
func (m CreateModel) ResumePrompt() bool { return m.resumePrompt }

func (m CreateModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Enter is called when the screen is opened from the menu. A saved draft
// is offered for resuming; otherwise the current wizard state is kept.
func (m *CreateModel) Enter() tea.Cmd {
	m.notice = ""
	if m.wiz.ActiveRunID() != 0 || !IsBlankDraft(m.wiz.Snapshot()) {
		return m.sync()
	}
	state, err := m.deps.Drafts.Check(context.Background())
	if err != nil {
		m.deps.Logger.Error("check draft", "error", err)
		m.notice = "Could not check for a saved draft: " + err.Error()
	}
	m.resumePrompt = state == draft.CheckExists
	return m.sync()
}

func (m *CreateModel) SetSize(w, h int) {
	m.width = w
	m.height = h

	m.input.SetWidth(max(w-4, 10))
	m.input.SetHeight(max(h/3, 3))

	m.review.Width = max(w-4, 10)
	m.review.Height = max(h-len(ReviewActions())-6, 3)
	m.refreshReview()

	m.options.SetSize(max(w-4, 10), max(h-10, 3))
	m.actions.SetSize(max(w-4, 10), len(ReviewActions()))
	m.actions.SetShowDetail(false)
	m.activity.SetSize(max(w-4, 10), max(h/3, 3))
	m.progress.SetWidth(max(w-4, 20))
}

func (m CreateModel) Update(msg tea.Msg) (CreateModel, tea.Cmd) {
	cmd := m.update(msg)
	m.autosave(msg)
	return m, cmd
}

func (m *CreateModel) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd

	case runStartedMsg:
		if msg.runID != m.wiz.ActiveRunID() {
			// cancelled before the stream got going
			msg.cancel()
			return nil
		}
		m.cancel, m.cancelRunID = msg.cancel, msg.runID
		return nil

	case agentEventMsg:
		if !m.wiz.HandleEvent(msg.runID, msg.event) {
			return nil
		}
		if line, ok := ActivityLine(msg.event); ok {
			m.activity.AppendLine(line)
		}
		return tea.Batch(m.takeFinished(), m.sync())

	case runDoneMsg:
		m.wiz.FinishRun(msg.runID, msg.err)
		if msg.runID == m.cancelRunID {
			m.cancel, m.cancelRunID = nil, 0
		}
		return tea.Batch(m.takeFinished(), m.sync())

	case sessionRecordedMsg:
		if msg.err == nil && msg.claudeSessionID != "" {
			m.sessionIDs = append(m.sessionIDs, msg.claudeSessionID)
		}
		return nil

	case sessionsLinkedMsg:
		return nil

	case editorDoneMsg:
		m.wiz.ApplyEdit(msg.text, msg.err)
		m.refreshReview()
		return nil

	case epicSavedMsg:
		return m.finishSave(msg)

	case draftSaveFailedMsg:
		m.notice = "Draft not saved: " + msg.err.Error()
		return nil

	case tea.KeyMsg:
		if m.resumePrompt {
			return m.handleResumeKey(msg)
		}
		return m.handleKey(msg)
	}

	if m.usesInput() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return cmd
	}
	return nil
}

// autosave schedules a debounced draft save after anything that may have
// changed the wizard.
func (m *CreateModel) autosave(msg tea.Msg) {
	switch msg.(type) {
	case spinner.TickMsg, runStartedMsg, sessionRecordedMsg, sessionsLinkedMsg, draftSaveFailedMsg:
		return
	}
	if m.resumePrompt {
		return
	}
	snap := m.wiz.Snapshot()
	if IsBlankDraft(snap) {
		return
	}
	m.deps.Drafts.ScheduleSave(snap)
}

// Leave flushes the draft before the screen is left.
func (m *CreateModel) Leave() {
	if m.resumePrompt {
		return
	}
	snap := m.wiz.Snapshot()
	if IsBlankDraft(snap) {
		m.deps.Drafts.Cancel()
		return
	}
	if err := m.deps.Drafts.SaveNow(context.Background(), snap); err != nil {
		m.deps.Logger.Error("save draft", "error", err)
	}
}

// Stop cancels the stream in flight, if any.
func (m *CreateModel) Stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel, m.cancelRunID = nil, 0
	}
}

func (m *CreateModel) takeFinished() tea.Cmd {
	rec, ok := m.wiz.TakeFinishedRun()
	if !ok {
		return nil
	}
	return recordSession(m.deps.Sessions, m.deps.Logger, rec)
}

func (m *CreateModel) start(run wizard.Run) tea.Cmd {
	m.activity.Clear()
	m.shownRunID = run.ID
	m.activity.AppendLine(components.LogLine{Text: run.Kind.StartLabel(), Type: components.LogInfo})
	return tea.Batch(runAgent(m.deps.Agent, m.deps.send, m.deps.Logger, run), m.sync())
}

func (m *CreateModel) handleResumeKey(msg tea.KeyMsg) tea.Cmd {
	ctx := context.Background()
	switch msg.String() {
	case "r", "enter":
		m.resumePrompt = false
		m.sessionIDs = nil
		if _, err := m.deps.Drafts.Load(ctx, m.wiz); err != nil {
			m.deps.Logger.Error("load draft", "error", err)
			m.wiz.Fail("Could not load the saved draft: " + err.Error())
		}
		m.layout = ""
		return m.sync()
	case "d":
		m.resumePrompt = false
		m.sessionIDs = nil
		if err := m.deps.Drafts.ClearAndReset(ctx, m.wiz); err != nil {
			m.deps.Logger.Error("clear draft", "error", err)
			m.notice = "Could not discard the draft: " + err.Error()
		}
		m.layout = ""
		return m.sync()
	case "esc":
		return backToMenu
	}
	return nil
}

func (m *CreateModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key != "esc" && !strings.HasPrefix(key, "shift+") {
		m.notice = ""
	}

	switch m.wiz.Step().(type) {
	case wizard.StepDescription:
		switch key {
		case "enter":
			run, err := m.wiz.SubmitDescription(m.input.Value())
			if err != nil {
				m.notice = inputError(err, "Describe what the epic should deliver first.")
				return nil
			}
			return m.start(run)
		case "esc":
			return backToMenu
		}
		return m.updateInput(msg)

	case wizard.StepGenerating:
		switch key {
		case "esc":
			m.Stop()
			_ = m.wiz.Cancel()
			return m.sync()
		case "r":
			run, err := m.wiz.Retry()
			if err != nil {
				return nil
			}
			return m.start(run)
		}

	case wizard.StepPatching:
		if key == "esc" {
			m.Stop()
			_ = m.wiz.Cancel()
			return m.sync()
		}

	case wizard.StepQuestions:
		return m.handleQuestionKey(msg)

	case wizard.StepReview:
		return m.handleReviewKey(msg)

	case wizard.StepFeedback:
		switch key {
		case "enter":
			run, err := m.wiz.SubmitFeedback(m.input.Value())
			if err != nil {
				m.notice = inputError(err, "Write some feedback first.")
				return nil
			}
			return m.start(run)
		case "esc":
			_ = m.wiz.Cancel()
			return m.sync()
		}
		return m.updateInput(msg)

	case wizard.StepSuccess:
		if key == "enter" || key == "esc" || key == " " {
			_ = m.wiz.Acknowledge()
			m.sessionIDs = nil
			m.layout = ""
			return tea.Batch(m.sync(), backToMenu)
		}

	case wizard.StepError:
		if key == "enter" || key == "esc" {
			_ = m.wiz.Recover()
			return m.sync()
		}
	}
	return nil
}

func (m *CreateModel) handleQuestionKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if m.wiz.CustomInputMode() {
		switch key {
		case "enter":
			run, err := m.wiz.SubmitCustom(m.input.Value())
			if err != nil {
				m.notice = inputError(err, "Type your answer first.")
				return nil
			}
			if run != nil {
				return m.start(*run)
			}
			return m.sync()
		case "esc":
			_ = m.wiz.Back()
			return m.sync()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return cmd
	}

	switch key {
	case "enter", " ":
		item, ok := m.options.Selected()
		if !ok {
			return nil
		}
		run, err := m.wiz.SelectOption(item.ID)
		if err != nil {
			m.notice = err.Error()
			return nil
		}
		if run != nil {
			return m.start(*run)
		}
		return m.sync()
	case "esc":
		_ = m.wiz.Back()
		return m.sync()
	}
	m.options, _ = m.options.Update(msg)
	return nil
}

func (m *CreateModel) handleReviewKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	switch key {
	case "enter":
		if item, ok := m.actions.Selected(); ok {
			return m.runAction(item.ID)
		}
		return nil
	case "esc", "q":
		return m.runAction(actionMenu)
	case "up", "down", "j", "k", "home", "end":
		m.actions, _ = m.actions.Update(msg)
		return nil
	}
	if action := reviewShortcut(key); action != "" {
		return m.runAction(action)
	}
	var cmd tea.Cmd
	m.review, cmd = m.review.Update(msg)
	return cmd
}

func (m *CreateModel) runAction(action string) tea.Cmd {
	switch action {
	case actionSave:
		title, body, err := m.wiz.BeginSave()
		if err != nil {
			return nil
		}
		m.deps.Logger.Info("saving epic", "title", title)
		return tea.Batch(createEpic(m.deps.Epics, title, body), m.sync())
	case actionFeedback:
		if err := m.wiz.RequestFeedback(); err != nil {
			return nil
		}
		return m.sync()
	case actionEdit:
		text, err := m.wiz.EditText()
		if err != nil {
			return nil
		}
		return openEditor(m.deps.Editor, text)
	case actionDiscard:
		m.Stop()
		if err := m.deps.Drafts.ClearAndReset(context.Background(), m.wiz); err != nil {
			m.deps.Logger.Error("clear draft", "error", err)
			m.notice = "Draft not cleared: " + err.Error()
		}
		m.sessionIDs = nil
		m.layout = ""
		return m.sync()
	case actionMenu:
		return backToMenu
	}
	return nil
}

func (m *CreateModel) finishSave(msg epicSavedMsg) tea.Cmd {
	m.wiz.FinishSave(msg.id, msg.err)
	if msg.err != nil {
		m.deps.Logger.Error("create epic", "error", msg.err)
		return m.sync()
	}
	m.deps.Logger.Info("epic saved", "epic_id", msg.id)

	m.deps.Drafts.Cancel()
	if err := m.deps.Drafts.Clear(context.Background()); err != nil {
		m.deps.Logger.Error("clear draft", "error", err)
		m.notice = "Epic saved, but the draft could not be cleared: " + err.Error()
	}
	var link tea.Cmd
	if len(m.sessionIDs) > 0 {
		link = linkSessions(m.deps.Sessions, m.deps.Logger, msg.id, m.sessionIDs)
	}
	m.sessionIDs = nil
	return tea.Batch(link, m.sync())
}

func (m *CreateModel) updateInput(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	switch m.wiz.Step().(type) {
	case wizard.StepDescription:
		m.wiz.SetDescription(m.input.Value())
	case wizard.StepFeedback:
		m.wiz.SetFeedback(m.input.Value())
	}
	return cmd
}

func (m CreateModel) usesInput() bool {
	if m.resumePrompt {
		return false
	}
	switch m.wiz.Step().(type) {
	case wizard.StepDescription, wizard.StepFeedback:
		return true
	case wizard.StepQuestions:
		return m.wiz.CustomInputMode()
	}
	return false
}

func inputError(err error, empty string) string {
	if errors.Is(err, wizard.ErrEmptyInput) {
		return empty
	}
	return err.Error()
}

// sync points the widgets at the current wizard state. Widgets are only
// reset when the step, question or input mode changes so cursors and
// typed text survive other updates.
func (m *CreateModel) sync() tea.Cmd {
	if runID := m.wiz.ActiveRunID(); runID != 0 && runID != m.shownRunID {
		m.activity.Clear()
		m.shownRunID = runID
	}

	layout := m.wiz.Step().Name()
	if _, ok := m.wiz.Step().(wizard.StepQuestions); ok {
		layout += fmt.Sprintf(":%d:%v", m.wiz.QuestionIndex(), m.wiz.CustomInputMode())
	}
	if m.resumePrompt {
		layout = "resume"
	}
	if layout == m.layout {
		if _, ok := m.wiz.Step().(wizard.StepReview); ok {
			m.refreshReview()
		}
		return nil
	}
	m.layout = layout

	m.input.Blur()
	if m.resumePrompt {
		return nil
	}

	switch m.wiz.Step().(type) {
	case wizard.StepDescription:
		m.input.Placeholder = "What should this epic deliver? Paste notes, requirements, links..."
		m.input.SetValue(m.wiz.Description())
		return m.input.Focus()

	case wizard.StepFeedback:
		m.input.Placeholder = "What should change in the specification?"
		m.input.SetValue(m.wiz.Feedback())
		return m.input.Focus()

	case wizard.StepQuestions:
		q, ok := m.wiz.CurrentQuestion()
		if !ok {
			return nil
		}
		m.progress.Set(m.wiz.QuestionIndex(), len(m.wiz.Questions()))
		if m.wiz.CustomInputMode() {
			m.input.Placeholder = "Your answer"
			m.input.Reset()
			return m.input.Focus()
		}
		m.options.SetItems(OptionItems(q))
		m.options.SetCursor(recommendedIndex(q.Options))

	case wizard.StepReview:
		m.actions.SetCursor(0)
		m.refreshReview()
		m.review.GotoTop()
	}
	return nil
}

func (m *CreateModel) refreshReview() {
	width := m.review.Width
	if width <= 0 {
		width = 80
	}
	m.review.SetContent(wordwrap.String(m.wiz.Spec(), width))
}

func recommendedIndex(opts []specdoc.QuestionOption) int {
	for i, o := range opts {
		if o.Recommended {
			return i
		}
	}
	return 0
}

func (m CreateModel) View() string {
	if m.resumePrompt {
		return m.viewResume()
	}

	step := m.wiz.Step()
	failed := false
	if _, ok := m.wiz.Status().(stream.Failed); ok {
		failed = true
	}

	sections := []string{TitleStyle.Render(StepTitle(step))}
	if msg := m.wiz.ErrorMessage(); msg != "" {
		sections = append(sections, ErrorStyle.Render("  "+msg))
	}
	if m.notice != "" {
		sections = append(sections, WarningStyle.Render("  "+m.notice))
	}
	sections = append(sections, "")

	switch s := step.(type) {
	case wizard.StepDescription, wizard.StepFeedback:
		sections = append(sections, m.input.View())

	case wizard.StepGenerating, wizard.StepPatching:
		sections = append(sections, m.viewRun(failed))

	case wizard.StepQuestions:
		sections = append(sections, m.viewQuestion())

	case wizard.StepReview:
		if change := m.wiz.LastChange(); !change.Empty() {
			sections = append(sections, SubtitleStyle.Render("  Last update: "+change.String()))
		}
		sections = append(sections, m.review.View(), "", m.actions.View())

	case wizard.StepSaving:
		sections = append(sections, "  "+m.spinner.View()+" Saving epic...")

	case wizard.StepSuccess:
		sections = append(sections,
			SuccessStyle.Render(fmt.Sprintf("  ✓ Saved %q as epic #%d", specdoc.ExtractTitle(m.wiz.Spec()), s.EpicID)))

	case wizard.StepError:
		sections = append(sections, ErrorStyle.Render("  "+wordwrap.String(s.Message, max(m.width-4, 20))))
	}

	sections = append(sections, "", HelpStyle.Render(HelpText(step, m.wiz.CustomInputMode(), failed)))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m CreateModel) viewRun(failed bool) string {
	status := StatusLine(m.wiz.Status(), m.spinner.View())
	style := RunStyle
	if failed {
		style = ErrorStyle
	}
	parts := []string{"  " + style.Render(status), ""}

	if _, ok := m.wiz.Step().(wizard.StepGenerating); ok && m.wiz.Spec() != "" {
		preview := TailLines(m.wiz.Spec(), max(m.width-6, 20), max(m.height/3, 3))
		parts = append(parts, SubtitleStyle.Render(preview), "")
	}
	parts = append(parts, m.activity.View())
	return strings.Join(parts, "\n")
}

func (m CreateModel) viewQuestion() string {
	q, ok := m.wiz.CurrentQuestion()
	if !ok {
		return ""
	}
	total := len(m.wiz.Questions())
	width := max(m.width-4, 20)

	parts := []string{
		m.progress.View(),
		"",
		QuestionStyle.Render("  " + QuestionHeader(m.wiz.QuestionIndex(), total)),
		"  " + wordwrap.String(q.Text, width),
	}
	if q.Context != "" {
		parts = append(parts, SubtitleStyle.Render("  "+wordwrap.String(q.Context, width)))
	}
	parts = append(parts, "")
	if m.wiz.CustomInputMode() {
		parts = append(parts, m.input.View())
	} else {
		parts = append(parts, m.options.View())
	}
	return strings.Join(parts, "\n")
}

func (m CreateModel) viewResume() string {
	title := TitleStyle.Render("Resume draft?")
	body := lipgloss.NewStyle().Foreground(Text).
		Render("  An unfinished epic from an earlier session was found.")
	help := HelpStyle.Render("r/enter: resume  |  d: discard and start over  |  esc: menu")
	content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help)
	if m.notice != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, "", WarningStyle.Render("  "+m.notice))
	}
	return content
}
