package tui

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/manasm11/ralph/internal/agent"
	"github.com/manasm11/ralph/internal/store"
	"github.com/manasm11/ralph/internal/wizard"
)

// runStartedMsg hands the run's cancel func back to the model.
type runStartedMsg struct {
	runID  int
	cancel context.CancelFunc
}

// agentEventMsg wraps an agent event for the bubbletea message loop.
type agentEventMsg struct {
	runID int
	event agent.Event
}

// runDoneMsg signals the agent stream for runID has ended.
type runDoneMsg struct {
	runID int
	err   error
}

type editorDoneMsg struct {
	text string
	err  error
}

type epicSavedMsg struct {
	id  int64
	err error
}

type sessionRecordedMsg struct {
	claudeSessionID string
	err             error
}

type sessionsLinkedMsg struct {
	linked int64
	err    error
}

// draftSaveFailedMsg reports a background draft save error.
type draftSaveFailedMsg struct {
	err error
}

type epicsLoadedMsg struct {
	epics []store.Epic
	err   error
}

type backToMenuMsg struct{}

// runAgent streams run on client. Events are delivered through send while
// the stream is open; the returned message closes the run.
func runAgent(client agent.Client, send func(tea.Msg), logger *slog.Logger, run wizard.Run) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		send(runStartedMsg{runID: run.ID, cancel: cancel})

		logger.Info("agent run started", "run_id", run.ID, "kind", run.Kind.String(), "model", run.Options.Model)
		err := client.RunQuery(ctx, run.Prompt, run.Options, func(ev agent.Event) {
			send(agentEventMsg{runID: run.ID, event: ev})
		})
		if err != nil {
			logger.Warn("agent run failed", "run_id", run.ID, "kind", run.Kind.String(), "error", err)
		}
		return runDoneMsg{runID: run.ID, err: err}
	}
}

// recordSession writes the history row of a finished run.
func recordSession(sessions SessionRecorder, logger *slog.Logger, rec wizard.RunRecord) tea.Cmd {
	return func() tea.Msg {
		row := SessionRecord(rec)
		logger.Info("agent run finished",
			"run_id", rec.RunID,
			"kind", row.Kind,
			"status", row.Status,
			"cost_usd", row.CostUSD,
			"turns", row.NumTurns,
		)
		if _, err := sessions.Record(context.Background(), row); err != nil {
			logger.Error("record agent session", "error", err)
			return sessionRecordedMsg{err: err}
		}
		return sessionRecordedMsg{claudeSessionID: row.ClaudeSessionID}
	}
}

// linkSessions attaches the runs behind a saved epic to it.
func linkSessions(sessions SessionRecorder, logger *slog.Logger, epicID int64, claudeSessionIDs []string) tea.Cmd {
	ids := append([]string(nil), claudeSessionIDs...)
	return func() tea.Msg {
		var total int64
		for _, id := range ids {
			n, err := sessions.LinkEpic(context.Background(), id, epicID)
			if err != nil {
				logger.Error("link agent session", "epic_id", epicID, "error", err)
				return sessionsLinkedMsg{linked: total, err: err}
			}
			total += n
		}
		return sessionsLinkedMsg{linked: total}
	}
}

func createEpic(epics EpicStore, title, body string) tea.Cmd {
	return func() tea.Msg {
		id, err := epics.CreateEpic(context.Background(), title, body)
		return epicSavedMsg{id: id, err: err}
	}
}

func loadEpics(epics EpicStore) tea.Cmd {
	return func() tea.Msg {
		list, err := epics.FindAll(context.Background(), false)
		return epicsLoadedMsg{epics: list, err: err}
	}
}

// openEditor runs the external editor. The editor suspends and resumes
// the terminal itself, so it runs as a plain command.
func openEditor(ed Editor, text string) tea.Cmd {
	return func() tea.Msg {
		out, err := ed.OpenEditor(context.Background(), text)
		return editorDoneMsg{text: out, err: err}
	}
}

func backToMenu() tea.Msg { return backToMenuMsg{} }
