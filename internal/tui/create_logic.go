package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/manasm11/ralph/internal/agent"
	"github.com/manasm11/ralph/internal/specdoc"
	"github.com/manasm11/ralph/internal/store"
	"github.com/manasm11/ralph/internal/stream"
	"github.com/manasm11/ralph/internal/tui/components"
	"github.com/manasm11/ralph/internal/wizard"
	"github.com/muesli/reflow/wordwrap"
)

// Review menu actions.
const (
	actionSave     = "save"
	actionFeedback = "feedback"
	actionEdit     = "edit"
	actionDiscard  = "discard"
	actionMenu     = "menu"
)

// StepTitle is the heading shown for a wizard step.
func StepTitle(step wizard.Step) string {
	switch s := step.(type) {
	case wizard.StepDescription:
		return "Describe your epic"
	case wizard.StepGenerating:
		return "Generating specification"
	case wizard.StepQuestions:
		return "Open questions"
	case wizard.StepPatching:
		return "Updating specification"
	case wizard.StepReview:
		return "Review specification"
	case wizard.StepFeedback:
		return "Feedback"
	case wizard.StepSaving:
		return "Saving"
	case wizard.StepSuccess:
		return fmt.Sprintf("Epic #%d saved", s.EpicID)
	case wizard.StepError:
		return "Something went wrong"
	default:
		return ""
	}
}

// StatusLine renders a generation status. spin is the current spinner
// frame for in-flight runs.
func StatusLine(s stream.Status, spin string) string {
	switch s := s.(type) {
	case stream.Generating:
		line := spin + " " + s.CurrentActivity
		if s.TokenCount > 0 {
			line += fmt.Sprintf(" (%d tokens)", s.TokenCount)
		}
		return line
	case stream.Complete:
		if s.TokenCount > 0 {
			return fmt.Sprintf("✓ %s (%d tokens)", s.Result, s.TokenCount)
		}
		return "✓ " + s.Result
	case stream.Failed:
		line := "✗ " + s.Message
		if len(s.Details) > 0 {
			line += ": " + strings.Join(s.Details, "; ")
		}
		return line
	default:
		return ""
	}
}

// ActivityLine turns an agent event into a line for the activity log.
// Tokens, tool results and turn markers are not shown.
func ActivityLine(ev agent.Event) (components.LogLine, bool) {
	switch e := ev.(type) {
	case agent.SessionInitEvent:
		text := "Session started"
		if e.Model != "" {
			text += " with " + e.Model
		}
		return components.LogLine{Text: text, Type: components.LogInfo}, true
	case agent.ToolStartEvent:
		text := e.Tool
		if arg := toolArgument(e.Input); arg != "" {
			text += " " + arg
		}
		return components.LogLine{Text: text, Type: components.LogTool}, true
	case agent.ResultEvent:
		if !e.Success {
			return components.LogLine{Text: "Run failed: " + firstLine(e.Result), Type: components.LogError}, true
		}
		return components.LogLine{Text: "Done " + RunStats(e.DurationMs, e.NumTurns, e.TotalCostUSD), Type: components.LogSuccess}, true
	case agent.ErrorEvent:
		return components.LogLine{Text: e.Message, Type: components.LogError}, true
	}
	return components.LogLine{}, false
}

// toolArgument picks the most telling input of a tool call.
func toolArgument(input map[string]any) string {
	for _, k := range []string{"file_path", "path", "pattern", "command", "url", "query"} {
		if v, ok := input[k].(string); ok && v != "" {
			if k == "file_path" || k == "path" {
				return filepath.Base(v)
			}
			return firstLine(v)
		}
	}
	return ""
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

// RunStats formats "(12.3s, 2 turns, $0.0140)", skipping unknown parts.
func RunStats(durationMs int64, turns int, costUSD float64) string {
	var parts []string
	if durationMs > 0 {
		parts = append(parts, (time.Duration(durationMs) * time.Millisecond).Round(100*time.Millisecond).String())
	}
	if turns == 1 {
		parts = append(parts, "1 turn")
	} else if turns > 1 {
		parts = append(parts, fmt.Sprintf("%d turns", turns))
	}
	if costUSD > 0 {
		parts = append(parts, fmt.Sprintf("$%.4f", costUSD))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// OptionItems lists a question's options for selection.
func OptionItems(q specdoc.OpenQuestion) []components.ListItem {
	items := make([]components.ListItem, 0, len(q.Options))
	for _, o := range q.Options {
		item := components.ListItem{ID: o.ID, Label: o.Label, Detail: o.Description}
		if o.Recommended {
			item.Badge = "recommended"
		}
		if o.ID == specdoc.CustomOptionID {
			item.Hint = "write your own answer"
		}
		items = append(items, item)
	}
	return items
}

// ReviewActions is the review menu.
func ReviewActions() []components.ListItem {
	return []components.ListItem{
		{ID: actionSave, Label: "Save epic", Hint: "s"},
		{ID: actionFeedback, Label: "Give feedback and regenerate", Hint: "f"},
		{ID: actionEdit, Label: "Edit in external editor", Hint: "e"},
		{ID: actionDiscard, Label: "Discard", Hint: "d"},
		{ID: actionMenu, Label: "Back to menu (keeps draft)", Hint: "esc"},
	}
}

// reviewShortcut maps a review hotkey to its action.
func reviewShortcut(key string) string {
	switch key {
	case "s":
		return actionSave
	case "f":
		return actionFeedback
	case "e":
		return actionEdit
	case "d":
		return actionDiscard
	}
	return ""
}

// HelpText is the key legend for the current step.
func HelpText(step wizard.Step, customMode, failed bool) string {
	switch step.(type) {
	case wizard.StepDescription:
		return "enter: generate  |  alt+enter: newline  |  esc: menu"
	case wizard.StepGenerating:
		if failed {
			return "r: retry  |  esc: back to description"
		}
		return "esc: cancel"
	case wizard.StepPatching:
		return "esc: cancel"
	case wizard.StepQuestions:
		if customMode {
			return "enter: submit answer  |  esc: back to options"
		}
		return "↑/↓: choose  |  enter: select  |  esc: previous question"
	case wizard.StepReview:
		return "↑/↓: choose  |  enter: run  |  pgup/pgdn: scroll  |  s f e d: shortcuts"
	case wizard.StepFeedback:
		return "enter: regenerate  |  alt+enter: newline  |  esc: back to review"
	case wizard.StepSuccess:
		return "enter: back to menu"
	case wizard.StepError:
		return "enter: continue"
	}
	return ""
}

// IsBlankDraft reports a wizard with nothing worth resuming.
func IsBlankDraft(d wizard.DraftState) bool {
	_, atStart := d.Step.(wizard.StepDescription)
	return atStart && strings.TrimSpace(d.Description) == "" && d.Spec == ""
}

// SessionRecord converts a finished run into its history row.
func SessionRecord(rec wizard.RunRecord) store.Session {
	status := store.SessionCompleted
	if rec.Err != "" || !rec.Summary.Success {
		status = store.SessionFailed
	}
	return store.Session{
		ClaudeSessionID: rec.Summary.SessionID,
		Kind:            rec.Kind.String(),
		Status:          status,
		CostUSD:         rec.Summary.CostUSD,
		DurationMs:      rec.Summary.DurationMs,
		NumTurns:        rec.Summary.NumTurns,
		Error:           rec.Err,
	}
}

// QuestionHeader is "Question 2 of 5".
func QuestionHeader(index, total int) string {
	return fmt.Sprintf("Question %d of %d", index+1, total)
}

// TailLines returns the last n lines of text after wrapping it to width.
func TailLines(text string, width, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	if width > 0 {
		text = wordwrap.String(text, width)
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
