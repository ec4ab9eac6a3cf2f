package agent

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// streamMessage is the subset of a `claude --output-format stream-json`
// line that maps to events.
type streamMessage struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`

	// system/init
	SessionID string   `json:"session_id"`
	Model     string   `json:"model"`
	Tools     []string `json:"tools"`

	// stream_event
	Event *struct {
		Type  string `json:"type"`
		Delta *struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"delta"`
	} `json:"event"`

	// assistant / user
	Message *struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`

	// result
	Result       string   `json:"result"`
	TotalCostUSD float64  `json:"total_cost_usd"`
	DurationMs   int64    `json:"duration_ms"`
	NumTurns     int      `json:"num_turns"`
	IsError      bool     `json:"is_error"`
	Errors       []string `json:"errors"`
	Usage        *struct {
		InputTokens         int `json:"input_tokens"`
		OutputTokens        int `json:"output_tokens"`
		CacheReadTokens     int `json:"cache_read_input_tokens"`
		CacheCreationTokens int `json:"cache_creation_input_tokens"`
	} `json:"usage"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     map[string]any  `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
}

// parseStreamLine maps one line of stream-json output to zero or more
// events. Lines that are not JSON, or carry message types with no event
// counterpart, yield nothing.
func parseStreamLine(line string, logger *slog.Logger) []Event {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var msg streamMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		logger.Debug("skipping non-json stream line", "error", err)
		return nil
	}

	switch msg.Type {
	case "system":
		if msg.Subtype == "init" {
			return []Event{SessionInitEvent{SessionID: msg.SessionID, Model: msg.Model, Tools: msg.Tools}}
		}

	case "stream_event":
		if msg.Event != nil && msg.Event.Type == "content_block_delta" &&
			msg.Event.Delta != nil && msg.Event.Delta.Type == "text_delta" {
			return []Event{TokenEvent{Content: msg.Event.Delta.Text}}
		}

	case "assistant":
		var events []Event
		for _, b := range contentBlocks(msg) {
			if b.Type == "tool_use" {
				events = append(events, ToolStartEvent{Tool: b.Name, ToolUseID: b.ID, Input: b.Input})
			}
		}
		return events

	case "user":
		var events []Event
		for _, b := range contentBlocks(msg) {
			if b.Type == "tool_result" {
				events = append(events, ToolEndEvent{Tool: "unknown", ToolUseID: b.ToolUseID, Result: rawText(b.Content)})
			}
		}
		return events

	case "result":
		if msg.Subtype != "success" {
			return []Event{ErrorEvent{Message: "Query failed: " + msg.Subtype, Errors: msg.Errors}}
		}
		events := []Event{ResultEvent{
			Success:      !msg.IsError,
			Result:       msg.Result,
			TotalCostUSD: msg.TotalCostUSD,
			DurationMs:   msg.DurationMs,
			NumTurns:     msg.NumTurns,
		}}
		var usage Usage
		if msg.Usage != nil {
			usage = Usage{
				InputTokens:         msg.Usage.InputTokens,
				OutputTokens:        msg.Usage.OutputTokens,
				CacheReadTokens:     msg.Usage.CacheReadTokens,
				CacheCreationTokens: msg.Usage.CacheCreationTokens,
			}
		}
		return append(events, TurnCompleteEvent{Usage: usage})

	default:
		logger.Debug("unhandled stream message", "type", msg.Type)
	}
	return nil
}

// contentBlocks decodes message.content, which is either a block array or
// a plain string (no blocks).
func contentBlocks(msg streamMessage) []contentBlock {
	if msg.Message == nil || len(msg.Message.Content) == 0 {
		return nil
	}
	var blocks []contentBlock
	if err := json.Unmarshal(msg.Message.Content, &blocks); err != nil {
		return nil
	}
	return blocks
}

// rawText flattens a tool_result content field: a string, or an array of
// text blocks. Anything else is returned as raw JSON.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(p.Text)
		}
		return b.String()
	}
	return string(raw)
}
