package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig selects an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIClient runs single-turn sessions against a chat completions API.
// It has no tools, so only token, session, turn and result events occur.
type OpenAIClient struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from cfg.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger,
	}
}

func (c *OpenAIClient) RunQuery(ctx context.Context, prompt string, opts QueryOptions, emit func(Event)) error {
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if opts.SystemPromptAppend != "" {
		msgs = append(msgs, openai.SystemMessage(opts.SystemPromptAppend))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	sessionID := opts.Resume
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	start := time.Now()
	emit(SessionInitEvent{SessionID: sessionID, Model: model})

	stream := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	})
	defer stream.Close()

	var full strings.Builder
	var usage Usage
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			usage.InputTokens = int(chunk.Usage.PromptTokens)
			usage.OutputTokens = int(chunk.Usage.CompletionTokens)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			full.WriteString(text)
			emit(TokenEvent{Content: text})
		}
	}
	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return &Error{Op: "stream", Err: ctx.Err()}
		}
		return &Error{Op: "stream", Err: fmt.Errorf("chat completion stream: %w", err)}
	}

	c.logger.Debug("openai session finished", "model", model, "chars", full.Len())
	emit(ResultEvent{
		Success:    true,
		Result:     full.String(),
		DurationMs: time.Since(start).Milliseconds(),
		NumTurns:   1,
	})
	emit(TurnCompleteEvent{Usage: usage})
	return nil
}
