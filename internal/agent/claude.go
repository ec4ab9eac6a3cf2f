package agent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ClaudeClient runs sessions through the claude CLI in stream-json mode.
type ClaudeClient struct {
	path   string
	logger *slog.Logger
}

var _ Client = (*ClaudeClient)(nil)

// NewClaudeClient resolves the claude binary. An empty path means "claude"
// on PATH.
func NewClaudeClient(claudePath string, logger *slog.Logger) (*ClaudeClient, error) {
	if claudePath == "" {
		claudePath = "claude"
	}
	resolved, err := exec.LookPath(claudePath)
	if err != nil {
		return nil, fmt.Errorf("claude CLI not found at %q: %w", claudePath, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ClaudeClient{path: resolved, logger: logger}, nil
}

// buildArgs assembles the CLI flags for one query. The prompt goes to stdin.
func buildArgs(opts QueryOptions) []string {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--verbose",
		"--include-partial-messages",
		"--permission-mode", "acceptEdits",
		"--setting-sources", "project",
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}
	if opts.MaxBudgetUSD > 0 {
		args = append(args, "--max-budget-usd", strconv.FormatFloat(opts.MaxBudgetUSD, 'f', -1, 64))
	}
	if opts.SystemPromptAppend != "" {
		args = append(args, "--append-system-prompt", opts.SystemPromptAppend)
	}
	if opts.Resume != "" {
		args = append(args, "--resume", opts.Resume)
	}
	return args
}

func (c *ClaudeClient) RunQuery(ctx context.Context, prompt string, opts QueryOptions, emit func(Event)) error {
	cmd := exec.CommandContext(ctx, c.path, buildArgs(opts)...)
	cmd.Dir = opts.Cwd
	cmd.Stdin = strings.NewReader(prompt)
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), mapToEnv(opts.Env)...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &Error{Op: "start", Err: fmt.Errorf("creating stdout pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return &Error{Op: "start", Err: fmt.Errorf("starting claude: %w", err)}
	}
	c.logger.Debug("claude session started", "model", opts.Model, "max_turns", opts.MaxTurns)

	terminal := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		for _, ev := range parseStreamLine(scanner.Text(), c.logger) {
			if IsTerminal(ev) {
				terminal = true
			}
			emit(ev)
		}
	}
	scanErr := scanner.Err()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return &Error{Op: "stream", Err: ctx.Err()}
	}
	if scanErr != nil {
		return &Error{Op: "stream", Err: fmt.Errorf("reading claude output: %w", scanErr)}
	}
	// The CLI exits non-zero after reporting a failed result; that failure
	// already reached the caller as an event.
	if waitErr != nil && !terminal {
		return &Error{Op: "stream", Err: fmt.Errorf("claude failed: %w\nstderr: %s", waitErr, stderr.String())}
	}
	if !terminal {
		return &Error{Op: "stream", Err: errors.New("stream ended without a result")}
	}
	return nil
}

func mapToEnv(m map[string]string) []string {
	result := make([]string, 0, len(m))
	for k, v := range m {
		result = append(result, k+"="+v)
	}
	return result
}
