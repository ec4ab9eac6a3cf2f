// Package editor hands text to the user's external editor and reads back
// the result.
package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultEditor is used when neither $EDITOR nor $VISUAL is set.
const DefaultEditor = "vim"

// Error is an editor session failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("editor %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Terminal is the full-screen UI that gives up the terminal while the
// editor runs.
type Terminal interface {
	Suspend() error
	Resume() error
}

// External runs an editor command on a temp file.
type External struct {
	// Command overrides the environment lookup when set.
	Command  string
	Terminal Terminal
	TempDir  string

	now func() time.Time
}

// Resolve returns the editor command: override, $EDITOR, $VISUAL, then vim.
func Resolve(override string) string {
	for _, c := range []string{override, os.Getenv("EDITOR"), os.Getenv("VISUAL")} {
		if c != "" {
			return c
		}
	}
	return DefaultEditor
}

// OpenEditor writes text to a temp file, opens it in the editor and
// returns the saved contents. The terminal is suspended for the duration
// and resumed on every path.
func (e *External) OpenEditor(ctx context.Context, text string) (string, error) {
	now := time.Now
	if e.now != nil {
		now = e.now
	}
	dir := e.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "ralph-spec-"+strconv.FormatInt(now().UnixMilli(), 10)+".md")

	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return "", &Error{Op: "write temp file", Err: err}
	}
	defer os.Remove(path)

	if e.Terminal != nil {
		if err := e.Terminal.Suspend(); err != nil {
			return "", &Error{Op: "suspend terminal", Err: err}
		}
	}
	runErr := e.run(ctx, path)
	if e.Terminal != nil {
		if err := e.Terminal.Resume(); err != nil && runErr == nil {
			runErr = &Error{Op: "resume terminal", Err: err}
		}
	}
	if runErr != nil {
		return "", runErr
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &Error{Op: "read temp file", Err: err}
	}
	return string(data), nil
}

func (e *External) run(ctx context.Context, path string) error {
	// run through the shell so EDITOR="code --wait" works
	cmd := exec.CommandContext(ctx, "sh", "-c", Resolve(e.Command)+` "$1"`, "sh", path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &Error{Op: "run", Err: fmt.Errorf("%s exited with code %d", Resolve(e.Command), exitErr.ExitCode())}
		}
		return &Error{Op: "run", Err: err}
	}
	return nil
}
