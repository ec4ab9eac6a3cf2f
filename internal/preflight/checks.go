// Package preflight verifies the external tools a provider depends on.
package preflight

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// Tool is an external binary to probe.
type Tool struct {
	Name     string
	Path     string // defaults to Name
	Required bool
}

type CheckResult struct {
	Name     string
	Required bool
	Found    bool
	Version  string
	Error    string
}

// Tools lists what ralph needs. The claude CLI is required only when the
// provider runs through it; git is optional project context for the agent.
func Tools(usesClaudeCLI bool, claudePath string) []Tool {
	var tools []Tool
	if usesClaudeCLI {
		tools = append(tools, Tool{Name: "claude", Path: claudePath, Required: true})
	}
	return append(tools, Tool{Name: "git"})
}

// RunAll probes each tool with --version.
func RunAll(ctx context.Context, tools []Tool) []CheckResult {
	results := make([]CheckResult, len(tools))
	for i, tool := range tools {
		results[i] = check(ctx, tool)
	}
	return results
}

// Failed returns the required tools that were not found.
func Failed(results []CheckResult) []CheckResult {
	var out []CheckResult
	for _, r := range results {
		if r.Required && !r.Found {
			out = append(out, r)
		}
	}
	return out
}

func check(ctx context.Context, tool Tool) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	path := tool.Path
	if path == "" {
		path = tool.Name
	}
	res := CheckResult{Name: tool.Name, Required: tool.Required}

	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		res.Error = err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			res.Error = "timed out checking version"
		}
		return res
	}

	res.Found = true
	version, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	res.Version = version
	return res
}
