package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestTools(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		usesCLI   bool
		wantNames []string
	}{
		{"claude backends", true, []string{"claude", "git"}},
		{"openai", false, []string{"git"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tools := Tools(tt.usesCLI, "/opt/claude")
			if len(tools) != len(tt.wantNames) {
				t.Fatalf("tools = %+v", tools)
			}
			for i, name := range tt.wantNames {
				if tools[i].Name != name {
					t.Errorf("tools[%d] = %q, want %q", i, tools[i].Name, name)
				}
			}
			if tt.usesCLI && (!tools[0].Required || tools[0].Path != "/opt/claude") {
				t.Errorf("claude tool = %+v", tools[0])
			}
		})
	}
}

func TestRunAll_MissingRequiredTool(t *testing.T) {
	t.Parallel()
	results := RunAll(context.Background(), []Tool{
		{Name: "claude", Path: "/nonexistent/claude", Required: true},
		{Name: "optional", Path: "/nonexistent/optional"},
	})

	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	for _, r := range results {
		if r.Found || r.Error == "" {
			t.Errorf("%s: Found=%v Error=%q", r.Name, r.Found, r.Error)
		}
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "claude" {
		t.Errorf("Failed = %+v", failed)
	}
}

// runs serially: exec of a freshly written script can hit ETXTBSY
func TestRunAll_FirstVersionLine(t *testing.T) {
	script := filepath.Join(t.TempDir(), "fake-claude")
	body := "#!/bin/sh\necho '2.1.0 (Claude Code)'\necho 'extra line'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), []Tool{{Name: "claude", Path: script, Required: true}})
	if !results[0].Found {
		t.Fatalf("not found: %s", results[0].Error)
	}
	if results[0].Version != "2.1.0 (Claude Code)" {
		t.Errorf("Version = %q", results[0].Version)
	}
	if len(Failed(results)) != 0 {
		t.Error("found tool should not fail")
	}
}
