package provider

import (
	"slices"
	"testing"

	"github.com/manasm11/ralph/internal/agent"
)

// ============================================================
// EnvVars
// ============================================================

func TestEnvVars(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantURL string
		wantLen int
	}{
		{"anthropic", Config{Type: Anthropic, Model: "sonnet"}, "", 0},
		{"openai", Config{Type: OpenAI, Model: "gpt-4.1"}, "", 0},
		{"ollama custom url", Config{Type: Ollama, Model: "qwen3-coder", OllamaURL: "http://192.168.1.100:11434"}, "http://192.168.1.100:11434", 3},
		{"ollama default url", Config{Type: Ollama, Model: "qwen3-coder"}, DefaultOllamaURL, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := EnvVars(tt.cfg)
			if len(env) != tt.wantLen {
				t.Fatalf("env = %v", env)
			}
			if tt.wantLen == 0 {
				return
			}
			if env["ANTHROPIC_BASE_URL"] != tt.wantURL {
				t.Errorf("ANTHROPIC_BASE_URL = %q", env["ANTHROPIC_BASE_URL"])
			}
			if env["ANTHROPIC_AUTH_TOKEN"] != "ollama" {
				t.Errorf("ANTHROPIC_AUTH_TOKEN = %q", env["ANTHROPIC_AUTH_TOKEN"])
			}
			if v, ok := env["ANTHROPIC_API_KEY"]; !ok || v != "" {
				t.Errorf("ANTHROPIC_API_KEY should be set and empty, got %q", v)
			}
		})
	}
}

// ============================================================
// Validate
// ============================================================

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		cfg      Config
		wantErrs int
	}{
		{"valid anthropic", Config{Type: Anthropic, Model: "sonnet"}, 0},
		{"valid ollama", Config{Type: Ollama, Model: "qwen3-coder", OllamaURL: "http://localhost:11434"}, 0},
		{"ollama default url", Config{Type: Ollama, Model: "qwen3-coder"}, 0},
		{"valid openai", Config{Type: OpenAI, Model: "gpt-4.1", OpenAIAPIKey: "sk-test"}, 0},
		{"openai compatible server without key", Config{Type: OpenAI, Model: "llama", OpenAIBaseURL: "http://localhost:8000/v1"}, 0},
		{"openai without key", Config{Type: OpenAI, Model: "gpt-4.1"}, 1},
		{"openai bad base url", Config{Type: OpenAI, Model: "gpt-4.1", OpenAIBaseURL: "localhost"}, 1},
		{"empty model", Config{Type: Anthropic}, 1},
		{"empty type", Config{Model: "sonnet"}, 1},
		{"unknown type", Config{Type: "bedrock", Model: "x"}, 1},
		{"ollama bad url", Config{Type: Ollama, Model: "qwen3-coder", OllamaURL: "not-a-url"}, 1},
		{"everything wrong", Config{Type: "bedrock"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if errs := Validate(tt.cfg); len(errs) != tt.wantErrs {
				t.Errorf("Validate = %v, want %d errors", errs, tt.wantErrs)
			}
		})
	}
}

func TestUsesClaudeCLI(t *testing.T) {
	t.Parallel()
	if !Anthropic.UsesClaudeCLI() || !Ollama.UsesClaudeCLI() {
		t.Error("anthropic and ollama run through claude")
	}
	if OpenAI.UsesClaudeCLI() {
		t.Error("openai does not need claude")
	}
}

// ============================================================
// NewClient
// ============================================================

func TestNewClient(t *testing.T) {
	t.Parallel()
	c, err := NewClient(Config{Type: OpenAI, Model: "gpt-4.1", OpenAIAPIKey: "sk-test"}, "", nil)
	if err != nil {
		t.Fatalf("NewClient(openai): %v", err)
	}
	if _, ok := c.(*agent.OpenAIClient); !ok {
		t.Errorf("client = %T", c)
	}

	if _, err := NewClient(Config{Type: Anthropic}, "/nonexistent/claude", nil); err == nil {
		t.Error("missing claude binary should fail")
	}
	if _, err := NewClient(Config{Type: "bedrock"}, "", nil); err == nil {
		t.Error("unknown type should fail")
	}
}

// ============================================================
// Model helpers
// ============================================================

func TestFormatModelName(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"qwen3-coder:latest", "qwen3-coder"},
		{"gpt-oss:20b", "gpt-oss:20b"},
		{"qwen3-coder", "qwen3-coder"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormatModelName(tt.in); got != tt.want {
			t.Errorf("FormatModelName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatModelSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{1024, "1.0 KB"},
		{1572864, "1.6 MB"},
		{7600000000, "7.6 GB"},
		{21000000000, "21.0 GB"},
	}
	for _, tt := range tests {
		if got := FormatModelSize(tt.bytes); got != tt.want {
			t.Errorf("FormatModelSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestRecommendedModels(t *testing.T) {
	t.Parallel()
	if !slices.Contains(RecommendedModels(Anthropic), "sonnet") {
		t.Error("anthropic hints should include sonnet")
	}
	for _, pt := range []Type{Ollama, OpenAI} {
		if len(RecommendedModels(pt)) == 0 {
			t.Errorf("no hints for %s", pt)
		}
	}
}

func TestModelInList(t *testing.T) {
	t.Parallel()
	models := []OllamaModel{
		{Name: "qwen3-coder:latest"},
		{Name: "glm-4.7-flash:latest"},
		{Name: "gpt-oss:20b"},
	}
	tests := []struct {
		name string
		want bool
	}{
		{"qwen3-coder:latest", true},
		{"qwen3-coder", true},
		{"glm-4.7-flash", true},
		{"gpt-oss:20b", true},
		{"gpt-oss", true},
		{"gpt", false},
		{"nonexistent", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ModelInList(tt.name, models); got != tt.want {
			t.Errorf("ModelInList(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMergeEnv(t *testing.T) {
	t.Parallel()
	base := map[string]string{"A": "1", "ANTHROPIC_BASE_URL": "old"}
	extra := map[string]string{"ANTHROPIC_BASE_URL": "new"}

	got := MergeEnv(base, extra)
	if len(got) != 2 || got["A"] != "1" || got["ANTHROPIC_BASE_URL"] != "new" {
		t.Errorf("MergeEnv = %v", got)
	}

	got["C"] = "3"
	if _, ok := base["C"]; ok {
		t.Error("base was mutated")
	}
	if base["ANTHROPIC_BASE_URL"] != "old" {
		t.Error("base was overwritten")
	}

	if got := MergeEnv(nil, nil); len(got) != 0 {
		t.Errorf("MergeEnv(nil, nil) = %v", got)
	}
}
