// Package provider selects the agent backend that drafts specifications.
package provider

import (
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/manasm11/ralph/internal/agent"
)

// Type identifies the model backend.
type Type string

const (
	// Anthropic runs the claude CLI with its own credentials.
	Anthropic Type = "anthropic"
	// Ollama runs the claude CLI against a local Ollama server.
	Ollama Type = "ollama"
	// OpenAI talks to an OpenAI-compatible chat completions endpoint.
	OpenAI Type = "openai"
)

// DefaultOllamaURL is the standard local Ollama endpoint.
const DefaultOllamaURL = "http://localhost:11434"

// Config is the provider section of the configuration file.
type Config struct {
	Type          Type   `mapstructure:"type"`
	Model         string `mapstructure:"model"`
	OllamaURL     string `mapstructure:"ollama_url"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
}

// OllamaStatus is the result of DetectOllama.
type OllamaStatus struct {
	Available bool
	URL       string
	Version   string
	Models    []OllamaModel // only when Available
	Error     string
	Latency   time.Duration
}

// OllamaModel is a model pulled into the local Ollama instance.
type OllamaModel struct {
	Name       string // e.g. "qwen3-coder:latest"
	Size       int64
	Family     string
	ModifiedAt time.Time
}

// DefaultConfig is Anthropic with sonnet.
func DefaultConfig() Config {
	return Config{Type: Anthropic, Model: "sonnet"}
}

// UsesClaudeCLI reports whether t runs through the claude binary.
func (t Type) UsesClaudeCLI() bool {
	return t == Anthropic || t == Ollama
}

// EnvVars returns the variables the claude CLI needs for cfg. Anthropic
// and OpenAI need none.
func EnvVars(cfg Config) map[string]string {
	if cfg.Type != Ollama {
		return map[string]string{}
	}
	url := cfg.OllamaURL
	if url == "" {
		url = DefaultOllamaURL
	}
	return map[string]string{
		"ANTHROPIC_BASE_URL":   url,
		"ANTHROPIC_AUTH_TOKEN": "ollama",
		"ANTHROPIC_API_KEY":    "",
	}
}

// Validate lists everything wrong with cfg; an empty result means valid.
func Validate(cfg Config) []string {
	var errs []string

	switch cfg.Type {
	case "":
		errs = append(errs, "provider type is required")
	case Anthropic, Ollama, OpenAI:
	default:
		errs = append(errs, fmt.Sprintf("unknown provider type: %q", cfg.Type))
	}

	if cfg.Model == "" {
		errs = append(errs, "model is required")
	}

	if cfg.Type == Ollama && cfg.OllamaURL != "" && !isHTTPURL(cfg.OllamaURL) {
		errs = append(errs, fmt.Sprintf("invalid Ollama URL: %q (must start with http:// or https://)", cfg.OllamaURL))
	}
	if cfg.Type == OpenAI {
		if cfg.OpenAIBaseURL != "" && !isHTTPURL(cfg.OpenAIBaseURL) {
			errs = append(errs, fmt.Sprintf("invalid OpenAI base URL: %q (must start with http:// or https://)", cfg.OpenAIBaseURL))
		}
		// compatible local servers usually take any key
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			errs = append(errs, "OpenAI API key is required (set OPENAI_API_KEY or provider.openai_api_key)")
		}
	}
	return errs
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// NewClient builds the agent client for cfg. claudePath locates the CLI
// for the backends that use it.
func NewClient(cfg Config, claudePath string, logger *slog.Logger) (agent.Client, error) {
	switch cfg.Type {
	case Anthropic, Ollama:
		return agent.NewClaudeClient(claudePath, logger)
	case OpenAI:
		return agent.NewOpenAIClient(agent.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.Model,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q", cfg.Type)
	}
}

// FormatModelName drops the ":latest" tag.
func FormatModelName(name string) string {
	return strings.TrimSuffix(name, ":latest")
}

// FormatModelSize renders a size like "7.6 GB".
func FormatModelSize(bytes int64) string {
	switch {
	case bytes >= 1_000_000_000:
		return fmt.Sprintf("%.1f GB", float64(bytes)/1_000_000_000)
	case bytes >= 1_000_000:
		return fmt.Sprintf("%.1f MB", float64(bytes)/1_000_000)
	case bytes >= 1_000:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1_000)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// RecommendedModels are hints shown by doctor, not a restriction.
func RecommendedModels(t Type) []string {
	switch t {
	case Anthropic:
		return []string{"sonnet", "opus", "haiku"}
	case OpenAI:
		return []string{"gpt-4.1", "gpt-4o", "o4-mini"}
	default:
		return []string{"qwen3-coder", "glm-4.7-flash", "gpt-oss:20b", "devstral-small"}
	}
}

// ModelInList matches name against models by full name, by name without
// ":latest", or as an untagged prefix ("gpt-oss" matches "gpt-oss:20b").
func ModelInList(name string, models []OllamaModel) bool {
	if name == "" {
		return false
	}
	short := FormatModelName(name)
	for _, m := range models {
		if m.Name == name || FormatModelName(m.Name) == short || strings.HasPrefix(m.Name, name+":") {
			return true
		}
	}
	return false
}

// MergeEnv returns base overlaid with extra. Neither input is modified.
func MergeEnv(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	maps.Copy(out, base)
	maps.Copy(out, extra)
	return out
}
