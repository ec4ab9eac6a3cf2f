// Package config layers defaults, ralph.yaml, environment variables and
// command-line flags into one Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/manasm11/ralph/internal/provider"
)

// Config is the resolved configuration.
type Config struct {
	DataDir  string          `mapstructure:"data_dir"`
	DB       DBConfig        `mapstructure:"db"`
	Provider provider.Config `mapstructure:"provider"`
	Agent    AgentConfig     `mapstructure:"agent"`
	Draft    DraftConfig     `mapstructure:"draft"`
	Editor   string          `mapstructure:"editor"`
	Log      LogConfig       `mapstructure:"log"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

type DBConfig struct {
	File       string `mapstructure:"file"`
	DisableWAL bool   `mapstructure:"disable_wal"`
}

type AgentConfig struct {
	ClaudePath         string  `mapstructure:"claude_path"`
	GenerationMaxTurns int     `mapstructure:"generation_max_turns"`
	PatchMaxTurns      int     `mapstructure:"patch_max_turns"`
	MaxBudgetUSD       float64 `mapstructure:"max_budget_usd"`
}

type DraftConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Options controls where Load looks.
type Options struct {
	// ConfigFile is an explicit path; a missing explicit file is an error.
	ConfigFile string
	// SearchPaths replaces the default config directories.
	SearchPaths []string
	// Bind runs after defaults and env are set, typically to bind flags.
	Bind func(v *viper.Viper) error
}

// legacy variable names honoured next to the RALPH_ ones
var envAliases = map[string][]string{
	"db.file":                 {"RALPH_DB_FILE", "DB_FILE_NAME"},
	"db.disable_wal":          {"RALPH_DB_DISABLE_WAL", "DB_DISABLE_WAL"},
	"provider.openai_api_key": {"RALPH_PROVIDER_OPENAI_API_KEY", "OPENAI_API_KEY"},
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ralph"
	}
	return filepath.Join(home, ".ralph")
}

func defaultSearchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "ralph"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "ralph"))
	}
	return paths
}

func setDefaults(v *viper.Viper) {
	def := provider.DefaultConfig()
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("db.file", "")
	v.SetDefault("db.disable_wal", false)
	v.SetDefault("provider.type", string(def.Type))
	v.SetDefault("provider.model", def.Model)
	v.SetDefault("provider.ollama_url", provider.DefaultOllamaURL)
	v.SetDefault("provider.openai_base_url", "")
	v.SetDefault("provider.openai_api_key", "")
	v.SetDefault("agent.claude_path", "claude")
	v.SetDefault("agent.generation_max_turns", 10)
	v.SetDefault("agent.patch_max_turns", 3)
	v.SetDefault("agent.max_budget_usd", 0.0)
	v.SetDefault("draft.debounce", 500*time.Millisecond)
	v.SetDefault("editor", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RALPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if opts.Bind != nil {
		if err := opts.Bind(v); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("ralph")
		v.SetConfigType("yaml")
		paths := opts.SearchPaths
		if paths == nil {
			paths = defaultSearchPaths()
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	return &cfg, nil
}

// DBPath is db.file, or ralph.db in the data directory.
func (c *Config) DBPath() string {
	if c.DB.File != "" {
		return c.DB.File
	}
	return filepath.Join(c.DataDir, "ralph.db")
}

// LogPath is the log file in the data directory.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "ralph.log")
}

// Validate lists everything wrong with c; an empty result means valid.
func (c *Config) Validate() []string {
	errs := provider.Validate(c.Provider)
	if c.DataDir == "" && c.DB.File == "" {
		errs = append(errs, "data_dir or db.file is required")
	}
	if c.Agent.GenerationMaxTurns <= 0 {
		errs = append(errs, fmt.Sprintf("agent.generation_max_turns must be positive, got %d", c.Agent.GenerationMaxTurns))
	}
	if c.Agent.PatchMaxTurns <= 0 {
		errs = append(errs, fmt.Sprintf("agent.patch_max_turns must be positive, got %d", c.Agent.PatchMaxTurns))
	}
	if c.Agent.MaxBudgetUSD < 0 {
		errs = append(errs, "agent.max_budget_usd must not be negative")
	}
	if c.Draft.Debounce < 0 {
		errs = append(errs, "draft.debounce must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log.level: %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("unknown log.format: %q", c.Log.Format))
	}
	return errs
}

// DefaultFile is where SetProvider writes when no config file exists yet.
func DefaultFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "ralph", "ralph.yaml"), nil
}

// SetProvider records the provider type in the config file at path,
// keeping every other key in it. An empty model leaves the model as is.
func SetProvider(path string, typ provider.Type, model string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}

	v.Set("provider.type", string(typ))
	if model != "" {
		v.Set("provider.model", model)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
