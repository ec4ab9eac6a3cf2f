package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/manasm11/ralph/internal/config"
	"github.com/manasm11/ralph/internal/draft"
	"github.com/manasm11/ralph/internal/editor"
	"github.com/manasm11/ralph/internal/logging"
	"github.com/manasm11/ralph/internal/preflight"
	"github.com/manasm11/ralph/internal/provider"
	"github.com/manasm11/ralph/internal/specdoc"
	"github.com/manasm11/ralph/internal/store"
	"github.com/manasm11/ralph/internal/tui"
	"github.com/manasm11/ralph/internal/wizard"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagKeys maps persistent flags onto configuration keys.
var flagKeys = map[string]string{
	"db":        "db.file",
	"provider":  "provider.type",
	"model":     "provider.model",
	"log-level": "log.level",
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ralph",
		Short: "Draft epic specifications with an AI agent",
		Long: `ralph turns a short description into a structured epic specification.

The agent drafts the specification, asks about anything it could not decide,
patches the document with your answers and lets you review, edit or send
feedback before the epic is saved. Work in progress is kept as a draft and
offered for resume on the next start.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runTUI,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (default: ralph.yaml in the working or user config directory)")
	flags.String("db", "", "database file")
	flags.String("provider", "", "agent provider: anthropic, ollama or openai")
	flags.String("model", "", "model name")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newDraftCommand(),
		newDoctorCommand(),
		newProviderCommand(),
		newVersionCommand(),
	)
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(config.Options{
		ConfigFile: file,
		Bind: func(v *viper.Viper) error {
			for flag, key := range flagKeys {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
	})
}

// env holds what every command opens: configuration, logger and database.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store

	closers []io.Closer
}

func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}

	e := &env{cfg: cfg}
	logger, closer, err := logging.OpenFile(cfg.LogPath(), logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	e.logger = logger
	e.closers = append(e.closers, closer)

	st, err := store.Open(store.Config{Path: cfg.DBPath(), DisableWAL: cfg.DB.DisableWAL})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.store = st
	e.closers = append(e.closers, st)
	return e, nil
}

// Close releases resources in reverse order of opening.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil && e.logger != nil {
			e.logger.Warn("close", "error", err)
		}
	}
}

func runTUI(cmd *cobra.Command, _ []string) error {
	if !isTTY() {
		return errors.New("ralph needs an interactive terminal (run 'ralph --help' for subcommands)")
	}

	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	cfg := e.cfg

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tools := preflight.Tools(cfg.Provider.Type.UsesClaudeCLI(), cfg.Agent.ClaudePath)
	if failed := preflight.Failed(preflight.RunAll(ctx, tools)); len(failed) > 0 {
		for _, r := range failed {
			fmt.Fprintf(os.Stderr, "  %s %s: %s\n", red("✗"), r.Name, r.Error)
		}
		return errors.New("required tools are missing (run 'ralph doctor' for details)")
	}

	client, err := provider.NewClient(cfg.Provider, cfg.Agent.ClaudePath, e.logger)
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}

	ed := &editor.External{Command: editor.Resolve(cfg.Editor)}
	app := tui.NewAppModel(tui.Deps{
		Agent:    client,
		Epics:    e.store.Epics(),
		Sessions: e.store.Sessions(),
		Drafts:   draft.NewController(e.store.Drafts(), cfg.Draft.Debounce, e.logger),
		Editor:   ed,
		Wizard: wizard.Config{
			Cwd:                cwd,
			Model:              cfg.Provider.Model,
			GenerationMaxTurns: cfg.Agent.GenerationMaxTurns,
			PatchMaxTurns:      cfg.Agent.PatchMaxTurns,
			MaxBudgetUSD:       cfg.Agent.MaxBudgetUSD,
			Env:                provider.EnvVars(cfg.Provider),
		},
		Logger: e.logger,
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	app.SetProgram(p)
	ed.Terminal = tui.NewProgramTerminal(p)

	e.logger.Info("starting", "version", version, "provider", cfg.Provider.Type, "model", cfg.Provider.Model)
	_, err = p.Run()
	app.Shutdown()
	if err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

func newDraftCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Inspect or discard the saved draft",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the saved draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			d, err := e.store.Drafts().Load(cmd.Context())
			if err != nil {
				return err
			}
			if d == nil {
				fmt.Println(gray("No draft saved."))
				return nil
			}
			printDraft(cmd.OutOrStdout(), d)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the saved draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.Drafts().Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println(green("✓"), "Draft cleared.")
			return nil
		},
	})
	return cmd
}

func printDraft(w io.Writer, d *wizard.DraftState) {
	fmt.Fprintf(w, "%s %s\n", bold("Step:"), cyan(d.Step.Name()))
	if title := specdoc.ExtractTitle(d.Spec); title != "" {
		fmt.Fprintf(w, "%s %s\n", bold("Title:"), title)
	}
	fmt.Fprintf(w, "%s\n%s\n", bold("Description:"), d.Description)
	if d.Feedback != "" {
		fmt.Fprintf(w, "%s\n%s\n", bold("Feedback:"), d.Feedback)
	}
	if len(d.Questions) > 0 {
		fmt.Fprintf(w, "%s %d answered of %d\n", bold("Questions:"), len(d.Answers), len(d.Questions))
		fmt.Fprintln(w, gray(specdoc.FormatOpenQuestions(d.Questions)))
	}
}

func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, tools and provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ok := true

			file := cfg.File
			if file == "" {
				file = gray("(none, using defaults)")
			}
			fmt.Fprintf(out, "%s %s\n", bold("Config:"), file)
			fmt.Fprintf(out, "%s %s\n", bold("Database:"), cfg.DBPath())
			fmt.Fprintf(out, "%s %s\n", bold("Log:"), cfg.LogPath())
			fmt.Fprintf(out, "%s %s (%s)\n", bold("Provider:"), cfg.Provider.Type, cfg.Provider.Model)
			if cfg.Provider.OpenAIAPIKey != "" {
				fmt.Fprintf(out, "%s %s\n", bold("API key:"), logging.MaskSecret(cfg.Provider.OpenAIAPIKey))
			}

			for _, problem := range cfg.Validate() {
				ok = false
				fmt.Fprintf(out, "  %s %s\n", red("✗"), problem)
			}

			fmt.Fprintln(out, bold("Tools:"))
			ctx := cmd.Context()
			tools := preflight.Tools(cfg.Provider.Type.UsesClaudeCLI(), cfg.Agent.ClaudePath)
			for _, r := range preflight.RunAll(ctx, tools) {
				switch {
				case r.Found:
					fmt.Fprintf(out, "  %s %s %s\n", green("✓"), r.Name, gray(r.Version))
				case r.Required:
					ok = false
					fmt.Fprintf(out, "  %s %s: %s\n", red("✗"), r.Name, r.Error)
				default:
					fmt.Fprintf(out, "  %s %s: %s\n", yellow("!"), r.Name, r.Error)
				}
			}

			if cfg.Provider.Type == provider.Ollama {
				if !reportOllama(ctx, out, cfg.Provider) {
					ok = false
				}
			}

			if !ok {
				return errors.New("doctor found problems")
			}
			fmt.Fprintln(out, green("All checks passed."))
			return nil
		},
	}
}

func reportOllama(ctx context.Context, out io.Writer, cfg provider.Config) bool {
	status := provider.DetectOllama(ctx, cfg.OllamaURL)
	if !status.Available {
		fmt.Fprintf(out, "  %s ollama at %s: %s\n", red("✗"), status.URL, status.Error)
		return false
	}
	fmt.Fprintf(out, "  %s ollama %s at %s %s\n", green("✓"), status.Version, status.URL,
		gray(status.Latency.Round(time.Millisecond).String()))
	for _, m := range status.Models {
		fmt.Fprintf(out, "      %s %s\n", provider.FormatModelName(m.Name), gray(provider.FormatModelSize(m.Size)))
	}
	if cfg.Model != "" && !provider.ModelInList(cfg.Model, status.Models) {
		fmt.Fprintf(out, "  %s model %q is not pulled; try one of: %s\n", yellow("!"), cfg.Model,
			strings.Join(provider.RecommendedModels(provider.Ollama), ", "))
		return false
	}
	return true
}

func newProviderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "provider",
		Short: "Choose the agent provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isTTY() {
				return errors.New("provider selection needs an interactive terminal (set provider.type in the config file instead)")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ollama := provider.DetectOllama(cmd.Context(), cfg.Provider.OllamaURL)
			typ, err := tui.RunProviderSelection(ollama, cfg.Provider.Type)
			if err != nil {
				return err
			}

			model := ""
			if typ != cfg.Provider.Type {
				if rec := provider.RecommendedModels(typ); len(rec) > 0 {
					model = rec[0]
				}
			}

			path := cfg.File
			if path == "" {
				if path, err = config.DefaultFile(); err != nil {
					return err
				}
			}
			if err := config.SetProvider(path, typ, model); err != nil {
				return err
			}
			fmt.Printf("%s Saved provider %s to %s\n", green("✓"), bold(string(typ)), path)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ralph %s\n", version)
		},
	}
}
