// Package cli provides the ragent command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ragent"
	domainconfig "github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/infrastructure/config"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// Version information set at build time.
var (
	Version   = ragent.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "ragent",
		Short: "Retrieval-augmented question answering agent",
		Long: `ragent answers questions by planning tool calls against your knowledge
sources, executing them, and synthesizing a cited answer from the results.

Without --config it talks to a local Ollama server and keeps the tool cache
and answer history in memory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := app.root.PersistentFlags()
	flags.StringVarP(&app.configPath, "config", "c", "", "Path to configuration file (YAML or JSON)")
	flags.StringVar(&app.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	flags.StringVar(&app.logFormat, "log-format", "", "Log format: console or json (overrides config)")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newAskCmd(),
		app.newValidateCmd(),
		app.newExportSchemaCmd(),
		app.newInspectCmd(),
		app.newToolsCmd(),
		app.newHistoryCmd(),
		app.newServeCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// loadConfig reads --config, or returns the built-in defaults when it is
// unset, and installs the logger the configuration asks for.
func (a *App) loadConfig() (*domainconfig.Config, error) {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.NewLoader().LoadFile(a.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	logCfg := logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: a.stderr,
	}
	if a.logLevel != "" {
		logCfg.Level = a.logLevel
	}
	if a.logFormat != "" {
		logCfg.Format = a.logFormat
	}
	logging.Init(logCfg)
	return cfg, nil
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(a.stdout, "ragent version %s\n", Version)
			_, _ = fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			_, _ = fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}
