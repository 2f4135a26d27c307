package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ragent/domain/agent"
	domainconfig "github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/infrastructure/config"
)

// ErrRunFailed is returned by ask when the agent could not produce an answer.
var ErrRunFailed = errors.New("agent run failed")

type askOptions struct {
	session       string
	jsonOutput    bool
	maxIterations int
	noReflection  bool
	metrics       bool
}

func (a *App) newAskCmd() *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Answer a question",
		Long: `Answer a question using the configured reasoning backend and tools.

The query is read from the arguments, or from stdin when none are given.

Examples:
  # Ask with the default local setup
  ragent ask "How do I configure the retry policy?"

  # Use a config file and carry conversation context
  ragent ask -c ragent.yaml --session "We use Postgres 16" "Which index type fits?"

  # Machine-readable output with debug info
  ragent ask -c ragent.yaml --json "What changed in v2?"

  # Print the collected metrics after the answer
  ragent ask -c ragent.yaml --metrics "Summarize the incident report"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if query == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read query: %w", err)
				}
				query = string(data)
			}
			query = strings.TrimSpace(query)
			if query == "" {
				return errors.New("no query given (pass it as an argument or on stdin)")
			}
			return a.ask(cmd.Context(), query, opts)
		},
	}

	cmd.Flags().StringVar(&opts.session, "session", "", "Session context passed to planning and synthesis")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the result as JSON")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "Maximum plan/execute iterations (overrides config)")
	cmd.Flags().BoolVar(&opts.noReflection, "no-reflection", false, "Disable answer reflection")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print collected metrics after the answer")

	return cmd
}

func (a *App) ask(ctx context.Context, query string, opts *askOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if opts.metrics {
		cfg.Telemetry.Metrics = true
	}

	var agentOpts []domainconfig.AgentOption
	if opts.maxIterations > 0 {
		agentOpts = append(agentOpts, domainconfig.WithMaxIterations(opts.maxIterations))
	}
	if opts.noReflection {
		agentOpts = append(agentOpts, domainconfig.WithoutReflection())
	}

	rt, err := config.Build(ctx, cfg,
		config.WithAgentOptions(agentOpts...),
		config.WithServiceVersion(Version),
	)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	result := rt.Orchestrator.Run(ctx, query, opts.session)

	if opts.jsonOutput {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		a.printResult(result)
	}

	if opts.metrics {
		points, err := rt.Telemetry.Collect(ctx)
		if err != nil {
			return fmt.Errorf("collect metrics: %w", err)
		}
		_, _ = fmt.Fprintf(a.stdout, "\nMetrics:\n")
		for _, p := range points {
			if p.Count > 0 {
				_, _ = fmt.Fprintf(a.stdout, "  %s{%s} sum=%g count=%d\n", p.Name, p.Attributes, p.Value, p.Count)
				continue
			}
			_, _ = fmt.Fprintf(a.stdout, "  %s{%s} %g\n", p.Name, p.Attributes, p.Value)
		}
	}

	if !result.Success {
		return fmt.Errorf("%w: %s", ErrRunFailed, result.Error)
	}
	return nil
}

func (a *App) printResult(r agent.Result) {
	_, _ = fmt.Fprintln(a.stdout, r.Answer)

	if len(r.Sources) > 0 {
		_, _ = fmt.Fprintf(a.stdout, "\nSources:\n")
		for i, s := range r.Sources {
			label := s.Source
			if s.Title != "" {
				label = s.Title + " (" + s.Source + ")"
			}
			_, _ = fmt.Fprintf(a.stdout, "  [%d] %s\n", i+1, label)
		}
	}

	_, _ = fmt.Fprintf(a.stdout, "\nsteps: %d  tools: %s  time: %s\n",
		r.StepsTaken, strings.Join(r.ToolsUsed, ","), r.TotalTime.Round(time.Millisecond))
}
