package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/run"
	"github.com/felixgeelhaar/ragent/infrastructure/config"
)

// ErrHistoryDisabled is returned when the configuration keeps no history.
var ErrHistoryDisabled = errors.New("answer history is disabled (set history.backend)")

type historyOptions struct {
	limit      int
	status     []string
	query      string
	since      time.Duration
	outputJSON bool
}

func (a *App) newHistoryCmd() *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past answers",
		Long: `List recorded runs, newest first.

History is only kept across invocations with the sqlite backend.

Examples:
  # Last 20 runs
  ragent history -c ragent.yaml

  # Failed runs from the last day mentioning "billing"
  ragent history -c ragent.yaml --status failed --since 24h --query billing`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listHistory(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of runs to show (0 = all)")
	cmd.Flags().StringSliceVar(&opts.status, "status", nil, "Only show runs with these statuses")
	cmd.Flags().StringVar(&opts.query, "query", "", "Only show runs whose query contains this text")
	cmd.Flags().DurationVar(&opts.since, "since", 0, "Only show runs started within this window")
	cmd.Flags().BoolVar(&opts.outputJSON, "json", false, "Output records as JSON")

	cmd.AddCommand(a.newHistoryShowCmd())

	return cmd
}

func (a *App) openHistory() (run.Store, func() error, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, closeFn, err := config.OpenHistory(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	if store == nil {
		_ = closeFn()
		return nil, nil, ErrHistoryDisabled
	}
	return store, closeFn, nil
}

func (a *App) listHistory(ctx context.Context, opts *historyOptions) error {
	filter := run.ListFilter{
		QueryPattern: opts.query,
		Limit:        opts.limit,
	}
	for _, s := range opts.status {
		status := agent.Status(strings.ToLower(s))
		if !status.IsValid() {
			return fmt.Errorf("unknown status: %s", s)
		}
		filter.Status = append(filter.Status, status)
	}
	if opts.since > 0 {
		filter.FromTime = time.Now().Add(-opts.since)
	}

	store, closeFn, err := a.openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	recs, err := store.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	if opts.outputJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "No runs recorded")
		return nil
	}
	for _, rec := range recs {
		_, _ = fmt.Fprintf(a.stdout, "%s  %s  %-10s %6s  %s\n",
			rec.ID,
			rec.StartTime.Local().Format(time.DateTime),
			rec.Status,
			rec.Duration().Round(time.Millisecond),
			truncate(rec.Query, 60),
		)
	}
	return nil
}

func (a *App) newHistoryShowCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := a.openHistory()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get run %s: %w", args[0], err)
			}

			if outputJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}

			_, _ = fmt.Fprintf(a.stdout, "Run %s (%s)\n", rec.ID, rec.Status)
			_, _ = fmt.Fprintf(a.stdout, "Query: %s\n", rec.Query)
			if rec.SessionContext != "" {
				_, _ = fmt.Fprintf(a.stdout, "Session: %s\n", rec.SessionContext)
			}
			_, _ = fmt.Fprintf(a.stdout, "Started: %s (%s)\n\n",
				rec.StartTime.Local().Format(time.DateTime), rec.Duration().Round(time.Millisecond))
			a.printResult(rec.Result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output the record as JSON")

	return cmd
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
