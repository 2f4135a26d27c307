package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ragent/infrastructure/config"
)

type toolsOptions struct {
	outputJSON bool
}

func (a *App) newToolsCmd() *cobra.Command {
	opts := &toolsOptions{}

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools the agent can call",
		Long: `List the tools registered from the configuration, including tools
imported from MCP servers.

Examples:
  # List tools
  ragent tools -c ragent.yaml

  # Show full input schemas
  ragent tools -c ragent.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listTools(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.outputJSON, "json", false, "Output tool descriptors as JSON")

	return cmd
}

func (a *App) listTools(ctx context.Context, opts *toolsOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	rt, err := config.Build(ctx, cfg, config.WithoutHistory(), config.WithServiceVersion(Version))
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	descs, err := rt.Tools.Schemas(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	if opts.outputJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(descs)
	}

	if len(descs) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "No tools configured")
		return nil
	}

	_, _ = fmt.Fprintf(a.stdout, "Tools (%d):\n", len(descs))
	for _, d := range descs {
		var traits []string
		if d.Annotations.CanCache() {
			traits = append(traits, "cacheable")
		}
		if d.Annotations.CanRetry() {
			traits = append(traits, "retryable")
		}
		_, _ = fmt.Fprintf(a.stdout, "  • %s", d.Name)
		if len(traits) > 0 {
			_, _ = fmt.Fprintf(a.stdout, " [%s]", strings.Join(traits, ", "))
		}
		if d.Description != "" {
			_, _ = fmt.Fprintf(a.stdout, " - %s", d.Description)
		}
		_, _ = fmt.Fprintln(a.stdout)
		if len(d.Annotations.Tags) > 0 {
			_, _ = fmt.Fprintf(a.stdout, "    tags: %s\n", strings.Join(d.Annotations.Tags, ", "))
		}
	}
	return nil
}
