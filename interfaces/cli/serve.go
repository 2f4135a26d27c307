package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ragent/infrastructure/config"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
	"github.com/felixgeelhaar/ragent/infrastructure/mcp"
)

const serveInstructions = `Call "ask" with a natural-language question to get an answer grounded in the configured knowledge sources, with citations. The other tools are the raw retrieval tools the agent uses.`

type serveOptions struct {
	transport  string
	addr       string
	exposeOnly bool
}

func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over MCP",
		Long: `Expose the agent as an MCP server.

The "ask" tool runs a full query. The configured tools are exposed next to it
unless --ask-only is set.

Examples:
  # Serve over stdio for an MCP client
  ragent serve -c ragent.yaml

  # Serve over HTTP
  ragent serve -c ragent.yaml --transport http --addr :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "stdio", "Transport: stdio or http")
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "Listen address for the http transport")
	cmd.Flags().BoolVar(&opts.exposeOnly, "ask-only", false, "Expose only the ask tool")

	return cmd
}

func (a *App) serve(ctx context.Context, opts *serveOptions) error {
	if opts.transport != "stdio" && opts.transport != "http" {
		return fmt.Errorf("unknown transport: %s", opts.transport)
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	rt, err := config.Build(ctx, cfg, config.WithServiceVersion(Version))
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	srvCfg := mcp.ServerConfig{
		Name:         cfg.Name,
		Version:      Version,
		Description:  cfg.Description,
		Instructions: serveInstructions,
		Asker:        rt.Orchestrator,
	}
	if !opts.exposeOnly {
		srvCfg.Registry = rt.Registry
	}
	srv := mcp.NewServer(srvCfg)

	logging.Info().
		Add(logging.Str("transport", opts.transport)).
		Add(logging.ToolCount(len(srv.ToolNames()))).
		Msg("mcp server starting")

	if opts.transport == "http" {
		return srv.ServeHTTP(ctx, opts.addr)
	}
	return srv.ServeStdio(ctx)
}
