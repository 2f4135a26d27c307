package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ragent/infrastructure/config"
)

type validateOptions struct {
	strict     bool
	strictKeys bool
	showSchema bool
}

func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate a ragent configuration file for correctness.

This command checks:
  - File format (YAML or JSON)
  - Required fields (name, version, reasoning.provider)
  - Field types and ranges
  - Backend and exporter names
  - Environment variable references (in strict mode)

Examples:
  # Validate a configuration file
  ragent validate -c ragent.yaml

  # Strict validation (fail on missing env vars and unknown keys)
  ragent validate -c ragent.yaml --strict --strict-keys

  # Show the JSON schema for configuration
  ragent validate --schema`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showSchema {
				return a.showConfigSchema()
			}
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail on missing environment variables")
	cmd.Flags().BoolVar(&opts.strictKeys, "strict-keys", false, "Fail on unknown configuration keys")
	cmd.Flags().BoolVar(&opts.showSchema, "schema", false, "Show JSON schema for configuration")

	return cmd
}

func (a *App) validateConfig(opts *validateOptions) error {
	if a.configPath == "" {
		return errors.New("configuration file path is required (-c flag)")
	}

	loader := config.NewLoaderWithOptions(
		config.WithValidation(true),
		config.WithStrictEnv(opts.strict),
		config.WithStrictKeys(opts.strictKeys),
	)
	cfg, err := loader.LoadFile(a.configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	agentCfg, err := cfg.Agent.AgentConfig()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	_, _ = fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	_, _ = fmt.Fprintf(a.stdout, "  Name: %s\n", cfg.Name)
	_, _ = fmt.Fprintf(a.stdout, "  Version: %s\n", cfg.Version)
	if cfg.Description != "" {
		_, _ = fmt.Fprintf(a.stdout, "  Description: %s\n", cfg.Description)
	}

	_, _ = fmt.Fprintf(a.stdout, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(a.stdout, "  Reasoning: %s", cfg.Reasoning.Provider)
	if cfg.Reasoning.Model != "" {
		_, _ = fmt.Fprintf(a.stdout, " (%s)", cfg.Reasoning.Model)
	}
	_, _ = fmt.Fprintln(a.stdout)
	_, _ = fmt.Fprintf(a.stdout, "  Max iterations: %d\n", agentCfg.MaxIterations)
	if agentCfg.EnableReflection {
		_, _ = fmt.Fprintf(a.stdout, "  Reflection: enabled (threshold=%.1f, max=%d)\n",
			agentCfg.ReflectionThreshold, agentCfg.MaxReflectionIterations)
	}

	tc := cfg.Tools
	if tc.VectorSearch != nil {
		_, _ = fmt.Fprintf(a.stdout, "  Vector search: %s/%s\n", tc.VectorSearch.Host, tc.VectorSearch.Collection)
	}
	if tc.StructuredQuery != nil {
		_, _ = fmt.Fprintf(a.stdout, "  Structured query: enabled\n")
	}
	if tc.DocumentFetch != nil {
		_, _ = fmt.Fprintf(a.stdout, "  Document fetch: %d allowed prefixes\n", len(tc.DocumentFetch.AllowedPrefixes))
	}
	if len(tc.MCP) > 0 {
		_, _ = fmt.Fprintf(a.stdout, "  MCP servers: %d\n", len(tc.MCP))
		for _, srv := range tc.MCP {
			_, _ = fmt.Fprintf(a.stdout, "    - %s (%s)\n", srv.Name, srv.Command)
		}
	}

	_, _ = fmt.Fprintf(a.stdout, "  Cache: %s\n", orNone(cfg.Cache.Backend))
	_, _ = fmt.Fprintf(a.stdout, "  History: %s\n", orNone(cfg.History.Backend))
	if cfg.Resilience.Enabled {
		_, _ = fmt.Fprintf(a.stdout, "  Resilience: enabled\n")
	}
	return nil
}

func (a *App) showConfigSchema() error {
	schemaJSON, err := config.SchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	_, _ = fmt.Fprintln(a.stdout, schemaJSON)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
