package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	domainconfig "github.com/felixgeelhaar/ragent/domain/config"
)

type inspectOptions struct {
	outputJSON bool
	section    string
}

func (a *App) newInspectCmd() *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the effective configuration",
		Long: `Show the configuration after defaults are applied.

Secrets (API keys, passwords) are masked.

Sections:
  all         Show everything (default)
  agent       Agent loop settings
  reasoning   Reasoning backend
  tools       Tool sources
  storage     Cache and history backends
  resilience  Tool call resilience

Examples:
  # Inspect the default local setup
  ragent inspect

  # Inspect one section of a config file as JSON
  ragent inspect -c ragent.yaml --section agent --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.inspectConfig(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.outputJSON, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&opts.section, "section", "all", "Section to inspect (all, agent, reasoning, tools, storage, resilience)")

	return cmd
}

// agentView renders the effective agent settings with readable durations.
type agentView struct {
	MaxIterations           int     `json:"max_iterations"`
	ToolSelection           string  `json:"tool_selection"`
	FallbackTool            string  `json:"fallback_tool"`
	ToolTimeout             string  `json:"tool_timeout"`
	Timeout                 string  `json:"timeout"`
	ParallelExecution       bool    `json:"parallel_execution"`
	MaxConcurrentTools      int     `json:"max_concurrent_tools"`
	EnableReflection        bool    `json:"enable_reflection"`
	ReflectionThreshold     float64 `json:"reflection_threshold"`
	MaxReflectionIterations int     `json:"max_reflection_iterations"`
}

func newAgentView(c domainconfig.AgentConfig) agentView {
	return agentView{
		MaxIterations:           c.MaxIterations,
		ToolSelection:           string(c.ToolSelection),
		FallbackTool:            c.FallbackTool,
		ToolTimeout:             c.ToolTimeout.String(),
		Timeout:                 c.Timeout.String(),
		ParallelExecution:       c.ParallelExecution,
		MaxConcurrentTools:      c.MaxConcurrentTools,
		EnableReflection:        c.EnableReflection,
		ReflectionThreshold:     c.ReflectionThreshold,
		MaxReflectionIterations: c.MaxReflectionIterations,
	}
}

type storageView struct {
	Cache   domainconfig.CacheConfig   `json:"cache"`
	History domainconfig.HistoryConfig `json:"history"`
}

func (a *App) inspectConfig(opts *inspectOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	agentCfg, err := cfg.Agent.AgentConfig()
	if err != nil {
		return err
	}
	masked := maskSecrets(*cfg)

	if opts.outputJSON {
		var output any
		switch opts.section {
		case "all":
			output = struct {
				Name      string                       `json:"name"`
				Version   string                       `json:"version"`
				Agent     agentView                    `json:"agent"`
				Reasoning domainconfig.ReasoningConfig `json:"reasoning"`
				Tools     domainconfig.ToolsConfig     `json:"tools"`
				Storage   storageView                  `json:"storage"`
			}{masked.Name, masked.Version, newAgentView(agentCfg), masked.Reasoning, masked.Tools,
				storageView{masked.Cache, masked.History}}
		case "agent":
			output = newAgentView(agentCfg)
		case "reasoning":
			output = masked.Reasoning
		case "tools":
			output = masked.Tools
		case "storage":
			output = storageView{masked.Cache, masked.History}
		case "resilience":
			output = masked.Resilience
		default:
			return fmt.Errorf("unknown section: %s", opts.section)
		}

		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	}

	switch opts.section {
	case "all":
		a.printHeader(&masked)
		a.printAgentSection(agentCfg)
		a.printReasoningSection(&masked)
		a.printToolsSection(&masked)
		a.printStorageSection(&masked)
		a.printResilienceSection(&masked)
	case "agent":
		a.printAgentSection(agentCfg)
	case "reasoning":
		a.printReasoningSection(&masked)
	case "tools":
		a.printToolsSection(&masked)
	case "storage":
		a.printStorageSection(&masked)
	case "resilience":
		a.printResilienceSection(&masked)
	default:
		return fmt.Errorf("unknown section: %s", opts.section)
	}
	return nil
}

func maskSecrets(cfg domainconfig.Config) domainconfig.Config {
	if cfg.Reasoning.APIKey != "" {
		cfg.Reasoning.APIKey = "****"
	}
	if cfg.Cache.Redis.Password != "" {
		cfg.Cache.Redis.Password = "****"
	}
	return cfg
}

func (a *App) printHeader(cfg *domainconfig.Config) {
	_, _ = fmt.Fprintf(a.stdout, "Configuration: %s\n", cfg.Name)
	_, _ = fmt.Fprintf(a.stdout, "═══════════════════════════════════════\n")
	_, _ = fmt.Fprintf(a.stdout, "Version: %s\n", cfg.Version)
	if cfg.Description != "" {
		_, _ = fmt.Fprintf(a.stdout, "Description: %s\n", cfg.Description)
	}
	_, _ = fmt.Fprintln(a.stdout)
}

func (a *App) printAgentSection(c domainconfig.AgentConfig) {
	_, _ = fmt.Fprintf(a.stdout, "Agent Settings\n")
	_, _ = fmt.Fprintf(a.stdout, "───────────────────────────────────────\n")
	_, _ = fmt.Fprintf(a.stdout, "  Max Iterations: %d\n", c.MaxIterations)
	_, _ = fmt.Fprintf(a.stdout, "  Tool Selection: %s (fallback %s)\n", c.ToolSelection, c.FallbackTool)
	_, _ = fmt.Fprintf(a.stdout, "  Tool Timeout: %s\n", c.ToolTimeout)
	_, _ = fmt.Fprintf(a.stdout, "  Run Timeout: %s\n", c.Timeout)
	_, _ = fmt.Fprintf(a.stdout, "  Parallel: %v (max %d)\n", c.ParallelExecution, c.MaxConcurrentTools)
	if c.EnableReflection {
		_, _ = fmt.Fprintf(a.stdout, "  Reflection: threshold %.1f, up to %d retries\n",
			c.ReflectionThreshold, c.MaxReflectionIterations)
	} else {
		_, _ = fmt.Fprintf(a.stdout, "  Reflection: disabled\n")
	}
	_, _ = fmt.Fprintln(a.stdout)
}

func (a *App) printReasoningSection(cfg *domainconfig.Config) {
	r := cfg.Reasoning
	_, _ = fmt.Fprintf(a.stdout, "Reasoning\n")
	_, _ = fmt.Fprintf(a.stdout, "───────────────────────────────────────\n")
	_, _ = fmt.Fprintf(a.stdout, "  Provider: %s\n", r.Provider)
	if r.Model != "" {
		_, _ = fmt.Fprintf(a.stdout, "  Model: %s\n", r.Model)
	}
	if r.BaseURL != "" {
		_, _ = fmt.Fprintf(a.stdout, "  Base URL: %s\n", r.BaseURL)
	}
	if r.APIKey != "" {
		_, _ = fmt.Fprintf(a.stdout, "  API Key: %s\n", r.APIKey)
	}
	_, _ = fmt.Fprintln(a.stdout)
}

func (a *App) printToolsSection(cfg *domainconfig.Config) {
	t := cfg.Tools
	_, _ = fmt.Fprintf(a.stdout, "Tools\n")
	_, _ = fmt.Fprintf(a.stdout, "───────────────────────────────────────\n")

	if t.VectorSearch == nil && t.StructuredQuery == nil && t.DocumentFetch == nil && len(t.MCP) == 0 {
		_, _ = fmt.Fprintf(a.stdout, "  No tools configured\n")
	}
	if vs := t.VectorSearch; vs != nil {
		_, _ = fmt.Fprintf(a.stdout, "  • vector_search: %s collection %q\n", vs.Host, vs.Collection)
	}
	if t.StructuredQuery != nil {
		_, _ = fmt.Fprintf(a.stdout, "  • structured_query\n")
	}
	if df := t.DocumentFetch; df != nil {
		for _, p := range df.AllowedPrefixes {
			_, _ = fmt.Fprintf(a.stdout, "  • document_fetch: %s\n", p)
		}
	}
	for _, srv := range t.MCP {
		_, _ = fmt.Fprintf(a.stdout, "  • mcp %s: %s\n", srv.Name, srv.Command)
	}
	_, _ = fmt.Fprintln(a.stdout)
}

func (a *App) printStorageSection(cfg *domainconfig.Config) {
	_, _ = fmt.Fprintf(a.stdout, "Storage\n")
	_, _ = fmt.Fprintf(a.stdout, "───────────────────────────────────────\n")
	_, _ = fmt.Fprintf(a.stdout, "  Cache: %s\n", orNone(cfg.Cache.Backend))
	if ttl := cfg.Cache.TTL.Duration(); ttl > 0 {
		_, _ = fmt.Fprintf(a.stdout, "    TTL: %s\n", ttl)
	}
	_, _ = fmt.Fprintf(a.stdout, "  History: %s\n", orNone(cfg.History.Backend))
	_, _ = fmt.Fprintln(a.stdout)
}

func (a *App) printResilienceSection(cfg *domainconfig.Config) {
	r := cfg.Resilience
	_, _ = fmt.Fprintf(a.stdout, "Resilience\n")
	_, _ = fmt.Fprintf(a.stdout, "───────────────────────────────────────\n")
	if !r.Enabled {
		_, _ = fmt.Fprintf(a.stdout, "  Enabled: false\n")
		_, _ = fmt.Fprintln(a.stdout)
		return
	}
	_, _ = fmt.Fprintf(a.stdout, "  Enabled: true\n")
	if r.Retry.MaxAttempts > 0 {
		_, _ = fmt.Fprintf(a.stdout, "  Retry: %d attempts, initial delay %s\n", r.Retry.MaxAttempts, r.Retry.InitialDelay.Duration())
	}
	if r.CircuitBreaker.Threshold > 0 {
		_, _ = fmt.Fprintf(a.stdout, "  Circuit Breaker: %d failures, open for %s\n", r.CircuitBreaker.Threshold, r.CircuitBreaker.Timeout.Duration())
	}
	if r.Bulkhead.MaxConcurrent > 0 {
		_, _ = fmt.Fprintf(a.stdout, "  Bulkhead: %d concurrent\n", r.Bulkhead.MaxConcurrent)
	}
	_, _ = fmt.Fprintln(a.stdout)
}
