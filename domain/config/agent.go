package config

import (
	"fmt"
	"math"
	"time"
)

// ToolSelection controls how the planner chooses tools.
type ToolSelection string

const (
	ToolSelectionAuto         ToolSelection = "auto"          // Ask the reasoning backend
	ToolSelectionFallbackOnly ToolSelection = "fallback_only" // Always use the fallback tool
)

// IsValid returns true if the mode is recognized.
func (t ToolSelection) IsValid() bool {
	return t == ToolSelectionAuto || t == ToolSelectionFallbackOnly
}

// DefaultFallbackTool is the tool used when planning fails.
const DefaultFallbackTool = "vector_search"

// AgentConfig holds the settings of the agent control loop.
// It is read-only once constructed by NewAgentConfig.
type AgentConfig struct {
	MaxIterations           int
	ToolSelection           ToolSelection
	FallbackTool            string
	ToolTimeout             time.Duration
	Timeout                 time.Duration
	ParallelExecution       bool
	MaxConcurrentTools      int
	EnableReflection        bool
	ReflectionThreshold     float64
	MaxReflectionIterations int
}

// DefaultAgentConfig returns the default loop settings.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxIterations:           5,
		ToolSelection:           ToolSelectionAuto,
		FallbackTool:            DefaultFallbackTool,
		ToolTimeout:             30 * time.Second,
		Timeout:                 60 * time.Second,
		ParallelExecution:       true,
		MaxConcurrentTools:      5,
		EnableReflection:        false,
		ReflectionThreshold:     7.0,
		MaxReflectionIterations: 2,
	}
}

// AgentOption modifies an AgentConfig before validation.
type AgentOption func(*AgentConfig)

// WithMaxIterations sets the plan/execute iteration budget.
func WithMaxIterations(n int) AgentOption {
	return func(c *AgentConfig) { c.MaxIterations = n }
}

// WithToolSelection sets the tool selection mode.
func WithToolSelection(mode ToolSelection) AgentOption {
	return func(c *AgentConfig) { c.ToolSelection = mode }
}

// WithFallbackTool sets the tool used when planning fails.
func WithFallbackTool(name string) AgentOption {
	return func(c *AgentConfig) { c.FallbackTool = name }
}

// WithToolTimeout sets the per-call deadline.
func WithToolTimeout(d time.Duration) AgentOption {
	return func(c *AgentConfig) { c.ToolTimeout = d }
}

// WithTimeout sets the deadline for one batch of tool calls.
func WithTimeout(d time.Duration) AgentOption {
	return func(c *AgentConfig) { c.Timeout = d }
}

// WithParallelExecution enables or disables concurrent tool calls.
func WithParallelExecution(enabled bool) AgentOption {
	return func(c *AgentConfig) { c.ParallelExecution = enabled }
}

// WithMaxConcurrentTools bounds simultaneous tool calls in one batch.
func WithMaxConcurrentTools(n int) AgentOption {
	return func(c *AgentConfig) { c.MaxConcurrentTools = n }
}

// WithReflection enables reflection with the given threshold and retry budget.
func WithReflection(threshold float64, maxIterations int) AgentOption {
	return func(c *AgentConfig) {
		c.EnableReflection = true
		c.ReflectionThreshold = threshold
		c.MaxReflectionIterations = maxIterations
	}
}

// WithoutReflection disables reflection.
func WithoutReflection() AgentOption {
	return func(c *AgentConfig) { c.EnableReflection = false }
}

// WithMaxReflectionIterations sets the re-synthesis budget.
func WithMaxReflectionIterations(n int) AgentOption {
	return func(c *AgentConfig) { c.MaxReflectionIterations = n }
}

// WithReflectionThreshold sets the score below which an answer is re-synthesized.
func WithReflectionThreshold(threshold float64) AgentOption {
	return func(c *AgentConfig) { c.ReflectionThreshold = threshold }
}

// NewAgentConfig applies the options to the defaults and validates the result.
// Out-of-range values are rejected, never clamped.
func NewAgentConfig(opts ...AgentOption) (AgentConfig, error) {
	cfg := DefaultAgentConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return AgentConfig{}, err
	}
	return cfg, nil
}

// Validate checks every field against its allowed range.
func (c AgentConfig) Validate() error {
	var errs ValidationErrors
	add := func(path, msg string) {
		errs = append(errs, ValidationError{Path: path, Message: msg})
	}

	if c.MaxIterations < 1 {
		add("max_iterations", "must be at least 1")
	}
	if !c.ToolSelection.IsValid() {
		add("tool_selection", fmt.Sprintf("invalid mode: %q", c.ToolSelection))
	}
	if c.FallbackTool == "" {
		add("fallback_tool", "fallback tool is required")
	}
	if c.ToolTimeout <= 0 {
		add("tool_timeout", "must be positive")
	}
	if c.Timeout <= 0 {
		add("timeout_seconds", "must be positive")
	}
	if c.MaxConcurrentTools < 1 {
		add("max_concurrent_tools", "must be at least 1")
	}
	if math.IsNaN(c.ReflectionThreshold) || c.ReflectionThreshold < 0 || c.ReflectionThreshold > 10 {
		add("reflection_threshold", "must be between 0 and 10")
	}
	if c.MaxReflectionIterations < 1 {
		add("max_reflection_iterations", "must be at least 1")
	}

	if errs.HasErrors() {
		return fmt.Errorf("%w: %w", ErrInvalidAgentConfig, errs)
	}
	return nil
}
