package application

import (
	"github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/domain/reasoning"
	"github.com/felixgeelhaar/ragent/domain/run"
	"github.com/felixgeelhaar/ragent/domain/tool"
)

// Option configures the orchestrator.
type Option func(*Config)

// WithReasoner sets the reasoning backend used for planning, synthesis and
// reflection.
func WithReasoner(r reasoning.Service) Option {
	return func(c *Config) {
		c.Reasoner = r
	}
}

// WithTools sets the tool execution service.
func WithTools(s tool.Service) Option {
	return func(c *Config) {
		c.Tools = s
	}
}

// WithAgentConfig sets the loop configuration.
func WithAgentConfig(cfg config.AgentConfig) Option {
	return func(c *Config) {
		c.Agent = cfg
	}
}

// WithReflector overrides the reflector used when reflection is enabled.
func WithReflector(r Reflector) Option {
	return func(c *Config) {
		c.Reflector = r
	}
}

// WithHistory sets the store runs are recorded in.
func WithHistory(s run.Store) Option {
	return func(c *Config) {
		c.History = s
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithFailureMessage sets the answer returned when a run fails.
func WithFailureMessage(msg string) Option {
	return func(c *Config) {
		c.FailureMessage = msg
	}
}

// NewWithOptions creates an orchestrator using functional options.
func NewWithOptions(opts ...Option) (*Orchestrator, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg)
}
