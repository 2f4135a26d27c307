package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the JSON path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Known backend names.
var (
	ReasoningProviders = []string{"openai", "anthropic", "ollama", "static"}
	CacheBackends      = []string{"", "none", "memory", "redis", "sqlite"}
	HistoryBackends    = []string{"", "none", "memory", "sqlite"}
	TraceExporters     = []string{"", "otlp", "stdout", "noop"}
	LogFormats         = []string{"", "console", "json"}
)

// Validator validates a configuration file.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *Config) ValidationErrors {
	v.errors = nil

	v.validateRequired(config)
	v.validateAgent(config)
	v.validateReasoning(config)
	v.validateTools(config)
	v.validateStorage(config)
	v.validateResilience(config)
	v.validateObservability(config)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateRequired(config *Config) {
	if config.Name == "" {
		v.addError("name", "name is required")
	}
	if config.Version == "" {
		v.addError("version", "version is required")
	}
}

func (v *Validator) validateAgent(config *Config) {
	a := config.Agent
	if a.MaxIterations < 0 {
		v.addError("agent.max_iterations", "must be non-negative")
	}
	if a.MaxConcurrentTools < 0 {
		v.addError("agent.max_concurrent_tools", "must be non-negative")
	}
	if a.ToolTimeout < 0 {
		v.addError("agent.tool_timeout", "must be non-negative")
	}
	if a.Timeout < 0 {
		v.addError("agent.timeout_seconds", "must be non-negative")
	}
	if a.ToolSelection != "" && !ToolSelection(a.ToolSelection).IsValid() {
		v.addError("agent.tool_selection", fmt.Sprintf("invalid mode: %s", a.ToolSelection))
	}
	if t := a.Reflection.Threshold; t != nil && (*t < 0 || *t > 10) {
		v.addError("agent.reflection.threshold", "must be between 0 and 10")
	}
	if a.Reflection.MaxIterations < 0 {
		v.addError("agent.reflection.max_iterations", "must be non-negative")
	}
}

func (v *Validator) validateReasoning(config *Config) {
	r := config.Reasoning
	if r.Provider == "" {
		v.addError("reasoning.provider", "provider is required")
	} else if !slices.Contains(ReasoningProviders, r.Provider) {
		v.addError("reasoning.provider", fmt.Sprintf("unknown provider: %s", r.Provider))
	}
	if r.Provider == "static" && len(r.Responses) == 0 {
		v.addError("reasoning.responses", "static provider needs at least one response")
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		v.addError("reasoning.temperature", "must be between 0 and 2")
	}
	if r.MaxTokens < 0 {
		v.addError("reasoning.max_tokens", "must be non-negative")
	}
}

func (v *Validator) validateTools(config *Config) {
	t := config.Tools
	if vs := t.VectorSearch; vs != nil {
		if vs.Host == "" {
			v.addError("tools.vector_search.host", "host is required")
		}
		if vs.Collection == "" {
			v.addError("tools.vector_search.collection", "collection is required")
		}
		if vs.TopK < 0 {
			v.addError("tools.vector_search.top_k", "must be non-negative")
		}
	}
	if sq := t.StructuredQuery; sq != nil && sq.DSN == "" {
		v.addError("tools.structured_query.dsn", "dsn is required")
	}
	if df := t.DocumentFetch; df != nil && len(df.AllowedPrefixes) == 0 {
		v.addError("tools.document_fetch.allowed_prefixes", "at least one prefix is required")
	}

	names := make(map[string]bool)
	for i, srv := range t.MCP {
		path := fmt.Sprintf("tools.mcp[%d]", i)
		if srv.Name == "" {
			v.addError(path+".name", "server name is required")
		} else if names[srv.Name] {
			v.addError(path+".name", fmt.Sprintf("duplicate server name: %s", srv.Name))
		}
		names[srv.Name] = true
		if srv.Command == "" {
			v.addError(path+".command", "command is required")
		}
	}
}

func (v *Validator) validateStorage(config *Config) {
	if !slices.Contains(CacheBackends, config.Cache.Backend) {
		v.addError("cache.backend", fmt.Sprintf("unknown backend: %s", config.Cache.Backend))
	}
	if config.Cache.Backend == "redis" && config.Cache.Redis.Address == "" {
		v.addError("cache.redis.address", "address is required")
	}
	if config.Cache.Backend == "sqlite" && config.Cache.DSN == "" {
		v.addError("cache.dsn", "dsn is required")
	}
	if config.Cache.MaxSize < 0 {
		v.addError("cache.max_size", "must be non-negative")
	}
	if !slices.Contains(HistoryBackends, config.History.Backend) {
		v.addError("history.backend", fmt.Sprintf("unknown backend: %s", config.History.Backend))
	}
	if config.History.Backend == "sqlite" && config.History.DSN == "" {
		v.addError("history.dsn", "dsn is required")
	}
}

func (v *Validator) validateResilience(config *Config) {
	r := config.Resilience
	if r.Retry.MaxAttempts < 0 {
		v.addError("resilience.retry.max_attempts", "must be non-negative")
	}
	if r.Retry.Multiplier < 0 {
		v.addError("resilience.retry.multiplier", "must be non-negative")
	}
	if r.CircuitBreaker.Threshold < 0 {
		v.addError("resilience.circuit_breaker.threshold", "must be non-negative")
	}
	if r.Bulkhead.MaxConcurrent < 0 {
		v.addError("resilience.bulkhead.max_concurrent", "must be non-negative")
	}
	if r.RateLimit.Rate < 0 {
		v.addError("resilience.rate_limit.rate", "must be non-negative")
	}
	if r.RateLimit.Burst < 0 {
		v.addError("resilience.rate_limit.burst", "must be non-negative")
	}
}

func (v *Validator) validateObservability(config *Config) {
	if !slices.Contains(LogFormats, config.Logging.Format) {
		v.addError("logging.format", fmt.Sprintf("unknown format: %s", config.Logging.Format))
	}
	tr := config.Telemetry.Tracing
	if !slices.Contains(TraceExporters, tr.Exporter) {
		v.addError("telemetry.tracing.exporter", fmt.Sprintf("unknown exporter: %s", tr.Exporter))
	}
	if tr.SampleRate < 0 || tr.SampleRate > 1 {
		v.addError("telemetry.tracing.sample_rate", "must be between 0 and 1")
	}
}
