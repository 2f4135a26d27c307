// Package config provides domain models for agent configuration.
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Config represents a complete configuration file.
type Config struct {
	// Name is a human-readable name for this configuration.
	Name string `json:"name" yaml:"name"`
	// Version is the configuration schema version.
	Version string `json:"version" yaml:"version"`
	// Description describes the deployment.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Agent contains control loop settings.
	Agent AgentSettings `json:"agent" yaml:"agent"`
	// Reasoning selects the language model backend.
	Reasoning ReasoningConfig `json:"reasoning" yaml:"reasoning"`
	// Tools configures the built-in and remote tools.
	Tools ToolsConfig `json:"tools,omitempty" yaml:"tools,omitempty"`
	// Cache configures the tool result cache.
	Cache CacheConfig `json:"cache,omitempty" yaml:"cache,omitempty"`
	// History configures where answered runs are recorded.
	History HistoryConfig `json:"history,omitempty" yaml:"history,omitempty"`
	// Resilience configures retries and circuit breaking around tools.
	Resilience ResilienceConfig `json:"resilience,omitempty" yaml:"resilience,omitempty"`
	// Logging configures the structured logger.
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
	// Telemetry configures tracing and metrics.
	Telemetry TelemetryConfig `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
}

// AgentSettings mirrors AgentConfig in file form. Zero values take the defaults.
type AgentSettings struct {
	MaxIterations      int              `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	ToolSelection      string           `json:"tool_selection,omitempty" yaml:"tool_selection,omitempty"`
	FallbackTool       string           `json:"fallback_tool,omitempty" yaml:"fallback_tool,omitempty"`
	ToolTimeout        Duration         `json:"tool_timeout,omitempty" yaml:"tool_timeout,omitempty"`
	Timeout            Duration         `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	ParallelExecution  *bool            `json:"parallel_execution,omitempty" yaml:"parallel_execution,omitempty"`
	MaxConcurrentTools int              `json:"max_concurrent_tools,omitempty" yaml:"max_concurrent_tools,omitempty"`
	Reflection         ReflectionConfig `json:"reflection,omitempty" yaml:"reflection,omitempty"`
}

// ReflectionConfig configures answer self-critique.
type ReflectionConfig struct {
	Enabled       bool     `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Threshold     *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
}

// AgentConfig converts the file settings to a validated AgentConfig.
func (s AgentSettings) AgentConfig() (AgentConfig, error) {
	var opts []AgentOption
	if s.MaxIterations != 0 {
		opts = append(opts, WithMaxIterations(s.MaxIterations))
	}
	if s.ToolSelection != "" {
		opts = append(opts, WithToolSelection(ToolSelection(s.ToolSelection)))
	}
	if s.FallbackTool != "" {
		opts = append(opts, WithFallbackTool(s.FallbackTool))
	}
	if s.ToolTimeout != 0 {
		opts = append(opts, WithToolTimeout(s.ToolTimeout.Duration()))
	}
	if s.Timeout != 0 {
		opts = append(opts, WithTimeout(s.Timeout.Duration()))
	}
	if s.ParallelExecution != nil {
		opts = append(opts, WithParallelExecution(*s.ParallelExecution))
	}
	if s.MaxConcurrentTools != 0 {
		opts = append(opts, WithMaxConcurrentTools(s.MaxConcurrentTools))
	}
	if s.Reflection.Enabled {
		opts = append(opts, func(c *AgentConfig) { c.EnableReflection = true })
	}
	if s.Reflection.Threshold != nil {
		opts = append(opts, WithReflectionThreshold(*s.Reflection.Threshold))
	}
	if s.Reflection.MaxIterations != 0 {
		opts = append(opts, WithMaxReflectionIterations(s.Reflection.MaxIterations))
	}
	return NewAgentConfig(opts...)
}

// ReasoningConfig selects and configures the language model backend.
type ReasoningConfig struct {
	// Provider is one of openai, anthropic, ollama, static.
	Provider string `json:"provider" yaml:"provider"`
	// Model is the provider model name.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// APIKey authenticates against hosted providers.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// Temperature is the sampling temperature.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	// MaxTokens bounds the reply length.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	// Timeout bounds one request.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Responses are the canned replies of the static provider.
	Responses []string `json:"responses,omitempty" yaml:"responses,omitempty"`
}

// ToolsConfig configures the tool registry.
type ToolsConfig struct {
	VectorSearch    *VectorSearchConfig    `json:"vector_search,omitempty" yaml:"vector_search,omitempty"`
	StructuredQuery *StructuredQueryConfig `json:"structured_query,omitempty" yaml:"structured_query,omitempty"`
	DocumentFetch   *DocumentFetchConfig   `json:"document_fetch,omitempty" yaml:"document_fetch,omitempty"`
	MCP             []MCPServerConfig      `json:"mcp,omitempty" yaml:"mcp,omitempty"`
}

// VectorSearchConfig configures the qdrant-backed semantic search tool.
type VectorSearchConfig struct {
	Host           string  `json:"host" yaml:"host"`
	Port           int     `json:"port,omitempty" yaml:"port,omitempty"`
	Collection     string  `json:"collection" yaml:"collection"`
	EmbeddingURL   string  `json:"embedding_url,omitempty" yaml:"embedding_url,omitempty"`
	EmbeddingModel string  `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty"`
	TopK           int     `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	ScoreThreshold float64 `json:"score_threshold,omitempty" yaml:"score_threshold,omitempty"`
}

// StructuredQueryConfig configures the read-only SQL tool.
type StructuredQueryConfig struct {
	DSN     string `json:"dsn" yaml:"dsn"`
	MaxRows int    `json:"max_rows,omitempty" yaml:"max_rows,omitempty"`
}

// DocumentFetchConfig configures the HTTP document fetch tool.
type DocumentFetchConfig struct {
	AllowedPrefixes []string `json:"allowed_prefixes" yaml:"allowed_prefixes"`
	MaxBytes        int64    `json:"max_bytes,omitempty" yaml:"max_bytes,omitempty"`
	Timeout         Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// MCPServerConfig launches an MCP server whose tools are imported.
type MCPServerConfig struct {
	Name    string            `json:"name" yaml:"name"`
	Command string            `json:"command" yaml:"command"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// CacheConfig configures the tool result cache.
type CacheConfig struct {
	// Backend is one of none, memory, redis, sqlite.
	Backend string      `json:"backend,omitempty" yaml:"backend,omitempty"`
	MaxSize int         `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	TTL     Duration    `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	Redis   RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
	// DSN locates the sqlite cache database.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// RedisConfig configures the redis cache backend.
type RedisConfig struct {
	Address   string `json:"address,omitempty" yaml:"address,omitempty"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int    `json:"db,omitempty" yaml:"db,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
}

// HistoryConfig configures run history storage.
type HistoryConfig struct {
	// Backend is one of none, memory, sqlite.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	DSN     string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// ResilienceConfig contains resilience settings.
type ResilienceConfig struct {
	// Enabled turns the resilience guard on.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Retry configures retry behavior.
	Retry RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
	// CircuitBreaker configures circuit breaker behavior.
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
	// Bulkhead configures bulkhead behavior.
	Bulkhead BulkheadConfig `json:"bulkhead,omitempty" yaml:"bulkhead,omitempty"`
	// RateLimit caps calls per second for each tool.
	RateLimit RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts  int      `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	InitialDelay Duration `json:"initial_delay,omitempty" yaml:"initial_delay,omitempty"`
	Multiplier   float64  `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Threshold is consecutive failures before opening.
	Threshold int `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	// Timeout is how long the circuit stays open.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// BulkheadConfig configures bulkhead behavior.
type BulkheadConfig struct {
	MaxConcurrent int `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
}

// RateLimitConfig configures the per-tool token bucket. Zero disables it.
type RateLimitConfig struct {
	Rate  int `json:"rate,omitempty" yaml:"rate,omitempty"`
	Burst int `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// TelemetryConfig configures tracing and metrics.
type TelemetryConfig struct {
	ServiceName string        `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Tracing     TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	Metrics     bool          `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Exporter is one of otlp, stdout, noop.
	Exporter   string  `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	Endpoint   string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure   bool    `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	SampleRate float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

// Duration is a time.Duration that accepts "30s" strings or plain seconds.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var secs float64
		if numErr := json.Unmarshal(b, &secs); numErr != nil {
			return fmt.Errorf("%w: duration %s", ErrInvalidFormat, b)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	return d.parse(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
