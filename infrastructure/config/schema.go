package config

import (
	"encoding/json"

	domainconfig "github.com/felixgeelhaar/ragent/domain/config"
)

// JSONSchema represents a JSON Schema document.
type JSONSchema struct {
	Schema               string                 `json:"$schema,omitempty"`
	ID                   string                 `json:"$id,omitempty"`
	Title                string                 `json:"title,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Type                 string                 `json:"type,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	AdditionalProperties *JSONSchema            `json:"additionalProperties,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Default              any                    `json:"default,omitempty"`
	Minimum              *float64               `json:"minimum,omitempty"`
	Maximum              *float64               `json:"maximum,omitempty"`
	Pattern              string                 `json:"pattern,omitempty"`
	Format               string                 `json:"format,omitempty"`
	OneOf                []*JSONSchema          `json:"oneOf,omitempty"`
}

// GenerateSchema generates a JSON Schema for the configuration file.
func GenerateSchema() *JSONSchema {
	return &JSONSchema{
		Schema:      "https://json-schema.org/draft/2020-12/schema",
		ID:          "https://github.com/felixgeelhaar/ragent/ragent-config.schema.json",
		Title:       "ragent Configuration",
		Description: "Configuration schema for the ragent question answering agent",
		Type:        "object",
		Required:    []string{"name", "version", "reasoning"},
		Properties: map[string]*JSONSchema{
			"name": {
				Type:        "string",
				Description: "A human-readable name for this configuration",
			},
			"version": {
				Type:        "string",
				Description: "The configuration schema version",
				Default:     "1.0",
			},
			"description": {
				Type:        "string",
				Description: "Describes the deployment",
			},
			"agent":      generateAgentSchema(),
			"reasoning":  generateReasoningSchema(),
			"tools":      generateToolsSchema(),
			"cache":      generateCacheSchema(),
			"history":    generateHistorySchema(),
			"resilience": generateResilienceSchema(),
			"logging":    generateLoggingSchema(),
			"telemetry":  generateTelemetrySchema(),
		},
	}
}

// durationSchema accepts "30s" strings or numeric seconds.
func durationSchema(description string, def string) *JSONSchema {
	return &JSONSchema{
		Description: description,
		OneOf: []*JSONSchema{
			{Type: "string", Pattern: `^[0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h)$`},
			{Type: "number", Minimum: floatPtr(0)},
		},
		Default: def,
	}
}

func generateAgentSchema() *JSONSchema {
	def := domainconfig.DefaultAgentConfig()
	return &JSONSchema{
		Type:        "object",
		Description: "Agent control loop settings; omitted values take the defaults",
		Properties: map[string]*JSONSchema{
			"max_iterations": {
				Type:        "integer",
				Description: "Plan and execute iterations before synthesis",
				Default:     def.MaxIterations,
				Minimum:     floatPtr(1),
			},
			"tool_selection": {
				Type:        "string",
				Description: "How the planner chooses tools",
				Enum:        []string{string(domainconfig.ToolSelectionAuto), string(domainconfig.ToolSelectionFallbackOnly)},
				Default:     string(def.ToolSelection),
			},
			"fallback_tool": {
				Type:        "string",
				Description: "Tool used when planning fails",
				Default:     def.FallbackTool,
			},
			"tool_timeout":    durationSchema("Timeout for one tool call", def.ToolTimeout.String()),
			"timeout_seconds": durationSchema("Timeout for a whole run", def.Timeout.String()),
			"parallel_execution": {
				Type:        "boolean",
				Description: "Run the tool calls of one step concurrently",
				Default:     def.ParallelExecution,
			},
			"max_concurrent_tools": {
				Type:        "integer",
				Description: "Concurrent tool calls per step",
				Default:     def.MaxConcurrentTools,
				Minimum:     floatPtr(1),
			},
			"reflection": {
				Type:        "object",
				Description: "Answer self-critique",
				Properties: map[string]*JSONSchema{
					"enabled": {
						Type:    "boolean",
						Default: false,
					},
					"threshold": {
						Type:        "number",
						Description: "Minimum acceptable score",
						Default:     def.ReflectionThreshold,
						Minimum:     floatPtr(0),
						Maximum:     floatPtr(10),
					},
					"max_iterations": {
						Type:        "integer",
						Description: "Re-synthesis attempts",
						Default:     def.MaxReflectionIterations,
						Minimum:     floatPtr(0),
					},
				},
			},
		},
	}
}

func generateReasoningSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Language model backend",
		Required:    []string{"provider"},
		Properties: map[string]*JSONSchema{
			"provider": {
				Type: "string",
				Enum: domainconfig.ReasoningProviders,
			},
			"model":    {Type: "string"},
			"base_url": {Type: "string", Format: "uri"},
			"api_key": {
				Type:        "string",
				Description: "API key; use ${ENV_VAR} expansion",
			},
			"temperature": {
				Type:    "number",
				Minimum: floatPtr(0),
				Maximum: floatPtr(2),
			},
			"max_tokens": {Type: "integer", Minimum: floatPtr(0)},
			"timeout":    durationSchema("Timeout for one completion", "2m0s"),
			"responses": {
				Type:        "array",
				Description: "Canned replies of the static provider, used in order",
				Items:       &JSONSchema{Type: "string"},
			},
		},
	}
}

func generateToolsSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Built-in and remote tools",
		Properties: map[string]*JSONSchema{
			"vector_search": {
				Type:        "object",
				Description: "Semantic search over a qdrant collection",
				Required:    []string{"host", "collection"},
				Properties: map[string]*JSONSchema{
					"host":            {Type: "string"},
					"port":            {Type: "integer", Default: 6334},
					"collection":      {Type: "string"},
					"embedding_url":   {Type: "string", Format: "uri"},
					"embedding_model": {Type: "string"},
					"top_k":           {Type: "integer", Minimum: floatPtr(0)},
					"score_threshold": {Type: "number"},
				},
			},
			"structured_query": {
				Type:        "object",
				Description: "Read-only SELECT over a sqlite database",
				Required:    []string{"dsn"},
				Properties: map[string]*JSONSchema{
					"dsn":      {Type: "string"},
					"max_rows": {Type: "integer", Minimum: floatPtr(1)},
				},
			},
			"document_fetch": {
				Type:        "object",
				Description: "HTTP GET of allow-listed URLs",
				Required:    []string{"allowed_prefixes"},
				Properties: map[string]*JSONSchema{
					"allowed_prefixes": {Type: "array", Items: &JSONSchema{Type: "string"}},
					"max_bytes":        {Type: "integer", Minimum: floatPtr(1)},
					"timeout":          durationSchema("Timeout for one fetch", "15s"),
				},
			},
			"mcp": {
				Type:        "array",
				Description: "MCP servers whose tools are imported",
				Items: &JSONSchema{
					Type:     "object",
					Required: []string{"name", "command"},
					Properties: map[string]*JSONSchema{
						"name":    {Type: "string"},
						"command": {Type: "string"},
						"args":    {Type: "array", Items: &JSONSchema{Type: "string"}},
						"env":     {Type: "object", AdditionalProperties: &JSONSchema{Type: "string"}},
					},
				},
			},
		},
	}
}

func generateCacheSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Result cache for cacheable tools",
		Properties: map[string]*JSONSchema{
			"backend":  {Type: "string", Enum: domainconfig.CacheBackends[1:], Default: "none"},
			"max_size": {Type: "integer", Minimum: floatPtr(0)},
			"ttl":      durationSchema("Entry lifetime", "10m0s"),
			"dsn":      {Type: "string", Description: "sqlite database for the sqlite backend"},
			"redis": {
				Type: "object",
				Properties: map[string]*JSONSchema{
					"address":    {Type: "string"},
					"password":   {Type: "string"},
					"db":         {Type: "integer", Minimum: floatPtr(0)},
					"key_prefix": {Type: "string"},
				},
			},
		},
	}
}

func generateHistorySchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Where answered runs are recorded",
		Properties: map[string]*JSONSchema{
			"backend": {Type: "string", Enum: domainconfig.HistoryBackends[1:], Default: "none"},
			"dsn":     {Type: "string"},
		},
	}
}

func generateResilienceSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Retries, circuit breaking and concurrency limits around tools",
		Properties: map[string]*JSONSchema{
			"enabled": {Type: "boolean", Default: false},
			"retry": {
				Type:        "object",
				Description: "Retries apply to idempotent tools only",
				Properties: map[string]*JSONSchema{
					"max_attempts":  {Type: "integer", Minimum: floatPtr(0)},
					"initial_delay": durationSchema("Delay before the first retry", "100ms"),
					"multiplier":    {Type: "number", Minimum: floatPtr(0)},
				},
			},
			"circuit_breaker": {
				Type: "object",
				Properties: map[string]*JSONSchema{
					"threshold": {Type: "integer", Minimum: floatPtr(0)},
					"timeout":   durationSchema("How long the circuit stays open", "30s"),
				},
			},
			"bulkhead": {
				Type: "object",
				Properties: map[string]*JSONSchema{
					"max_concurrent": {Type: "integer", Minimum: floatPtr(0)},
				},
			},
			"rate_limit": {
				Type: "object",
				Properties: map[string]*JSONSchema{
					"rate":  {Type: "integer", Minimum: floatPtr(0)},
					"burst": {Type: "integer", Minimum: floatPtr(0)},
				},
			},
		},
	}
}

func generateLoggingSchema() *JSONSchema {
	return &JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"level":  {Type: "string", Enum: []string{"trace", "debug", "info", "warn", "error"}, Default: "info"},
			"format": {Type: "string", Enum: domainconfig.LogFormats[1:], Default: "console"},
		},
	}
}

func generateTelemetrySchema() *JSONSchema {
	return &JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"service_name": {Type: "string", Default: "ragent"},
			"metrics":      {Type: "boolean", Default: false},
			"tracing": {
				Type: "object",
				Properties: map[string]*JSONSchema{
					"enabled":     {Type: "boolean", Default: false},
					"exporter":    {Type: "string", Enum: domainconfig.TraceExporters[1:], Default: "noop"},
					"endpoint":    {Type: "string"},
					"insecure":    {Type: "boolean"},
					"sample_rate": {Type: "number", Minimum: floatPtr(0), Maximum: floatPtr(1), Default: 1.0},
				},
			},
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}

// SchemaJSON returns the schema as indented JSON.
func SchemaJSON() (string, error) {
	data, err := json.MarshalIndent(GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
