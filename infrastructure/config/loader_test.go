package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	domainconfig "github.com/felixgeelhaar/ragent/domain/config"
)

const sampleYAML = `
name: docs-agent
version: "1.0"
agent:
  max_iterations: 3
  tool_timeout: 10s
  timeout_seconds: 45
  reflection:
    enabled: true
    threshold: 6.5
reasoning:
  provider: openai
  model: gpt-4o-mini
  api_key: sk-inline
tools:
  vector_search:
    host: localhost
    collection: docs
    top_k: 4
cache:
  backend: memory
  ttl: 5m
history:
  backend: sqlite
  dsn: /tmp/ragent.db
`

func TestLoader_LoadYAML(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader().LoadString(sampleYAML, FormatYAML)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}

	if cfg.Name != "docs-agent" || cfg.Reasoning.Provider != "openai" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Agent.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d, want 3", cfg.Agent.MaxIterations)
	}
	if got := cfg.Agent.ToolTimeout.Duration(); got != 10*time.Second {
		t.Errorf("ToolTimeout = %v, want 10s", got)
	}
	if got := cfg.Agent.Timeout.Duration(); got != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", got)
	}
	if th := cfg.Agent.Reflection.Threshold; th == nil || *th != 6.5 {
		t.Errorf("Reflection.Threshold = %v, want 6.5", th)
	}
	if vs := cfg.Tools.VectorSearch; vs == nil || vs.Collection != "docs" || vs.TopK != 4 {
		t.Errorf("VectorSearch = %+v", vs)
	}
	if got := cfg.Cache.TTL.Duration(); got != 5*time.Minute {
		t.Errorf("Cache.TTL = %v, want 5m", got)
	}
	if cfg.History.Backend != "sqlite" {
		t.Errorf("History.Backend = %q", cfg.History.Backend)
	}
}

func TestLoader_LoadJSON(t *testing.T) {
	t.Parallel()

	content := `{
		"name": "json-agent",
		"version": "1.0",
		"reasoning": {"provider": "static", "responses": ["hello"]},
		"agent": {"tool_timeout": "2s", "parallel_execution": false}
	}`
	cfg, err := NewLoader().LoadString(content, FormatJSON)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if len(cfg.Reasoning.Responses) != 1 {
		t.Errorf("Responses = %v", cfg.Reasoning.Responses)
	}
	if p := cfg.Agent.ParallelExecution; p == nil || *p {
		t.Errorf("ParallelExecution = %v, want explicit false", p)
	}
}

func TestLoader_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		loader  *Loader
		content string
		format  Format
		wantErr error
	}{
		{
			name:    "missing name",
			loader:  NewLoader(),
			content: "version: '1'\nreasoning:\n  provider: ollama\n",
			format:  FormatYAML,
			wantErr: domainconfig.ErrValidationFailed,
		},
		{
			name:    "unknown provider",
			loader:  NewLoader(),
			content: "name: a\nversion: '1'\nreasoning:\n  provider: gemini\n",
			format:  FormatYAML,
			wantErr: domainconfig.ErrValidationFailed,
		},
		{
			name:    "malformed yaml",
			loader:  NewLoader(),
			content: "name: [unterminated\n",
			format:  FormatYAML,
			wantErr: domainconfig.ErrInvalidFormat,
		},
		{
			name:    "malformed json",
			loader:  NewLoader(),
			content: `{"name": `,
			format:  FormatJSON,
			wantErr: domainconfig.ErrInvalidFormat,
		},
		{
			name:    "unknown key in strict mode",
			loader:  NewLoaderWithOptions(WithStrictKeys(true)),
			content: "name: a\nversion: '1'\nreasoning:\n  provider: ollama\nplugins: []\n",
			format:  FormatYAML,
			wantErr: domainconfig.ErrInvalidFormat,
		},
		{
			name:    "unknown json key in strict mode",
			loader:  NewLoaderWithOptions(WithStrictKeys(true)),
			content: `{"name":"a","version":"1","reasoning":{"provider":"ollama"},"plugins":[]}`,
			format:  FormatJSON,
			wantErr: domainconfig.ErrInvalidFormat,
		},
		{
			name:    "unsupported format",
			loader:  NewLoader(),
			content: "name = 'a'",
			format:  Format("toml"),
			wantErr: domainconfig.ErrUnsupportedFormat,
		},
		{
			name:    "required env var",
			loader:  NewLoader(),
			content: "name: a\nversion: '1'\nreasoning:\n  provider: openai\n  api_key: ${RAGENT_LOADER_TEST_UNSET:?api key}\n",
			format:  FormatYAML,
			wantErr: domainconfig.ErrMissingEnvVar,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := tt.loader.LoadString(tt.content, tt.format); !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadString() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_UnknownKeysAllowedByDefault(t *testing.T) {
	t.Parallel()

	content := "name: a\nversion: '1'\nreasoning:\n  provider: ollama\nplugins: []\n"
	if _, err := NewLoader().LoadString(content, FormatYAML); err != nil {
		t.Errorf("LoadString() error = %v", err)
	}
}

func TestLoader_ValidationDisabled(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoaderWithOptions(WithValidation(false)).LoadString("reasoning:\n  provider: gemini\n", FormatYAML)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if cfg.Reasoning.Provider != "gemini" {
		t.Errorf("Provider = %q", cfg.Reasoning.Provider)
	}
}

func TestLoader_EnvExpansion(t *testing.T) {
	t.Setenv("RAGENT_LOADER_TEST_MODEL", "llama3.1")

	content := "name: a\nversion: '1'\nreasoning:\n  provider: ollama\n  model: ${RAGENT_LOADER_TEST_MODEL}\n  base_url: ${RAGENT_LOADER_TEST_URL:-http://localhost:11434}\n"

	cfg, err := NewLoader().LoadString(content, FormatYAML)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if cfg.Reasoning.Model != "llama3.1" {
		t.Errorf("Model = %q, want llama3.1", cfg.Reasoning.Model)
	}
	if cfg.Reasoning.BaseURL != "http://localhost:11434" {
		t.Errorf("BaseURL = %q, want default", cfg.Reasoning.BaseURL)
	}

	raw, err := NewLoaderWithOptions(WithEnvExpansion(false)).LoadString(content, FormatYAML)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if !strings.HasPrefix(raw.Reasoning.Model, "${") {
		t.Errorf("Model = %q, want unexpanded reference", raw.Reasoning.Model)
	}
}

func TestLoader_LoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "ragent.yml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Name != "docs-agent" {
		t.Errorf("Name = %q", cfg.Name)
	}

	if _, err := NewLoader().LoadFile(filepath.Join(dir, "missing.yaml")); !errors.Is(err, domainconfig.ErrConfigNotFound) {
		t.Errorf("LoadFile(missing) error = %v, want ErrConfigNotFound", err)
	}
	if _, err := NewLoader().LoadFile(filepath.Join(dir, "ragent.toml")); !errors.Is(err, domainconfig.ErrUnsupportedFormat) {
		t.Errorf("LoadFile(.toml) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestFormatOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"ragent.yaml", FormatYAML, false},
		{"conf/RAGENT.YML", FormatYAML, false},
		{"ragent.json", FormatJSON, false},
		{"ragent.ini", "", true},
		{"ragent", "", true},
	}
	for _, tt := range tests {
		got, err := FormatOf(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("FormatOf(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("FormatOf(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	if errs := domainconfig.NewValidator().Validate(Default()); errs.HasErrors() {
		t.Errorf("Default() fails validation: %v", errs)
	}
}
