package config

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDuration_Unmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  time.Duration
	}{
		{"string", `"1m30s"`, 90 * time.Second},
		{"milliseconds", `"100ms"`, 100 * time.Millisecond},
		{"integer seconds", `30`, 30 * time.Second},
		{"fractional seconds", `0.5`, 500 * time.Millisecond},
		{"numeric string", `"2"`, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var fromJSON Duration
			if err := json.Unmarshal([]byte(tt.input), &fromJSON); err != nil {
				t.Fatalf("json.Unmarshal() error = %v", err)
			}
			if fromJSON.Duration() != tt.want {
				t.Errorf("json.Unmarshal() = %v, want %v", fromJSON.Duration(), tt.want)
			}

			var fromYAML struct {
				D Duration `yaml:"d"`
			}
			if err := yaml.Unmarshal([]byte("d: "+tt.input), &fromYAML); err != nil {
				t.Fatalf("yaml.Unmarshal() error = %v", err)
			}
			if fromYAML.D.Duration() != tt.want {
				t.Errorf("yaml.Unmarshal() = %v, want %v", fromYAML.D.Duration(), tt.want)
			}
		})
	}
}

func TestDuration_UnmarshalInvalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{`"soon"`, `true`, `{}`} {
		var d Duration
		if err := json.Unmarshal([]byte(input), &d); err == nil {
			t.Errorf("json.Unmarshal(%s) expected error", input)
		}
	}
}

func TestDuration_Marshal(t *testing.T) {
	t.Parallel()

	got, err := json.Marshal(Duration(1500 * time.Millisecond))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(got) != `"1.5s"` {
		t.Errorf("Marshal() = %s, want %q", got, "1.5s")
	}
}

func TestConfig_YAML(t *testing.T) {
	t.Parallel()

	input := `
name: docs-agent
version: "1"
agent:
  max_iterations: 4
  timeout_seconds: 45
  reflection:
    enabled: true
    threshold: 6.5
reasoning:
  provider: ollama
  model: llama3
tools:
  vector_search:
    host: localhost
    collection: docs
`
	var cfg Config
	if err := yaml.Unmarshal([]byte(input), &cfg); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}

	agentCfg, err := cfg.Agent.AgentConfig()
	if err != nil {
		t.Fatalf("AgentConfig() error = %v", err)
	}
	if agentCfg.MaxIterations != 4 || agentCfg.Timeout != 45*time.Second {
		t.Errorf("AgentConfig() = %+v", agentCfg)
	}
	if !agentCfg.EnableReflection || agentCfg.ReflectionThreshold != 6.5 {
		t.Errorf("reflection = %v/%v", agentCfg.EnableReflection, agentCfg.ReflectionThreshold)
	}
	if cfg.Tools.VectorSearch == nil || cfg.Tools.VectorSearch.Collection != "docs" {
		t.Errorf("Tools.VectorSearch = %+v", cfg.Tools.VectorSearch)
	}
}
