package logging

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

func testLogger() (*bolt.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := bolt.New(bolt.NewJSONHandler(buf)).SetLevel(bolt.TRACE)
	return logger, buf
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	if config.Level != "info" || config.Format != "console" {
		t.Errorf("DefaultConfig() = %+v", config)
	}
	if config.Output != os.Stderr {
		t.Errorf("Output = %v, want os.Stderr", config.Output)
	}
	if ProductionConfig().Format != "json" {
		t.Error("ProductionConfig().Format should be json")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bolt.Level
	}{
		{"trace", bolt.TRACE},
		{"debug", bolt.DEBUG},
		{"info", bolt.INFO},
		{"WARN", bolt.WARN},
		{"warning", bolt.WARN},
		{"error", bolt.ERROR},
		{"", bolt.INFO},
		{"verbose", bolt.INFO},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{"run id", RunID("run-123"), `"run_id":"run-123"`},
		{"status", Status(agent.StatusCompleted), `"status":"completed"`},
		{"step", Step(3), `"step":3`},
		{"tool", ToolName("vector_search"), `"tool":"vector_search"`},
		{"call id", CallID("c-1"), `"call_id":"c-1"`},
		{"tool count", ToolCount(4), `"tool_count":4`},
		{"duration", Duration(1500 * time.Millisecond), `"duration_ms":1500`},
		{"score", Score(7.25), `"score":"7.2"`},
		{"attempt", Attempt(2), `"attempt":2`},
		{"success", Success(true), `"success":true`},
		{"cached", Cached(false), `"cached":false`},
		{"provider", Provider("ollama"), `"provider":"ollama"`},
		{"reason", Reason("fallback"), `"reason":"fallback"`},
		{"component", Component("planner"), `"component":"planner"`},
		{"str", Str("k", "v"), `"k":"v"`},
		{"int", Int("n", 9), `"n":9`},
		{"error", ErrorField(errors.New("boom")), `"error":"boom"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, buf := testLogger()
			tt.field(logger.Info()).Msg("test")
			if !bytes.Contains(buf.Bytes(), []byte(tt.want)) {
				t.Errorf("expected %s in output: %s", tt.want, buf.String())
			}
		})
	}
}

func TestQueryField_Truncates(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	Query(strings.Repeat("a", 500))(logger.Info()).Msg("test")

	if bytes.Contains(buf.Bytes(), []byte(strings.Repeat("a", 201))) {
		t.Errorf("query field not truncated: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`..."`)) {
		t.Errorf("truncated query should end with ellipsis: %s", buf.String())
	}
}

func TestErrorField_Nil(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	ErrorField(nil)(logger.Info()).Msg("test")
	if bytes.Contains(buf.Bytes(), []byte(`"error"`)) {
		t.Errorf("unexpected error field in output: %s", buf.String())
	}
}

func TestInitAndWrappers(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Debug().Add(RunID("r1")).Msg("debug line")
	Trace().Msg("hidden")
	Warn().Add(Step(1)).Send()

	out := buf.String()
	if !strings.Contains(out, "debug line") || !strings.Contains(out, `"run_id":"r1"`) {
		t.Errorf("Debug() output missing: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("trace should be filtered at debug level: %s", out)
	}

	SetLevel("error")
	Info().Msg("filtered")
	if strings.Contains(buf.String(), "filtered") {
		t.Error("SetLevel(error) did not filter info")
	}
}
