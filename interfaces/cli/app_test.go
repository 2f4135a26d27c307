package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/ragent/domain/agent"
	domainconfig "github.com/felixgeelhaar/ragent/domain/config"
)

const directPlan = `{"reasoning":"general knowledge","tool_calls":[],"should_continue":false,"direct_answer":"Paris"}`

// writeConfig writes a static-provider config with sqlite history and
// returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()

	dir := t.TempDir()
	plan, _ := json.Marshal(directPlan)
	content := fmt.Sprintf(`
name: test-agent
version: "1.0"
description: CLI test agent
reasoning:
  provider: static
  responses:
    - %s
    - "Paris is the capital of France."
cache:
  backend: memory
history:
  backend: sqlite
  dsn: %s
%s`, plan, filepath.Join(dir, "history.db"), extra)

	path := filepath.Join(dir, "ragent.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)
	err := app.ExecuteWithArgs(context.Background(), args)
	return stdout.String(), err
}

func TestApp_Version(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "ragent version") {
		t.Errorf("version output missing 'ragent version', got: %s", out)
	}
}

func TestApp_Help(t *testing.T) {
	out, err := run(t, "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	for _, want := range []string{"Retrieval-augmented", "ask", "validate", "history", "serve"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q, got: %s", want, out)
		}
	}
}

func TestApp_Validate(t *testing.T) {
	path := writeConfig(t, "")

	out, err := run(t, "validate", "-c", path)
	if err != nil {
		t.Fatalf("validate command failed: %v", err)
	}
	for _, want := range []string{"valid", "test-agent", "Reasoning: static", "History: sqlite"} {
		if !strings.Contains(out, want) {
			t.Errorf("validate output missing %q, got: %s", want, out)
		}
	}
}

func TestApp_ValidateInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragent.yaml")
	if err := os.WriteFile(path, []byte("name: \"\"\nversion: \"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, "validate", "-c", path)
	if !errors.Is(err, domainconfig.ErrValidationFailed) {
		t.Fatalf("validate error = %v, want ErrValidationFailed", err)
	}

	if _, err := run(t, "validate"); err == nil {
		t.Error("validate without -c should fail")
	}
}

func TestApp_ValidateStrictKeys(t *testing.T) {
	path := writeConfig(t, "plugins: []\n")

	if _, err := run(t, "validate", "-c", path); err != nil {
		t.Fatalf("validate without --strict-keys failed: %v", err)
	}
	if _, err := run(t, "validate", "-c", path, "--strict-keys"); !errors.Is(err, domainconfig.ErrInvalidFormat) {
		t.Errorf("validate --strict-keys error = %v, want ErrInvalidFormat", err)
	}
}

func TestApp_Schema(t *testing.T) {
	out, err := run(t, "validate", "--schema")
	if err != nil {
		t.Fatalf("validate --schema failed: %v", err)
	}
	if !strings.Contains(out, "$schema") || !strings.Contains(out, "ragent Configuration") {
		t.Errorf("unexpected schema output: %s", out)
	}

	target := filepath.Join(t.TempDir(), "schema.json")
	if _, err := run(t, "export-schema", "-o", target); err != nil {
		t.Fatalf("export-schema failed: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("schema file not written: %v", err)
	}
	if !json.Valid(data) {
		t.Error("exported schema is not valid JSON")
	}
}

func TestApp_Inspect(t *testing.T) {
	path := writeConfig(t, "")

	out, err := run(t, "inspect", "-c", path)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	for _, want := range []string{"test-agent", "CLI test agent", "Max Iterations: 5", "Provider: static"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q, got: %s", want, out)
		}
	}

	out, err = run(t, "inspect", "-c", path, "--section", "agent", "--json")
	if err != nil {
		t.Fatalf("inspect --json failed: %v", err)
	}
	var view agentView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("inspect --json output is not an agent view: %v\n%s", err, out)
	}
	if view.MaxIterations != 5 || view.ToolTimeout != "30s" {
		t.Errorf("agent view = %+v", view)
	}

	if _, err := run(t, "inspect", "-c", path, "--section", "bogus"); err == nil {
		t.Error("inspect with unknown section should fail")
	}
}

func TestApp_InspectMasksSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragent.yaml")
	content := "name: a\nversion: '1'\nreasoning:\n  provider: openai\n  api_key: sk-very-secret\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "inspect", "-c", path, "--section", "reasoning", "--json")
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if strings.Contains(out, "sk-very-secret") {
		t.Errorf("inspect leaked the api key: %s", out)
	}
}

func TestApp_AskAndHistory(t *testing.T) {
	path := writeConfig(t, "")

	out, err := run(t, "ask", "-c", path, "--json", "--session", "geography quiz", "What is the capital of France?")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	var result agent.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("ask --json output is not a result: %v\n%s", err, out)
	}
	if !result.Success || result.Answer != "Paris is the capital of France." {
		t.Errorf("result = %+v", result)
	}
	if result.RunID == "" {
		t.Fatal("result has no run id")
	}

	out, err = run(t, "history", "-c", path)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, result.RunID) || !strings.Contains(out, "capital of France") {
		t.Errorf("history output missing the run, got: %s", out)
	}

	out, err = run(t, "history", "show", result.RunID, "-c", path)
	if err != nil {
		t.Fatalf("history show failed: %v", err)
	}
	for _, want := range []string{"Session: geography quiz", "Paris is the capital of France."} {
		if !strings.Contains(out, want) {
			t.Errorf("history show output missing %q, got: %s", want, out)
		}
	}

	out, err = run(t, "history", "-c", path, "--status", "failed")
	if err != nil {
		t.Fatalf("history --status failed: %v", err)
	}
	if !strings.Contains(out, "No runs recorded") {
		t.Errorf("status filter output = %s", out)
	}

	if _, err := run(t, "history", "-c", path, "--status", "exploded"); err == nil {
		t.Error("history with an unknown status should fail")
	}
}

func TestApp_AskText(t *testing.T) {
	path := writeConfig(t, "")

	out, err := run(t, "ask", "-c", path, "--no-reflection", "--max-iterations", "1", "--metrics", "capital", "of", "France?")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	for _, want := range []string{"Paris is the capital of France.", "steps: 1", "Metrics:", "ragent.runs"} {
		if !strings.Contains(out, want) {
			t.Errorf("ask output missing %q, got: %s", want, out)
		}
	}
}

func TestApp_AskNoQuery(t *testing.T) {
	path := writeConfig(t, "")

	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)
	app.root.SetIn(strings.NewReader("   \n"))
	if err := app.ExecuteWithArgs(context.Background(), []string{"ask", "-c", path}); err == nil {
		t.Error("ask with empty stdin should fail")
	}
}

func TestApp_HistoryDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragent.yaml")
	content := "name: a\nversion: '1'\nreasoning:\n  provider: static\n  responses: [ok]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "history", "-c", path); !errors.Is(err, ErrHistoryDisabled) {
		t.Errorf("history error = %v, want ErrHistoryDisabled", err)
	}
}

func TestApp_Tools(t *testing.T) {
	path := writeConfig(t, "")

	out, err := run(t, "tools", "-c", path)
	if err != nil {
		t.Fatalf("tools failed: %v", err)
	}
	if !strings.Contains(out, "No tools configured") {
		t.Errorf("tools output = %s", out)
	}
}

func TestApp_ToolsShowsTags(t *testing.T) {
	path := writeConfig(t, `tools:
  document_fetch:
    allowed_prefixes:
      - https://go.dev/
`)

	out, err := run(t, "tools", "-c", path)
	if err != nil {
		t.Fatalf("tools failed: %v", err)
	}
	for _, want := range []string{"Tools (1):", "document_fetch", "cacheable", "tags: retrieval, http"} {
		if !strings.Contains(out, want) {
			t.Errorf("tools output missing %q:\n%s", want, out)
		}
	}
}

func TestApp_ServeRejectsUnknownTransport(t *testing.T) {
	if _, err := run(t, "serve", "--transport", "carrier-pigeon"); err == nil {
		t.Error("serve with an unknown transport should fail")
	}
}
