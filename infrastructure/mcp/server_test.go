package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/tool"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/memory"
)

type fakeAsker struct {
	query, session string
}

func (a *fakeAsker) Run(_ context.Context, query, sessionContext string) agent.Result {
	a.query, a.session = query, sessionContext
	return agent.Result{
		RunID:     "run-1",
		Success:   true,
		Answer:    "Go is a programming language.",
		Sources:   []agent.Source{{Source: "go.dev", Score: 0.9}},
		ToolsUsed: []string{"vector_search"},
	}
}

func TestNewServer_ToolNames(t *testing.T) {
	t.Parallel()

	registry := memory.NewToolRegistry()
	for _, name := range []string{"vector_search", AskToolName} {
		_ = registry.Register(tool.NewBuilder(name).
			WithHandler(func(context.Context, json.RawMessage) (tool.Result, error) {
				return tool.NewResult(json.RawMessage(`{}`)), nil
			}).
			MustBuild())
	}

	srv := NewServer(ServerConfig{Name: "ragent", Version: "test", Asker: &fakeAsker{}, Registry: registry})
	want := []string{AskToolName, "vector_search"}
	if got := srv.ToolNames(); !slices.Equal(got, want) {
		t.Errorf("ToolNames() = %v, want %v", got, want)
	}

	bare := NewServer(ServerConfig{Name: "ragent", Version: "test"})
	if len(bare.ToolNames()) != 0 {
		t.Errorf("ToolNames() = %v, want none", bare.ToolNames())
	}
}

func TestServer_handleAsk(t *testing.T) {
	t.Parallel()

	asker := &fakeAsker{}
	srv := NewServer(ServerConfig{Name: "ragent", Version: "test", Asker: asker})

	out, err := srv.handleAsk(context.Background(), json.RawMessage(`{"query":"what is go?","session_context":"user prefers short answers"}`))
	if err != nil {
		t.Fatalf("handleAsk() error = %v", err)
	}
	if asker.query != "what is go?" || asker.session != "user prefers short answers" {
		t.Errorf("asker got (%q, %q)", asker.query, asker.session)
	}

	var result agent.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not a result: %v", err)
	}
	if !result.Success || result.Answer != "Go is a programming language." || len(result.Sources) != 1 {
		t.Errorf("result = %+v", result)
	}

	for _, input := range []string{``, `{}`, `{"query":"   "}`, `not json`} {
		if _, err := srv.handleAsk(context.Background(), json.RawMessage(input)); !errors.Is(err, tool.ErrInvalidInput) {
			t.Errorf("handleAsk(%q) error = %v, want ErrInvalidInput", input, err)
		}
	}
}
