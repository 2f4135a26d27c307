package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/config"
)

func assertFallback(t *testing.T, plan Plan, query string) {
	t.Helper()

	if !plan.Fallback {
		t.Error("Fallback = false, want true")
	}
	if len(plan.ToolCalls) != 1 {
		t.Fatalf("len(ToolCalls) = %d, want 1", len(plan.ToolCalls))
	}
	call := plan.ToolCalls[0]
	if call.ToolName != config.DefaultFallbackTool {
		t.Errorf("ToolName = %q, want %q", call.ToolName, config.DefaultFallbackTool)
	}
	if call.Arguments["query"] != query {
		t.Errorf("query argument = %v, want %q", call.Arguments["query"], query)
	}
	if call.Arguments["top_k"] != FallbackTopK {
		t.Errorf("top_k argument = %v, want %d", call.Arguments["top_k"], FallbackTopK)
	}
	if plan.Reasoning != FallbackReasoning || call.Reasoning != FallbackReasoning {
		t.Errorf("Reasoning = %q / %q, want %q", plan.Reasoning, call.Reasoning, FallbackReasoning)
	}
	if !plan.ShouldContinue {
		t.Error("ShouldContinue = false, want true")
	}
}

func TestPlanner_Fallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		reasoner  func() *scriptedReasoner
		schemaErr error
		selection config.ToolSelection
		reason    string
		planCalls int
	}{
		{
			name:      "non-JSON reply",
			reasoner:  func() *scriptedReasoner { return newScriptedReasoner().plans("I think we should search.") },
			reason:    "parse_error",
			planCalls: 1,
		},
		{
			name:      "empty reply",
			reasoner:  func() *scriptedReasoner { return newScriptedReasoner().plans("   ") },
			reason:    "parse_error",
			planCalls: 1,
		},
		{
			name:      "null reply",
			reasoner:  func() *scriptedReasoner { return newScriptedReasoner().plans("null") },
			reason:    "parse_error",
			planCalls: 1,
		},
		{
			name:      "object without plan fields",
			reasoner:  func() *scriptedReasoner { return newScriptedReasoner().plans(`{}`) },
			reason:    "parse_error",
			planCalls: 1,
		},
		{
			name:      "JSON array reply",
			reasoner:  func() *scriptedReasoner { return newScriptedReasoner().plans(`["search"]`) },
			reason:    "parse_error",
			planCalls: 1,
		},
		{
			name: "reasoning error",
			reasoner: func() *scriptedReasoner {
				return newScriptedReasoner().fail("planner", errors.New("rate limited"))
			},
			reason:    "reasoning_error",
			planCalls: 1,
		},
		{
			name:      "catalog error",
			reasoner:  func() *scriptedReasoner { return newScriptedReasoner().plans(planJSON(true, "search")) },
			schemaErr: errors.New("registry offline"),
			reason:    "catalog_error",
		},
		{
			name:      "fallback only mode",
			reasoner:  func() *scriptedReasoner { return newScriptedReasoner().plans(planJSON(true, "search")) },
			selection: config.ToolSelectionFallbackOnly,
			reason:    "fallback_only",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reasoner := tt.reasoner()
			tools := newStubTools().with("search", okPayload(`{}`))
			tools.schemaErr = tt.schemaErr
			opts := []config.AgentOption{}
			if tt.selection != "" {
				opts = append(opts, config.WithToolSelection(tt.selection))
			}
			metrics := newRecordingMetrics()
			planner := NewPlanner(reasoner, tools, testAgentConfig(t, opts...), metrics)

			plan, err := planner.Plan(context.Background(), agent.NewState("what is go?", ""))
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			assertFallback(t, plan, "what is go?")

			if got := reasoner.count("planner"); got != tt.planCalls {
				t.Errorf("reasoner called %d times, want %d", got, tt.planCalls)
			}
			if len(metrics.fallbacks) != 1 || metrics.fallbacks[0] != tt.reason {
				t.Errorf("fallback reasons = %v, want [%s]", metrics.fallbacks, tt.reason)
			}
		})
	}
}

func TestPlanner_FallbackIsDeterministic(t *testing.T) {
	t.Parallel()

	reasoner := newScriptedReasoner().fail("planner", errors.New("always down"))
	planner := NewPlanner(reasoner, newStubTools(), testAgentConfig(t), nil)

	for range 5 {
		plan, err := planner.Plan(context.Background(), agent.NewState("q", ""))
		if err != nil {
			t.Fatalf("Plan() error = %v", err)
		}
		assertFallback(t, plan, "q")
	}
}

func TestPlanner_ParsesReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		reply        string
		wantTools    []string
		wantContinue bool
		wantDirect   string
	}{
		{
			name:         "plain JSON",
			reply:        `{"reasoning":"look it up","tool_calls":[{"tool_name":"search","arguments":{"query":"go"}}],"should_continue":false}`,
			wantTools:    []string{"search"},
			wantContinue: false,
		},
		{
			name:         "fenced JSON",
			reply:        "```json\n{\"reasoning\":\"r\",\"tool_calls\":[{\"tool_name\":\"search\",\"arguments\":{}}]}\n```",
			wantTools:    []string{"search"},
			wantContinue: true,
		},
		{
			name:         "bare fence",
			reply:        "```\n{\"tool_calls\":[{\"tool_name\":\"lookup\"}],\"should_continue\":true}\n```",
			wantTools:    []string{"lookup"},
			wantContinue: true,
		},
		{
			name:         "entries without tool name are dropped",
			reply:        `{"tool_calls":[{"arguments":{"q":1}},{"tool_name":""},{"tool_name":"search"},"junk"]}`,
			wantTools:    []string{"search"},
			wantContinue: true,
		},
		{
			name:         "malformed arguments keep the call",
			reply:        `{"tool_calls":[{"tool_name":"search","arguments":"oops"}]}`,
			wantTools:    []string{"search"},
			wantContinue: true,
		},
		{
			name:         "single plan field is enough",
			reply:        `{"should_continue":false}`,
			wantTools:    []string{},
			wantContinue: false,
		},
		{
			name:         "direct answer without calls",
			reply:        `{"reasoning":"known","tool_calls":[],"should_continue":false,"direct_answer":"Go is a language."}`,
			wantTools:    []string{},
			wantContinue: false,
			wantDirect:   "Go is a language.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reasoner := newScriptedReasoner().plans(tt.reply)
			planner := NewPlanner(reasoner, newStubTools(), testAgentConfig(t), nil)

			plan, err := planner.Plan(context.Background(), agent.NewState("q", ""))
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if plan.Fallback {
				t.Fatal("Plan() fell back, want parsed plan")
			}

			got := make([]string, 0, len(plan.ToolCalls))
			for _, c := range plan.ToolCalls {
				got = append(got, c.ToolName)
			}
			if strings.Join(got, ",") != strings.Join(tt.wantTools, ",") {
				t.Errorf("tools = %v, want %v", got, tt.wantTools)
			}
			if plan.ShouldContinue != tt.wantContinue {
				t.Errorf("ShouldContinue = %v, want %v", plan.ShouldContinue, tt.wantContinue)
			}
			if plan.DirectAnswer != tt.wantDirect {
				t.Errorf("DirectAnswer = %q, want %q", plan.DirectAnswer, tt.wantDirect)
			}
		})
	}
}

func TestPlanner_MalformedArgumentsBecomeEmpty(t *testing.T) {
	t.Parallel()

	reply := `{"tool_calls":[{"tool_name":"search","arguments":"oops"},{"tool_name":"lookup","arguments":null},{"tool_name":"fetch","arguments":[1,2]}]}`
	planner := NewPlanner(newScriptedReasoner().plans(reply), newStubTools(), testAgentConfig(t), nil)

	plan, err := planner.Plan(context.Background(), agent.NewState("q", ""))
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(plan.ToolCalls) != 3 {
		t.Fatalf("len(ToolCalls) = %d, want 3", len(plan.ToolCalls))
	}
	for _, c := range plan.ToolCalls {
		if c.Arguments == nil || len(c.Arguments) != 0 {
			t.Errorf("%s arguments = %v, want empty map", c.ToolName, c.Arguments)
		}
	}
}

func TestPlanner_FreshCallIDs(t *testing.T) {
	t.Parallel()

	reply := `{"tool_calls":[{"tool_name":"search"},{"tool_name":"search"}]}`
	planner := NewPlanner(newScriptedReasoner().plans(reply), newStubTools(), testAgentConfig(t), nil)

	seen := make(map[string]bool)
	for range 3 {
		plan, err := planner.Plan(context.Background(), agent.NewState("q", ""))
		if err != nil {
			t.Fatalf("Plan() error = %v", err)
		}
		for _, c := range plan.ToolCalls {
			if c.CallID == "" {
				t.Fatal("empty call id")
			}
			if seen[c.CallID] {
				t.Fatalf("call id %s reused", c.CallID)
			}
			seen[c.CallID] = true
		}
	}
}

func TestPlanner_PromptSummarizesHistory(t *testing.T) {
	t.Parallel()

	reasoner := newScriptedReasoner().plans(planJSON(false))
	tools := newStubTools().with("search", okPayload(`{}`))
	planner := NewPlanner(reasoner, tools, testAgentConfig(t, config.WithMaxIterations(3)), nil)

	state := agent.NewState("who wrote go?", "we talked about compilers")
	ok := agent.NewToolCall("search", map[string]any{"query": "go"}, "")
	bad := agent.NewToolCall("wiki", nil, "")
	err := state.AppendStep(agent.Step{
		Number:    1,
		Reasoning: "search the docs",
		ToolCalls: []agent.ToolCall{ok, bad},
		ToolResults: []agent.ToolResult{
			agent.Succeeded(ok, json.RawMessage(`{"documents":[{"content":"SECRET PAYLOAD"}]}`), 0),
			agent.Failed(bad, "wiki down", 0),
		},
		ShouldContinue: true,
	})
	if err != nil {
		t.Fatalf("AppendStep() error = %v", err)
	}

	if _, err := planner.Plan(context.Background(), state); err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	prompt := reasoner.prompt("planner", 0)
	for _, want := range []string{
		"who wrote go?",
		"we talked about compilers",
		"- search: test tool search",
		"Step 1: search the docs",
		"search: ok",
		"wiki: failed",
		"step 2 of at most 3",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "SECRET PAYLOAD") {
		t.Error("prompt leaks tool payloads")
	}
}

func TestPlanner_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	planner := NewPlanner(newScriptedReasoner().plans(planJSON(true, "search")), newStubTools(), testAgentConfig(t), nil)
	if _, err := planner.Plan(ctx, agent.NewState("q", "")); !errors.Is(err, context.Canceled) {
		t.Errorf("Plan() error = %v, want context.Canceled", err)
	}
}
