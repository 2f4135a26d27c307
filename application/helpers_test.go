package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/domain/tool"
)

// Test helpers

// reply is one scripted answer from the reasoning backend.
type reply struct {
	text string
	err  error
}

// scriptedReasoner answers by role, chosen from the system prompt. Each
// role replays its script in order and repeats the last entry once the
// script runs out.
type scriptedReasoner struct {
	mu      sync.Mutex
	scripts map[string][]reply
	calls   map[string]int
	prompts map[string][]string
}

func newScriptedReasoner() *scriptedReasoner {
	return &scriptedReasoner{
		scripts: make(map[string][]reply),
		calls:   make(map[string]int),
		prompts: make(map[string][]string),
	}
}

func (r *scriptedReasoner) plans(replies ...string) *scriptedReasoner {
	return r.script("planner", replies...)
}

func (r *scriptedReasoner) answers(replies ...string) *scriptedReasoner {
	return r.script("synthesizer", replies...)
}

func (r *scriptedReasoner) reviews(replies ...string) *scriptedReasoner {
	return r.script("reflector", replies...)
}

func (r *scriptedReasoner) fail(role string, err error) *scriptedReasoner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[role] = append(r.scripts[role], reply{err: err})
	return r
}

func (r *scriptedReasoner) script(role string, replies ...string) *scriptedReasoner {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, text := range replies {
		r.scripts[role] = append(r.scripts[role], reply{text: text})
	}
	return r
}

func (r *scriptedReasoner) count(role string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[role]
}

func (r *scriptedReasoner) prompt(role string, i int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= len(r.prompts[role]) {
		return ""
	}
	return r.prompts[role][i]
}

func (r *scriptedReasoner) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	role := "unknown"
	switch systemPrompt {
	case PlannerSystemPrompt:
		role = "planner"
	case SynthesizerSystemPrompt:
		role = "synthesizer"
	case ReflectorSystemPrompt:
		role = "reflector"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.calls[role]
	r.calls[role]++
	r.prompts[role] = append(r.prompts[role], prompt)

	script := r.scripts[role]
	if len(script) == 0 {
		return "", errors.New("no scripted reply for " + role)
	}
	out := script[min(n, len(script)-1)]
	return out.text, out.err
}

type handlerFunc func(ctx context.Context, args map[string]any) (tool.Result, error)

// stubTools is a tool.Service over plain handler functions. It records
// every invocation and the peak number of concurrent invocations.
type stubTools struct {
	handlers  map[string]handlerFunc
	schemaErr error

	mu    sync.Mutex
	calls []string

	active atomic.Int32
	peak   atomic.Int32
}

func newStubTools() *stubTools {
	return &stubTools{handlers: make(map[string]handlerFunc)}
}

func (s *stubTools) with(name string, h handlerFunc) *stubTools {
	s.handlers[name] = h
	return s
}

func (s *stubTools) invoked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubTools) Schemas(context.Context) ([]tool.Descriptor, error) {
	if s.schemaErr != nil {
		return nil, s.schemaErr
	}
	out := make([]tool.Descriptor, 0, len(s.handlers))
	for name := range s.handlers {
		out = append(out, tool.Descriptor{Name: name, Description: "test tool " + name})
	}
	return out, nil
}

func (s *stubTools) Execute(ctx context.Context, name string, args map[string]any) (tool.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()

	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	h, ok := s.handlers[name]
	if !ok {
		return tool.Result{}, tool.ErrToolNotFound
	}
	return h(ctx, args)
}

func documents(docs ...map[string]any) handlerFunc {
	return func(context.Context, map[string]any) (tool.Result, error) {
		return tool.JSONResult(map[string]any{"documents": docs})
	}
}

func okPayload(payload string) handlerFunc {
	return func(context.Context, map[string]any) (tool.Result, error) {
		return tool.NewResult(json.RawMessage(payload)), nil
	}
}

func sleepy(d time.Duration) handlerFunc {
	return func(ctx context.Context, _ map[string]any) (tool.Result, error) {
		select {
		case <-time.After(d):
			return tool.NewResult(json.RawMessage(`{"ok":true}`)), nil
		case <-ctx.Done():
			return tool.Result{}, ctx.Err()
		}
	}
}

// recordingMetrics counts what the agent reports.
type recordingMetrics struct {
	mu          sync.Mutex
	tools       map[string]int
	fallbacks   []string
	reflections []float64
	runs        []agent.Status
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{tools: make(map[string]int)}
}

func (m *recordingMetrics) RecordToolExecution(_ context.Context, name string, _ bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools[name]++
}

func (m *recordingMetrics) RecordPlannerFallback(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks = append(m.fallbacks, reason)
}

func (m *recordingMetrics) RecordReflection(_ context.Context, score float64, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reflections = append(m.reflections, score)
}

func (m *recordingMetrics) RecordRun(_ context.Context, status agent.Status, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, status)
}

func testAgentConfig(t *testing.T, opts ...config.AgentOption) config.AgentConfig {
	t.Helper()
	cfg, err := config.NewAgentConfig(opts...)
	if err != nil {
		t.Fatalf("NewAgentConfig() error = %v", err)
	}
	return cfg
}

func planJSON(continueLoop bool, calls ...string) string {
	type call struct {
		ToolName  string         `json:"tool_name"`
		Arguments map[string]any `json:"arguments"`
	}
	body := struct {
		Reasoning      string `json:"reasoning"`
		ToolCalls      []call `json:"tool_calls"`
		ShouldContinue bool   `json:"should_continue"`
	}{Reasoning: "scripted plan", ShouldContinue: continueLoop}
	for _, name := range calls {
		body.ToolCalls = append(body.ToolCalls, call{ToolName: name, Arguments: map[string]any{"query": "q"}})
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}
