package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/domain/reasoning"
	"github.com/felixgeelhaar/ragent/domain/tool"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// FallbackTopK is the result count requested from the fallback tool.
const FallbackTopK = 10

// FallbackReasoning marks steps produced by the fallback policy.
const FallbackReasoning = "fallback"

// Plan is the planner's decision for one step.
type Plan struct {
	ToolCalls      []agent.ToolCall
	Reasoning      string
	ShouldContinue bool
	DirectAnswer   string
	Fallback       bool
}

// Planner chooses the next batch of tool calls.
type Planner struct {
	reasoner reasoning.Service
	tools    tool.Service
	config   config.AgentConfig
	metrics  Metrics
}

// NewPlanner creates a planner.
func NewPlanner(reasoner reasoning.Service, tools tool.Service, cfg config.AgentConfig, metrics Metrics) *Planner {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Planner{
		reasoner: reasoner,
		tools:    tools,
		config:   cfg,
		metrics:  metrics,
	}
}

// Plan decides the next step. Catalog errors, reasoning errors, and
// unparseable replies all fall back to a single call of the fallback tool.
// It only returns an error when ctx is done.
func (p *Planner) Plan(ctx context.Context, state *agent.State) (Plan, error) {
	ctx, span := startSpan(ctx, "agent.plan", attribute.Int("agent.step", state.NextStepNumber()))
	plan, err := p.plan(ctx, state)
	span.SetAttributes(
		attribute.Int("agent.tool_calls", len(plan.ToolCalls)),
		attribute.Bool("agent.fallback", plan.Fallback),
	)
	endSpan(span, err)
	return plan, err
}

func (p *Planner) plan(ctx context.Context, state *agent.State) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}

	if p.config.ToolSelection == config.ToolSelectionFallbackOnly || p.reasoner == nil {
		return p.fallback(ctx, state, "fallback_only"), nil
	}

	catalog, err := p.tools.Schemas(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Plan{}, ctxErr
		}
		logging.Warn().Add(logging.ErrorField(err)).Msg("tool catalog unavailable")
		return p.fallback(ctx, state, "catalog_error"), nil
	}

	reply, err := p.reasoner.Generate(ctx, p.buildPrompt(state, catalog), PlannerSystemPrompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Plan{}, ctxErr
		}
		logging.Warn().
			Add(logging.Step(state.NextStepNumber())).
			Add(logging.ErrorField(err)).
			Msg("planner reasoning failed")
		return p.fallback(ctx, state, "reasoning_error"), nil
	}

	plan, err := parsePlan(reply)
	if err != nil {
		logging.Warn().
			Add(logging.Step(state.NextStepNumber())).
			Add(logging.ErrorField(err)).
			Msg("planner reply unparseable")
		return p.fallback(ctx, state, "parse_error"), nil
	}

	logging.Debug().
		Add(logging.Step(state.NextStepNumber())).
		Add(logging.ToolCount(len(plan.ToolCalls))).
		Add(logging.Str("should_continue", fmt.Sprint(plan.ShouldContinue))).
		Msg("plan received")
	return plan, nil
}

func (p *Planner) fallback(ctx context.Context, state *agent.State, reason string) Plan {
	p.metrics.RecordPlannerFallback(ctx, reason)
	logging.Info().
		Add(logging.Step(state.NextStepNumber())).
		Add(logging.ToolName(p.config.FallbackTool)).
		Add(logging.Reason(reason)).
		Msg("using fallback tool")

	call := agent.NewToolCall(p.config.FallbackTool, map[string]any{
		"query": state.OriginalQuery,
		"top_k": FallbackTopK,
	}, FallbackReasoning)

	return Plan{
		ToolCalls:      []agent.ToolCall{call},
		Reasoning:      FallbackReasoning,
		ShouldContinue: true,
		Fallback:       true,
	}
}

func (p *Planner) buildPrompt(state *agent.State, catalog []tool.Descriptor) string {
	var sb strings.Builder

	sb.WriteString("## Query\n")
	sb.WriteString(state.OriginalQuery)
	sb.WriteString("\n\n")

	if state.SessionContext != "" {
		sb.WriteString("## Conversation Context\n")
		sb.WriteString(truncate(state.SessionContext, 2000))
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Available Tools\n")
	if len(catalog) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, d := range catalog {
		fmt.Fprintf(&sb, "- %s: %s\n", d.Name, d.Description)
		if !d.Parameters.IsEmpty() {
			fmt.Fprintf(&sb, "  parameters: %s\n", d.Parameters.Raw())
		}
	}
	sb.WriteString("\n")

	steps := state.Steps()
	if len(steps) > 0 {
		sb.WriteString("## Previous Steps\n")
		for _, step := range steps {
			fmt.Fprintf(&sb, "Step %d: %s\n", step.Number, truncate(step.Reasoning, 300))
			for _, r := range step.ToolResults {
				marker := "ok"
				if !r.Success {
					marker = "failed"
				}
				fmt.Fprintf(&sb, "  - %s: %s\n", r.ToolName, marker)
			}
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "This is step %d of at most %d. What should be done next? Respond with JSON only.",
		state.NextStepNumber(), p.config.MaxIterations)
	return sb.String()
}

type planReply struct {
	Reasoning      string            `json:"reasoning"`
	ToolCalls      []json.RawMessage `json:"tool_calls"`
	ShouldContinue *bool             `json:"should_continue"`
	DirectAnswer   string            `json:"direct_answer"`
}

type planCall struct {
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
}

var (
	errEmptyReply   = errors.New("empty reply")
	errNoPlanFields = errors.New("reply carries no plan fields")
	planReplyFields = []string{"reasoning", "tool_calls", "should_continue", "direct_answer"}
)

// parsePlan decodes a planner reply. A reply must be an object with at
// least one plan field. Entries without a tool name are dropped; unusable
// arguments become an empty map.
func parsePlan(content string) (Plan, error) {
	content = extractObject(content)
	if content == "" {
		return Plan{}, errEmptyReply
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return Plan{}, fmt.Errorf("invalid JSON response: %w (content: %s)", err, truncate(content, 200))
	}
	if !slices.ContainsFunc(planReplyFields, func(k string) bool { _, ok := fields[k]; return ok }) {
		return Plan{}, fmt.Errorf("%w (content: %s)", errNoPlanFields, truncate(content, 200))
	}

	var reply planReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return Plan{}, fmt.Errorf("invalid JSON response: %w (content: %s)", err, truncate(content, 200))
	}

	plan := Plan{
		Reasoning:      reply.Reasoning,
		ShouldContinue: true,
		DirectAnswer:   reply.DirectAnswer,
		ToolCalls:      make([]agent.ToolCall, 0, len(reply.ToolCalls)),
	}
	if reply.ShouldContinue != nil {
		plan.ShouldContinue = *reply.ShouldContinue
	}

	for _, raw := range reply.ToolCalls {
		var c planCall
		if err := json.Unmarshal(raw, &c); err != nil || strings.TrimSpace(c.ToolName) == "" {
			continue
		}
		args := map[string]any{}
		if len(c.Arguments) > 0 {
			if err := json.Unmarshal(c.Arguments, &args); err != nil || args == nil {
				args = map[string]any{}
			}
		}
		plan.ToolCalls = append(plan.ToolCalls, agent.NewToolCall(strings.TrimSpace(c.ToolName), args, reply.Reasoning))
	}
	return plan, nil
}
