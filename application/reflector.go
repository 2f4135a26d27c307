package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/reasoning"
)

// Reflector scores a draft answer. It does not decide whether to retry.
type Reflector interface {
	Reflect(ctx context.Context, query, answer, toolContext string) (agent.Reflection, error)
}

// ErrUnparseableReflection indicates the reviewer reply carried no score.
var ErrUnparseableReflection = errors.New("reflection reply has no score")

// LLMReflector grades answers with the reasoning backend.
type LLMReflector struct {
	reasoner reasoning.Service
}

// NewLLMReflector creates a reflector backed by the reasoning service.
func NewLLMReflector(reasoner reasoning.Service) *LLMReflector {
	return &LLMReflector{reasoner: reasoner}
}

// Reflect asks the backend to grade the answer against the context.
func (r *LLMReflector) Reflect(ctx context.Context, query, answer, toolContext string) (agent.Reflection, error) {
	var sb strings.Builder
	sb.WriteString("## Query\n")
	sb.WriteString(query)
	sb.WriteString("\n\n## Context\n")
	if toolContext == "" {
		sb.WriteString(NoResultsMarker)
	} else {
		sb.WriteString(truncate(toolContext, 6000))
	}
	sb.WriteString("\n\n## Answer\n")
	sb.WriteString(answer)
	sb.WriteString("\n\nGrade the answer. Respond with JSON only.")

	reply, err := r.reasoner.Generate(ctx, sb.String(), ReflectorSystemPrompt)
	if err != nil {
		return agent.Reflection{}, fmt.Errorf("reflection failed: %w", err)
	}
	return parseReflection(reply)
}

// NoopReflector accepts every answer with the maximum score.
type NoopReflector struct{}

// Reflect returns a perfect score.
func (NoopReflector) Reflect(context.Context, string, string, string) (agent.Reflection, error) {
	return agent.NewReflection(agent.MaxScore, nil, nil, "reflection disabled")
}

type reflectionReply struct {
	Score       json.RawMessage `json:"score"`
	Issues      []string        `json:"issues"`
	Suggestions []string        `json:"suggestions"`
	Reasoning   string          `json:"reasoning"`
}

var scorePattern = regexp.MustCompile(`[-+]?[0-9]*\.?[0-9]+`)

// parseReflection decodes the reviewer reply. When the reply is not JSON the
// first number in the text is taken as the score.
func parseReflection(content string) (agent.Reflection, error) {
	var reply reflectionReply
	if err := json.Unmarshal([]byte(extractObject(content)), &reply); err == nil && len(reply.Score) > 0 {
		score, err := parseScore(reply.Score)
		if err != nil {
			return agent.Reflection{}, err
		}
		return agent.NewReflection(score, reply.Issues, reply.Suggestions, reply.Reasoning)
	}

	match := scorePattern.FindString(content)
	if match == "" {
		return agent.Reflection{}, fmt.Errorf("%w: %s", ErrUnparseableReflection, truncate(content, 200))
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return agent.Reflection{}, fmt.Errorf("%w: %v", ErrUnparseableReflection, err)
	}
	return agent.NewReflection(score, nil, nil, strings.TrimSpace(content))
}

func parseScore(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if m := scorePattern.FindString(s); m != "" {
			return strconv.ParseFloat(m, 64)
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnparseableReflection, raw)
}
