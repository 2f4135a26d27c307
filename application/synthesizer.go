package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/reasoning"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// Limits applied when rendering tool results for the reasoning backend.
const (
	MaxItemChars      = 500
	MaxItemsPerResult = 5
	MaxSources        = 10
)

// SynthesisApology is returned when no answer could be generated.
const SynthesisApology = "I'm sorry, I wasn't able to put together an answer from the information I found. Please try again."

// NoResultsMarker tells the reasoning backend that nothing was retrieved.
const NoResultsMarker = "NO RESULTS: no tool returned any information for this query."

// Synthesizer turns accumulated tool results into an answer and sources.
type Synthesizer struct {
	reasoner reasoning.Service
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(reasoner reasoning.Service) *Synthesizer {
	return &Synthesizer{reasoner: reasoner}
}

// Synthesize writes an answer for the state's query. Feedback from a
// reflection round is passed along when non-empty. It never fails: a
// backend error yields SynthesisApology and no sources.
func (s *Synthesizer) Synthesize(ctx context.Context, state *agent.State, feedback string) (string, []agent.Source) {
	results := state.Results()
	ctx, span := startSpan(ctx, "agent.synthesize",
		attribute.Int("agent.results", len(results)),
		attribute.Bool("agent.feedback", feedback != ""),
	)

	prompt := s.buildPrompt(state, FormatContext(results), feedback)
	answer, err := s.reasoner.Generate(ctx, prompt, SynthesizerSystemPrompt)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = reasoning.ErrEmptyResponse
	}
	if err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Msg("synthesis failed")
		endSpan(span, err)
		return SynthesisApology, []agent.Source{}
	}

	sources := ExtractSources(results)
	span.SetAttributes(attribute.Int("agent.sources", len(sources)))
	endSpan(span, nil)
	return strings.TrimSpace(answer), sources
}

func (s *Synthesizer) buildPrompt(state *agent.State, toolContext, feedback string) string {
	var sb strings.Builder

	sb.WriteString("## Query\n")
	sb.WriteString(state.OriginalQuery)
	sb.WriteString("\n\n")

	if state.SessionContext != "" {
		sb.WriteString("## Conversation Context\n")
		sb.WriteString(truncate(state.SessionContext, 2000))
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Tool Results\n")
	if toolContext == "" {
		sb.WriteString(NoResultsMarker)
		sb.WriteString("\n")
	} else {
		sb.WriteString(toolContext)
	}
	sb.WriteString("\n")

	var hints []string
	for _, step := range state.Steps() {
		if step.DirectAnswer != "" {
			hints = append(hints, step.DirectAnswer)
		}
	}
	if len(hints) > 0 {
		sb.WriteString("## Draft Notes\n")
		for _, h := range hints {
			fmt.Fprintf(&sb, "- %s\n", truncate(h, MaxItemChars))
		}
		sb.WriteString("\n")
	}

	if feedback != "" {
		sb.WriteString("## Reviewer Feedback On The Previous Draft\n")
		sb.WriteString(feedback)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Write the answer now.")
	return sb.String()
}

// FormatContext renders results in order, capping each item's length and
// the item count per result. Failed results become a short notice.
func FormatContext(results []agent.ToolResult) string {
	var sb strings.Builder
	for i, r := range results {
		if !r.Success {
			fmt.Fprintf(&sb, "[%d] %s failed: %s\n\n", i+1, r.ToolName, truncate(r.Error, 200))
			continue
		}
		fmt.Fprintf(&sb, "[%d] %s:\n", i+1, r.ToolName)
		for _, item := range renderItems(r.Data) {
			fmt.Fprintf(&sb, "- %s\n", item)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// collectionKeys are the payload fields recognized as result lists.
var collectionKeys = []string{"documents", "results", "rows", "items"}

func renderItems(data json.RawMessage) []string {
	if len(data) == 0 {
		return []string{"(empty)"}
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return []string{truncate(string(data), MaxItemChars)}
	}

	var items []any
	switch v := decoded.(type) {
	case []any:
		items = v
	case map[string]any:
		for _, key := range collectionKeys {
			if list, ok := v[key].([]any); ok {
				items = list
				break
			}
		}
		if items == nil {
			items = []any{v}
		}
	default:
		items = []any{v}
	}

	if len(items) == 0 {
		return []string{"(no items)"}
	}
	out := make([]string, 0, min(len(items), MaxItemsPerResult))
	for _, item := range items[:min(len(items), MaxItemsPerResult)] {
		out = append(out, truncate(renderItem(item), MaxItemChars))
	}
	return out
}

func renderItem(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		content := firstString(v, "content", "text", "snippet", "body")
		if content == "" {
			break
		}
		if title := firstString(v, "title", "source", "id", "url"); title != "" {
			return title + ": " + content
		}
		return content
	}
	raw, _ := json.Marshal(item)
	return string(raw)
}

// ExtractSources collects document sources from successful results,
// keeping the first occurrence of each source and at most MaxSources.
func ExtractSources(results []agent.ToolResult) []agent.Source {
	sources := make([]agent.Source, 0)
	seen := make(map[string]struct{})

	for _, r := range results {
		if !r.Success || len(r.Data) == 0 {
			continue
		}
		var payload struct {
			Documents []map[string]any `json:"documents"`
		}
		if err := json.Unmarshal(r.Data, &payload); err != nil {
			continue
		}
		for _, doc := range payload.Documents {
			id := firstString(doc, "source", "id", "url")
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			title := firstString(doc, "title")
			if title == "" {
				title = id
			}
			score, _ := doc["score"].(float64)
			sources = append(sources, agent.Source{Source: id, Title: title, Score: score})
			if len(sources) == MaxSources {
				return sources
			}
		}
	}
	return sources
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprint(v)
		}
	}
	return ""
}
