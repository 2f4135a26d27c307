package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

func TestParseReflection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		content    string
		wantScore  float64
		wantIssues int
		wantErr    error
	}{
		{
			name:       "JSON",
			content:    `{"score": 8.5, "issues": ["missing date"], "suggestions": [], "reasoning": "mostly right"}`,
			wantScore:  8.5,
			wantIssues: 1,
		},
		{
			name:      "fenced JSON",
			content:   "```json\n{\"score\": 6}\n```",
			wantScore: 6,
		},
		{
			name:      "string score",
			content:   `{"score": "7/10"}`,
			wantScore: 7,
		},
		{
			name:      "malformed JSON uses first number",
			content:   `{"score": 4, "issues": [unquoted]}`,
			wantScore: 4,
		},
		{
			name:      "prose",
			content:   "I would give this answer a 3.5 out of 10.",
			wantScore: 3.5,
		},
		{
			name:    "no number",
			content: "looks fine to me",
			wantErr: ErrUnparseableReflection,
		},
		{
			name:    "out of range",
			content: `{"score": 12}`,
			wantErr: agent.ErrScoreOutOfRange,
		},
		{
			name:    "negative prose",
			content: "score: -1",
			wantErr: agent.ErrScoreOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseReflection(tt.content)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("parseReflection() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseReflection() error = %v", err)
			}
			if got.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
			if len(got.Issues) != tt.wantIssues {
				t.Errorf("Issues = %v, want %d entries", got.Issues, tt.wantIssues)
			}
			if got.NeedsImprovement {
				t.Error("NeedsImprovement set by the scorer")
			}
		})
	}
}

func TestLLMReflector_Prompt(t *testing.T) {
	t.Parallel()

	reasoner := newScriptedReasoner().reviews(`{"score": 9}`)
	r := NewLLMReflector(reasoner)

	got, err := r.Reflect(context.Background(), "what is go?", "A language.", "")
	if err != nil {
		t.Fatalf("Reflect() error = %v", err)
	}
	if got.Score != 9 {
		t.Errorf("Score = %v, want 9", got.Score)
	}

	prompt := reasoner.prompt("reflector", 0)
	for _, s := range []string{"what is go?", "A language.", NoResultsMarker} {
		if !strings.Contains(prompt, s) {
			t.Errorf("prompt missing %q", s)
		}
	}
}

func TestLLMReflector_BackendError(t *testing.T) {
	t.Parallel()

	r := NewLLMReflector(newScriptedReasoner().fail("reflector", errors.New("unavailable")))
	if _, err := r.Reflect(context.Background(), "q", "a", "ctx"); err == nil {
		t.Error("Reflect() error = nil, want error")
	}
}

func TestNoopReflector(t *testing.T) {
	t.Parallel()

	got, err := NoopReflector{}.Reflect(context.Background(), "q", "a", "")
	if err != nil {
		t.Fatalf("Reflect() error = %v", err)
	}
	if got.Score != agent.MaxScore {
		t.Errorf("Score = %v, want %v", got.Score, agent.MaxScore)
	}
	if got.Judge(7).NeedsImprovement {
		t.Error("perfect score needs improvement")
	}
}
