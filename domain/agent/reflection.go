package agent

import (
	"fmt"
	"math"
	"strings"
)

// Score bounds for reflection results.
const (
	MinScore = 0.0
	MaxScore = 10.0
)

// Reflection is a quality assessment of a draft answer.
type Reflection struct {
	Score            float64  `json:"score"`
	Issues           []string `json:"issues"`
	Suggestions      []string `json:"suggestions"`
	NeedsImprovement bool     `json:"needs_improvement"`
	Reasoning        string   `json:"reasoning"`
}

// NewReflection validates the score and returns a reflection with empty
// (non-nil) issue and suggestion lists when none are given.
func NewReflection(score float64, issues, suggestions []string, reasoning string) (Reflection, error) {
	if math.IsNaN(score) || score < MinScore || score > MaxScore {
		return Reflection{}, fmt.Errorf("%w: %v", ErrScoreOutOfRange, score)
	}
	if issues == nil {
		issues = []string{}
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return Reflection{
		Score:       score,
		Issues:      issues,
		Suggestions: suggestions,
		Reasoning:   reasoning,
	}, nil
}

// Judge returns a copy with NeedsImprovement set against the threshold.
func (r Reflection) Judge(threshold float64) Reflection {
	r.NeedsImprovement = r.Score < threshold
	return r
}

// Feedback renders issues and suggestions for a re-synthesis attempt.
func (r Reflection) Feedback() string {
	var sb strings.Builder
	if len(r.Issues) > 0 {
		sb.WriteString("Issues:\n")
		for _, issue := range r.Issues {
			sb.WriteString("- ")
			sb.WriteString(issue)
			sb.WriteString("\n")
		}
	}
	if len(r.Suggestions) > 0 {
		sb.WriteString("Suggestions:\n")
		for _, s := range r.Suggestions {
			sb.WriteString("- ")
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	if sb.Len() == 0 && r.Reasoning != "" {
		sb.WriteString(r.Reasoning)
	}
	return sb.String()
}
