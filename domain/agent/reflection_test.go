package agent

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestNewReflection_ScoreBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		score   float64
		wantErr bool
	}{
		{"below zero", -1, true},
		{"zero", 0, false},
		{"middle", 6.5, false},
		{"ten", 10, false},
		{"above ten", 11, true},
		{"nan", math.NaN(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := NewReflection(tt.score, nil, nil, "")
			if tt.wantErr {
				if !errors.Is(err, ErrScoreOutOfRange) {
					t.Errorf("NewReflection(%v) error = %v, want ErrScoreOutOfRange", tt.score, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewReflection(%v) error = %v", tt.score, err)
			}
			if r.Issues == nil || r.Suggestions == nil {
				t.Error("NewReflection() lists should default to empty")
			}
		})
	}
}

func TestReflection_Judge(t *testing.T) {
	t.Parallel()

	r, _ := NewReflection(6, nil, nil, "")
	if !r.Judge(7).NeedsImprovement {
		t.Error("Judge(7) with score 6 should need improvement")
	}
	if r.Judge(6).NeedsImprovement {
		t.Error("Judge(6) with score 6 should not need improvement")
	}
	if r.NeedsImprovement {
		t.Error("Judge() mutated receiver")
	}
}

func TestReflection_Feedback(t *testing.T) {
	t.Parallel()

	r, _ := NewReflection(3, []string{"no citations"}, []string{"cite sources"}, "weak")
	fb := r.Feedback()
	if !strings.Contains(fb, "- no citations") || !strings.Contains(fb, "- cite sources") {
		t.Errorf("Feedback() = %q", fb)
	}

	bare, _ := NewReflection(3, nil, nil, "too short")
	if got := bare.Feedback(); got != "too short" {
		t.Errorf("Feedback() = %q, want reasoning fallback", got)
	}
}
