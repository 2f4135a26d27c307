package agent

import "time"

// Step records one plan/execute iteration of a run.
type Step struct {
	Number         int           `json:"step_number"`
	Reasoning      string        `json:"reasoning"`
	ToolCalls      []ToolCall    `json:"tool_calls"`
	ToolResults    []ToolResult  `json:"tool_results"`
	ShouldContinue bool          `json:"should_continue"`
	DirectAnswer   string        `json:"direct_answer,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Failures returns the number of failed tool results in the step.
func (s Step) Failures() int {
	n := 0
	for _, r := range s.ToolResults {
		if !r.Success {
			n++
		}
	}
	return n
}
