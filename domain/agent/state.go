// Package agent provides the core domain model for the answering agent.
package agent

import (
	"fmt"
	"slices"
)

// Status represents the lifecycle status of a run.
type Status string

const (
	StatusPending       Status = "pending"        // Not yet started
	StatusRunning       Status = "running"        // Planning and executing tools
	StatusCompleted     Status = "completed"      // Answer produced
	StatusFailed        Status = "failed"         // Terminated with error
	StatusMaxIterations Status = "max_iterations" // Iteration budget exhausted, synthesis pending
)

// IsTerminal returns true for completed and failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid returns true if the status is recognized.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusMaxIterations:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// State is the mutable working state of a single run.
// It has exactly one owner and is never shared between goroutines.
type State struct {
	OriginalQuery  string
	SessionContext string
	Status         Status
	FinalAnswer    string
	Sources        []Source
	Error          string

	steps []Step
}

// NewState creates a pending state for the given query.
func NewState(query, sessionContext string) *State {
	return &State{
		OriginalQuery:  query,
		SessionContext: sessionContext,
		Status:         StatusPending,
	}
}

// CurrentIteration is the number of steps appended so far.
func (s *State) CurrentIteration() int {
	return len(s.steps)
}

// NextStepNumber returns the number the next appended step must carry.
func (s *State) NextStepNumber() int {
	return len(s.steps) + 1
}

// AppendStep appends a step. Steps must be appended in number order starting at 1.
func (s *State) AppendStep(step Step) error {
	if step.Number != s.NextStepNumber() {
		return fmt.Errorf("%w: got %d, want %d", ErrStepOutOfOrder, step.Number, s.NextStepNumber())
	}
	s.steps = append(s.steps, step)
	return nil
}

// Steps returns a copy of the appended steps.
func (s *State) Steps() []Step {
	return slices.Clone(s.steps)
}

// Results returns all tool results flattened in step-then-call order.
func (s *State) Results() []ToolResult {
	var out []ToolResult
	for _, step := range s.steps {
		out = append(out, step.ToolResults...)
	}
	return out
}

// ToolsUsed returns the sorted, deduplicated names of every tool called.
func (s *State) ToolsUsed() []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, step := range s.steps {
		for _, call := range step.ToolCalls {
			if _, ok := seen[call.ToolName]; ok {
				continue
			}
			seen[call.ToolName] = struct{}{}
			names = append(names, call.ToolName)
		}
	}
	slices.Sort(names)
	return names
}

// ToolCounts returns how many times each tool was called.
func (s *State) ToolCounts() map[string]int {
	counts := make(map[string]int)
	for _, step := range s.steps {
		for _, call := range step.ToolCalls {
			counts[call.ToolName]++
		}
	}
	return counts
}
