package agent

import "time"

// Source identifies a document an answer drew on.
type Source struct {
	Source string  `json:"source"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
}

// Result is the outcome of one run as returned to the caller.
type Result struct {
	RunID      string         `json:"run_id,omitempty"`
	Success    bool           `json:"success"`
	Answer     string         `json:"answer"`
	Sources    []Source       `json:"sources"`
	StepsTaken int            `json:"steps_taken"`
	TotalTime  time.Duration  `json:"total_time"`
	ToolsUsed  []string       `json:"tools_used"`
	Error      string         `json:"error,omitempty"`
	DebugInfo  map[string]any `json:"debug_info,omitempty"`
}
