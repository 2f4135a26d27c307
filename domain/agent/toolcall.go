package agent

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/google/uuid"
)

// ToolCall is a request to invoke one named tool with arguments.
// It is a value type; Arguments must not be mutated after construction.
type ToolCall struct {
	CallID    string         `json:"call_id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Reasoning string         `json:"reasoning,omitempty"`
}

// NewToolCall creates a tool call with a freshly generated call ID.
// The arguments map is copied.
func NewToolCall(name string, args map[string]any, reasoning string) ToolCall {
	copied := make(map[string]any, len(args))
	maps.Copy(copied, args)

	return ToolCall{
		CallID:    uuid.NewString(),
		ToolName:  name,
		Arguments: copied,
		Reasoning: reasoning,
	}
}

// ToolResult answers exactly one ToolCall, correlated by CallID.
// Data is only set when Success is true and Error only when it is false.
type ToolResult struct {
	CallID        string          `json:"call_id"`
	ToolName      string          `json:"tool_name"`
	Success       bool            `json:"success"`
	Data          json.RawMessage `json:"data,omitempty"`
	Error         string          `json:"error,omitempty"`
	ExecutionTime time.Duration   `json:"execution_time"`
}

// Succeeded creates a successful result for the given call.
func Succeeded(call ToolCall, data json.RawMessage, elapsed time.Duration) ToolResult {
	return ToolResult{
		CallID:        call.CallID,
		ToolName:      call.ToolName,
		Success:       true,
		Data:          data,
		ExecutionTime: max(elapsed, 0),
	}
}

// Failed creates a failed result for the given call.
func Failed(call ToolCall, errMsg string, elapsed time.Duration) ToolResult {
	if errMsg == "" {
		errMsg = "unknown error"
	}
	return ToolResult{
		CallID:        call.CallID,
		ToolName:      call.ToolName,
		Success:       false,
		Error:         errMsg,
		ExecutionTime: max(elapsed, 0),
	}
}
