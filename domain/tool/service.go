package tool

import "context"

// Descriptor is the catalog entry the planner sees for one tool.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  Schema      `json:"parameters"`
	Annotations Annotations `json:"annotations"`
}

// Describe returns the catalog entry for t.
func Describe(t Tool) Descriptor {
	return Descriptor{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.InputSchema(),
		Annotations: t.Annotations(),
	}
}

// Service is the catalog and execution backend the agent calls tools through.
// A non-nil error means the call could not be carried out at all; a tool that
// ran and failed reports through Result.Error.
type Service interface {
	// Schemas returns the current tool catalog.
	Schemas(ctx context.Context) ([]Descriptor, error)

	// Execute runs the named tool with the given arguments.
	Execute(ctx context.Context, name string, args map[string]any) (Result, error)
}
