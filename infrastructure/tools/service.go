// Package tools provides the tool execution service and the built-in retrieval tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/ragent/domain/tool"
)

// RegistryService serves the catalog and executes tools held in a registry.
type RegistryService struct {
	registry tool.Registry
}

// NewRegistryService creates a service over registry.
func NewRegistryService(registry tool.Registry) *RegistryService {
	return &RegistryService{registry: registry}
}

// Schemas returns one descriptor per registered tool.
func (s *RegistryService) Schemas(ctx context.Context) ([]tool.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	list := s.registry.List()
	out := make([]tool.Descriptor, 0, len(list))
	for _, t := range list {
		out = append(out, tool.Describe(t))
	}
	return out, nil
}

// Execute runs the named tool. A tool annotated with a timeout gets that
// deadline when it is shorter than the caller's.
func (s *RegistryService) Execute(ctx context.Context, name string, args map[string]any) (tool.Result, error) {
	t, ok := s.registry.Get(name)
	if !ok {
		return tool.Result{}, fmt.Errorf("%w: %s", tool.ErrToolNotFound, name)
	}

	input, err := json.Marshal(args)
	if err != nil {
		return tool.Result{}, fmt.Errorf("%w: %v", tool.ErrInvalidInput, err)
	}
	if args == nil {
		input = json.RawMessage(`{}`)
	}

	if d := t.Annotations().Timeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	start := time.Now()
	result, err := t.Execute(ctx, input)
	result.Duration = time.Since(start)
	return result, err
}

var _ tool.Service = (*RegistryService)(nil)
