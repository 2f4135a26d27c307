// Package reasoning defines the language model port used by the agent.
package reasoning

import (
	"context"
	"errors"
)

// Service generates text for a prompt. Calls may be slow or fail outright;
// callers own any fallback.
type Service interface {
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Func adapts a function to the Service interface.
type Func func(ctx context.Context, prompt, systemPrompt string) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return f(ctx, prompt, systemPrompt)
}

// ErrEmptyResponse indicates the backend returned no text.
var ErrEmptyResponse = errors.New("empty response from reasoning backend")
