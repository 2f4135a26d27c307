package reasoning

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrNoResponses indicates a static provider was built without replies.
var ErrNoResponses = errors.New("static provider has no responses")

// StaticProvider replays a fixed list of replies for offline runs and
// deterministic tests. Once the list is exhausted the last reply repeats.
type StaticProvider struct {
	responses []string
	index     int
	requests  []CompletionRequest
	mu        sync.Mutex
}

// NewStaticProvider creates a static provider with the given replies.
func NewStaticProvider(responses ...string) *StaticProvider {
	return &StaticProvider{responses: responses}
}

// Name returns the provider name.
func (p *StaticProvider) Name() string {
	return "static"
}

// Complete returns the next reply.
func (p *StaticProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if len(p.responses) == 0 {
		return CompletionResponse{}, ErrNoResponses
	}

	content := p.responses[min(p.index, len(p.responses)-1)]
	p.index++
	return CompletionResponse{Model: "static", Content: content}, nil
}

// Requests returns every request received so far.
func (p *StaticProvider) Requests() []CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.requests)
}

// Reset rewinds to the first reply.
func (p *StaticProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = 0
	p.requests = nil
}
