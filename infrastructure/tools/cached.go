package tools

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/felixgeelhaar/ragent/domain/cache"
	"github.com/felixgeelhaar/ragent/domain/tool"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// DefaultCacheTTL is used when no TTL is configured.
const DefaultCacheTTL = 10 * time.Minute

// CachedService serves results of cacheable tools from a cache.
// Only successful results are stored.
type CachedService struct {
	next  tool.Service
	cache cache.Cache
	ttl   time.Duration

	mu          sync.RWMutex
	annotations map[string]tool.Annotations
}

// NewCachedService wraps next with c. A zero ttl uses DefaultCacheTTL.
func NewCachedService(next tool.Service, c cache.Cache, ttl time.Duration) *CachedService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedService{
		next:        next,
		cache:       c,
		ttl:         ttl,
		annotations: make(map[string]tool.Annotations),
	}
}

// Schemas forwards to the wrapped service and remembers each tool's annotations.
func (s *CachedService) Schemas(ctx context.Context) ([]tool.Descriptor, error) {
	descs, err := s.next.Schemas(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, d := range descs {
		s.annotations[d.Name] = d.Annotations
	}
	s.mu.Unlock()
	return descs, nil
}

func (s *CachedService) cacheable(ctx context.Context, name string) bool {
	s.mu.RLock()
	ann, ok := s.annotations[name]
	s.mu.RUnlock()
	if !ok {
		if _, err := s.Schemas(ctx); err != nil {
			return false
		}
		s.mu.RLock()
		ann = s.annotations[name]
		s.mu.RUnlock()
	}
	return ann.CanCache()
}

// Execute returns a cached result when one exists, otherwise runs the tool.
// Cache backend errors are logged and never fail the call.
func (s *CachedService) Execute(ctx context.Context, name string, args map[string]any) (tool.Result, error) {
	if !s.cacheable(ctx, name) {
		return s.next.Execute(ctx, name, args)
	}

	key, err := cache.ToolKey(name, args)
	if err != nil {
		return s.next.Execute(ctx, name, args)
	}

	if raw, found, err := s.cache.Get(ctx, key); err != nil {
		logging.Warn().
			Add(logging.ToolName(name)).
			Add(logging.ErrorField(err)).
			Msg("cache read failed")
	} else if found {
		logging.Debug().Add(logging.ToolName(name)).Add(logging.Cached(true)).Msg("tool result served from cache")
		return tool.Result{Output: json.RawMessage(raw), Cached: true}, nil
	}

	result, err := s.next.Execute(ctx, name, args)
	if err != nil || result.IsError() {
		return result, err
	}

	if err := s.cache.Set(ctx, key, result.Output, cache.SetOptions{TTL: s.ttl}); err != nil {
		logging.Warn().
			Add(logging.ToolName(name)).
			Add(logging.ErrorField(err)).
			Msg("cache write failed")
	}
	return result, nil
}

var _ tool.Service = (*CachedService)(nil)
