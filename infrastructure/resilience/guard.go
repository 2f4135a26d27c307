// Package resilience guards tool execution with fortify's circuit breaker,
// retry, bulkhead and rate limiting patterns.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/ragent/domain/tool"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// ErrRateLimited indicates a call was rejected by the per-tool rate limit.
var ErrRateLimited = errors.New("tool rate limit exceeded")

// Config configures the guard.
type Config struct {
	// MaxConcurrent limits concurrent tool executions across all tools.
	MaxConcurrent int

	// CircuitBreakerThreshold is the number of consecutive failures before a
	// tool's circuit opens.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration

	// RetryMaxAttempts is the maximum number of attempts for retryable tools.
	RetryMaxAttempts int

	// RetryInitialDelay is the initial delay between retries.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64

	// RateLimit is the number of calls per second allowed for each tool.
	// Zero disables rate limiting.
	RateLimit int

	// RateBurst is the token bucket capacity. Defaults to RateLimit.
	RateBurst int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:           10,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       100 * time.Millisecond,
		RetryBackoffMultiplier:  2.0,
	}
}

// GuardedService decorates a tool service. Every tool gets its own circuit
// breaker; retries only apply to tools annotated as idempotent or read-only;
// one bulkhead bounds concurrency across all tools.
type GuardedService struct {
	next     tool.Service
	config   Config
	bulkhead bulkhead.Bulkhead[tool.Result]
	retry    retry.Retry[tool.Result]
	limiter  ratelimit.RateLimiter

	mu          sync.RWMutex
	breakers    map[string]circuitbreaker.CircuitBreaker[tool.Result]
	annotations map[string]tool.Annotations
}

var _ tool.Service = (*GuardedService)(nil)

// NewGuardedService wraps next with the configured patterns.
func NewGuardedService(next tool.Service, config Config) *GuardedService {
	defaults := DefaultConfig()
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.CircuitBreakerThreshold <= 0 {
		config.CircuitBreakerThreshold = defaults.CircuitBreakerThreshold
	}
	if config.CircuitBreakerTimeout <= 0 {
		config.CircuitBreakerTimeout = defaults.CircuitBreakerTimeout
	}
	if config.RetryMaxAttempts <= 0 {
		config.RetryMaxAttempts = defaults.RetryMaxAttempts
	}
	if config.RetryInitialDelay <= 0 {
		config.RetryInitialDelay = defaults.RetryInitialDelay
	}
	if config.RetryBackoffMultiplier < 1 {
		config.RetryBackoffMultiplier = defaults.RetryBackoffMultiplier
	}

	g := &GuardedService{
		next:   next,
		config: config,
		bulkhead: bulkhead.New[tool.Result](bulkhead.Config{
			MaxConcurrent: config.MaxConcurrent,
		}),
		retry: retry.New[tool.Result](retry.Config{
			MaxAttempts:   config.RetryMaxAttempts,
			InitialDelay:  config.RetryInitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    config.RetryBackoffMultiplier,
		}),
		breakers:    make(map[string]circuitbreaker.CircuitBreaker[tool.Result]),
		annotations: make(map[string]tool.Annotations),
	}

	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = config.RateLimit
		}
		g.limiter = ratelimit.New(&ratelimit.Config{
			Rate:  config.RateLimit,
			Burst: burst,
		})
	}
	return g
}

// Schemas returns the wrapped catalog and remembers each tool's annotations.
func (g *GuardedService) Schemas(ctx context.Context) ([]tool.Descriptor, error) {
	descriptors, err := g.next.Schemas(ctx)
	if err != nil {
		return nil, err
	}

	annotations := make(map[string]tool.Annotations, len(descriptors))
	for _, d := range descriptors {
		annotations[d.Name] = d.Annotations
	}
	g.mu.Lock()
	maps.Copy(g.annotations, annotations)
	g.mu.Unlock()

	return descriptors, nil
}

// Execute runs the tool behind the rate limit, the bulkhead, the tool's
// circuit breaker and, for retryable tools, the retry policy. Failures the
// tool reports in its result count against the breaker too.
func (g *GuardedService) Execute(ctx context.Context, name string, args map[string]any) (tool.Result, error) {
	if g.limiter != nil && !g.limiter.Allow(ctx, name) {
		logging.Warn().Add(logging.ToolName(name)).Msg("tool call rate limited")
		return tool.Result{}, fmt.Errorf("%w: %s", ErrRateLimited, name)
	}

	retryable := g.annotationsFor(ctx, name).CanRetry()
	breaker := g.breaker(name)

	start := time.Now()
	result, err := g.bulkhead.Execute(ctx, func(ctx context.Context) (tool.Result, error) {
		return breaker.Execute(ctx, func(ctx context.Context) (tool.Result, error) {
			call := func(ctx context.Context) (tool.Result, error) {
				res, err := g.next.Execute(ctx, name, args)
				if err == nil && res.Error != nil {
					return res, res.Error
				}
				return res, err
			}
			if retryable {
				return g.retry.Do(ctx, call)
			}
			return call(ctx)
		})
	})
	if err != nil {
		return tool.Result{}, err
	}

	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result, nil
}

// CircuitState returns the state of the named tool's circuit breaker.
func (g *GuardedService) CircuitState(name string) string {
	return g.breaker(name).State().String()
}

func (g *GuardedService) annotationsFor(ctx context.Context, name string) tool.Annotations {
	g.mu.RLock()
	a, ok := g.annotations[name]
	g.mu.RUnlock()
	if ok {
		return a
	}

	if _, err := g.Schemas(ctx); err != nil {
		return tool.Annotations{}
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.annotations[name]
}

func (g *GuardedService) breaker(name string) circuitbreaker.CircuitBreaker[tool.Result] {
	g.mu.RLock()
	breaker, exists := g.breakers[name]
	g.mu.RUnlock()
	if exists {
		return breaker
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if breaker, exists = g.breakers[name]; exists {
		return breaker
	}

	threshold := g.config.CircuitBreakerThreshold
	breaker = circuitbreaker.New[tool.Result](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    g.config.CircuitBreakerTimeout,
		Timeout:     g.config.CircuitBreakerTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- threshold is positive
		},
	})
	g.breakers[name] = breaker
	return breaker
}
