package resilience

import (
	"time"

	"github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/domain/tool"
)

// Option configures the guard.
type Option func(*Config)

// WithMaxConcurrent sets the maximum concurrent executions.
func WithMaxConcurrent(n int) Option {
	return func(c *Config) {
		c.MaxConcurrent = n
	}
}

// WithCircuitBreakerThreshold sets the failure threshold for circuit breakers.
func WithCircuitBreakerThreshold(n int) Option {
	return func(c *Config) {
		c.CircuitBreakerThreshold = n
	}
}

// WithCircuitBreakerTimeout sets the circuit breaker open duration.
func WithCircuitBreakerTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.CircuitBreakerTimeout = d
	}
}

// WithRetryAttempts sets the maximum retry attempts.
func WithRetryAttempts(n int) Option {
	return func(c *Config) {
		c.RetryMaxAttempts = n
	}
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Config) {
		c.RetryInitialDelay = d
	}
}

// WithRateLimit sets the per-tool calls per second and burst.
func WithRateLimit(rate, burst int) Option {
	return func(c *Config) {
		c.RateLimit = rate
		c.RateBurst = burst
	}
}

// NewGuardedServiceWithOptions wraps next using functional options.
func NewGuardedServiceWithOptions(next tool.Service, opts ...Option) *GuardedService {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewGuardedService(next, cfg)
}

// ConfigFrom maps the file configuration onto guard settings.
func ConfigFrom(rc config.ResilienceConfig) Config {
	return Config{
		MaxConcurrent:           rc.Bulkhead.MaxConcurrent,
		CircuitBreakerThreshold: rc.CircuitBreaker.Threshold,
		CircuitBreakerTimeout:   rc.CircuitBreaker.Timeout.Duration(),
		RetryMaxAttempts:        rc.Retry.MaxAttempts,
		RetryInitialDelay:       rc.Retry.InitialDelay.Duration(),
		RetryBackoffMultiplier:  rc.Retry.Multiplier,
		RateLimit:               rc.RateLimit.Rate,
		RateBurst:               rc.RateLimit.Burst,
	}
}
