package application

import (
	"context"
	"time"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

// Metrics records agent loop measurements.
type Metrics interface {
	RecordToolExecution(ctx context.Context, tool string, success bool, d time.Duration)
	RecordPlannerFallback(ctx context.Context, reason string)
	RecordReflection(ctx context.Context, score float64, attempt int)
	RecordRun(ctx context.Context, status agent.Status, steps int, d time.Duration)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) RecordToolExecution(context.Context, string, bool, time.Duration) {}
func (NoopMetrics) RecordPlannerFallback(context.Context, string) {}
func (NoopMetrics) RecordReflection(context.Context, float64, int) {}
func (NoopMetrics) RecordRun(context.Context, agent.Status, int, time.Duration) {}
