// Package telemetry records agent loop metrics with OpenTelemetry.
package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/felixgeelhaar/ragent/application"
	"github.com/felixgeelhaar/ragent/domain/agent"
)

// Instrument names.
const (
	MetricToolExecutions   = "ragent.tool.executions"
	MetricToolDuration     = "ragent.tool.duration"
	MetricPlannerFallbacks = "ragent.planner.fallbacks"
	MetricReflectionScore  = "ragent.reflection.score"
	MetricRuns             = "ragent.runs"
	MetricRunDuration      = "ragent.run.duration"
	MetricRunSteps         = "ragent.run.steps"
)

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the instrumentation scope name.
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Provider supplies the meter. Defaults to the otel global.
	Provider metric.MeterProvider
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/felixgeelhaar/ragent",
		MeterVersion: "1.0.0",
	}
}

// MetricsProvider implements application.Metrics.
type MetricsProvider struct {
	toolExecutions   metric.Int64Counter
	toolDuration     metric.Float64Histogram
	plannerFallbacks metric.Int64Counter
	reflectionScore  metric.Float64Histogram
	runs             metric.Int64Counter
	runDuration      metric.Float64Histogram
	runSteps         metric.Int64Histogram
}

// NewMetricsProvider creates the instruments.
func NewMetricsProvider(cfg MetricsConfig) (*MetricsProvider, error) {
	def := DefaultMetricsConfig()
	if cfg.MeterName == "" {
		cfg.MeterName = def.MeterName
	}
	if cfg.MeterVersion == "" {
		cfg.MeterVersion = def.MeterVersion
	}
	if cfg.Provider == nil {
		cfg.Provider = otel.GetMeterProvider()
	}

	meter := cfg.Provider.Meter(cfg.MeterName, metric.WithInstrumentationVersion(cfg.MeterVersion))
	mp := &MetricsProvider{}

	var err error
	var errs []error
	mp.toolExecutions, err = meter.Int64Counter(MetricToolExecutions,
		metric.WithDescription("Number of tool executions"),
		metric.WithUnit("{execution}"),
	)
	errs = append(errs, err)

	mp.toolDuration, err = meter.Float64Histogram(MetricToolDuration,
		metric.WithDescription("Duration of tool executions"),
		metric.WithUnit("ms"),
	)
	errs = append(errs, err)

	mp.plannerFallbacks, err = meter.Int64Counter(MetricPlannerFallbacks,
		metric.WithDescription("Number of steps where the planner fell back to the default tool"),
		metric.WithUnit("{fallback}"),
	)
	errs = append(errs, err)

	mp.reflectionScore, err = meter.Float64Histogram(MetricReflectionScore,
		metric.WithDescription("Reflection quality scores"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
	)
	errs = append(errs, err)

	mp.runs, err = meter.Int64Counter(MetricRuns,
		metric.WithDescription("Number of agent runs by final status"),
		metric.WithUnit("{run}"),
	)
	errs = append(errs, err)

	mp.runDuration, err = meter.Float64Histogram(MetricRunDuration,
		metric.WithDescription("Duration of agent runs"),
		metric.WithUnit("ms"),
	)
	errs = append(errs, err)

	mp.runSteps, err = meter.Int64Histogram(MetricRunSteps,
		metric.WithDescription("Steps taken per run"),
		metric.WithUnit("{step}"),
	)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return mp, nil
}

// RecordToolExecution records one tool call.
func (mp *MetricsProvider) RecordToolExecution(ctx context.Context, toolName string, success bool, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.Bool("success", success),
	)
	mp.toolExecutions.Add(ctx, 1, attrs)
	mp.toolDuration.Record(ctx, milliseconds(d), attrs)
}

// RecordPlannerFallback records a step planned by the fallback path.
func (mp *MetricsProvider) RecordPlannerFallback(ctx context.Context, reason string) {
	mp.plannerFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordReflection records a reflection score.
func (mp *MetricsProvider) RecordReflection(ctx context.Context, score float64, attempt int) {
	mp.reflectionScore.Record(ctx, score, metric.WithAttributes(attribute.Int("attempt", attempt)))
}

// RecordRun records a finished run.
func (mp *MetricsProvider) RecordRun(ctx context.Context, status agent.Status, steps int, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", string(status)))
	mp.runs.Add(ctx, 1, attrs)
	mp.runDuration.Record(ctx, milliseconds(d), attrs)
	mp.runSteps.Record(ctx, int64(steps), attrs)
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

var _ application.Metrics = (*MetricsProvider)(nil)
