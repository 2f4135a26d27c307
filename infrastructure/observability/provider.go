package observability

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrUnknownExporter is returned for an unsupported trace exporter.
var ErrUnknownExporter = errors.New("unknown trace exporter type")

// Provider owns the process trace and meter providers.
type Provider struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	reader         *sdkmetric.ManualReader
	shutdownFuncs  []func(context.Context) error
}

// New creates the providers and installs them as the otel globals.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewFromConfig(ctx, cfg)
}

// NewFromConfig is New with an explicit configuration.
func NewFromConfig(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}

	// Not merged with resource.Default() to avoid schema URL conflicts.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	)

	if cfg.Tracing.Enabled {
		if err := p.setupTracing(ctx, res); err != nil {
			return nil, err
		}
	}
	if cfg.Metrics.Enabled {
		p.setupMetrics(res)
	}
	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, res *resource.Resource) error {
	tc := p.config.Tracing

	var exporter sdktrace.SpanExporter
	switch tc.Exporter {
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(tc.Endpoint),
		}
		if tc.Insecure {
			opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("otlp exporter: %w", err)
		}
		exporter = exp

	case ExporterStdout:
		var opts []stdouttrace.Option
		if tc.Writer != nil {
			opts = append(opts, stdouttrace.WithWriter(tc.Writer))
		}
		exp, err := stdouttrace.New(opts...)
		if err != nil {
			return fmt.Errorf("stdout exporter: %w", err)
		}
		exporter = exp

	case ExporterNoop, "":
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnknownExporter, tc.Exporter)
	}

	var sampler sdktrace.Sampler
	switch {
	case tc.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case tc.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(tc.SampleRate)
	}

	batchOpts := []sdktrace.BatchSpanProcessorOption{}
	if tc.BatchTimeout > 0 {
		batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(tc.BatchTimeout))
	}
	if tc.MaxExportBatchSize > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(tc.MaxExportBatchSize))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, batchOpts...),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.tracerProvider = tp
	p.shutdownFuncs = append(p.shutdownFuncs, tp.Shutdown)
	return nil
}

// Metrics are pulled on demand through Collect rather than pushed.
func (p *Provider) setupMetrics(res *resource.Resource) {
	p.reader = sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(p.reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	p.meterProvider = mp
	p.shutdownFuncs = append(p.shutdownFuncs, mp.Shutdown)
}

// TracingEnabled reports whether spans are exported.
func (p *Provider) TracingEnabled() bool {
	return p.tracerProvider != nil
}

// MetricsEnabled reports whether metrics are collected.
func (p *Provider) MetricsEnabled() bool {
	return p.meterProvider != nil
}

// MeterProvider returns the collecting meter provider, or a no-op one when
// metrics are disabled.
func (p *Provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.meterProvider
}

// MetricPoint is one flattened data point.
type MetricPoint struct {
	Name       string
	Attributes string
	// Value is the sum for counters and histograms, the last value for gauges.
	Value float64
	// Count is the number of recorded values for histograms.
	Count uint64
}

// Collect reads the current metric state. It returns nil when metrics are disabled.
func (p *Provider) Collect(ctx context.Context) ([]MetricPoint, error) {
	if p.reader == nil {
		return nil, nil
	}

	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	return Flatten(rm), nil
}

// Flatten converts collected metrics into points sorted by name and attributes.
func Flatten(rm metricdata.ResourceMetrics) []MetricPoint {
	var points []MetricPoint
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					points = append(points, MetricPoint{Name: m.Name, Attributes: encode(dp.Attributes), Value: float64(dp.Value)})
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					points = append(points, MetricPoint{Name: m.Name, Attributes: encode(dp.Attributes), Value: dp.Value})
				}
			case metricdata.Gauge[float64]:
				for _, dp := range data.DataPoints {
					points = append(points, MetricPoint{Name: m.Name, Attributes: encode(dp.Attributes), Value: dp.Value})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					points = append(points, MetricPoint{Name: m.Name, Attributes: encode(dp.Attributes), Value: dp.Sum, Count: dp.Count})
				}
			}
		}
	}

	slices.SortFunc(points, func(a, b MetricPoint) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.Attributes, b.Attributes))
	})
	return points
}

func encode(set attribute.Set) string {
	return set.Encoded(attribute.DefaultEncoder())
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
