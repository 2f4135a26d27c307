// Package observability installs the OpenTelemetry trace and meter providers
// used by the agent loop.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/felixgeelhaar/ragent/domain/config"
)

// Config configures the observability infrastructure.
type Config struct {
	// ServiceName is the name of the service for telemetry.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Environment is the deployment environment (e.g., "production", "staging").
	Environment string

	// Tracing configures span export.
	Tracing TracingConfig

	// Metrics configures metric collection.
	Metrics MetricsConfig
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool

	// Exporter specifies the trace exporter type.
	Exporter ExporterType

	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string

	// Insecure disables TLS for the exporter connection.
	Insecure bool

	// SampleRate is the sampling rate (0.0-1.0).
	SampleRate float64

	BatchTimeout       time.Duration
	MaxExportBatchSize int

	// Writer receives stdout-exported spans. Defaults to os.Stderr so
	// command output stays clean.
	Writer io.Writer
}

// MetricsConfig configures metric collection.
type MetricsConfig struct {
	Enabled bool
}

// ExporterType specifies the span exporter.
type ExporterType string

const (
	// ExporterOTLP exports to an OTLP gRPC endpoint (Jaeger, Tempo, Grafana).
	ExporterOTLP ExporterType = "otlp"

	// ExporterStdout writes spans as JSON.
	ExporterStdout ExporterType = "stdout"

	// ExporterNoop records spans nowhere.
	ExporterNoop ExporterType = "noop"
)

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "ragent",
		ServiceVersion: "dev",
		Environment:    "development",
		Tracing: TracingConfig{
			Exporter:           ExporterNoop,
			SampleRate:         1.0,
			BatchTimeout:       5 * time.Second,
			MaxExportBatchSize: 512,
			Writer:             os.Stderr,
		},
	}
}

// ConfigFrom converts the file telemetry section. Zero values keep the defaults.
func ConfigFrom(tc config.TelemetryConfig) Config {
	cfg := DefaultConfig()
	if tc.ServiceName != "" {
		cfg.ServiceName = tc.ServiceName
	}
	cfg.Metrics.Enabled = tc.Metrics

	tr := tc.Tracing
	cfg.Tracing.Enabled = tr.Enabled
	if tr.Exporter != "" {
		cfg.Tracing.Exporter = ExporterType(tr.Exporter)
	}
	cfg.Tracing.Endpoint = tr.Endpoint
	cfg.Tracing.Insecure = tr.Insecure
	if tr.SampleRate > 0 {
		cfg.Tracing.SampleRate = tr.SampleRate
	}
	return cfg
}

// Option configures the observability infrastructure.
type Option func(*Config)

// WithServiceName sets the service name.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithServiceVersion sets the service version.
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithTracing enables tracing with the specified exporter.
func WithTracing(exporter ExporterType, endpoint string) Option {
	return func(c *Config) {
		c.Tracing.Enabled = true
		c.Tracing.Exporter = exporter
		c.Tracing.Endpoint = endpoint
	}
}

// WithStdoutTracing enables JSON span export to w.
func WithStdoutTracing(w io.Writer) Option {
	return func(c *Config) {
		c.Tracing.Enabled = true
		c.Tracing.Exporter = ExporterStdout
		c.Tracing.Writer = w
	}
}

// WithSampleRate sets the trace sampling rate.
func WithSampleRate(rate float64) Option {
	return func(c *Config) {
		c.Tracing.SampleRate = rate
	}
}

// WithMetrics enables metric collection.
func WithMetrics() Option {
	return func(c *Config) {
		c.Metrics.Enabled = true
	}
}
