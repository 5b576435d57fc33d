// Package observability provides Labelwatch's ambient logging and
// pass-metrics surface. It is a trimmed adaptation of the teacher's
// full OpenTelemetry provider (pkg/observability): the scheduler has
// no inbound requests to trace, so the RED (Rate, Errors, Duration)
// metrics are recorded for each scheduler pass instead of each HTTP
// request, and there is no OTLP exporter — metrics stay in-process and
// are read back through Snapshot for the doctor/status surfaces.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config configures the provider. Unlike the teacher's Config there is
// no OTLPEndpoint/SampleRate/TLS surface: Labelwatch's metrics never
// leave the process.
type Config struct {
	ServiceName    string
	ServiceVersion string
	LogLevel       string // "debug" | "info" | "warn" | "error"
	LogFormat      string // "json" | "text"
}

// DefaultConfig returns the provider defaults used when a caller hasn't
// loaded a config file yet (e.g. the doctor subcommand).
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "labelwatch",
		ServiceVersion: "dev",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// FromAppConfig builds a Config from the fields internal/config.Config
// already exposes, so callers don't need to duplicate log-level
// parsing.
func FromAppConfig(logLevel string) *Config {
	cfg := DefaultConfig()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg
}

// Provider bundles the process logger and an in-process meter that
// tracks pass outcomes (ingest/scan/derive/discover/report).
type Provider struct {
	config *Config
	logger *slog.Logger

	reader        *sdkmetric.ManualReader
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	passCounter   metric.Int64Counter
	errorCounter  metric.Int64Counter
	durationHist  metric.Float64Histogram
	activePasses  metric.Int64UpDownCounter
}

// New builds a Provider. It never fails on metrics setup the way the
// teacher's OTLP-backed New can (there is no network dial here); the
// returned error is reserved for resource/meter construction failures.
func New(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	p := &Provider{
		config: cfg,
		logger: newLogger(cfg),
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	// ManualReader keeps metrics in-process: Snapshot pulls a point-in-
	// time Collect rather than waiting on a periodic OTLP push, since
	// there is no collector endpoint to push to.
	p.reader = sdkmetric.NewManualReader()
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(p.reader),
	)
	p.meter = p.meterProvider.Meter("labelwatch.scheduler",
		metric.WithInstrumentationVersion(cfg.ServiceVersion),
	)

	if err := p.initPassMetrics(); err != nil {
		return nil, fmt.Errorf("observability: init metrics: %w", err)
	}

	p.logger.Info("observability initialized",
		"service", cfg.ServiceName,
		"log_level", cfg.LogLevel,
	)
	return p, nil
}

func newLogger(cfg *Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler).With("service", cfg.ServiceName)
}

func (p *Provider) initPassMetrics() error {
	var err error
	p.passCounter, err = p.meter.Int64Counter("labelwatch.pass.total",
		metric.WithDescription("Total number of scheduler passes executed"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return err
	}
	p.errorCounter, err = p.meter.Int64Counter("labelwatch.pass.errors",
		metric.WithDescription("Total number of scheduler pass failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}
	p.durationHist, err = p.meter.Float64Histogram("labelwatch.pass.duration",
		metric.WithDescription("Scheduler pass duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300),
	)
	if err != nil {
		return err
	}
	p.activePasses, err = p.meter.Int64UpDownCounter("labelwatch.pass.active",
		metric.WithDescription("Number of scheduler passes currently running"),
		metric.WithUnit("{pass}"),
	)
	return err
}

// Logger returns the provider's structured logger.
func (p *Provider) Logger() *slog.Logger {
	if p == nil || p.logger == nil {
		return slog.Default()
	}
	return p.logger
}

// TrackPass records a scheduler pass's outcome and latency. Callers
// wrap a pass body: `done := obs.TrackPass(ctx, "ingest"); err :=
// run(); done(err)`. Mirrors the teacher's TrackOperation, scoped to
// "pass" instead of "request" since Labelwatch's unit of work is a
// scheduler pass, not an inbound call.
func (p *Provider) TrackPass(ctx context.Context, pass string) func(error) {
	if p == nil {
		return func(error) {}
	}
	start := time.Now()
	attrs := metric.WithAttributes(attribute.String("pass", pass))
	if p.activePasses != nil {
		p.activePasses.Add(ctx, 1, attrs)
	}
	if p.passCounter != nil {
		p.passCounter.Add(ctx, 1, attrs)
	}
	return func(err error) {
		if p.activePasses != nil {
			p.activePasses.Add(ctx, -1, attrs)
		}
		if p.durationHist != nil {
			p.durationHist.Record(ctx, time.Since(start).Seconds(), attrs)
		}
		if err != nil && p.errorCounter != nil {
			p.errorCounter.Add(ctx, 1, attrs)
		}
	}
}

// Snapshot collects the current metric point values, for the doctor
// subcommand and any future /status surface. It never contacts a
// remote collector; ManualReader.Collect just reads the in-process
// aggregation state.
func (p *Provider) Snapshot(ctx context.Context) (*metricdata.ResourceMetrics, error) {
	if p == nil || p.reader == nil {
		return nil, fmt.Errorf("observability: provider not initialized")
	}
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	return &rm, nil
}

// Shutdown flushes and releases the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
