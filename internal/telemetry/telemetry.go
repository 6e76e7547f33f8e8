// Package telemetry provides OpenTelemetry integration for duet.
//
// Telemetry is disabled by default: Init installs no-op providers and every
// span and counter costs nothing. When enabled, spans and metrics are
// written to the configured writer (stderr by default) by the stdout
// exporters.
//
// # Configuration
//
//	telemetry.enabled: true    enable telemetry (env DUET_TELEMETRY_ENABLED)
//	telemetry.stdout: true     pretty-print spans and metrics
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/mesh-intelligence/duet"

// Config selects whether telemetry runs and where it writes.
type Config struct {
	Enabled     bool
	Stdout      bool
	ServiceName string
	Version     string
	// Writer receives exporter output; nil means os.Stderr.
	Writer io.Writer
	// MetricInterval is the export period; zero means 15s.
	MetricInterval time.Duration
}

var (
	mu          sync.Mutex
	enabled     bool
	shutdownFns []func(context.Context) error
)

// Enabled reports whether Init installed real providers.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Init configures the global OTel providers. With cfg.Enabled false it
// installs no-op providers and returns immediately.
func Init(ctx context.Context, cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if !cfg.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		enabled = false
		return nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "duet"
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	traceOpts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.Stdout {
		traceOpts = append(traceOpts, stdouttrace.WithPrettyPrint())
	}
	traceExp, err := stdouttrace.New(traceOpts...)
	if err != nil {
		return fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExp),
	)
	otel.SetTracerProvider(tp)
	shutdownFns = append(shutdownFns, tp.Shutdown)

	metricOpts := []stdoutmetric.Option{stdoutmetric.WithWriter(w)}
	if cfg.Stdout {
		metricOpts = append(metricOpts, stdoutmetric.WithPrettyPrint())
	}
	metricExp, err := stdoutmetric.New(metricOpts...)
	if err != nil {
		return fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	interval := cfg.MetricInterval
	if interval == 0 {
		interval = 15 * time.Second
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)

	enabled = true
	return nil
}

// Tracer returns a tracer with the given instrumentation name (or the global scope).
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter with the given instrumentation name (or the global scope).
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes all spans and metrics and shuts the providers down.
// Call it with a short-lived context when the process exits.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	fns := shutdownFns
	shutdownFns = nil
	enabled = false
	mu.Unlock()

	var firstErr error
	for _, fn := range fns {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
