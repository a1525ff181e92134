// Package telemetry configures OpenTelemetry tracing for render runs.
//
// Tracing is off unless [telemetry] enabled is set. When an OTLP endpoint is
// configured, spans are batched to it over HTTP; otherwise the SDK provider
// still samples spans so in-process processors (tests, debug hooks) see them.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"slidesmith/internal/config"
	"slidesmith/internal/logging"
)

// Provider owns the tracer provider for the process.
type Provider struct {
	tp       trace.TracerProvider
	shutdown func(context.Context) error
}

// Option adds span processors, mainly for tests.
type Option func(*[]sdktrace.TracerProviderOption)

// WithSpanProcessor registers an extra span processor.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(opts *[]sdktrace.TracerProviderOption) {
		*opts = append(*opts, sdktrace.WithSpanProcessor(sp))
	}
}

// Setup builds the tracer provider described by cfg and installs it as the
// global provider. The returned Provider must be shut down on exit.
func Setup(ctx context.Context, cfg config.Telemetry, logger *slog.Logger, opts ...Option) (*Provider, error) {
	logger = logging.NewComponentLogger(logger, "telemetry")
	if !cfg.Enabled {
		return &Provider{tp: noop.NewTracerProvider(), shutdown: func(context.Context) error { return nil }}, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "slidesmith"
	}
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
		logger.Info("otlp trace export enabled", logging.String("endpoint", endpoint))
	} else {
		logger.Info("tracing enabled without exporter")
	}
	for _, opt := range opts {
		opt(&tpOpts)
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp, shutdown: tp.Shutdown}, nil
}

// Tracer returns a named tracer.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p == nil || p.tp == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return p.tp.Tracer(name)
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	if err := p.shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
