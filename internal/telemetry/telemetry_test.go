package telemetry_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"slidesmith/internal/config"
	"slidesmith/internal/telemetry"
)

func TestDisabledIsNoop(t *testing.T) {
	p, err := telemetry.Setup(context.Background(), config.Telemetry{}, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	_, span := p.Tracer("x").Start(context.Background(), "op")
	if span.SpanContext().IsValid() {
		t.Fatal("disabled tracing should produce invalid span contexts")
	}
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestEnabledRecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	p, err := telemetry.Setup(context.Background(), config.Telemetry{Enabled: true, ServiceName: "test"}, nil,
		telemetry.WithSpanProcessor(rec))
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := p.Tracer("x").Start(context.Background(), "render.run")
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 || ended[0].Name() != "render.run" {
		t.Fatalf("unexpected spans %v", ended)
	}
	found := false
	for _, kv := range ended[0].Resource().Attributes() {
		if string(kv.Key) == "service.name" && kv.Value.AsString() == "test" {
			found = true
		}
	}
	if !found {
		t.Fatal("service.name resource attribute missing")
	}
}
