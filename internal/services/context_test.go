package services_test

import (
	"context"
	"testing"

	"slidesmith/internal/services"
)

func TestContextHelpersRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithDeckID(ctx, "deck-1")
	ctx = services.WithJobID(ctx, "job-9")
	ctx = services.WithOperation(ctx, "render")
	ctx = services.WithRequestID(ctx, "req-42")

	if id, ok := services.DeckIDFromContext(ctx); !ok || id != "deck-1" {
		t.Fatalf("unexpected deck id: %q %v", id, ok)
	}
	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-9" {
		t.Fatalf("unexpected job id: %q %v", id, ok)
	}
	if op, ok := services.OperationFromContext(ctx); !ok || op != "render" {
		t.Fatalf("unexpected operation: %q %v", op, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-42" {
		t.Fatalf("unexpected request id: %q %v", rid, ok)
	}
}

func TestContextHelpersIgnoreEmptyValues(t *testing.T) {
	ctx := services.WithDeckID(context.Background(), "")
	if _, ok := services.DeckIDFromContext(ctx); ok {
		t.Fatal("expected empty deck id to be ignored")
	}
	if _, ok := services.JobIDFromContext(context.Background()); ok {
		t.Fatal("expected no job id on background context")
	}
}
