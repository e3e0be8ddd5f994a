package logging_test

import (
	"context"
	"log/slog"
	"testing"

	"loom/internal/logging"
	"loom/internal/services"
	"loom/internal/tenancy"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewDefaultsToConsole(t *testing.T) {
	logger, err := logging.New(logging.Options{Level: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger")
	}
}

func TestContextFields(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-123")
	ctx = services.WithPhase(ctx, "analyze")
	ctx = services.WithStep(ctx, "analysis")
	ctx = tenancy.WithTenant(ctx, tenancy.Tenant{ID: "acme", Workspace: "research"})

	fields := logging.ContextFields(ctx)
	want := map[string]string{
		logging.FieldRunID:  "run-123",
		logging.FieldPhase:  "analyze",
		logging.FieldStep:   "analysis",
		logging.FieldTenant: "acme:research",
	}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(fields))
	}
	for _, field := range fields {
		if want[field.Key] != field.Value.String() {
			t.Fatalf("field %s: expected %q, got %q", field.Key, want[field.Key], field.Value.String())
		}
	}
}

func TestWithContextForwardsToCapture(t *testing.T) {
	var captured []string
	ctx := logging.WithCapture(context.Background(), func(_ slog.Level, msg string) {
		captured = append(captured, msg)
	})

	logger := logging.WithContext(ctx, logging.NewNop())
	logger.Info("step started")
	logger.Debug("detail 42")

	if len(captured) != 2 {
		t.Fatalf("expected capture of 2 records, got %d: %v", len(captured), captured)
	}
	if captured[0] != "step started" || captured[1] != "detail 42" {
		t.Fatalf("unexpected captured messages: %v", captured)
	}
}
