package logging

import (
	"context"
	"log/slog"

	"loom/internal/services"
	"loom/internal/tenancy"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for pipeline run identifiers.
	FieldRunID = "run_id"
	// FieldPhase is the standardized structured logging key for pipeline phase names.
	FieldPhase = "phase"
	// FieldStep is the standardized structured logging key for step names.
	FieldStep = "step"
	// FieldTenant is the standardized structured logging key for the tenant:workspace key.
	FieldTenant = "tenant"
	// FieldEventType tags log lines that mark pipeline lifecycle events.
	FieldEventType = "event_type"
	// FieldErrorHint carries a remediation hint alongside error logs.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if step, ok := services.StepFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStep, step))
	}
	if tenant := tenancy.FromContext(ctx); tenant != tenancy.Default {
		fields = append(fields, slog.String(FieldTenant, tenant.Key()))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context. When a capture hook is present the handler is wrapped
// so emitted records also reach the hook.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if capture := captureFromContext(ctx); capture != nil {
		logger = slog.New(newCaptureHandler(logger.Handler(), capture))
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
