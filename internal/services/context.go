package services

import "context"

type contextKey string

const (
	runIDKey contextKey = "run_id"
	phaseKey contextKey = "phase"
	stepKey  contextKey = "step"
)

// WithRunID annotates context with the pipeline run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPhase annotates context with the pipeline phase name.
func WithPhase(ctx context.Context, phase string) context.Context {
	if phase == "" {
		return ctx
	}
	return context.WithValue(ctx, phaseKey, phase)
}

// PhaseFromContext returns the phase name if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(phaseKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStep annotates context with the step name.
func WithStep(ctx context.Context, step string) context.Context {
	if step == "" {
		return ctx
	}
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext returns the step name if present.
func StepFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stepKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
