package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracingSpanKey = "tracing.span"

// TracingMiddleware opens one span per step and records duration, outcome,
// and error type on close.
type TracingMiddleware struct {
	tracer trace.Tracer
}

// NewTracingMiddleware builds the middleware against the supplied provider;
// pass nil to use the global one.
func NewTracingMiddleware(provider trace.TracerProvider) *TracingMiddleware {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &TracingMiddleware{tracer: provider.Tracer("loom/pipeline")}
}

func (*TracingMiddleware) Name() string { return "tracing" }

func (t *TracingMiddleware) BeforeStep(ctx context.Context, step *StepContext) context.Context {
	ctx, span := t.tracer.Start(ctx, "step."+step.Name,
		trace.WithAttributes(attribute.String("step.name", step.Name)),
	)
	step.Metadata[tracingSpanKey] = span
	return ctx
}

func (t *TracingMiddleware) AfterStep(_ context.Context, step *StepContext) {
	span, ok := step.Metadata[tracingSpanKey].(trace.Span)
	if !ok {
		return
	}
	span.SetAttributes(
		attribute.Int64("step.duration_ms", time.Since(step.StartedAt).Milliseconds()),
		attribute.Bool("step.success", step.Result.Success()),
	)
	if status := step.Result.CustomStatus(); status != "" {
		span.SetAttributes(attribute.String("step.custom_status", string(status)))
	}
	if step.Result.Success() {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetAttributes(attribute.String("step.error_class", string(Classify(step.Result))))
		span.SetStatus(codes.Error, step.Result.Err())
	}
	span.End()
}

func (t *TracingMiddleware) OnError(_ context.Context, step *StepContext) {
	span, ok := step.Metadata[tracingSpanKey].(trace.Span)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("step.duration_ms", time.Since(step.StartedAt).Milliseconds()))
	if step.Err != nil {
		span.RecordError(step.Err)
		span.SetStatus(codes.Error, step.Err.Error())
	}
	span.End()
}
