package logging

import (
	"context"
	"log/slog"
)

// CaptureFunc receives every record emitted through a context-derived logger.
// Installed by the log-pattern middleware for the duration of a step.
type CaptureFunc func(level slog.Level, message string)

type captureKey struct{}

// WithCapture installs a capture hook on the context. Loggers built via
// WithContext will forward records to the hook in addition to their handler.
func WithCapture(ctx context.Context, fn CaptureFunc) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, captureKey{}, fn)
}

func captureFromContext(ctx context.Context) CaptureFunc {
	if ctx == nil {
		return nil
	}
	fn, _ := ctx.Value(captureKey{}).(CaptureFunc)
	return fn
}

type captureHandler struct {
	next    slog.Handler
	capture CaptureFunc
}

func newCaptureHandler(next slog.Handler, capture CaptureFunc) slog.Handler {
	return &captureHandler{next: next, capture: capture}
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool {
	// The capture hook sees all levels even when the terminal handler filters.
	return true
}

func (h *captureHandler) Handle(ctx context.Context, record slog.Record) error {
	h.capture(record.Level, record.Message)
	if h.next.Enabled(ctx, record.Level) {
		return h.next.Handle(ctx, record)
	}
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{next: h.next.WithAttrs(attrs), capture: h.capture}
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	return &captureHandler{next: h.next.WithGroup(name), capture: h.capture}
}
