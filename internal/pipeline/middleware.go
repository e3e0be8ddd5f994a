package pipeline

import (
	"context"
	"log/slog"

	"loom/internal/logging"
)

// Middleware is the base contract for step hooks. Capability methods are
// optional and discovered by type assertion, so a middleware implements only
// the hooks it needs.
type Middleware interface {
	Name() string
}

// BeforeHook runs before the retry executor dispatches the step. The returned
// context is threaded into the step, letting hooks install spans or capture
// handlers.
type BeforeHook interface {
	BeforeStep(ctx context.Context, step *StepContext) context.Context
}

// AfterHook runs after the step completes with a Result (success or expected
// failure). step.Result is populated.
type AfterHook interface {
	AfterStep(ctx context.Context, step *StepContext)
}

// ErrorHook runs instead of AfterHook when the step suffered a hard failure
// (a recovered panic). step.Err is populated.
type ErrorHook interface {
	OnError(ctx context.Context, step *StepContext)
}

// Chain dispatches registered middlewares in registration order. A
// misbehaving middleware must never abort the pipeline: hook panics are
// logged and swallowed.
type Chain struct {
	logger      *slog.Logger
	middlewares []Middleware
}

// NewChain builds a chain with the given middlewares, preserving order.
func NewChain(logger *slog.Logger, middlewares ...Middleware) *Chain {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Chain{
		logger:      logging.NewComponentLogger(logger, "middleware"),
		middlewares: append([]Middleware{}, middlewares...),
	}
}

// Register appends a middleware to the chain.
func (c *Chain) Register(mw Middleware) {
	if mw == nil {
		return
	}
	c.middlewares = append(c.middlewares, mw)
}

// Before runs every BeforeStep hook, threading the context through.
func (c *Chain) Before(ctx context.Context, step *StepContext) context.Context {
	for _, mw := range c.middlewares {
		hook, ok := mw.(BeforeHook)
		if !ok {
			continue
		}
		next := c.guardBefore(ctx, step, mw.Name(), hook)
		if next != nil {
			ctx = next
		}
	}
	return ctx
}

// After runs every AfterStep hook.
func (c *Chain) After(ctx context.Context, step *StepContext) {
	for _, mw := range c.middlewares {
		if hook, ok := mw.(AfterHook); ok {
			c.guard(step, mw.Name(), "after_step", func() { hook.AfterStep(ctx, step) })
		}
	}
}

// Error runs every OnError hook.
func (c *Chain) Error(ctx context.Context, step *StepContext) {
	for _, mw := range c.middlewares {
		if hook, ok := mw.(ErrorHook); ok {
			c.guard(step, mw.Name(), "on_error", func() { hook.OnError(ctx, step) })
		}
	}
}

func (c *Chain) guardBefore(ctx context.Context, step *StepContext, name string, hook BeforeHook) (next context.Context) {
	defer c.recover(step, name, "before_step")
	return hook.BeforeStep(ctx, step)
}

func (c *Chain) guard(step *StepContext, name, hookName string, fn func()) {
	defer c.recover(step, name, hookName)
	fn()
}

func (c *Chain) recover(step *StepContext, name, hookName string) {
	if r := recover(); r != nil {
		c.logger.Warn("middleware hook panicked",
			logging.String("middleware", name),
			logging.String("hook", hookName),
			logging.String(logging.FieldStep, step.Name),
			logging.Any("panic", r),
		)
	}
}
