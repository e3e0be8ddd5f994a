package pipeline

import "time"

// StepContext is the ephemeral per-invocation record the middleware chain
// works against. It is created immediately before the retry executor runs and
// discarded once the after/error hooks finish; it is never persisted or
// shared across steps.
type StepContext struct {
	// Name is the step name used for logging, metrics, and failure loci.
	Name string
	// Args carries the step's invocation arguments for observability hooks.
	Args map[string]any
	// Pipeline is the owning orchestrator.
	Pipeline *Orchestrator
	// StartedAt is when the step was dispatched.
	StartedAt time.Time
	// Result is set after the retry executor returns.
	Result Result
	// Err is set only on hard failure (a recovered panic); expected business
	// failures are Results, not errors.
	Err error
	// Metadata is mutable scratch space middleware use to pass data between
	// before and after hooks (e.g. a tracing span handle).
	Metadata map[string]any
}

func newStepContext(name string, args map[string]any, owner *Orchestrator) *StepContext {
	return &StepContext{
		Name:      name,
		Args:      args,
		Pipeline:  owner,
		StartedAt: time.Now(),
		Metadata:  make(map[string]any),
	}
}
