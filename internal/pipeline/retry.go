package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"loom/internal/logging"
	"loom/internal/ratelimit"
	"loom/internal/telemetry"
	"loom/internal/tenancy"
)

const (
	defaultAttempts = 3
	defaultDelay    = 2 * time.Second
	maxBackoff      = 60 * time.Second
)

// StepFunc is a single step invocation. Expected business outcomes are
// Results; panics are treated as hard failures and converted at the
// executor boundary.
type StepFunc func(ctx context.Context) Result

// RetryOptions controls one step's execution through the executor.
type RetryOptions struct {
	// Attempts bounds the number of invocations; defaults to 3.
	Attempts int
	// Delay is the base backoff interval; defaults to 2s.
	Delay time.Duration
	// RateLimited pre-checks the tenant's tool bucket before the first
	// attempt. A denial consumes zero attempts.
	RateLimited bool
	// Cost is the token cost of the tool call; defaults to 1.
	Cost int
}

// Executor invokes step functions, classifies failures, and retries
// transient ones with exponential backoff and jitter.
type Executor struct {
	limiter *ratelimit.Limiter
	sink    telemetry.Sink
	logger  *slog.Logger
}

// NewExecutor builds an Executor. limiter may be nil when admission control
// is handled elsewhere.
func NewExecutor(limiter *ratelimit.Limiter, sink telemetry.Sink, logger *slog.Logger) *Executor {
	if sink == nil {
		sink = telemetry.Noop()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{limiter: limiter, sink: sink, logger: logger}
}

// Execute runs fn up to opts.Attempts times. It returns the last Result
// unchanged once attempts are exhausted (or immediately on success or a
// permanent classification); the caller decides whether that aborts the
// pipeline. The error return is non-nil only for hard failures (recovered
// panics) and accompanies a valid failed Result.
func (e *Executor) Execute(ctx context.Context, name string, fn StepFunc, opts RetryOptions) (Result, error) {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = defaultDelay
	}

	if opts.RateLimited && e.limiter != nil {
		key := tenancy.FromContext(ctx).Key()
		if !e.limiter.AllowTool(key, opts.Cost) {
			e.sink.Count("step_admission_rejected", 1, name)
			return Fail("tool rate limit exceeded for "+key,
				F(KeyRateLimitExceeded, true),
				F(KeyStatusCode, 429),
			), nil
		}
	}

	logger := logging.WithContext(ctx, e.logger)

	var last Result
	var hardErr error
	invocations := 0

	operation := func() error {
		invocations++
		result, panicErr := e.invoke(ctx, fn)
		last = result
		hardErr = panicErr
		if result.Success() {
			return nil
		}

		class := Classify(result)
		e.sink.Count("step_retry", 1, name, string(class))
		err := errors.New(result.Err())
		if class == ClassPermanent {
			logger.Debug("step failed permanently",
				logging.String(logging.FieldStep, name),
				logging.String("classification", string(class)),
				logging.String("error_message", result.Err()),
			)
			return backoff.Permanent(err)
		}
		logger.Debug("step attempt failed",
			logging.String(logging.FieldStep, name),
			logging.Int("attempt", invocations),
			logging.String("classification", string(class)),
			logging.String("error_message", result.Err()),
		)
		return err
	}

	policy := newRetryPolicy(delay)

	_ = backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx))

	if invocations == 0 {
		// Context was already done before the first attempt.
		msg := "step cancelled before first attempt"
		if err := ctx.Err(); err != nil {
			msg = err.Error()
		}
		return Fail(msg), nil
	}
	return last, hardErr
}

// newRetryPolicy builds the exponential policy with jitter. The exponential
// backoff caps only the pre-jitter interval, so the policy is wrapped to
// bound the interval actually slept on at maxBackoff.
func newRetryPolicy(delay time.Duration) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = delay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.5
	policy.MaxInterval = maxBackoff
	policy.MaxElapsedTime = 0
	policy.Reset()
	return cappedBackOff{BackOff: policy, limit: maxBackoff}
}

// cappedBackOff bounds the post-jitter interval. backoff.Stop is negative
// and passes through untouched.
type cappedBackOff struct {
	backoff.BackOff
	limit time.Duration
}

func (c cappedBackOff) NextBackOff() time.Duration {
	next := c.BackOff.NextBackOff()
	if next > c.limit {
		return c.limit
	}
	return next
}

func (e *Executor) invoke(ctx context.Context, fn StepFunc) (result Result, panicErr error) {
	defer func() {
		if r := recover(); r != nil {
			panicErr = fmt.Errorf("step panic: %v", r)
			result = Fail(panicErr.Error())
		}
	}()
	return fn(ctx), nil
}
