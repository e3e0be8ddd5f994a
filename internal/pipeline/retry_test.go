package pipeline_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"loom/internal/pipeline"
	"loom/internal/ratelimit"
)

func newTestExecutor(limiter *ratelimit.Limiter) *pipeline.Executor {
	return pipeline.NewExecutor(limiter, nil, nil)
}

func TestExecutorRetriesTransientFailures(t *testing.T) {
	exec := newTestExecutor(nil)
	invocations := 0
	fn := func(ctx context.Context) pipeline.Result {
		invocations++
		if invocations < 3 {
			return pipeline.Fail("connection refused")
		}
		return pipeline.Ok(pipeline.F("attempt", invocations))
	}

	result, err := exec.Execute(context.Background(), "flaky", fn, pipeline.RetryOptions{
		Attempts: 3,
		Delay:    time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected hard error: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success after retries, got %q", result.Err())
	}
	if invocations != 3 {
		t.Fatalf("expected 3 invocations, got %d", invocations)
	}
}

func TestExecutorExhaustsAttempts(t *testing.T) {
	exec := newTestExecutor(nil)
	invocations := 0
	fn := func(ctx context.Context) pipeline.Result {
		invocations++
		return pipeline.Fail("upstream timeout")
	}

	result, err := exec.Execute(context.Background(), "hopeless", fn, pipeline.RetryOptions{
		Attempts: 3,
		Delay:    time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected hard error: %v", err)
	}
	if result.Success() {
		t.Fatal("expected failure after exhausting attempts")
	}
	if invocations != 3 {
		t.Fatalf("expected exactly 3 invocations, got %d", invocations)
	}
	if result.Err() != "upstream timeout" {
		t.Fatalf("expected last failure to pass through unchanged, got %q", result.Err())
	}
}

func TestExecutorStopsOnPermanentFailure(t *testing.T) {
	exec := newTestExecutor(nil)
	invocations := 0
	fn := func(ctx context.Context) pipeline.Result {
		invocations++
		return pipeline.Fail("validation error: download: empty url")
	}

	result, err := exec.Execute(context.Background(), "invalid", fn, pipeline.RetryOptions{
		Attempts: 3,
		Delay:    time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected hard error: %v", err)
	}
	if result.Success() {
		t.Fatal("expected failure")
	}
	if invocations != 1 {
		t.Fatalf("permanent failure must not be retried; got %d invocations", invocations)
	}
}

func TestExecutorAdmissionConsumesZeroAttempts(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Settings{
		ToolPerMinute: 1,
		ToolBurst:     1,
	})
	exec := newTestExecutor(limiter)

	first, err := exec.Execute(context.Background(), "tool", func(ctx context.Context) pipeline.Result {
		return pipeline.Ok()
	}, pipeline.RetryOptions{Attempts: 1, RateLimited: true})
	if err != nil || !first.Success() {
		t.Fatalf("first call should pass admission: %v %q", err, first.Err())
	}

	invocations := 0
	second, err := exec.Execute(context.Background(), "tool", func(ctx context.Context) pipeline.Result {
		invocations++
		return pipeline.Ok()
	}, pipeline.RetryOptions{Attempts: 3, RateLimited: true})
	if err != nil {
		t.Fatalf("unexpected hard error: %v", err)
	}
	if second.Success() {
		t.Fatal("expected admission rejection")
	}
	if invocations != 0 {
		t.Fatalf("admission rejection must consume zero attempts, got %d", invocations)
	}
	if code, _ := second.Int(pipeline.KeyStatusCode); code != 429 {
		t.Fatalf("expected 429 status code, got %d", code)
	}
	if !second.Bool(pipeline.KeyRateLimitExceeded) {
		t.Fatal("expected rate_limit_exceeded marker")
	}
}

func TestExecutorConvertsPanicsToHardFailures(t *testing.T) {
	exec := newTestExecutor(nil)
	result, err := exec.Execute(context.Background(), "broken", func(ctx context.Context) pipeline.Result {
		panic("nil map write")
	}, pipeline.RetryOptions{Attempts: 1})

	if err == nil {
		t.Fatal("expected hard error for recovered panic")
	}
	if !strings.Contains(err.Error(), "step panic") {
		t.Fatalf("unexpected hard error text: %v", err)
	}
	if result.Success() {
		t.Fatal("panic must yield a failed result")
	}
	if !strings.Contains(result.Err(), "nil map write") {
		t.Fatalf("expected panic value in result error, got %q", result.Err())
	}
}

func TestExecutorHonorsCancelledContext(t *testing.T) {
	exec := newTestExecutor(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	invocations := 0
	result, err := exec.Execute(ctx, "cancelled", func(ctx context.Context) pipeline.Result {
		invocations++
		return pipeline.Fail("connection refused")
	}, pipeline.RetryOptions{Attempts: 3, Delay: time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected hard error: %v", err)
	}
	if result.Success() {
		t.Fatal("expected failure under cancelled context")
	}
	if invocations > 1 {
		t.Fatalf("cancelled context must stop the retry loop, got %d invocations", invocations)
	}
}
