package ratelimit_test

import (
	"sync"
	"testing"

	"loom/internal/ratelimit"
)

func newTestLimiter() *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Settings{
		PipelinePerMinute: 2,
		PipelineBurst:     2,
		ToolPerMinute:     10,
		ToolBurst:         10,
	})
}

func TestPipelineBucketExhausts(t *testing.T) {
	limiter := newTestLimiter()
	if !limiter.AllowPipeline("acme:main") {
		t.Fatal("first invocation should be admitted")
	}
	if !limiter.AllowPipeline("acme:main") {
		t.Fatal("second invocation should be admitted")
	}
	if limiter.AllowPipeline("acme:main") {
		t.Fatal("third invocation should be rejected")
	}
}

func TestTenantIsolation(t *testing.T) {
	limiter := newTestLimiter()
	for limiter.AllowPipeline("acme:main") {
	}
	if !limiter.AllowPipeline("globex:main") {
		t.Fatal("exhausting one tenant must not affect another")
	}
}

func TestToolBucketsIndependentOfPipeline(t *testing.T) {
	limiter := newTestLimiter()
	for limiter.AllowPipeline("acme:main") {
	}
	if !limiter.AllowTool("acme:main", 1) {
		t.Fatal("tool bucket must be independent of the pipeline bucket")
	}
}

func TestToolCost(t *testing.T) {
	limiter := newTestLimiter()
	if !limiter.AllowTool("acme:main", 10) {
		t.Fatal("burst-sized cost should be admitted")
	}
	if limiter.AllowTool("acme:main", 1) {
		t.Fatal("bucket should be empty after burst-sized cost")
	}
	if !limiter.AllowTool("globex:main", 1) {
		t.Fatal("other tenant's tool bucket must be untouched")
	}
}

func TestConcurrentCallersSameKey(t *testing.T) {
	limiter := newTestLimiter()
	var wg sync.WaitGroup
	admitted := make(chan struct{}, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.AllowTool("acme:main", 1) {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)
	count := 0
	for range admitted {
		count++
	}
	if count == 0 || count > 10 {
		t.Fatalf("expected between 1 and 10 admissions, got %d", count)
	}
}
