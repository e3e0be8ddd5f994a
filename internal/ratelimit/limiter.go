// Package ratelimit provides tenant-keyed token-bucket admission control.
// Two independent bucket families exist: a coarse one gating whole-pipeline
// invocations and a finer one gating individual tool calls. Buckets are
// created lazily per key and refill based on elapsed wall-clock time; there
// is no background timer.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Settings describes the per-minute rates and burst capacities for both
// bucket families.
type Settings struct {
	PipelinePerMinute int
	PipelineBurst     int
	ToolPerMinute     int
	ToolBurst         int
}

// Limiter holds the tenant-keyed buckets. Keys from different tenants never
// interact: exhausting one tenant's bucket has no effect on any other key.
type Limiter struct {
	mu       sync.Mutex
	pipeline map[string]*rate.Limiter
	tools    map[string]*rate.Limiter
	settings Settings
}

// New constructs a Limiter. Non-positive rates fall back to 1/min with burst 1
// so a misconfigured limiter still admits work slowly instead of deadlocking.
func New(settings Settings) *Limiter {
	if settings.PipelinePerMinute <= 0 {
		settings.PipelinePerMinute = 1
	}
	if settings.PipelineBurst <= 0 {
		settings.PipelineBurst = settings.PipelinePerMinute
	}
	if settings.ToolPerMinute <= 0 {
		settings.ToolPerMinute = 1
	}
	if settings.ToolBurst <= 0 {
		settings.ToolBurst = settings.ToolPerMinute
	}
	return &Limiter{
		pipeline: make(map[string]*rate.Limiter),
		tools:    make(map[string]*rate.Limiter),
		settings: settings,
	}
}

// AllowPipeline reports whether a whole-pipeline invocation for the key may
// proceed, consuming one token when it does.
func (l *Limiter) AllowPipeline(key string) bool {
	return l.bucket(&l.pipeline, key, l.settings.PipelinePerMinute, l.settings.PipelineBurst).Allow()
}

// AllowTool reports whether a tool call for the key may proceed, consuming
// cost tokens when it does. A non-positive cost is treated as 1.
func (l *Limiter) AllowTool(key string, cost int) bool {
	if cost <= 0 {
		cost = 1
	}
	return l.bucket(&l.tools, key, l.settings.ToolPerMinute, l.settings.ToolBurst).AllowN(time.Now(), cost)
}

func (l *Limiter) bucket(family *map[string]*rate.Limiter, key string, perMinute, burst int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bucket, ok := (*family)[key]; ok {
		return bucket
	}
	bucket := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
	(*family)[key] = bucket
	return bucket
}
