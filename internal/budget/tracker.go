// Package budget tracks per-run spend against tenant-scoped limits. A lease
// is acquired for the whole pipeline run and released on every exit path;
// charges are monotonic and applied once per step, never per retry attempt.
package budget

import (
	"fmt"
	"sync"

	"loom/internal/services"
)

// Limits describes the total-run cap and optional per-task caps, in the same
// abstract cost units as charges.
type Limits struct {
	Total   float64
	PerTask map[string]float64
}

// Tracker hands out run leases. Safe for concurrent use across runs.
type Tracker struct {
	limits Limits

	mu     sync.Mutex
	active map[string]int
}

// NewTracker constructs a Tracker with the given limits. A zero Total means
// unlimited.
func NewTracker(limits Limits) *Tracker {
	return &Tracker{limits: limits, active: make(map[string]int)}
}

// ActiveRuns reports the number of unreleased leases for the key.
func (t *Tracker) ActiveRuns(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[key]
}

// Begin opens a lease for one pipeline run under the tenant key. The returned
// release function is idempotent and must be called on every exit path.
func (t *Tracker) Begin(key string) (*Lease, func()) {
	t.mu.Lock()
	t.active[key]++
	t.mu.Unlock()

	lease := &Lease{limits: t.limits, perTask: make(map[string]float64)}
	var once sync.Once
	release := func() {
		once.Do(func() {
			lease.close()
			t.mu.Lock()
			if t.active[key] > 0 {
				t.active[key]--
			}
			t.mu.Unlock()
		})
	}
	return lease, release
}

// Lease accumulates charges for a single run.
type Lease struct {
	limits Limits

	mu      sync.Mutex
	total   float64
	perTask map[string]float64
	closed  bool
}

// Charge records cost against the run and the named task. It returns a
// budget-marked error when either limit would be exceeded; the spend is not
// recorded in that case, so a rejected charge never consumes budget.
func (l *Lease) Charge(task string, cost float64) error {
	if cost <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return services.Wrap(services.ErrBudget, task, "charge", "lease already released", nil)
	}
	if l.limits.Total > 0 && l.total+cost > l.limits.Total {
		return services.Wrap(services.ErrBudget, task, "charge",
			fmt.Sprintf("total limit %.2f exceeded by charge %.2f (spent %.2f)", l.limits.Total, cost, l.total), nil)
	}
	if limit, ok := l.limits.PerTask[task]; ok && limit > 0 && l.perTask[task]+cost > limit {
		return services.Wrap(services.ErrBudget, task, "charge",
			fmt.Sprintf("task limit %.2f exceeded by charge %.2f (spent %.2f)", limit, cost, l.perTask[task]), nil)
	}
	l.total += cost
	l.perTask[task] += cost
	return nil
}

// Spent returns the total recorded for the run so far.
func (l *Lease) Spent() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

func (l *Lease) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}
