package budget_test

import (
	"errors"
	"testing"

	"loom/internal/budget"
	"loom/internal/services"
)

func TestChargeWithinLimits(t *testing.T) {
	tracker := budget.NewTracker(budget.Limits{Total: 10, PerTask: map[string]float64{"analysis": 4}})
	lease, release := tracker.Begin("acme:main")
	defer release()

	if err := lease.Charge("analysis", 3); err != nil {
		t.Fatalf("charge within limits: %v", err)
	}
	if got := lease.Spent(); got != 3 {
		t.Fatalf("expected spend 3, got %v", got)
	}
}

func TestPerTaskLimit(t *testing.T) {
	tracker := budget.NewTracker(budget.Limits{Total: 10, PerTask: map[string]float64{"analysis": 4}})
	lease, release := tracker.Begin("acme:main")
	defer release()

	if err := lease.Charge("analysis", 4); err != nil {
		t.Fatalf("charge at limit: %v", err)
	}
	err := lease.Charge("analysis", 0.5)
	if err == nil {
		t.Fatal("expected task limit error")
	}
	if !errors.Is(err, services.ErrBudget) {
		t.Fatalf("expected budget marker, got %v", err)
	}
	// Rejected charges must not consume budget for other tasks.
	if err := lease.Charge("fallacy_detection", 4); err != nil {
		t.Fatalf("other task should still have headroom: %v", err)
	}
}

func TestTotalLimit(t *testing.T) {
	tracker := budget.NewTracker(budget.Limits{Total: 5})
	lease, release := tracker.Begin("acme:main")
	defer release()

	if err := lease.Charge("analysis", 5); err != nil {
		t.Fatalf("charge at total: %v", err)
	}
	if err := lease.Charge("perspective_synthesis", 0.01); !errors.Is(err, services.ErrBudget) {
		t.Fatalf("expected total limit rejection, got %v", err)
	}
}

func TestReleaseIsIdempotentAndClosesLease(t *testing.T) {
	tracker := budget.NewTracker(budget.Limits{Total: 5})
	lease, release := tracker.Begin("acme:main")
	if tracker.ActiveRuns("acme:main") != 1 {
		t.Fatalf("expected 1 active run, got %d", tracker.ActiveRuns("acme:main"))
	}
	release()
	release()
	if tracker.ActiveRuns("acme:main") != 0 {
		t.Fatalf("expected 0 active runs after release, got %d", tracker.ActiveRuns("acme:main"))
	}
	if err := lease.Charge("analysis", 1); !errors.Is(err, services.ErrBudget) {
		t.Fatalf("expected charge on released lease to fail, got %v", err)
	}
}
