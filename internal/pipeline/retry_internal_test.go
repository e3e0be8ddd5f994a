package pipeline

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type fixedBackOff struct{ next time.Duration }

func (f fixedBackOff) NextBackOff() time.Duration { return f.next }
func (f fixedBackOff) Reset()                     {}

func TestCappedBackOffBoundsJitteredInterval(t *testing.T) {
	over := cappedBackOff{BackOff: fixedBackOff{next: 90 * time.Second}, limit: maxBackoff}
	if got := over.NextBackOff(); got != maxBackoff {
		t.Fatalf("expected interval capped at %s, got %s", maxBackoff, got)
	}

	under := cappedBackOff{BackOff: fixedBackOff{next: 3 * time.Second}, limit: maxBackoff}
	if got := under.NextBackOff(); got != 3*time.Second {
		t.Fatalf("expected interval passed through, got %s", got)
	}

	stopped := cappedBackOff{BackOff: fixedBackOff{next: backoff.Stop}, limit: maxBackoff}
	if got := stopped.NextBackOff(); got != backoff.Stop {
		t.Fatalf("expected stop sentinel preserved, got %s", got)
	}
}

func TestRetryPolicyNeverSleepsPastCeiling(t *testing.T) {
	policy := newRetryPolicy(2 * time.Second)
	for i := 0; i < 32; i++ {
		if next := policy.NextBackOff(); next > maxBackoff {
			t.Fatalf("draw %d: interval %s exceeds %s", i, next, maxBackoff)
		}
	}
}
