package resilience_test

import (
	"testing"
	"time"

	"github.com/hokomura/kousei/internal/resilience"
)

func newTripped(t *testing.T, cfg resilience.BreakerConfig) *resilience.Breaker {
	t.Helper()
	b := resilience.NewBreaker(cfg)
	for i := 0; i < cfg.FailureThreshold; i++ {
		b.Failure()
	}
	if got := b.State(); got != resilience.StateOpen {
		t.Fatalf("state after %d failures = %v, want open", cfg.FailureThreshold, got)
	}
	return b
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{FailureThreshold: 3, Cooldown: time.Hour})

	b.Failure()
	b.Failure()
	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("state after 2 of 3 failures = %v, want closed", got)
	}
	if !b.Allow() {
		t.Fatal("Allow() = false while closed")
	}

	b.Failure()
	if got := b.State(); got != resilience.StateOpen {
		t.Fatalf("state after 3 failures = %v, want open", got)
	}
	if b.Allow() {
		t.Fatal("Allow() = true while open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})

	b.Failure()
	b.Success()
	b.Failure()
	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("state = %v, want closed: success should clear the failure streak", got)
	}
}

func TestBreaker_AdmitsSingleProbeAfterCooldown(t *testing.T) {
	t.Parallel()

	b := newTripped(t, resilience.BreakerConfig{FailureThreshold: 1, Cooldown: 20 * time.Millisecond})

	if b.Allow() {
		t.Fatal("Allow() = true before cooldown elapsed")
	}

	time.Sleep(30 * time.Millisecond)

	if got := b.State(); got != resilience.StateHalfOpen {
		t.Fatalf("state after cooldown = %v, want half-open", got)
	}
	if !b.Allow() {
		t.Fatal("Allow() = false for first caller after cooldown")
	}
	if b.Allow() {
		t.Fatal("Allow() = true while a probe is outstanding")
	}
}

func TestBreaker_ClosesOnProbeSuccess(t *testing.T) {
	t.Parallel()

	b := newTripped(t, resilience.BreakerConfig{FailureThreshold: 1, Cooldown: time.Millisecond})
	time.Sleep(5 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("Allow() = false for probe")
	}
	b.Success()

	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("state after probe success = %v, want closed", got)
	}
	if !b.Allow() {
		t.Fatal("Allow() = false after breaker closed")
	}
}

func TestBreaker_ReopensOnProbeFailure(t *testing.T) {
	t.Parallel()

	b := newTripped(t, resilience.BreakerConfig{FailureThreshold: 3, Cooldown: 30 * time.Millisecond})
	time.Sleep(40 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("Allow() = false for probe")
	}
	b.Failure()

	if got := b.State(); got != resilience.StateOpen {
		t.Fatalf("state after probe failure = %v, want open", got)
	}
	if b.Allow() {
		t.Fatal("Allow() = true right after a failed probe reopened the breaker")
	}
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	b := newTripped(t, resilience.BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})

	b.Reset()
	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("state after Reset = %v, want closed", got)
	}
	if !b.Allow() {
		t.Fatal("Allow() = false after Reset")
	}
}

func TestBreaker_Defaults(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{})
	for i := 0; i < 4; i++ {
		b.Failure()
	}
	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("state after 4 failures = %v, want closed under default threshold of 5", got)
	}
	b.Failure()
	if got := b.State(); got != resilience.StateOpen {
		t.Fatalf("state after 5 failures = %v, want open", got)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state resilience.State
		want  string
	}{
		{resilience.StateClosed, "closed"},
		{resilience.StateOpen, "open"},
		{resilience.StateHalfOpen, "half-open"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
