// Package resilience guards remote correction calls against degraded LLM
// endpoints.
//
// [Breaker] is a three-state circuit breaker: after enough consecutive
// failures it stops admitting calls for a cooldown period, then lets a single
// probe call through to decide whether the backend has recovered.
// [LLMFallback] chains several correction backends, each behind its own
// breaker, so a rate-limited or unreachable primary is bypassed in favour of
// the next configured backend.
//
// All types are safe for concurrent use.
package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed admits every call.
	StateClosed State = iota

	// StateOpen rejects every call until the cooldown elapses.
	StateOpen

	// StateHalfOpen admits one probe call. Its outcome decides whether the
	// breaker closes again or re-opens.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero values select the defaults.
type BreakerConfig struct {
	// Name labels the backend in log messages.
	Name string

	// FailureThreshold is the number of consecutive failures that trips the
	// breaker. Default 5.
	FailureThreshold int

	// Cooldown is how long a tripped breaker rejects calls before admitting
	// a probe. Default 30s.
	Cooldown time.Duration
}

// Breaker tracks the health of one correction backend. Callers ask [Allow]
// before a call and report the outcome with [Success] or [Failure].
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed [Breaker] with the supplied configuration.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.FailureThreshold,
		cooldown:  cfg.Cooldown,
	}
}

// Allow reports whether a call may proceed. While open it returns false until
// the cooldown has elapsed, then admits exactly one probe call; further calls
// are rejected until that probe's outcome is reported.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		slog.Info("breaker admitting probe call", "backend", b.name)
		return true

	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// Success reports a completed call. It closes the breaker and clears the
// failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		slog.Info("breaker closed after successful probe", "backend", b.name)
	}
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// Failure reports a failed call. In the half-open state any failure re-opens
// the breaker immediately; in the closed state the breaker trips once the
// consecutive failure count reaches the threshold.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trip()
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.trip()
	}
}

// trip moves the breaker to the open state. Caller must hold b.mu.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = time.Now()
	b.probing = false
	slog.Warn("breaker open, backend suspended",
		"backend", b.name,
		"consecutive_failures", b.failures,
		"cooldown", b.cooldown)
}

// State returns the breaker's current state. An open breaker whose cooldown
// has elapsed reports [StateHalfOpen]; the actual transition happens on the
// next [Breaker.Allow].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && time.Since(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed, clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.probing = false
	slog.Info("breaker reset", "backend", b.name)
}
