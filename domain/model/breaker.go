package model

import (
	"sync"
	"time"
)

// CircuitBreakerState is the current gate state of a breaker.
type CircuitBreakerState int

const (
	// CircuitClosed: calls pass through normally.
	CircuitClosed CircuitBreakerState = iota

	// CircuitOpen: calls are refused without invoking the operation.
	CircuitOpen

	// CircuitHalfOpen: probes are allowed through to test recovery until a
	// success closes the circuit or Threshold failures re-open it.
	CircuitHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker guards a single transport, gating calls after consecutive
// failures and, once tripped, refusing calls until the cooldown elapses.
// After that it moves to HALF_OPEN and lets every call through; it does not
// limit HALF_OPEN to a single probe.
//
// HALF_OPEN behavior on failure: the counter increments and the breaker only
// re-opens once it crosses threshold again, rather than re-opening on the
// first HALF_OPEN failure. This matches the grounding implementation and is
// a deliberate decision, not an oversight (see DESIGN.md, Open Question 1).
type CircuitBreaker struct {
	Name      string
	Threshold int // consecutive failures required to open
	Cooldown  time.Duration

	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	earliestRetry   time.Time
	clock           Clock
}

// NewCircuitBreaker creates a breaker for the given transport name. threshold
// defaults to 5 and cooldown to 60s when given non-positive values, matching
// spec.md §4.2 defaults.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration, clock Clock) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &CircuitBreaker{
		Name:      name,
		Threshold: threshold,
		Cooldown:  cooldown,
		state:     CircuitClosed,
		clock:     clock,
	}
}

// Allow reports whether a call may proceed through this breaker right now.
// When the breaker is OPEN and the cooldown has elapsed, it transitions to
// HALF_OPEN and allows this probe through; further calls in HALF_OPEN are
// allowed as well.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.clock.Now().Before(cb.earliestRetry) {
			return false
		}
		cb.state = CircuitHalfOpen
		cb.failureCount = 0
		return true
	case CircuitHalfOpen:
		return true
	default: // CircuitClosed
		return true
	}
}

// RecordSuccess resets the failure counter and, from HALF_OPEN, closes the
// circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
	}
}

// RecordFailure increments the consecutive-failure counter and opens (or
// re-opens) the circuit once it reaches Threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	if cb.failureCount >= cb.Threshold {
		cb.state = CircuitOpen
		cb.earliestRetry = cb.clock.Now().Add(cb.Cooldown)
	}
}

// UpdateTuning changes the breaker's threshold and cooldown in place, letting
// a live config reload retune it without resetting its current state.
// Non-positive values are ignored (the existing value is kept), matching
// NewCircuitBreaker's own defaulting.
func (cb *CircuitBreaker) UpdateTuning(threshold int, cooldown time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if threshold > 0 {
		cb.Threshold = threshold
	}
	if cooldown > 0 {
		cb.Cooldown = cooldown
	}
}

// Reset forces the breaker back to CLOSED with a zeroed failure counter.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failureCount = 0
	cb.earliestRetry = time.Time{}
}

// BreakerSnapshot is the read-only view exposed via Coordinator.Snapshot.
type BreakerSnapshot struct {
	Name         string
	State        CircuitBreakerState
	FailureCount int
}

// Snapshot returns a consistent point-in-time view of the breaker.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return BreakerSnapshot{
		Name:         cb.Name,
		State:        cb.state,
		FailureCount: cb.failureCount,
	}
}
