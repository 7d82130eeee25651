package model

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window-log admission gate. The ledger is global
// across submissions; the deferred-queue drain worker shares the same
// instance so both paths are admitted against a single count.
type RateLimiter struct {
	MaxRequests int
	Window      time.Duration

	mu     sync.Mutex
	ledger []time.Time
	clock  Clock
}

// NewRateLimiter builds a limiter; maxRequests defaults to 100 and window to
// 60s when given non-positive values, per spec.md §6 defaults.
func NewRateLimiter(maxRequests int, window time.Duration, clock Clock) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = 100
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &RateLimiter{
		MaxRequests: maxRequests,
		Window:      window,
		clock:       clock,
	}
}

// Admit evicts stale timestamps, then admits the caller iff the ledger has
// room, appending the current instant on admission. Ledger mutation is
// serialized so a concurrent Admit/WaitHint pair cannot overshoot.
func (r *RateLimiter) Admit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.evictLocked(now)

	if len(r.ledger) >= r.MaxRequests {
		return false
	}

	r.ledger = append(r.ledger, now)
	return true
}

// WaitHint returns an advisory duration until the next admission is likely
// to succeed: 0 if the ledger is empty, else the time remaining until the
// oldest entry ages out of the window, clamped to >= 0.
func (r *RateLimiter) WaitHint() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.evictLocked(now)

	if len(r.ledger) == 0 {
		return 0
	}

	remaining := r.Window - now.Sub(r.ledger[0])
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UpdateLimits changes the admission ceiling and window in place, letting a
// live config reload retune the limiter without losing its ledger.
// maxRequests/window non-positive values are ignored (the existing value is
// kept), matching NewRateLimiter's own defaulting.
func (r *RateLimiter) UpdateLimits(maxRequests int, window time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if maxRequests > 0 {
		r.MaxRequests = maxRequests
	}
	if window > 0 {
		r.Window = window
	}
}

// evictLocked drops ledger entries older than the window. Caller must hold mu.
func (r *RateLimiter) evictLocked(now time.Time) {
	cutoff := now.Add(-r.Window)
	i := 0
	for i < len(r.ledger) && r.ledger[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		r.ledger = r.ledger[i:]
	}
}
