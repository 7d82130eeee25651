package model

import (
	"sync"
	"time"
)

// Clock abstracts time so breaker cooldowns, limiter windows, and backoff
// delays can be driven deterministically in tests, per spec.md §9 ("Global
// time" design note).
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the production Clock, backed by the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// ManualClock is a virtual clock for tests: Now() never advances on its own
// and Sleep() returns immediately after recording the requested duration,
// so retry/backoff/breaker/limiter tests run instantly and deterministically.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	asleep  []time.Duration
}

// NewManualClock creates a ManualClock starting at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the clock by d instead of actually blocking. Tests that
// need to observe the elapsed amount can call SleptDurations.
func (c *ManualClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.asleep = append(c.asleep, d)
}

// Advance moves the clock forward by d without recording a sleep, useful for
// simulating cooldown/window elapsing independently of the code under test.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SleptDurations returns the durations passed to Sleep, in call order.
func (c *ManualClock) SleptDurations() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.asleep))
	copy(out, c.asleep)
	return out
}
