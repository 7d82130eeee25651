package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/sendcoordinator/domain/model"
	"github.com/ajkula/sendcoordinator/domain/port/inbound"
	"github.com/ajkula/sendcoordinator/domain/port/outbound"
)

// stubTransport is a hand-rolled outbound.Transport with scripted outcomes,
// used where the mock package's probabilistic failure model would make a
// scenario's exact attempt count non-deterministic.
type stubTransport struct {
	name     string
	outcomes []error // nil means success; consumed in order, last one repeats
	calls    int
}

func (s *stubTransport) Name() string { return s.name }

func (s *stubTransport) Attempt(ctx context.Context, m *model.Message) (model.DeliveryReceipt, error) {
	idx := s.calls
	if idx >= len(s.outcomes) {
		idx = len(s.outcomes) - 1
	}
	s.calls++
	if s.outcomes[idx] != nil {
		return model.DeliveryReceipt{}, s.outcomes[idx]
	}
	return model.DeliveryReceipt{DeliveryID: fmt.Sprintf("%s-%d", s.name, s.calls), Transport: s.name}, nil
}

func testMessage(subject string) *model.Message {
	return &model.Message{Destination: "a@x", Origin: "b@y", Subject: subject, Body: "b"}
}

func noopLogger() outbound.Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

// S1 — happy path.
func TestCoordinator_S1_HappyPath(t *testing.T) {
	clock := model.NewManualClock(time.Unix(0, 0))
	p1 := &stubTransport{name: "P1", outcomes: []error{nil}}
	c := NewCoordinatorService([]outbound.Transport{p1}, EngineConfig{Clock: clock}, noopLogger())
	defer c.Shutdown()

	res, err := c.Submit(testMessage("s"))
	require.NoError(t, err)
	require.Equal(t, inbound.OutcomeSent, res.Outcome)
	assert.Equal(t, "P1", res.Success.Transport)

	st, ok := c.LookupStatus(testMessage("s").Fingerprint())
	require.True(t, ok)
	assert.Equal(t, model.StatusSent, st.Value)
	assert.Equal(t, 1, st.Attempts)
}

// S2 — fallback.
func TestCoordinator_S2_Fallback(t *testing.T) {
	clock := model.NewManualClock(time.Unix(0, 0))
	bad := &stubTransport{name: "Bad", outcomes: []error{fmt.Errorf("boom"), fmt.Errorf("boom")}}
	good := &stubTransport{name: "Good", outcomes: []error{nil}}

	c := NewCoordinatorService([]outbound.Transport{bad, good}, EngineConfig{MaxRetries: 1, Clock: clock}, noopLogger())
	defer c.Shutdown()

	res, err := c.Submit(testMessage("s"))
	require.NoError(t, err)
	require.Equal(t, inbound.OutcomeSent, res.Outcome)
	assert.Equal(t, "Good", res.Success.Transport)
	assert.Equal(t, 2, bad.calls)
	assert.Equal(t, 1, good.calls)
}

// S3 — exhaustion.
func TestCoordinator_S3_Exhaustion(t *testing.T) {
	clock := model.NewManualClock(time.Unix(0, 0))
	bad := &stubTransport{name: "Bad", outcomes: []error{fmt.Errorf("boom")}}

	c := NewCoordinatorService([]outbound.Transport{bad}, EngineConfig{MaxRetries: 0, Clock: clock}, noopLogger())
	defer c.Shutdown()

	var failedEvents int
	c.Subscribe(model.EventFailed, func(e model.Event) { failedEvents++ })

	res, err := c.Submit(testMessage("s"))
	require.NoError(t, err)
	require.Equal(t, inbound.OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, failedEvents)
}

// S4 — idempotent replay.
func TestCoordinator_S4_IdempotentReplay(t *testing.T) {
	clock := model.NewManualClock(time.Unix(0, 0))
	p1 := &stubTransport{name: "P1", outcomes: []error{nil}}

	c := NewCoordinatorService([]outbound.Transport{p1}, EngineConfig{Clock: clock}, noopLogger())
	defer c.Shutdown()

	m := testMessage("s")
	res1, err := c.Submit(m)
	require.NoError(t, err)
	res2, err := c.Submit(m)
	require.NoError(t, err)

	assert.Equal(t, res1.Success.DeliveryID, res2.Success.DeliveryID)
	assert.Equal(t, 1, p1.calls)
}

// S5 — rate-limit queueing.
func TestCoordinator_S5_RateLimitQueueing(t *testing.T) {
	clock := model.NewManualClock(time.Unix(0, 0))
	p1 := &stubTransport{name: "P1", outcomes: []error{nil, nil}}

	c := NewCoordinatorService([]outbound.Transport{p1}, EngineConfig{
		RateMaxRequests: 1,
		RateWindow:      time.Second,
		DrainInterval:   5 * time.Millisecond,
		Clock:           clock,
	}, noopLogger())
	defer c.Shutdown()

	var queuedEvents int
	c.Subscribe(model.EventQueued, func(e model.Event) { queuedEvents++ })

	res1, err := c.Submit(testMessage("m1"))
	require.NoError(t, err)
	assert.Equal(t, inbound.OutcomeSent, res1.Outcome)

	res2, err := c.Submit(testMessage("m2"))
	require.NoError(t, err)
	require.Equal(t, inbound.OutcomeQueued, res2.Outcome)
	assert.Equal(t, 1, queuedEvents)

	// the limiter runs on the manual clock, so advance it past the window;
	// the drain ticker runs on real time (EngineConfig.Clock does not drive
	// it), so wait in real time for a couple of drain cadences.
	clock.Advance(time.Second + 10*time.Millisecond)
	require.Eventually(t, func() bool {
		st, ok := c.LookupStatus(testMessage("m2").Fingerprint())
		return ok && st.Value == model.StatusSent
	}, time.Second, 5*time.Millisecond, "m2 should eventually drain to SENT")
}

// S6 — breaker trip.
func TestCoordinator_S6_BreakerTrip(t *testing.T) {
	clock := model.NewManualClock(time.Unix(0, 0))
	p1 := &stubTransport{name: "P1", outcomes: []error{
		fmt.Errorf("e"), fmt.Errorf("e"), fmt.Errorf("e"), fmt.Errorf("e"),
		fmt.Errorf("e"), fmt.Errorf("e"), fmt.Errorf("e"), fmt.Errorf("e"),
		fmt.Errorf("e"), fmt.Errorf("e"), fmt.Errorf("e"), fmt.Errorf("e"),
		fmt.Errorf("e"), fmt.Errorf("e"), fmt.Errorf("e"), fmt.Errorf("e"),
		fmt.Errorf("e"), fmt.Errorf("e"),
	}}
	p2 := &stubTransport{name: "P2", outcomes: []error{nil, nil, nil, nil}}

	c := NewCoordinatorService([]outbound.Transport{p1, p2}, EngineConfig{
		MaxRetries:       5,
		BaseDelay:        time.Millisecond,
		BreakerThreshold: 3,
		BreakerCooldown:  200 * time.Millisecond,
		Clock:            clock,
	}, noopLogger())
	defer c.Shutdown()

	for i := 0; i < 3; i++ {
		res, err := c.Submit(testMessage(fmt.Sprintf("m%d", i)))
		require.NoError(t, err)
		require.Equal(t, inbound.OutcomeSent, res.Outcome, "P2 fallback must rescue every submission")
	}

	snap := c.Snapshot()
	var p1State model.CircuitBreakerState
	for _, p := range snap.Providers {
		if p.Name == "P1" {
			p1State = p.BreakerState
		}
	}
	require.Equal(t, model.CircuitOpen, p1State, "P1 breaker must be OPEN after 3rd submission")

	callsBefore := p1.calls
	res, err := c.Submit(testMessage("m3"))
	require.NoError(t, err)
	assert.Equal(t, inbound.OutcomeSent, res.Outcome)
	assert.Equal(t, callsBefore, p1.calls, "breaker-open transport must not be invoked")
}

func TestCoordinator_InvalidMessage(t *testing.T) {
	c := NewCoordinatorService(nil, EngineConfig{}, noopLogger())
	defer c.Shutdown()

	_, err := c.Submit(&model.Message{})
	assert.ErrorIs(t, err, model.ErrInvalidMessage)
}

func TestCoordinator_NoTransports(t *testing.T) {
	c := NewCoordinatorService(nil, EngineConfig{}, noopLogger())
	defer c.Shutdown()

	_, err := c.Submit(testMessage("s"))
	assert.ErrorIs(t, err, model.ErrNoTransports)
}

func TestCoordinator_Snapshot_SuccessRate(t *testing.T) {
	clock := model.NewManualClock(time.Unix(0, 0))
	p1 := &stubTransport{name: "P1", outcomes: []error{nil, fmt.Errorf("e")}}

	c := NewCoordinatorService([]outbound.Transport{p1}, EngineConfig{MaxRetries: 0, Clock: clock}, noopLogger())
	defer c.Shutdown()

	_, _ = c.Submit(testMessage("ok"))
	_, _ = c.Submit(testMessage("bad"))

	snap := c.Snapshot()
	assert.Equal(t, 2, snap.TotalObserved)
	assert.Equal(t, 1, snap.Sent)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, "50.00%", snap.SuccessRate)
}

// TestCoordinator_BreakerOpenDoesNotConsumeRetryBudget pins down Open
// Question 4: a breaker-open refusal must abandon the transport without
// spending any of its retry attempts, and fallback proceeds immediately.
func TestCoordinator_BreakerOpenDoesNotConsumeRetryBudget(t *testing.T) {
	clock := model.NewManualClock(time.Unix(0, 0))
	p1 := &stubTransport{name: "P1", outcomes: []error{fmt.Errorf("e"), fmt.Errorf("e")}}
	p2 := &stubTransport{name: "P2", outcomes: []error{nil}}

	c := NewCoordinatorService([]outbound.Transport{p1, p2}, EngineConfig{
		MaxRetries:       5,
		BreakerThreshold: 2,
		Clock:            clock,
	}, noopLogger())
	defer c.Shutdown()

	_, err := c.Submit(testMessage("trip"))
	require.NoError(t, err)
	require.Equal(t, 2, p1.calls, "breaker trips after exactly 2 failures, not retried further")
}

// TestCoordinator_BackoffBounds pins down spec.md §8's quantified backoff
// invariant: baseDelay*2^a <= d <= min(maxDelay, baseDelay*2^a + jitterCeil),
// for every retry a the manual clock observes via SleptDurations.
func TestCoordinator_BackoffBounds(t *testing.T) {
	clock := model.NewManualClock(time.Unix(0, 0))
	baseDelay := 10 * time.Millisecond
	maxDelay := 200 * time.Millisecond
	failures := 4

	outcomes := make([]error, 0, failures+1)
	for i := 0; i < failures; i++ {
		outcomes = append(outcomes, fmt.Errorf("e%d", i))
	}
	outcomes = append(outcomes, nil)
	p1 := &stubTransport{name: "P1", outcomes: outcomes}

	c := NewCoordinatorService([]outbound.Transport{p1}, EngineConfig{
		MaxRetries: failures,
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		Clock:      clock,
	}, noopLogger())
	defer c.Shutdown()

	res, err := c.Submit(testMessage("s"))
	require.NoError(t, err)
	require.Equal(t, inbound.OutcomeSent, res.Outcome)

	slept := clock.SleptDurations()
	require.Len(t, slept, failures)

	for a, d := range slept {
		scaled := baseDelay * time.Duration(1<<uint(a))
		upperBound := scaled + scaled/10
		if upperBound > maxDelay {
			upperBound = maxDelay
		}
		assert.GreaterOrEqual(t, d, scaled, "attempt %d: delay must be >= baseDelay*2^a", a)
		assert.LessOrEqual(t, d, maxDelay, "attempt %d: delay must never exceed maxDelay", a)
		assert.LessOrEqual(t, d, upperBound, "attempt %d: delay must stay within jitter bound", a)
	}
}

// TestCoordinator_BackoffBounds_ClampsToMaxDelay exercises the branch where
// baseDelay*2^a alone already exceeds maxDelay, so every slept duration must
// clamp to exactly maxDelay regardless of jitter.
func TestCoordinator_BackoffBounds_ClampsToMaxDelay(t *testing.T) {
	clock := model.NewManualClock(time.Unix(0, 0))
	baseDelay := 70 * time.Millisecond
	maxDelay := 60 * time.Millisecond
	failures := 3

	outcomes := make([]error, 0, failures+1)
	for i := 0; i < failures; i++ {
		outcomes = append(outcomes, fmt.Errorf("e%d", i))
	}
	outcomes = append(outcomes, nil)
	p1 := &stubTransport{name: "P1", outcomes: outcomes}

	c := NewCoordinatorService([]outbound.Transport{p1}, EngineConfig{
		MaxRetries: failures,
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		Clock:      clock,
	}, noopLogger())
	defer c.Shutdown()

	_, err := c.Submit(testMessage("s"))
	require.NoError(t, err)

	slept := clock.SleptDurations()
	require.Len(t, slept, failures)
	for a, d := range slept {
		assert.Equal(t, maxDelay, d, "attempt %d: scaled delay already exceeds maxDelay, must clamp", a)
	}
}
