// Package mock provides a reference Transport for tests and local
// exercising of the coordinator, per spec.md §1's note that mock transports
// with tunable failure rate and latency are provided for testing only.
package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajkula/sendcoordinator/domain/model"
)

// Transport is a deterministic-enough stand-in for a real delivery
// provider: each Attempt sleeps Latency, then fails with probability
// FailureRate and otherwise succeeds.
type Transport struct {
	name        string
	FailureRate float64
	Latency     time.Duration

	// Clock, when set, is used for the Latency sleep instead of time.Sleep,
	// letting tests run with a virtual clock.
	Clock model.Clock

	// Rand allows tests to make failure/success deterministic; defaults to
	// the package-level math/rand source.
	Rand *rand.Rand

	mu         sync.Mutex
	attempts   int32
	calls      []string // fingerprints in call order, for assertions
}

// New builds a mock transport named name with the given failure rate
// (0..1) and per-attempt latency.
func New(name string, failureRate float64, latency time.Duration) *Transport {
	return &Transport{name: name, FailureRate: failureRate, Latency: latency}
}

func (m *Transport) Name() string { return m.name }

// Attempt implements outbound.Transport.
func (m *Transport) Attempt(ctx context.Context, message *model.Message) (model.DeliveryReceipt, error) {
	atomic.AddInt32(&m.attempts, 1)

	m.mu.Lock()
	m.calls = append(m.calls, string(message.Fingerprint()))
	m.mu.Unlock()

	if m.Latency > 0 {
		if m.Clock != nil {
			m.Clock.Sleep(m.Latency)
		} else {
			select {
			case <-time.After(m.Latency):
			case <-ctx.Done():
				return model.DeliveryReceipt{}, ctx.Err()
			}
		}
	}

	if m.fails() {
		return model.DeliveryReceipt{}, fmt.Errorf("%s: simulated transient failure", m.name)
	}

	now := time.Now()
	if m.Clock != nil {
		now = m.Clock.Now()
	}

	return model.DeliveryReceipt{
		DeliveryID: fmt.Sprintf("%s-%d", m.name, atomic.LoadInt32(&m.attempts)),
		Timestamp:  now,
		Transport:  m.name,
	}, nil
}

func (m *Transport) fails() bool {
	if m.FailureRate <= 0 {
		return false
	}
	if m.FailureRate >= 1 {
		return true
	}
	if m.Rand != nil {
		return m.Rand.Float64() < m.FailureRate
	}
	return rand.Float64() < m.FailureRate
}

// Attempts returns the total number of Attempt invocations observed.
func (m *Transport) Attempts() int {
	return int(atomic.LoadInt32(&m.attempts))
}

// Calls returns the fingerprints passed to Attempt, in call order.
func (m *Transport) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
