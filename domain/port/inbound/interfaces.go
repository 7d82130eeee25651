package inbound

import (
	"github.com/ajkula/sendcoordinator/domain/model"
)

// SubmitOutcome tags which of the three Submit result shapes a call
// produced, since Go has no tagged-union return type.
type SubmitOutcome int

const (
	OutcomeSent SubmitOutcome = iota
	OutcomeQueued
	OutcomeFailed
)

// SubmitResult wraps Submit's three possible outcomes (spec.md §4.1):
// SuccessResult, QueuedResult, or FailureResult. Exactly one of Success/
// Queued/Failure is populated, selected by Outcome.
type SubmitResult struct {
	Outcome SubmitOutcome
	Success *model.SuccessResult
	Queued  *model.QueuedResult
	Failure *model.FailureResult
}

// ProviderSnapshot is the per-transport slice of Coordinator.Snapshot.
type ProviderSnapshot struct {
	Name         string
	BreakerState model.CircuitBreakerState
	FailureCount int
}

// Snapshot is the shape returned by Coordinator.Snapshot: observed-message
// counters plus a point-in-time view of every configured provider's breaker.
type Snapshot struct {
	TotalObserved int
	Sent          int
	Failed        int
	Queued        int
	SuccessRate   string // "NN.NN%"
	Providers     []ProviderSnapshot
}

// CoordinatorService is the coordinator's public contract (spec.md §4.1).
// Submit never panics or returns a Go error for transport-layer failures;
// it is safe to call concurrently.
type CoordinatorService interface {
	Submit(message *model.Message) (SubmitResult, error)
	LookupStatus(fp model.Fingerprint) (model.Status, bool)
	Snapshot() Snapshot
	Shutdown()
}
