package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultRegistry_SuccessCacheIsAppendOnly(t *testing.T) {
	r := NewResultRegistry()

	_, ok := r.LookupSuccess("fp1")
	assert.False(t, ok)

	res := SuccessResult{Fingerprint: "fp1", DeliveryID: "d1", Transport: "P1", TotalAttempts: 1}
	r.StoreSuccess("fp1", res)

	got, ok := r.LookupSuccess("fp1")
	assert.True(t, ok)
	assert.Equal(t, res, got)
}

func TestResultRegistry_StatusOverwrittenInPlace(t *testing.T) {
	r := NewResultRegistry()

	r.SetStatus("fp1", Status{Value: StatusPending, Attempts: 1})
	r.SetStatus("fp1", Status{Value: StatusSent, Attempts: 1})

	got, ok := r.LookupStatus("fp1")
	assert.True(t, ok)
	assert.Equal(t, StatusSent, got.Value)
}

func TestResultRegistry_Snapshot(t *testing.T) {
	r := NewResultRegistry()

	r.SetStatus("fp1", Status{Value: StatusSent})
	r.SetStatus("fp2", Status{Value: StatusFailed})
	r.SetStatus("fp3", Status{Value: StatusQueued})
	r.SetStatus("fp4", Status{Value: StatusPending})

	snap := r.Snapshot()
	assert.Equal(t, 4, snap.TotalObserved)
	assert.Equal(t, 1, snap.Sent)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Queued)
}

func TestStatus_CanTransition(t *testing.T) {
	cases := []struct {
		name     string
		hadPrior bool
		from, to StatusValue
		want     bool
	}{
		{"initial to pending", false, 0, StatusPending, true},
		{"initial to queued", false, 0, StatusQueued, true},
		{"initial to sent", false, 0, StatusSent, false},
		{"pending to retrying", true, StatusPending, StatusRetrying, true},
		{"pending to sent", true, StatusPending, StatusSent, true},
		{"queued to pending", true, StatusQueued, StatusPending, true},
		{"queued to retrying", true, StatusQueued, StatusRetrying, false},
		{"sent is terminal", true, StatusSent, StatusPending, false},
		{"failed is terminal", true, StatusFailed, StatusRetrying, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.hadPrior, tc.from, tc.to))
		})
	}
}

func TestMessage_FingerprintStableAndIdempotencyKeyWins(t *testing.T) {
	m1 := &Message{Destination: "a@x", Origin: "b@y", Subject: "s", Body: "body"}
	m2 := &Message{Destination: "a@x", Origin: "b@y", Subject: "s", Body: "body"}
	assert.Equal(t, m1.Fingerprint(), m2.Fingerprint())

	m3 := &Message{Destination: "a@x", Origin: "b@y", Subject: "s", Body: "different"}
	assert.NotEqual(t, m1.Fingerprint(), m3.Fingerprint())

	m4 := &Message{Destination: "a@x", Origin: "b@y", Subject: "s", Body: "body", IdempotencyKey: "custom-key"}
	assert.Equal(t, Fingerprint("custom-key"), m4.Fingerprint())
}
