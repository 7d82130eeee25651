package outbound

import (
	"context"

	"github.com/ajkula/sendcoordinator/domain/model"
)

// Transport is the capability every downstream delivery provider must
// satisfy. It is the engine's one external collaborator (spec.md §2.1):
// Attempt either succeeds with a transport-assigned receipt, or returns a
// transient error. There is no distinction exposed between retriable and
// permanent failures — every error is treated as retriable until the
// coordinator's retry budget is exhausted (spec.md §9, Open Question 5).
type Transport interface {
	// Name is a stable identifier, unique across the configured provider set.
	Name() string

	// Attempt tries to deliver message once. Implementations should respect
	// ctx cancellation and return promptly on Done().
	Attempt(ctx context.Context, message *model.Message) (model.DeliveryReceipt, error)
}
