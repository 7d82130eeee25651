package model

import "errors"

var (
	// ErrInvalidMessage is returned when a caller submits a malformed
	// message (nil or missing destination) — the one
	// case spec.md §4.1 allows Submit to surface as a programming error.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrNoTransports is returned when a coordinator has no providers
	// configured at all.
	ErrNoTransports = errors.New("no transports configured")

	// ErrBreakerOpen is the refusal reason dispatch records against a
	// transport whose breaker declined to Allow() the attempt, distinguishing
	// a breaker refusal from an ordinary transport failure in LastErrorDesc.
	ErrBreakerOpen = errors.New("circuit breaker open")

	// ErrShutdown is returned by Submit once the coordinator's drain worker
	// has been told to stop, refusing new work rather than accepting a
	// submission that may never get a chance to drain.
	ErrShutdown = errors.New("coordinator shutting down")
)
