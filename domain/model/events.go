package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind names one of the coordinator's published event types.
type EventKind string

const (
	EventSent   EventKind = "sent"
	EventFailed EventKind = "failed"
	EventQueued EventKind = "queued"
)

// Event is the payload delivered to subscribers. Only the fields relevant
// to Kind are populated; the rest are zero values. ID is a UUIDv4 assigned
// by Publish if the caller left it blank, letting subscribers (the
// websocket admin stream) dedupe a redelivered notification.
type Event struct {
	ID          string
	Kind        EventKind
	Fingerprint Fingerprint
	Message     *Message
	Success     *SuccessResult
	ErrorDesc   string
	Emitted     time.Time
}

// EventHandler receives published events. Handlers run isolated from each
// other and from the publisher; a slow or panicking handler cannot stall
// Submit or the drain worker (see Dispatcher.Publish).
type EventHandler func(Event)

// Dispatcher is a multi-subscriber publish mechanism keyed by event kind,
// grounded on the same map-of-maps-guarded-by-RWMutex shape as a
// subscription registry, generalized to fixed named event kinds instead of
// per-queue subscriptions.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[EventKind]map[string]EventHandler

	// HandlerTimeout bounds how long Publish waits for a single handler
	// before abandoning it; it defaults to 2s when zero.
	HandlerTimeout time.Duration
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[EventKind]map[string]EventHandler),
	}
}

// Subscribe registers handler for kind and returns a subscription id usable
// with Unsubscribe.
func (d *Dispatcher) Subscribe(kind EventKind, handler EventHandler) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := uuid.NewString()
	if d.subscribers[kind] == nil {
		d.subscribers[kind] = make(map[string]EventHandler)
	}
	d.subscribers[kind][id] = handler
	return id
}

// Unsubscribe removes a previously registered handler. It is documented even
// though the engine itself never calls it, per spec.md §9's note to avoid
// unbounded subscriber storage.
func (d *Dispatcher) Unsubscribe(kind EventKind, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.subscribers[kind], id)
}

// Publish fans an event out to every subscriber of its kind. Each handler is
// run in its own goroutine with a bounded wait: Publish returns once every
// handler has either completed or exceeded HandlerTimeout, whichever comes
// first, so a misbehaving subscriber cannot block the coordinator's forward
// progress indefinitely.
func (d *Dispatcher) Publish(evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}

	d.mu.RLock()
	handlers := make([]EventHandler, 0, len(d.subscribers[evt.Kind]))
	for _, h := range d.subscribers[evt.Kind] {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	timeout := d.HandlerTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	var wg sync.WaitGroup
	done := make(chan struct{})

	for _, h := range handlers {
		wg.Add(1)
		go func(h EventHandler) {
			defer wg.Done()
			defer func() { _ = recover() }()
			h(evt)
		}(h)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}
}
