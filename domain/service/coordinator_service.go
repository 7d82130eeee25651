package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ajkula/sendcoordinator/domain/model"
	"github.com/ajkula/sendcoordinator/domain/port/inbound"
	"github.com/ajkula/sendcoordinator/domain/port/outbound"
)

// EngineConfig holds the tuning knobs enumerated in spec.md §6. Zero values
// are replaced by the defaults documented alongside each field, except
// MaxRetries, where zero is kept.
type EngineConfig struct {
	// MaxRetries is the number of retries per transport AFTER the first
	// attempt (total attempts per transport = MaxRetries + 1). A negative
	// value is replaced by the default 3; zero means one attempt per transport.
	MaxRetries int

	// BaseDelay and MaxDelay parameterize the backoff formula. Defaults
	// 1s and 30s respectively.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// BreakerThreshold and BreakerCooldown configure every per-transport
	// circuit breaker uniformly. Defaults 5 and 60s.
	BreakerThreshold int
	BreakerCooldown  time.Duration

	// RateMaxRequests and RateWindow configure the shared rate limiter.
	// Defaults 100 and 60s.
	RateMaxRequests int
	RateWindow      time.Duration

	// DrainInterval is the drain worker's wake cadence. Default 1s
	// (spec.md §9, Open Question 2 — made configurable deliberately).
	DrainInterval time.Duration

	// Clock is injected so tests can drive breaker/limiter/backoff timing
	// deterministically (spec.md §9, "Global time"). Defaults to
	// model.SystemClock{}.
	Clock model.Clock
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 60 * time.Second
	}
	if c.RateMaxRequests <= 0 {
		c.RateMaxRequests = 100
	}
	if c.RateWindow <= 0 {
		c.RateWindow = 60 * time.Second
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = time.Second
	}
	if c.Clock == nil {
		c.Clock = model.SystemClock{}
	}
	return c
}

// CoordinatorServiceImpl is the top-level orchestrator described in
// spec.md §2 and §4.1: it sequences fingerprinting, rate-limiter admission,
// breaker-gated retry with provider fallback, status/event bookkeeping, and
// drains the deferred queue in the background.
type CoordinatorServiceImpl struct {
	cfgMu sync.RWMutex
	cfg   EngineConfig
	log   outbound.Logger

	transports []outbound.Transport
	breakers   map[string]*model.CircuitBreaker

	registry *model.ResultRegistry
	queue    *model.DeferredQueue
	limiter  *model.RateLimiter
	events   *model.Dispatcher

	ticker    *time.Ticker
	drainStop chan struct{}
	drainDone chan struct{}
	wg        sync.WaitGroup
}

// NewCoordinatorService wires the engine's cooperating components (spec.md
// §2) and starts the background drain worker (spec.md §4.4).
func NewCoordinatorService(transports []outbound.Transport, cfg EngineConfig, log outbound.Logger) *CoordinatorServiceImpl {
	cfg = cfg.withDefaults()

	breakers := make(map[string]*model.CircuitBreaker, len(transports))
	for _, t := range transports {
		breakers[t.Name()] = model.NewCircuitBreaker(t.Name(), cfg.BreakerThreshold, cfg.BreakerCooldown, cfg.Clock)
	}

	c := &CoordinatorServiceImpl{
		cfg:        cfg,
		log:        log,
		transports: transports,
		breakers:   breakers,
		registry:   model.NewResultRegistry(),
		queue:      model.NewDeferredQueue(),
		limiter:    model.NewRateLimiter(cfg.RateMaxRequests, cfg.RateWindow, cfg.Clock),
		events:     model.NewDispatcher(),
		ticker:     time.NewTicker(cfg.DrainInterval),
		drainStop:  make(chan struct{}),
		drainDone:  make(chan struct{}),
	}

	c.wg.Add(1)
	go c.drainLoop()

	return c
}

// Subscribe exposes the dispatcher to callers that want to observe sent/
// failed/queued events (spec.md §4.6). It is not part of the CoordinatorService
// port because subscription is an ambient concern, not a core operation.
func (c *CoordinatorServiceImpl) Subscribe(kind model.EventKind, handler model.EventHandler) string {
	return c.events.Subscribe(kind, handler)
}

// Unsubscribe removes a handler previously registered via Subscribe.
func (c *CoordinatorServiceImpl) Unsubscribe(kind model.EventKind, id string) {
	c.events.Unsubscribe(kind, id)
}

// config returns a consistent snapshot of the live tuning, safe to read
// without holding cfgMu for the remainder of a call.
func (c *CoordinatorServiceImpl) config() EngineConfig {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

// UpdateTuning retunes the retry/breaker/rate-limiter/drain-cadence knobs of
// a running coordinator in place, the live-update path a config hot-reload
// drives (see config.HotReloader). Zero-valued fields on newCfg are replaced
// by the current defaults the same way NewCoordinatorService applies them,
// so a caller may pass a partially-filled EngineConfig built from a reloaded
// config.Config. Clock is never changed after construction.
func (c *CoordinatorServiceImpl) UpdateTuning(newCfg EngineConfig) {
	newCfg = newCfg.withDefaults()

	c.cfgMu.Lock()
	clock := c.cfg.Clock
	newCfg.Clock = clock
	c.cfg = newCfg
	c.cfgMu.Unlock()

	c.limiter.UpdateLimits(newCfg.RateMaxRequests, newCfg.RateWindow)
	for _, b := range c.breakers {
		b.UpdateTuning(newCfg.BreakerThreshold, newCfg.BreakerCooldown)
	}
	c.ticker.Reset(newCfg.DrainInterval)

	c.log.Info("engine tuning updated",
		"maxRetries", newCfg.MaxRetries,
		"baseDelay", newCfg.BaseDelay,
		"maxDelay", newCfg.MaxDelay,
		"breakerThreshold", newCfg.BreakerThreshold,
		"breakerCooldown", newCfg.BreakerCooldown,
		"rateMaxRequests", newCfg.RateMaxRequests,
		"rateWindow", newCfg.RateWindow,
		"drainInterval", newCfg.DrainInterval)
}

// Submit implements spec.md §4.1's algorithm.
func (c *CoordinatorServiceImpl) Submit(message *model.Message) (inbound.SubmitResult, error) {
	select {
	case <-c.drainStop:
		return inbound.SubmitResult{}, model.ErrShutdown
	default:
	}

	if message == nil || message.Destination == "" {
		return inbound.SubmitResult{}, model.ErrInvalidMessage
	}
	if len(c.transports) == 0 {
		return inbound.SubmitResult{}, model.ErrNoTransports
	}

	cfg := c.config()
	fp := message.Fingerprint()

	if cached, ok := c.registry.LookupSuccess(fp); ok {
		return inbound.SubmitResult{Outcome: inbound.OutcomeSent, Success: &cached}, nil
	}

	if !c.limiter.Admit() {
		entryID := uuid.NewString()
		c.registry.SetStatus(fp, model.Status{Value: model.StatusQueued, Attempts: 0})
		c.queue.Push(model.DeferredEntry{ID: entryID, Message: message, Fingerprint: fp})
		c.events.Publish(model.Event{Kind: model.EventQueued, Fingerprint: fp, Message: message, Emitted: cfg.Clock.Now()})
		c.log.Debug("message queued", "entry", entryID, "fingerprint", fp)
		return inbound.SubmitResult{Outcome: inbound.OutcomeQueued, Queued: &model.QueuedResult{Fingerprint: fp}}, nil
	}

	c.registry.SetStatus(fp, model.Status{Value: model.StatusPending, Attempts: 0})
	return c.dispatch(message, fp), nil
}

// dispatch runs step 4 onward of spec.md §4.1: the per-provider breaker-
// gated retry/fallback loop, shared verbatim by Submit and the drain
// worker so the drain path never re-enters through the admission front
// door (spec.md §4.4).
func (c *CoordinatorServiceImpl) dispatch(message *model.Message, fp model.Fingerprint) inbound.SubmitResult {
	cfg := c.config()
	var lastErr string

	for _, t := range c.transports {
		breaker := c.breakers[t.Name()]

		for a := 0; a <= cfg.MaxRetries; a++ {
			status := model.StatusRetrying
			if a == 0 {
				status = model.StatusPending
			}
			c.registry.SetStatus(fp, model.Status{
				Value:            status,
				Attempts:         a + 1,
				CurrentTransport: t.Name(),
				LastTimestamp:    cfg.Clock.Now(),
			})

			if !breaker.Allow() {
				lastErr = fmt.Sprintf("%s: %v", t.Name(), model.ErrBreakerOpen)
				c.log.Warn("transport refused by breaker", "transport", t.Name(), "fingerprint", fp)
				break // abandon this transport, advance to next without waiting
			}

			receipt, err := t.Attempt(context.Background(), message)
			if err == nil {
				breaker.RecordSuccess()
				success := model.SuccessResult{
					Fingerprint:   fp,
					DeliveryID:    receipt.DeliveryID,
					Transport:     t.Name(),
					CompletedAt:   cfg.Clock.Now(),
					TotalAttempts: a + 1,
				}
				c.registry.StoreSuccess(fp, success)
				c.registry.SetStatus(fp, model.Status{
					Value:            model.StatusSent,
					Attempts:         a + 1,
					CurrentTransport: t.Name(),
					LastTimestamp:    success.CompletedAt,
				})
				c.events.Publish(model.Event{Kind: model.EventSent, Fingerprint: fp, Message: message, Success: &success, Emitted: success.CompletedAt})
				c.log.Info("message sent", "transport", t.Name(), "fingerprint", fp, "attempts", a+1)
				return inbound.SubmitResult{Outcome: inbound.OutcomeSent, Success: &success}
			}

			breaker.RecordFailure()
			lastErr = fmt.Sprintf("%s: %v", t.Name(), err)

			if a < cfg.MaxRetries {
				c.log.Debug("retrying after failed attempt", "transport", t.Name(), "fingerprint", fp, "attempt", a+1, "error", err)
				cfg.Clock.Sleep(backoff(a, cfg.BaseDelay, cfg.MaxDelay))
				continue
			}
			// retry budget exhausted for this transport, advance without waiting
		}
	}

	// spec.md §4.1 step 6: the terminal status records attempts = maxRetries+1,
	// the count within the last transport tried, not a sum across transports.
	failure := model.FailureResult{
		Fingerprint:   fp,
		LastErrorDesc: lastErr,
		TotalAttempts: cfg.MaxRetries + 1,
	}
	c.registry.SetStatus(fp, model.Status{
		Value:         model.StatusFailed,
		Attempts:      failure.TotalAttempts,
		LastTimestamp: cfg.Clock.Now(),
		LastErrorDesc: lastErr,
	})
	c.events.Publish(model.Event{Kind: model.EventFailed, Fingerprint: fp, Message: message, ErrorDesc: lastErr, Emitted: cfg.Clock.Now()})
	c.log.Error("message failed on all transports", "fingerprint", fp, "error", lastErr)
	return inbound.SubmitResult{Outcome: inbound.OutcomeFailed, Failure: &failure}
}

// backoff implements spec.md §4.1's formula:
// delay(a) = min(maxDelay, baseDelay*2^a + jitter), jitter in [0, 0.1*baseDelay*2^a).
func backoff(a int, baseDelay, maxDelay time.Duration) time.Duration {
	scaled := baseDelay * time.Duration(1<<uint(a))
	var jitter time.Duration
	if ceil := int64(scaled) / 10; ceil > 0 {
		jitter = time.Duration(rand.Int63n(ceil))
	}
	d := scaled + jitter
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// LookupStatus implements the CoordinatorService port.
func (c *CoordinatorServiceImpl) LookupStatus(fp model.Fingerprint) (model.Status, bool) {
	return c.registry.LookupStatus(fp)
}

// Snapshot implements the CoordinatorService port (spec.md §4.1, §6).
func (c *CoordinatorServiceImpl) Snapshot() inbound.Snapshot {
	reg := c.registry.Snapshot()

	rate := "0.00%"
	if reg.TotalObserved > 0 {
		rate = fmt.Sprintf("%.2f%%", 100*float64(reg.Sent)/float64(reg.TotalObserved))
	}

	providers := make([]inbound.ProviderSnapshot, 0, len(c.transports))
	for _, t := range c.transports {
		snap := c.breakers[t.Name()].Snapshot()
		providers = append(providers, inbound.ProviderSnapshot{
			Name:         snap.Name,
			BreakerState: snap.State,
			FailureCount: snap.FailureCount,
		})
	}

	return inbound.Snapshot{
		TotalObserved: reg.TotalObserved,
		Sent:          reg.Sent,
		Failed:        reg.Failed,
		Queued:        reg.Queued,
		SuccessRate:   rate,
		Providers:     providers,
	}
}

// drainLoop is the background drain worker of spec.md §4.4: on a coarse
// cadence it pops entries from the deferred queue while the shared rate
// limiter keeps admitting, handing each straight to dispatch (never back
// through Submit's admission front door).
func (c *CoordinatorServiceImpl) drainLoop() {
	defer c.wg.Done()
	defer close(c.drainDone)
	defer c.ticker.Stop()

	for {
		select {
		case <-c.drainStop:
			return
		case <-c.ticker.C:
			c.drainPass()
		}
	}
}

func (c *CoordinatorServiceImpl) drainPass() {
	for {
		select {
		case <-c.drainStop:
			return
		default:
		}

		if c.queue.Len() == 0 {
			return
		}
		if !c.limiter.Admit() {
			return
		}

		entry, ok := c.queue.Pop()
		if !ok {
			return
		}

		c.log.Debug("draining queued entry", "entry", entry.ID, "fingerprint", entry.Fingerprint)
		c.registry.SetStatus(entry.Fingerprint, model.Status{Value: model.StatusPending, Attempts: 0})
		c.dispatch(entry.Message, entry.Fingerprint)
	}
}

// Shutdown stops the drain worker and waits for it to exit, per spec.md §5's
// cooperative shutdown requirement.
func (c *CoordinatorServiceImpl) Shutdown() {
	select {
	case <-c.drainStop:
		// already closed
	default:
		close(c.drainStop)
	}
	c.wg.Wait()
}

var _ inbound.CoordinatorService = (*CoordinatorServiceImpl)(nil)
