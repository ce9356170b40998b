package relay

import (
	"time"
)

// CircuitState represents the state of a circuit.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// String returns the lowercase state name.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds circuit breaker configuration. The zero value is
// usable; unset fields take the documented defaults.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures inside FailureWindow that
	// opens the circuit. Default 5.
	FailureThreshold int
	// ResetTimeout is how long an open circuit holds before the next state
	// read transitions it to half-open. Default 60s.
	ResetTimeout time.Duration
	// HalfOpenRequests is the number of probe requests admitted while
	// half-open. Default 1.
	HalfOpenRequests int
	// FailureWindow is the sliding window over which failures are counted.
	// Zero disables windowing and counts every failure since the last reset.
	// Default 60s.
	FailureWindow time.Duration
	// SuccessThreshold is the number of successful probes that closes a
	// half-open circuit. Default 2.
	SuccessThreshold int

	// FailurePercentage and MinimumRequests are reserved for rate-based
	// opening. The breaker currently falls back to count-based thresholding.
	// TODO: evaluate FailurePercentage once MinimumRequests have been seen.
	FailurePercentage float64
	MinimumRequests   int

	// Lifecycle callbacks, invoked with the circuit key after the transition
	// has been persisted. Optional.
	OnOpen     func(key string)
	OnClose    func(key string)
	OnHalfOpen func(key string)
}

// CircuitBreaker is a state machine over a CircuitBreakerStore. One breaker
// instance guards any number of independent upstream keys (one per host,
// endpoint, tenant, ...) through the shared store.
//
// The open-to-half-open transition is evaluated lazily when state is read:
// no background timer exists, which suits a request-driven client. Probes in
// half-open are admitted through an attempt counter up to HalfOpenRequests;
// the breaker does not serialize probes beyond that cap.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	store  CircuitBreakerStore
	now    func() time.Time
}

// CircuitBreakerOption customizes a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithStore backs the breaker with a custom store (e.g. a distributed cache
// adapter) instead of the default in-memory one.
func WithStore(store CircuitBreakerStore) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.store = store
	}
}

// WithClock overrides the breaker's time source. Used by tests to simulate
// the passage of time.
func WithClock(now func() time.Time) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// NewCircuitBreaker creates a circuit breaker with the given configuration.
func NewCircuitBreaker(config CircuitBreakerConfig, opts ...CircuitBreakerOption) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = 60 * time.Second
	}
	if config.HalfOpenRequests == 0 {
		config.HalfOpenRequests = 1
	}
	if config.FailureWindow == 0 {
		config.FailureWindow = 60 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}

	cb := &CircuitBreaker{
		config: config,
		store:  NewMemoryStore(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Config returns the breaker's effective configuration.
func (cb *CircuitBreaker) Config() CircuitBreakerConfig {
	return cb.config
}

// State returns the current state for key. Reading the state of an open
// circuit whose reset timeout has elapsed transitions it to half-open and
// fires OnHalfOpen.
func (cb *CircuitBreaker) State(key string) CircuitState {
	state := cb.store.State(key)
	if state != StateOpen {
		return state
	}

	openedAt, ok := cb.store.OpenedAt(key)
	if ok && cb.now().Sub(openedAt) >= cb.config.ResetTimeout {
		cb.toHalfOpen(key)
		return StateHalfOpen
	}
	return StateOpen
}

// AllowRequest reports whether a request may proceed for key. It returns nil
// when admitted, or a *CircuitOpenError carrying a retry-after hint when the
// circuit is open or the half-open probe capacity is exhausted. Each admitted
// half-open call consumes one probe slot.
func (cb *CircuitBreaker) AllowRequest(key string) error {
	switch cb.State(key) {
	case StateClosed:
		return nil
	case StateOpen:
		retryAfter := cb.config.ResetTimeout
		if openedAt, ok := cb.store.OpenedAt(key); ok {
			retryAfter = cb.config.ResetTimeout - cb.now().Sub(openedAt)
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
		return &CircuitOpenError{Key: key, RetryAfter: retryAfter}
	case StateHalfOpen:
		if cb.store.IncrementHalfOpenAttempts(key) > cb.config.HalfOpenRequests {
			return &CircuitOpenError{Key: key, RetryAfter: time.Second}
		}
		return nil
	default:
		return nil
	}
}

// RecordSuccess notes a successful request for key. Successes only matter in
// half-open: once SuccessThreshold probes succeed the circuit closes and all
// counters reset.
func (cb *CircuitBreaker) RecordSuccess(key string) {
	if cb.State(key) != StateHalfOpen {
		return
	}
	if cb.store.RecordSuccess(key) >= cb.config.SuccessThreshold {
		cb.Close(key)
	}
}

// RecordFailure notes a failed request for key. In half-open a single failure
// reopens the circuit. In closed it appends to the failure window and opens
// the circuit once FailureThreshold failures accumulate inside it.
func (cb *CircuitBreaker) RecordFailure(key string) {
	switch cb.State(key) {
	case StateHalfOpen:
		cb.open(key)
	case StateClosed:
		count := cb.store.RecordFailure(key, cb.now(), cb.config.FailureWindow)
		if count >= cb.config.FailureThreshold {
			cb.open(key)
		}
	case StateOpen:
		// Already open; nothing to count.
	}
}

// Open forces the circuit open for key and fires OnOpen.
func (cb *CircuitBreaker) Open(key string) {
	cb.open(key)
}

// Close forces the circuit closed for key, resets all counters and fires
// OnClose.
func (cb *CircuitBreaker) Close(key string) {
	cb.store.Reset(key)
	if cb.config.OnClose != nil {
		cb.config.OnClose(key)
	}
}

// Reset restores the circuit for key to its default state without firing any
// lifecycle callbacks.
func (cb *CircuitBreaker) Reset(key string) {
	cb.store.Reset(key)
}

func (cb *CircuitBreaker) open(key string) {
	cb.store.SetState(key, StateOpen)
	cb.store.SetOpenedAt(key, cb.now())
	if cb.config.OnOpen != nil {
		cb.config.OnOpen(key)
	}
}

// toHalfOpen moves an open circuit into half-open with fresh probe counters.
func (cb *CircuitBreaker) toHalfOpen(key string) {
	cb.store.Reset(key)
	cb.store.SetState(key, StateHalfOpen)
	if cb.config.OnHalfOpen != nil {
		cb.config.OnHalfOpen(key)
	}
}
