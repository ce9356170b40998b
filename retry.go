package relay

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/faustbrian/relay/internal/backoff"
)

// RetryConfig encapsulates retry parameters for a request type. The zero
// value is usable; unset fields take the documented defaults.
type RetryConfig struct {
	// Times is the maximum number of attempts, the first included. Default 3.
	Times int
	// Delay is the initial backoff before the second attempt. Default 100ms.
	Delay time.Duration
	// Multiplier is the exponential growth factor applied per attempt.
	// Default 2.0.
	Multiplier float64
	// MaxDelay caps the computed backoff. Default 10s.
	MaxDelay time.Duration

	// StatusCodes is an explicit allowlist of retryable response codes. When
	// empty the handler falls back to retrying server-error (5xx) responses.
	StatusCodes []int
	// Errors is an allowlist of retryable errors matched with errors.Is.
	// Errors are NOT retried unless they match: transport failures must be
	// opted into, unlike response-driven retry which has a sane default.
	Errors []error
	// RetryIf, when set, decides response retry eligibility before the
	// status-code allowlist is consulted.
	RetryIf func(resp *Response, attempt int) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.Times == 0 {
		c.Times = 3
	}
	if c.Delay == 0 {
		c.Delay = 100 * time.Millisecond
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 10 * time.Second
	}
	return c
}

// RetryPolicy is a caller-supplied decision object reusable across request
// types. When a policy is present its decisions take precedence over the
// handler's RetryConfig.
type RetryPolicy interface {
	ShouldRetryResponse(resp *Response, attempt int) bool
	ShouldRetryError(err error, attempt int) bool
	Delay(attempt int) time.Duration
}

// RetryHandler decides, per failed attempt, whether to retry and how long to
// wait. It is purely advisory: it never loops or aborts on the caller's
// behalf, and retry exhaustion is signalled by returning false, leaving the
// last response or error for the caller to surface. The one side effect it
// owns is Wait, the backoff sleep, which callers invoke explicitly.
type RetryHandler struct {
	config RetryConfig
	policy RetryPolicy
	calc   backoff.Strategy
	sleep  func(time.Duration)
}

// NewRetryHandler creates a handler for the given configuration.
func NewRetryHandler(config RetryConfig) *RetryHandler {
	return &RetryHandler{
		config: config.withDefaults(),
		calc:   backoff.Exponential{},
		sleep:  time.Sleep,
	}
}

// NewRetryHandlerWithPolicy creates a handler whose decisions are delegated
// to the supplied policy. The config still provides the attempt ceiling used
// when the policy is consulted.
func NewRetryHandlerWithPolicy(config RetryConfig, policy RetryPolicy) *RetryHandler {
	h := NewRetryHandler(config)
	h.policy = policy
	return h
}

// Config returns the handler's effective configuration.
func (h *RetryHandler) Config() RetryConfig {
	return h.config
}

// ShouldRetryResponse reports whether the response for the given 1-based
// attempt should be retried. Evaluation order: attempt ceiling, policy,
// custom predicate, status-code allowlist, then the default of retrying
// server-error responses.
func (h *RetryHandler) ShouldRetryResponse(resp *Response, attempt int) bool {
	if attempt >= h.config.Times {
		return false
	}
	if h.policy != nil {
		return h.policy.ShouldRetryResponse(resp, attempt)
	}
	if h.config.RetryIf != nil {
		return h.config.RetryIf(resp, attempt)
	}
	if len(h.config.StatusCodes) > 0 {
		for _, code := range h.config.StatusCodes {
			if resp.Status() == code {
				return true
			}
		}
		return false
	}
	return resp.ServerError()
}

// ShouldRetryError reports whether the error for the given 1-based attempt
// should be retried. Errors are only retried when explicitly allowlisted.
func (h *RetryHandler) ShouldRetryError(err error, attempt int) bool {
	if attempt >= h.config.Times {
		return false
	}
	if h.policy != nil {
		return h.policy.ShouldRetryError(err, attempt)
	}
	for _, target := range h.config.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// CalculateDelay returns Delay * Multiplier^(attempt-1) capped at MaxDelay.
// Attempt is 1-based: attempt 1 yields the base delay.
func (h *RetryHandler) CalculateDelay(attempt int) time.Duration {
	if h.policy != nil {
		return h.policy.Delay(attempt)
	}
	if attempt < 1 {
		attempt = 1
	}
	return h.calc.Calculate(attempt-1, h.config.Delay, h.config.MaxDelay, h.config.Multiplier, 0)
}

// Wait blocks the calling goroutine for the attempt's backoff delay.
func (h *RetryHandler) Wait(attempt int) {
	h.sleep(h.CalculateDelay(attempt))
}

// RetryBudget caps the total number of retries a client performs inside a
// sliding window, protecting upstreams from retry storms when many requests
// fail at once.
type RetryBudget struct {
	maxRetries  int64
	perWindow   time.Duration
	current     int64
	windowStart int64
}

// NewRetryBudget creates a budget of maxRetries per window.
func NewRetryBudget(maxRetries int, perWindow time.Duration) *RetryBudget {
	return &RetryBudget{
		maxRetries:  int64(maxRetries),
		perWindow:   perWindow,
		windowStart: time.Now().UnixNano(),
	}
}

// Allow reports whether another retry fits in the current window, consuming
// one slot when it does.
func (rb *RetryBudget) Allow() bool {
	now := time.Now().UnixNano()
	windowStart := atomic.LoadInt64(&rb.windowStart)

	if now-windowStart >= int64(rb.perWindow) {
		if atomic.CompareAndSwapInt64(&rb.windowStart, windowStart, now) {
			atomic.StoreInt64(&rb.current, 0)
		}
	}

	if atomic.LoadInt64(&rb.current) >= rb.maxRetries {
		return false
	}
	return atomic.AddInt64(&rb.current, 1) <= rb.maxRetries
}

// Stats returns the budget's current usage, capacity and window start.
func (rb *RetryBudget) Stats() (current, max int64, windowStart time.Time) {
	return atomic.LoadInt64(&rb.current),
		rb.maxRetries,
		time.Unix(0, atomic.LoadInt64(&rb.windowStart))
}
