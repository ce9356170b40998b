package relay

import (
	"errors"
	"fmt"
	"time"
)

// Error type constants used in ClientError.Type.
const (
	ErrorTypeNetwork             = "Network"
	ErrorTypeTimeout             = "Timeout"
	ErrorTypeServer              = "Server"
	ErrorTypeClient              = "Client"
	ErrorTypeRateLimit           = "RateLimit"
	ErrorTypeCircuitOpen         = "CircuitOpen"
	ErrorTypeRetryBudgetExceeded = "RetryBudgetExceeded"
	ErrorTypeValidation          = "Validation"
)

// Sentinel errors for common failure scenarios
var (
	// ErrCircuitOpen is returned when the circuit breaker denies a request.
	ErrCircuitOpen = errors.New("relay: circuit open")

	// ErrRateLimited is returned when a request is denied due to rate limiting.
	ErrRateLimited = errors.New("relay: rate limited")

	// ErrCacheMiss is returned when a cache lookup fails.
	ErrCacheMiss = errors.New("relay: cache miss")

	// ErrRetryBudgetExceeded is returned when the retry budget is exhausted.
	ErrRetryBudgetExceeded = errors.New("relay: retry budget exceeded")
)

// CircuitOpenError is returned by CircuitBreaker.AllowRequest when the circuit
// denies a request, either because it is open or because the half-open probe
// capacity is exhausted. RetryAfter hints how long the caller should wait
// before trying again (e.g. to populate a Retry-After header).
type CircuitOpenError struct {
	Key        string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("relay: circuit %q open, retry after %s", e.Key, e.RetryAfter)
}

// Is reports equivalence with the ErrCircuitOpen sentinel so callers can use
// errors.Is without caring about the concrete type.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// RetryAfterSeconds returns the retry hint rounded up to whole seconds.
func (e *CircuitOpenError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// ClientError represents a structured error from the connector send path.
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	RequestID  string
	Method     string
	URL        string
	Endpoint   string
	StatusCode int
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var msg string
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Cause)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// IsTransient determines if an error represents a transient failure that might
// succeed on retry. Returns true for network errors, timeouts, 5xx server
// responses, rate limiting (429) and breaker rejections. Returns false for
// 4xx client errors (except 429) and configuration errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrRetryBudgetExceeded) {
		return true
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeServer, ErrorTypeRateLimit, ErrorTypeCircuitOpen:
			return true
		case ErrorTypeClient:
			return clientErr.StatusCode == 429
		default:
			return false
		}
	}

	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxRetries)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}
