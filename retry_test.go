package relay

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverErrorResponse(code int) *Response {
	return newResponseFromParts(code, http.Header{}, []byte(`{"error":"upstream"}`))
}

func TestRetryConfigDefaults(t *testing.T) {
	h := NewRetryHandler(RetryConfig{})

	config := h.Config()
	assert.Equal(t, 3, config.Times)
	assert.Equal(t, 100*time.Millisecond, config.Delay)
	assert.Equal(t, 2.0, config.Multiplier)
	assert.Equal(t, 10*time.Second, config.MaxDelay)
}

func TestCalculateDelaySequence(t *testing.T) {
	h := NewRetryHandler(RetryConfig{
		Times:      10,
		Delay:      100 * time.Millisecond,
		Multiplier: 2.0,
		MaxDelay:   time.Second,
	})

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, want := range expected {
		attempt := i + 1
		assert.Equal(t, want, h.CalculateDelay(attempt), "attempt %d", attempt)
	}
}

func TestCalculateDelayMonotonicUntilCap(t *testing.T) {
	h := NewRetryHandler(RetryConfig{Times: 20, Delay: 50 * time.Millisecond, Multiplier: 1.5})

	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		d := h.CalculateDelay(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d, h.Config().MaxDelay)
		prev = d
	}
}

func TestCalculateDelayClampsAttempt(t *testing.T) {
	h := NewRetryHandler(RetryConfig{})

	assert.Equal(t, h.CalculateDelay(1), h.CalculateDelay(0))
	assert.Equal(t, h.CalculateDelay(1), h.CalculateDelay(-3))
}

func TestShouldRetryResponseAttemptCeiling(t *testing.T) {
	h := NewRetryHandler(RetryConfig{Times: 3})
	resp := serverErrorResponse(http.StatusInternalServerError)

	assert.True(t, h.ShouldRetryResponse(resp, 1))
	assert.True(t, h.ShouldRetryResponse(resp, 2))
	assert.False(t, h.ShouldRetryResponse(resp, 3))
	assert.False(t, h.ShouldRetryResponse(resp, 4))
}

func TestShouldRetryResponseDefaultsToServerErrors(t *testing.T) {
	h := NewRetryHandler(RetryConfig{})

	assert.True(t, h.ShouldRetryResponse(serverErrorResponse(http.StatusInternalServerError), 1))
	assert.True(t, h.ShouldRetryResponse(serverErrorResponse(http.StatusBadGateway), 1))
	assert.False(t, h.ShouldRetryResponse(serverErrorResponse(http.StatusNotFound), 1))
	assert.False(t, h.ShouldRetryResponse(serverErrorResponse(http.StatusTooManyRequests), 1))
	assert.False(t, h.ShouldRetryResponse(serverErrorResponse(http.StatusOK), 1))
}

func TestShouldRetryResponseStatusCodeAllowlist(t *testing.T) {
	h := NewRetryHandler(RetryConfig{
		StatusCodes: []int{http.StatusTooManyRequests, http.StatusServiceUnavailable},
	})

	assert.True(t, h.ShouldRetryResponse(serverErrorResponse(http.StatusTooManyRequests), 1))
	assert.True(t, h.ShouldRetryResponse(serverErrorResponse(http.StatusServiceUnavailable), 1))

	// An explicit allowlist replaces the 5xx default entirely.
	assert.False(t, h.ShouldRetryResponse(serverErrorResponse(http.StatusInternalServerError), 1))
}

func TestShouldRetryResponseCustomPredicate(t *testing.T) {
	var seenAttempts []int
	h := NewRetryHandler(RetryConfig{
		StatusCodes: []int{http.StatusInternalServerError},
		RetryIf: func(resp *Response, attempt int) bool {
			seenAttempts = append(seenAttempts, attempt)
			return resp.Header().Get("Retry-After") != ""
		},
	})

	plain := serverErrorResponse(http.StatusInternalServerError)
	assert.False(t, h.ShouldRetryResponse(plain, 1), "predicate overrides the allowlist")

	hinted := newResponseFromParts(http.StatusInternalServerError, http.Header{"Retry-After": {"1"}}, nil)
	assert.True(t, h.ShouldRetryResponse(hinted, 2))
	assert.Equal(t, []int{1, 2}, seenAttempts)
}

func TestShouldRetryErrorRequiresAllowlist(t *testing.T) {
	errTransient := errors.New("connection reset")
	h := NewRetryHandler(RetryConfig{Errors: []error{errTransient}})

	assert.True(t, h.ShouldRetryError(errTransient, 1))
	assert.True(t, h.ShouldRetryError(fmt.Errorf("send: %w", errTransient), 1), "wrapped errors match via errors.Is")
	assert.False(t, h.ShouldRetryError(errors.New("unrelated"), 1))
	assert.False(t, h.ShouldRetryError(errTransient, 3), "attempt ceiling applies")

	// Without an allowlist no error is retryable.
	bare := NewRetryHandler(RetryConfig{})
	assert.False(t, bare.ShouldRetryError(errTransient, 1))
}

type fixedPolicy struct {
	retryResponses bool
	retryErrors    bool
	delay          time.Duration
}

func (p fixedPolicy) ShouldRetryResponse(*Response, int) bool { return p.retryResponses }
func (p fixedPolicy) ShouldRetryError(error, int) bool        { return p.retryErrors }
func (p fixedPolicy) Delay(int) time.Duration                 { return p.delay }

func TestRetryPolicyTakesPrecedence(t *testing.T) {
	policy := fixedPolicy{retryResponses: true, retryErrors: true, delay: 42 * time.Millisecond}
	h := NewRetryHandlerWithPolicy(RetryConfig{Times: 5}, policy)

	// The policy decides even for responses the config would reject.
	assert.True(t, h.ShouldRetryResponse(serverErrorResponse(http.StatusOK), 1))
	assert.True(t, h.ShouldRetryError(errors.New("anything"), 1))
	assert.Equal(t, 42*time.Millisecond, h.CalculateDelay(1))
	assert.Equal(t, 42*time.Millisecond, h.CalculateDelay(4))

	// The attempt ceiling still binds.
	assert.False(t, h.ShouldRetryResponse(serverErrorResponse(http.StatusInternalServerError), 5))
	assert.False(t, h.ShouldRetryError(errors.New("anything"), 5))
}

func TestWaitSleepsForComputedDelay(t *testing.T) {
	h := NewRetryHandler(RetryConfig{Times: 5, Delay: 100 * time.Millisecond, Multiplier: 2.0})

	var slept []time.Duration
	h.sleep = func(d time.Duration) { slept = append(slept, d) }

	h.Wait(1)
	h.Wait(2)
	h.Wait(3)

	require.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, slept)
}

func TestRetryBudgetAllowsUpToCapacity(t *testing.T) {
	rb := NewRetryBudget(2, time.Hour)

	assert.True(t, rb.Allow())
	assert.True(t, rb.Allow())
	assert.False(t, rb.Allow())

	current, max, _ := rb.Stats()
	assert.Equal(t, int64(2), current)
	assert.Equal(t, int64(2), max)
}

func TestRetryBudgetWindowResets(t *testing.T) {
	rb := NewRetryBudget(1, 10*time.Millisecond)

	assert.True(t, rb.Allow())
	assert.False(t, rb.Allow())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, rb.Allow())
}
