package relay

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestClientErrorMessage(t *testing.T) {
	err := &ClientError{
		Type:    ErrorTypeNetwork,
		Message: "request failed",
		Cause:   errors.New("connection refused"),
	}

	msg := err.Error()
	if !strings.Contains(msg, "Network") {
		t.Errorf("expected type in message, got %q", msg)
	}
	if !strings.Contains(msg, "connection refused") {
		t.Errorf("expected cause in message, got %q", msg)
	}
}

func TestClientErrorMessageWithContext(t *testing.T) {
	err := &ClientError{
		Type:       ErrorTypeServer,
		Message:    "request failed",
		RequestID:  "req-123",
		Attempt:    2,
		MaxRetries: 3,
	}

	msg := err.Error()
	if !strings.Contains(msg, "[req-123]") {
		t.Errorf("expected request ID, got %q", msg)
	}
	if !strings.Contains(msg, "attempt 2/3") {
		t.Errorf("expected attempt info, got %q", msg)
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &ClientError{Type: ErrorTypeNetwork, Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
	if errors.Unwrap(err) != cause {
		t.Error("expected Unwrap to return the cause")
	}
}

func TestClientErrorIsMatchesType(t *testing.T) {
	err := &ClientError{Type: ErrorTypeRateLimit, Message: "limited"}
	target := &ClientError{Type: ErrorTypeRateLimit}
	other := &ClientError{Type: ErrorTypeNetwork}

	if !errors.Is(err, target) {
		t.Error("expected same-type ClientErrors to match")
	}
	if errors.Is(err, other) {
		t.Error("expected different types not to match")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"circuit open sentinel", ErrCircuitOpen, true},
		{"circuit open error", &CircuitOpenError{Key: "api", RetryAfter: time.Second}, true},
		{"rate limited", ErrRateLimited, true},
		{"retry budget", ErrRetryBudgetExceeded, true},
		{"network", &ClientError{Type: ErrorTypeNetwork}, true},
		{"timeout", &ClientError{Type: ErrorTypeTimeout}, true},
		{"server", &ClientError{Type: ErrorTypeServer}, true},
		{"client 429", &ClientError{Type: ErrorTypeClient, StatusCode: 429}, true},
		{"client 404", &ClientError{Type: ErrorTypeClient, StatusCode: 404}, false},
		{"validation", &ClientError{Type: ErrorTypeValidation}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCircuitOpenErrorRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		retryAfter time.Duration
		want       int
	}{
		{0, 0},
		{-time.Second, 0},
		{500 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{time.Minute, 60},
	}

	for _, tt := range tests {
		err := &CircuitOpenError{Key: "api", RetryAfter: tt.retryAfter}
		if got := err.RetryAfterSeconds(); got != tt.want {
			t.Errorf("RetryAfterSeconds(%v) = %d, want %d", tt.retryAfter, got, tt.want)
		}
	}
}

func TestClientErrorDebugInfo(t *testing.T) {
	err := &ClientError{
		Type:       ErrorTypeServer,
		Message:    "request failed",
		RequestID:  "req-9",
		Method:     "GET",
		URL:        "https://api.example.com/users",
		Endpoint:   "api.example.com/users",
		StatusCode: 503,
		Attempt:    3,
		MaxRetries: 3,
		Timestamp:  time.Now(),
		Duration:   250 * time.Millisecond,
		Cause:      errors.New("bad gateway"),
	}

	info := err.DebugInfo()
	for _, want := range []string{"Server", "req-9", "GET", "503", "3/3", "bad gateway"} {
		if !strings.Contains(info, want) {
			t.Errorf("expected %q in debug info:\n%s", want, info)
		}
	}
}
