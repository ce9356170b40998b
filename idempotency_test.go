package relay

import (
	"net/http"
	"testing"
)

func TestDefaultIdempotencyCondition(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{http.MethodPost, true},
		{http.MethodPatch, true},
		{http.MethodGet, false},
		{http.MethodPut, false},
		{http.MethodDelete, false},
	}

	for _, tt := range tests {
		req := NewRequest(tt.method, "/orders")
		if got := DefaultIdempotencyCondition(req); got != tt.want {
			t.Errorf("DefaultIdempotencyCondition(%s) = %v, want %v", tt.method, got, tt.want)
		}
	}
}

func TestDefaultIdempotencyKeyFunc(t *testing.T) {
	a := DefaultIdempotencyKeyFunc()
	b := DefaultIdempotencyKeyFunc()

	if a == "" || b == "" {
		t.Error("expected non-empty keys")
	}
	if a == b {
		t.Error("expected unique keys")
	}
	if len(a) != 36 {
		t.Errorf("expected UUID format, got %q", a)
	}
}
