package relay

import (
	"github.com/google/uuid"
)

// IdempotencyHeader is the header carrying the idempotency key.
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyKeyFunc generates idempotency keys.
type IdempotencyKeyFunc func() string

// IdempotencyCondition decides which requests get an idempotency key.
type IdempotencyCondition func(req *Request) bool

// DefaultIdempotencyKeyFunc generates a random UUIDv4 key.
func DefaultIdempotencyKeyFunc() string {
	return uuid.NewString()
}

// DefaultIdempotencyCondition keys the non-idempotent write methods. Requests
// that already carry an Idempotency-Key header are left untouched by the
// connector regardless.
func DefaultIdempotencyCondition(req *Request) bool {
	switch req.Method() {
	case "POST", "PATCH":
		return true
	default:
		return false
	}
}
