package relay

import (
	"context"
	"net/http"
	"time"
)

// Sender issues a prepared Request and returns its Response. The Connector is
// the library's Sender; callers may substitute their own (e.g. a recording
// fake in tests, or a wrapper adding tracing).
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Middleware represents a middleware function wrapping the transport.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// KeyFunc derives a string key from an outgoing request, used to select
// circuit breaker circuits and per-route rate limiters.
type KeyFunc func(req *http.Request) string

// CacheCondition determines whether a request should be cached.
type CacheCondition func(req *http.Request) bool

// Option represents a Connector configuration option.
type Option func(*Connector)

// Context keys for cache control
type contextKey string

const (
	// CacheControlKey carries per-request cache overrides in a context.
	CacheControlKey contextKey = "relay_cache_control"
)

// CacheControl holds cache control options for a request.
type CacheControl struct {
	Enabled bool
	TTL     time.Duration
}

// WithContextCacheEnabled creates a context that enables caching for the request.
func WithContextCacheEnabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, CacheControlKey, &CacheControl{Enabled: true})
}

// WithContextCacheDisabled creates a context that disables caching for the request.
func WithContextCacheDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, CacheControlKey, &CacheControl{Enabled: false})
}

// WithContextCacheTTL creates a context with a custom TTL for the request.
func WithContextCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, CacheControlKey, &CacheControl{Enabled: true, TTL: ttl})
}
