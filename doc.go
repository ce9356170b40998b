// Package relay is a toolkit for building resilient clients against third-party
// web APIs. It layers reliability and traversal primitives on top of net/http:
//
//   - Retries with exponential backoff, jitter strategies and a retry budget
//   - Circuit breaker (closed / open / half-open) keyed per upstream resource,
//     backed by a pluggable store
//   - Pagination (offset, cursor and page-number strategies) driven by a lazy
//     multi-page iterator
//   - In-memory response caching with per-request overrides
//   - Rate limiting (token bucket, optionally per-route)
//   - Request authentication and idempotency-key injection
//   - Middleware chain for cross-cutting concerns (tracing, custom headers, etc.)
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - Decision points (breaker admission, retry eligibility, pagination
//     continuation) are queried before acting, keeping the caller in control
//   - Safe concurrent use of a single *Connector instance
//   - Extensibility via caller-supplied policies, stores, caches and middleware
//
// Typical usage:
//
//	conn := relay.NewConnector(
//	    relay.WithBaseURL("https://api.example.com"),
//	    relay.WithRetry(relay.RetryConfig{Times: 3}),
//	    relay.WithCircuitBreaker(relay.CircuitBreakerConfig{}),
//	    relay.WithCache(5*time.Minute),
//	    relay.WithAuthenticator(relay.BearerToken("secret")),
//	)
//	resp, err := conn.Get(ctx, "/users/1")
//
// List endpoints are traversed lazily:
//
//	pages, err := conn.Paginate(ctx, relay.NewRequest("GET", "/users"),
//	    relay.OffsetPaginator{Limit: 50})
//	for pages.Next(ctx) {
//	    item := pages.Item()
//	    _ = item
//	}
//	if err := pages.Err(); err != nil {
//	    // a failed page fetch ends iteration here
//	}
//
// Only server-error responses trigger retries by default; opt in to more with
// RetryConfig.StatusCodes or a custom RetryPolicy. The library avoids
// opinionated logging: provide a Logger (e.g. via WithSimpleLogger) and enable
// debug flags selectively (WithDebug / WithDebugConfig) for insight without noise.
package relay
