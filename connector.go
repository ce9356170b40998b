package relay

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Connector issues API requests with all reliability features applied: rate
// limiting, circuit breaking, retries with backoff, response caching,
// authentication and idempotency keys. It implements Sender and is safe for
// concurrent use.
type Connector struct {
	httpClient *http.Client
	baseURL    string

	retry       RetryConfig
	retryPolicy RetryPolicy
	retryBudget *RetryBudget

	breaker        *CircuitBreaker
	breakerKeyFunc KeyFunc

	middleware []Middleware

	rateLimiter  *RateLimiter
	rateLimiters *RateLimiterRegistry

	cache          Cache
	cacheTTL       time.Duration
	cacheKeyFunc   func(*http.Request) string
	cacheCondition CacheCondition

	auth Authenticator

	idempotencyEnabled   bool
	idempotencyKeyFunc   IdempotencyKeyFunc
	idempotencyCondition IdempotencyCondition

	metrics *MetricsCollector
	debug   *DebugConfig
	logger  Logger

	validationError error
}

// NewConnector constructs a Connector using the provided functional options.
// A best effort validation is performed; call IsValid / ValidationError for
// errors.
func NewConnector(options ...Option) *Connector {
	c := &Connector{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry:                RetryConfig{}.withDefaults(),
		breaker:              NewCircuitBreaker(CircuitBreakerConfig{}),
		breakerKeyFunc:       CircuitKeyFunc,
		middleware:           []Middleware{},
		cacheTTL:             5 * time.Minute,
		cacheKeyFunc:         DefaultCacheKeyFunc,
		cacheCondition:       DefaultCacheCondition,
		idempotencyKeyFunc:   DefaultIdempotencyKeyFunc,
		idempotencyCondition: DefaultIdempotencyCondition,
		debug:                DefaultDebugConfig(),
	}

	for _, option := range options {
		option(c)
	}

	if err := c.ValidateConfiguration(); err != nil {
		c.validationError = err
	}

	return c
}

// Get sends a GET request for the given target.
func (c *Connector) Get(ctx context.Context, target string) (*Response, error) {
	return c.Send(ctx, NewRequest(http.MethodGet, target))
}

// Post sends a POST request carrying body with the given content type.
func (c *Connector) Post(ctx context.Context, target, contentType string, body []byte) (*Response, error) {
	return c.Send(ctx, NewRequest(http.MethodPost, target).WithBody(body, contentType))
}

// GetJSON sends a GET request and unmarshals the response body into v.
func (c *Connector) GetJSON(ctx context.Context, target string, v any) error {
	resp, err := c.Get(ctx, target)
	if err != nil {
		return err
	}
	return resp.JSON(v)
}

// Paginate sends req and returns an iterator that follows the paginator's
// next-page parameters across successive requests.
func (c *Connector) Paginate(ctx context.Context, req *Request, paginator Paginator) (*PaginatedResponse, error) {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordPageLoaded(req.Method(), req.Target())
	return NewPaginatedResponse(pageSender{c}, req, paginator, resp), nil
}

// pageSender counts fetched pages on top of the connector's send path.
type pageSender struct {
	c *Connector
}

func (s pageSender) Send(ctx context.Context, req *Request) (*Response, error) {
	resp, err := s.c.Send(ctx, req)
	if err == nil {
		s.c.metrics.RecordPageLoaded(req.Method(), req.Target())
	}
	return resp, err
}

// Send executes the request applying all reliability features.
func (c *Connector) Send(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	// The idempotency key is assigned once, before the retry loop, so every
	// retry of the same logical request replays the same key.
	if c.idempotencyEnabled && c.idempotencyCondition(req) && req.HeaderValue(IdempotencyHeader) == "" {
		req = req.WithHeader(IdempotencyHeader, c.idempotencyKeyFunc())
	}

	probe, err := req.Build(ctx, c.baseURL)
	if err != nil {
		return nil, err
	}
	endpoint := endpointFromRequest(probe)

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}

	if c.debugEnabled() && c.debug.LogRequests {
		c.logger.Debug("Starting request", "requestID", requestID, "method", req.Method(), "url", probe.URL.String(), "endpoint", endpoint)
	}

	c.metrics.RecordRequestStart(req.Method(), endpoint)

	cacheEnabled := c.cache != nil && c.shouldCacheRequest(probe)

	if cacheEnabled {
		cacheKey := c.cacheKeyFunc(probe)
		if entry, found := c.cache.Get(cacheKey); found {
			if c.debugEnabled() && c.debug.LogCache {
				c.logger.Debug("Cache hit", "requestID", requestID, "cacheKey", cacheKey)
			}
			c.metrics.RecordCacheHit(req.Method(), endpoint)
			c.metrics.RecordRequestEnd(req.Method(), endpoint)
			c.metrics.RecordRequest(req.Method(), endpoint, entry.StatusCode, time.Since(start))
			return responseFromCacheEntry(entry), nil
		}
		c.metrics.RecordCacheMiss(req.Method(), endpoint)
		if c.debugEnabled() && c.debug.LogCache {
			c.logger.Debug("Cache miss", "requestID", requestID, "cacheKey", cacheKey)
		}
	}

	handler := c.retryHandlerFor(req)
	resp, err := c.sendWithRetry(ctx, req, handler, 1, requestID, endpoint, start)

	c.metrics.RecordRequestEnd(req.Method(), endpoint)
	statusCode := 0
	if resp != nil {
		statusCode = resp.Status()
	}
	c.metrics.RecordRequest(req.Method(), endpoint, statusCode, time.Since(start))

	if cacheEnabled && err == nil && resp.Status() < 400 {
		cacheKey := c.cacheKeyFunc(probe)
		ttl := c.cacheTTLForRequest(probe)
		c.cache.Set(cacheKey, cacheEntryFromResponse(resp), ttl)

		if memCache, ok := c.cache.(*InMemoryCache); ok {
			c.metrics.RecordCacheSize("default", memCache.Len())
		}
		if c.debugEnabled() && c.debug.LogCache {
			c.logger.Debug("Response cached", "requestID", requestID, "cacheKey", cacheKey, "ttl", ttl)
		}
	}

	return resp, err
}

// retryHandlerFor resolves the retry handler for a request. Precedence: a
// policy attached to the request, then the request's declared config, then
// the connector's policy, then the connector's config.
func (c *Connector) retryHandlerFor(req *Request) *RetryHandler {
	config := c.retry
	if declared, ok := req.RetryConfig(); ok {
		config = declared
	}
	if policy := req.RetryPolicy(); policy != nil {
		return NewRetryHandlerWithPolicy(config, policy)
	}
	if _, ok := req.RetryConfig(); !ok && c.retryPolicy != nil {
		return NewRetryHandlerWithPolicy(config, c.retryPolicy)
	}
	return NewRetryHandler(config)
}

func (c *Connector) sendWithRetry(ctx context.Context, req *Request, handler *RetryHandler, attempt int, requestID, endpoint string, start time.Time) (*Response, error) {
	httpReq, err := req.Build(ctx, c.baseURL)
	if err != nil {
		return nil, err
	}

	if allowed, limiterName := c.allowRate(httpReq); !allowed {
		if c.debugEnabled() && c.debug.LogRateLimit {
			c.logger.Warn("Rate limit exceeded", "requestID", requestID, "endpoint", endpoint, "limiter", limiterName)
		}
		c.metrics.RecordError(ErrorTypeRateLimit, req.Method(), endpoint)
		return nil, c.clientError(ErrorTypeRateLimit, "rate limit exceeded", ErrRateLimited, requestID, httpReq, attempt, handler, start)
	}
	if c.rateLimiter != nil {
		c.metrics.RecordRateLimiterTokens("default", c.rateLimiter.Tokens())
	}

	key := c.breakerKeyFunc(httpReq)
	if admitErr := c.breaker.AllowRequest(key); admitErr != nil {
		if c.debugEnabled() && c.debug.LogCircuit {
			c.logger.Warn("Circuit breaker open", "requestID", requestID, "endpoint", endpoint, "key", key)
		}
		c.metrics.RecordError(ErrorTypeCircuitOpen, req.Method(), endpoint)
		// The CircuitOpenError surfaces unchanged: it carries the
		// retry-after hint callers turn into a 503 equivalent.
		return nil, admitErr
	}

	if c.auth != nil {
		if authErr := c.auth.Apply(httpReq); authErr != nil {
			return nil, c.clientError(ErrorTypeClient, "applying authentication", authErr, requestID, httpReq, attempt, handler, start)
		}
	}

	if attempt > 1 {
		if c.debugEnabled() && c.debug.LogRetries {
			c.logger.Info("Retry attempt", "requestID", requestID, "attempt", attempt, "maxAttempts", handler.Config().Times, "endpoint", endpoint)
		}
		c.metrics.RecordRetry(req.Method(), endpoint, attempt)
	}

	rawResp, err := c.executeMiddleware(httpReq)

	if err != nil || rawResp.StatusCode >= 500 {
		c.breaker.RecordFailure(key)
	} else {
		c.breaker.RecordSuccess(key)
	}
	c.metrics.RecordCircuitBreakerState(key, c.breaker.State(key))

	if err != nil {
		c.metrics.RecordError(ErrorTypeNetwork, req.Method(), endpoint)
		if c.debugEnabled() && c.debug.LogCircuit {
			c.logger.Warn("Circuit breaker failure recorded", "requestID", requestID, "key", key, "error", err.Error())
		}
		if handler.ShouldRetryError(err, attempt) {
			if retryErr := c.spendRetryBudget(req, requestID, endpoint, httpReq, attempt, handler, start); retryErr != nil {
				return nil, retryErr
			}
			c.waitBeforeRetry(handler, attempt, requestID, endpoint)
			return c.sendWithRetry(ctx, req, handler, attempt+1, requestID, endpoint, start)
		}
		return nil, c.clientError(ErrorTypeNetwork, "request failed", err, requestID, httpReq, attempt, handler, start)
	}

	resp, err := NewResponse(rawResp)
	if err != nil {
		return nil, c.clientError(ErrorTypeNetwork, "reading response body", err, requestID, httpReq, attempt, handler, start)
	}

	if resp.ServerError() {
		c.metrics.RecordError(ErrorTypeServer, req.Method(), endpoint)
	}

	if handler.ShouldRetryResponse(resp, attempt) {
		if retryErr := c.spendRetryBudget(req, requestID, endpoint, httpReq, attempt, handler, start); retryErr != nil {
			return nil, retryErr
		}
		c.waitBeforeRetry(handler, attempt, requestID, endpoint)
		return c.sendWithRetry(ctx, req, handler, attempt+1, requestID, endpoint, start)
	}

	// Retry exhaustion or ineligibility surfaces the last response as-is.
	return resp, nil
}

// spendRetryBudget consumes one retry from the budget, returning a terminal
// error when the budget is exhausted.
func (c *Connector) spendRetryBudget(req *Request, requestID, endpoint string, httpReq *http.Request, attempt int, handler *RetryHandler, start time.Time) error {
	if c.retryBudget == nil || c.retryBudget.Allow() {
		return nil
	}
	c.metrics.RecordRetryBudgetExceeded(endpoint)
	if c.debugEnabled() && c.debug.LogRetries {
		c.logger.Warn("Retry budget exceeded", "requestID", requestID, "endpoint", endpoint)
	}
	return c.clientError(ErrorTypeRetryBudgetExceeded, "retry budget exceeded", ErrRetryBudgetExceeded, requestID, httpReq, attempt, handler, start)
}

func (c *Connector) waitBeforeRetry(handler *RetryHandler, attempt int, requestID, endpoint string) {
	if c.debugEnabled() && c.debug.LogRetries {
		c.logger.Info("Scheduling retry", "requestID", requestID, "attempt", attempt+1, "backoff", handler.CalculateDelay(attempt), "endpoint", endpoint)
	}
	handler.Wait(attempt)
}

func (c *Connector) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripper(RoundTripperFunc(c.httpClient.Do))

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

func (c *Connector) allowRate(httpReq *http.Request) (bool, string) {
	if c.rateLimiters != nil {
		return c.rateLimiters.Allow(httpReq)
	}
	if c.rateLimiter != nil {
		return c.rateLimiter.Allow(), "default"
	}
	return true, ""
}

func (c *Connector) shouldCacheRequest(httpReq *http.Request) bool {
	if control, ok := httpReq.Context().Value(CacheControlKey).(*CacheControl); ok {
		return control.Enabled
	}
	return c.cacheCondition(httpReq)
}

func (c *Connector) cacheTTLForRequest(httpReq *http.Request) time.Duration {
	if control, ok := httpReq.Context().Value(CacheControlKey).(*CacheControl); ok && control.TTL > 0 {
		return control.TTL
	}
	return c.cacheTTL
}

func (c *Connector) debugEnabled() bool {
	return c.debug != nil && c.debug.Enabled && c.logger != nil
}

func (c *Connector) clientError(errorType, message string, cause error, requestID string, httpReq *http.Request, attempt int, handler *RetryHandler, start time.Time) *ClientError {
	return &ClientError{
		Type:       errorType,
		Message:    message,
		Cause:      cause,
		RequestID:  requestID,
		Method:     httpReq.Method,
		URL:        httpReq.URL.String(),
		Endpoint:   endpointFromRequest(httpReq),
		Attempt:    attempt,
		MaxRetries: handler.Config().Times,
		Timestamp:  time.Now(),
		Duration:   time.Since(start),
	}
}

// IsValid reports whether configuration validation passed at construction.
func (c *Connector) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Connector) ValidationError() error {
	return c.validationError
}

// ValidateConfigurationStrict panics if configuration is invalid.
func (c *Connector) ValidateConfigurationStrict() {
	if err := c.ValidateConfiguration(); err != nil {
		panic(fmt.Sprintf("invalid connector configuration: %v", err))
	}
}

// CircuitKeyFunc is the default breaker key function: one circuit per host.
func CircuitKeyFunc(req *http.Request) string {
	if req.URL != nil && req.URL.Host != "" {
		return req.URL.Host
	}
	return "default"
}

// endpointFromRequest extracts a simplified endpoint from the request for
// metrics and logging.
func endpointFromRequest(req *http.Request) string {
	if req.URL == nil {
		return "unknown"
	}

	host := req.URL.Host
	path := req.URL.Path

	var builder strings.Builder
	builder.WriteString(host)

	if path != "" && path != "/" {
		builder.WriteString(path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
