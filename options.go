package relay

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WithBaseURL sets the base URL relative request targets resolve against.
func WithBaseURL(base string) Option {
	return func(c *Connector) {
		c.baseURL = base
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connector) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Connector) {
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetry sets the connector's default retry configuration. Requests may
// override it with Request.WithRetry.
func WithRetry(config RetryConfig) Option {
	return func(c *Connector) {
		c.retry = config.withDefaults()
	}
}

// WithRetryPolicy sets a connector-wide retry policy taking precedence over
// the retry configuration.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Connector) {
		c.retryPolicy = policy
	}
}

// WithRetryBudget caps total retries per sliding window across all requests.
func WithRetryBudget(maxRetries int, perWindow time.Duration) Option {
	return func(c *Connector) {
		c.retryBudget = NewRetryBudget(maxRetries, perWindow)
	}
}

// WithCircuitBreaker configures the connector's circuit breaker.
func WithCircuitBreaker(config CircuitBreakerConfig, opts ...CircuitBreakerOption) Option {
	return func(c *Connector) {
		c.breaker = NewCircuitBreaker(config, opts...)
	}
}

// WithCircuitBreakerKeyFunc overrides how requests map to circuit keys.
// The default keys one circuit per host.
func WithCircuitBreakerKeyFunc(fn KeyFunc) Option {
	return func(c *Connector) {
		c.breakerKeyFunc = fn
	}
}

// WithMiddleware adds middleware to the transport chain.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Connector) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithRateLimiter enables a shared token-bucket rate limiter.
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Connector) {
		c.rateLimiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithRateLimiterRegistry routes requests to per-key rate limiters.
func WithRateLimiterRegistry(registry *RateLimiterRegistry) Option {
	return func(c *Connector) {
		c.rateLimiters = registry
	}
}

// WithCache enables response caching with the default in-memory cache.
func WithCache(ttl time.Duration) Option {
	return func(c *Connector) {
		c.cache = NewInMemoryCache()
		c.cacheTTL = ttl
	}
}

// WithCustomCache sets a custom cache implementation.
func WithCustomCache(cache Cache, ttl time.Duration) Option {
	return func(c *Connector) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithCacheKeyFunc sets a custom cache key function.
func WithCacheKeyFunc(fn func(*http.Request) string) Option {
	return func(c *Connector) {
		c.cacheKeyFunc = fn
	}
}

// WithCacheCondition sets a custom cache condition function.
func WithCacheCondition(fn CacheCondition) Option {
	return func(c *Connector) {
		c.cacheCondition = fn
	}
}

// WithAuthenticator applies the authenticator to every outgoing request.
func WithAuthenticator(auth Authenticator) Option {
	return func(c *Connector) {
		c.auth = auth
	}
}

// WithIdempotency enables idempotency-key injection for requests matching the
// idempotency condition (POST and PATCH by default).
func WithIdempotency() Option {
	return func(c *Connector) {
		c.idempotencyEnabled = true
	}
}

// WithIdempotencyKeyFunc sets a custom idempotency key generator.
func WithIdempotencyKeyFunc(fn IdempotencyKeyFunc) Option {
	return func(c *Connector) {
		c.idempotencyEnabled = true
		c.idempotencyKeyFunc = fn
	}
}

// WithIdempotencyCondition sets which requests receive an idempotency key.
func WithIdempotencyCondition(fn IdempotencyCondition) Option {
	return func(c *Connector) {
		c.idempotencyEnabled = true
		c.idempotencyCondition = fn
	}
}

// WithMetrics enables Prometheus metrics collection on the default registerer.
func WithMetrics() Option {
	return func(c *Connector) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Connector) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with the default configuration.
func WithDebug() Option {
	return func(c *Connector) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Connector) {
		c.debug = config
	}
}

// WithLogger sets a custom logger for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Connector) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a simple console logger.
func WithSimpleLogger() Option {
	return func(c *Connector) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Connector) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the connector configuration and returns an
// error if invalid.
func (c *Connector) ValidateConfiguration() error {
	var errs []string

	errs = append(errs, c.validateRetryConfig()...)
	errs = append(errs, c.validateRateLimiterConfig()...)
	errs = append(errs, c.validateCacheConfig()...)
	errs = append(errs, c.validateCircuitBreakerConfig()...)
	errs = append(errs, c.validateDebugConfig()...)
	errs = append(errs, c.validateMiddlewareConfig()...)
	errs = append(errs, c.validateHTTPClientConfig()...)
	errs = append(errs, c.validateExtremeValues()...)

	if len(errs) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %s", strings.Join(errs, "; ")),
		}
	}

	return nil
}

func (c *Connector) validateRetryConfig() []string {
	var errs []string

	if c.retry.Times < 1 {
		errs = append(errs, "retry Times must be at least 1")
	}
	if c.retry.Delay <= 0 {
		errs = append(errs, "retry Delay must be positive")
	}
	if c.retry.MaxDelay < c.retry.Delay {
		errs = append(errs, "retry MaxDelay must be greater than or equal to Delay")
	}
	if c.retry.Multiplier <= 0 {
		errs = append(errs, "retry Multiplier must be positive")
	}

	return errs
}

func (c *Connector) validateRateLimiterConfig() []string {
	var errs []string

	if c.rateLimiter != nil {
		if c.rateLimiter.maxTokens <= 0 {
			errs = append(errs, "rateLimiter maxTokens must be positive")
		}
		if c.rateLimiter.refillRate <= 0 {
			errs = append(errs, "rateLimiter refillRate must be positive")
		}
	}

	return errs
}

func (c *Connector) validateCacheConfig() []string {
	var errs []string

	if c.cache != nil && c.cacheTTL <= 0 {
		errs = append(errs, "cacheTTL must be positive when cache is enabled")
	}

	return errs
}

func (c *Connector) validateCircuitBreakerConfig() []string {
	var errs []string

	if c.breaker != nil {
		config := c.breaker.Config()
		if config.FailureThreshold <= 0 {
			errs = append(errs, "circuitBreaker FailureThreshold must be positive")
		}
		if config.ResetTimeout <= 0 {
			errs = append(errs, "circuitBreaker ResetTimeout must be positive")
		}
		if config.HalfOpenRequests <= 0 {
			errs = append(errs, "circuitBreaker HalfOpenRequests must be positive")
		}
		if config.SuccessThreshold <= 0 {
			errs = append(errs, "circuitBreaker SuccessThreshold must be positive")
		}
	}
	if c.breakerKeyFunc == nil {
		errs = append(errs, "circuitBreaker key function cannot be nil")
	}

	return errs
}

func (c *Connector) validateDebugConfig() []string {
	var errs []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			errs = append(errs, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			errs = append(errs, "logger must be set when debug is enabled")
		}
	}

	return errs
}

func (c *Connector) validateMiddlewareConfig() []string {
	var errs []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			errs = append(errs, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return errs
}

func (c *Connector) validateHTTPClientConfig() []string {
	var errs []string

	if c.httpClient == nil {
		errs = append(errs, "HTTP client cannot be nil")
	}

	return errs
}

func (c *Connector) validateExtremeValues() []string {
	var errs []string

	if c.retry.Times > 100 {
		errs = append(errs, "retry Times > 100 may cause excessive resource usage")
	}
	if c.retry.Delay > 10*time.Minute {
		errs = append(errs, "retry Delay > 10m may cause very long waits")
	}
	if c.retry.MaxDelay > time.Hour {
		errs = append(errs, "retry MaxDelay > 1h may cause extremely long waits")
	}
	if c.rateLimiter != nil && c.rateLimiter.refillRate < time.Millisecond {
		errs = append(errs, "rateLimiter refillRate < 1ms may cause excessive CPU usage")
	}
	if c.cache != nil && c.cacheTTL > 24*time.Hour {
		errs = append(errs, "cacheTTL > 24h may cause stale data issues")
	}

	return errs
}
