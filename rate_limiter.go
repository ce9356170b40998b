package relay

import (
	"net/http"
	"sync"
	"time"
)

// Limiter is the admission interface shared by the token bucket and any
// caller-supplied limiter.
type Limiter interface {
	Allow() bool
}

// RateLimiter is a token-bucket limiter: capacity maxTokens, one token
// refilled every refillRate.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewRateLimiter creates a full bucket of maxTokens refilling one token per
// refillRate.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		maxTokens:  maxTokens,
		tokens:     maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes a token when one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	tokensToAdd := int(elapsed / rl.refillRate)
	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// Tokens returns the number of tokens currently available.
func (rl *RateLimiter) Tokens() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.tokens
}

// RateLimiterRegistry routes requests to per-key limiters, falling back to a
// shared limiter for keys without a dedicated one. Useful when different
// hosts or endpoints have different quotas.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]Limiter
	keyFunc  KeyFunc
	fallback Limiter
}

// NewRateLimiterRegistry creates a registry using keyFunc to pick a limiter
// per request. fallback may be nil, in which case unmatched requests are not
// rate limited.
func NewRateLimiterRegistry(keyFunc KeyFunc, fallback Limiter) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[string]Limiter),
		keyFunc:  keyFunc,
		fallback: fallback,
	}
}

// RegisterLimiter adds a limiter for the given key.
func (r *RateLimiterRegistry) RegisterLimiter(key string, limiter Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[key] = limiter
}

// GetLimiter returns the limiter and key for the given request. Falls back to
// the shared limiter when no specific one is registered.
func (r *RateLimiterRegistry) GetLimiter(req *http.Request) (Limiter, string) {
	if r.keyFunc == nil {
		return r.fallback, "default"
	}

	key := r.keyFunc(req)

	r.mu.RLock()
	limiter, exists := r.limiters[key]
	r.mu.RUnlock()
	if exists {
		return limiter, key
	}
	if r.fallback != nil {
		return r.fallback, "default"
	}
	return nil, key
}

// Allow checks the request against the appropriate limiter. Requests with no
// matching limiter are allowed.
func (r *RateLimiterRegistry) Allow(req *http.Request) (bool, string) {
	limiter, key := r.GetLimiter(req)
	if limiter == nil {
		return true, key
	}
	return limiter.Allow(), key
}

// HostKeyFunc keys rate limiters by request host.
func HostKeyFunc(req *http.Request) string {
	if req.URL != nil && req.URL.Host != "" {
		return "host:" + req.URL.Host
	}
	if req.Host != "" {
		return "host:" + req.Host
	}
	return "host:unknown"
}
