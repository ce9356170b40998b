package relay

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// CacheEntry represents a cached response.
type CacheEntry struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	ExpiresAt  time.Time
}

// Cache is the pluggable response cache interface.
type Cache interface {
	Get(key string) (*CacheEntry, bool)
	Set(key string, entry *CacheEntry, ttl time.Duration)
	Delete(key string)
	Clear()
}

// InMemoryCache is a simple TTL cache over a mutex-guarded map. Expired
// entries are dropped lazily on read.
type InMemoryCache struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
}

// NewInMemoryCache creates an empty in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{store: make(map[string]*CacheEntry)}
}

// Get retrieves a cached entry, removing it when expired.
func (c *InMemoryCache) Get(key string) (*CacheEntry, bool) {
	c.mu.RLock()
	entry, exists := c.store[key]
	c.mu.RUnlock()
	if !exists {
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.store, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry, true
}

// Set stores a cache entry with the given TTL.
func (c *InMemoryCache) Set(key string, entry *CacheEntry, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.ExpiresAt = time.Now().Add(ttl)
	c.store[key] = entry
}

// Delete removes a cache entry.
func (c *InMemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

// Clear removes all cache entries.
func (c *InMemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]*CacheEntry)
}

// Len returns the number of live entries, counting expired ones not yet
// evicted.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// DefaultCacheKeyFunc generates a cache key from the request.
func DefaultCacheKeyFunc(req *http.Request) string {
	return fmt.Sprintf("%s:%s", req.Method, req.URL.String())
}

// DefaultCacheCondition caches GET requests only.
func DefaultCacheCondition(req *http.Request) bool {
	return req.Method == http.MethodGet
}

// cacheEntryFromResponse snapshots a buffered Response into a cache entry.
func cacheEntryFromResponse(resp *Response) *CacheEntry {
	return &CacheEntry{
		Body:       resp.Body(),
		StatusCode: resp.Status(),
		Header:     resp.Header().Clone(),
	}
}

// responseFromCacheEntry rebuilds a Response from a cache entry.
func responseFromCacheEntry(entry *CacheEntry) *Response {
	return newResponseFromParts(entry.StatusCode, entry.Header, entry.Body)
}
