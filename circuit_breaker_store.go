package relay

import (
	"sync"
	"time"
)

// CircuitBreakerStore persists per-key circuit state. All methods are keyed by
// a caller-chosen string identifying the protected resource (a host, an
// endpoint, a tenant). The interface is storage-agnostic so breaker state can
// be shared across processes via a distributed cache or database; MemoryStore
// is the in-process reference implementation.
//
// Failure bookkeeping is window-based: RecordFailure appends a timestamp and
// prunes entries older than the window, and FailureCount only counts entries
// still inside it.
type CircuitBreakerStore interface {
	State(key string) CircuitState
	SetState(key string, state CircuitState)
	RecordFailure(key string, at time.Time, window time.Duration) int
	RecordSuccess(key string) int
	FailureCount(key string, now time.Time, window time.Duration) int
	SuccessCount(key string) int
	OpenedAt(key string) (time.Time, bool)
	SetOpenedAt(key string, at time.Time)
	HalfOpenAttempts(key string) int
	IncrementHalfOpenAttempts(key string) int
	Reset(key string)
}

type circuitRecord struct {
	state            CircuitState
	failures         []time.Time
	successes        int
	openedAt         time.Time
	opened           bool
	halfOpenAttempts int
}

// MemoryStore is the in-memory CircuitBreakerStore. Circuits are created
// implicitly on first access in the default Closed state. The map is guarded
// by a mutex so a single process can share one store across goroutines;
// sharing breaker state across processes still requires an external store.
type MemoryStore struct {
	mu       sync.Mutex
	circuits map[string]*circuitRecord
}

// NewMemoryStore creates an empty in-memory circuit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{circuits: make(map[string]*circuitRecord)}
}

// record returns the circuit for key, creating it on first access.
// Callers must hold s.mu.
func (s *MemoryStore) record(key string) *circuitRecord {
	rec, ok := s.circuits[key]
	if !ok {
		rec = &circuitRecord{state: StateClosed}
		s.circuits[key] = rec
	}
	return rec
}

// State returns the persisted state for key.
func (s *MemoryStore) State(key string) CircuitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(key).state
}

// SetState overwrites the persisted state for key.
func (s *MemoryStore) SetState(key string, state CircuitState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(key).state = state
}

// RecordFailure appends a failure timestamp, prunes entries that fell out of
// the window, and returns the number of failures remaining inside it.
func (s *MemoryStore) RecordFailure(key string, at time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(key)
	rec.failures = append(rec.failures, at)
	rec.failures = pruneFailures(rec.failures, at, window)
	return len(rec.failures)
}

// RecordSuccess increments the success counter and returns the new count.
func (s *MemoryStore) RecordSuccess(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(key)
	rec.successes++
	return rec.successes
}

// FailureCount returns the number of failures still inside the window.
func (s *MemoryStore) FailureCount(key string, now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(key)
	rec.failures = pruneFailures(rec.failures, now, window)
	return len(rec.failures)
}

// SuccessCount returns the accumulated success count.
func (s *MemoryStore) SuccessCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(key).successes
}

// OpenedAt returns the instant the circuit was last opened, if it ever was.
func (s *MemoryStore) OpenedAt(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(key)
	return rec.openedAt, rec.opened
}

// SetOpenedAt records the instant the circuit opened.
func (s *MemoryStore) SetOpenedAt(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(key)
	rec.openedAt = at
	rec.opened = true
}

// HalfOpenAttempts returns the number of probes admitted in the current
// half-open period.
func (s *MemoryStore) HalfOpenAttempts(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(key).halfOpenAttempts
}

// IncrementHalfOpenAttempts bumps the probe counter and returns the new value.
func (s *MemoryStore) IncrementHalfOpenAttempts(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(key)
	rec.halfOpenAttempts++
	return rec.halfOpenAttempts
}

// Reset restores the circuit to its default Closed state with all counters
// cleared.
func (s *MemoryStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.circuits[key] = &circuitRecord{state: StateClosed}
}

// pruneFailures drops timestamps older than the window. A zero window keeps
// every failure (pure count-based thresholding).
func pruneFailures(failures []time.Time, now time.Time, window time.Duration) []time.Time {
	if window <= 0 {
		return failures
	}
	cutoff := now.Add(-window)
	kept := failures[:0]
	for _, ts := range failures {
		if ts.After(cutoff) || ts.Equal(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
