package ratelimit

import (
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

const (
	defaultNumCounters = 1e5
	defaultMaxCost     = 1 << 20
	defaultBufferItems = 64
)

// Counter is one caller's usage inside a single window.
type Counter struct {
	Count       int
	WindowStart time.Time
}

// CounterStore holds windowed counters keyed by caller fingerprint. Incr is
// serialized in-process; across processes callers must tolerate a +1 race
// over the limit per window.
type CounterStore interface {
	// Count returns the live count for key, zero if absent or expired.
	Count(key string) (int, error)

	// Incr bumps the counter for key, starting a fresh window of the given
	// length if none is live, and returns the new count.
	Incr(key string, window time.Duration) (int, error)
}

// RistrettoStore is a CounterStore over an in-process ristretto cache.
// Window expiry rides on the cache's own TTL handling.
type RistrettoStore struct {
	mu    sync.Mutex
	cache *ristretto.Cache
	now   func() time.Time
}

func NewRistrettoStore() (*RistrettoStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultNumCounters,
		MaxCost:     defaultMaxCost,
		BufferItems: defaultBufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoStore{cache: cache, now: time.Now}, nil
}

func (s *RistrettoStore) Count(key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.get(key); ok {
		return c.Count, nil
	}
	return 0, nil
}

func (s *RistrettoStore) Incr(key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	c, ok := s.get(key)
	if ok {
		remaining := c.WindowStart.Add(window).Sub(now)
		if remaining > 0 {
			c.Count++
			s.put(key, c, remaining)
			return c.Count, nil
		}
	}

	c = Counter{Count: 1, WindowStart: now}
	s.put(key, c, window)
	return 1, nil
}

func (s *RistrettoStore) Close() {
	s.cache.Close()
}

func (s *RistrettoStore) get(key string) (Counter, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		return Counter{}, false
	}
	c, ok := v.(Counter)
	return c, ok
}

func (s *RistrettoStore) put(key string, c Counter, ttl time.Duration) {
	s.cache.SetWithTTL(key, c, 1, ttl)
	// Ristretto applies writes asynchronously; the limiter needs its own
	// increment visible on the next request.
	s.cache.Wait()
}
