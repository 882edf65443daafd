// Package cache provides a bounded, TTL-based result cache with a
// single-flight guarantee: concurrent callers for the same uncached
// fingerprint collapse into one computation.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"arbiter/internal/debate"
)

// ErrComputationFailed wraps a compute error delivered to every waiter on
// the same fingerprint.
var ErrComputationFailed = errors.New("cache computation failed")

const (
	DefaultTTL      = 5 * time.Minute
	DefaultCapacity = 256
)

type entry struct {
	result    *debate.ConsensusResult
	createdAt time.Time
	expiresAt time.Time
}

// Cache maps fingerprints to consensus results. Entries expire a fixed TTL
// after creation (not last access) and the oldest-created entry is evicted
// first when the cache is full. Expired entries are never served, even if
// eviction has not reclaimed them yet.
type Cache struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	order   []string // insertion order for FIFO eviction

	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default 5 minute entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCapacity overrides the default capacity.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Cache with the given options.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached result for key, or (nil, false) on miss. An expired
// entry behaves as a miss and is removed.
func (c *Cache) Get(key string) (*debate.ConsensusResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache) getLocked(key string) (*debate.ConsensusResult, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.removeLocked(key)
		return nil, false
	}
	return e.result, true
}

// GetOrCompute returns the cached result for key, computing and storing it on
// a miss. If N callers arrive concurrently for the same uncached key, exactly
// one runs compute; the rest block and share its result. A failed computation
// is delivered to all waiters wrapped in ErrComputationFailed and nothing is
// cached. The second return reports whether the result came from the cache.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (*debate.ConsensusResult, error)) (*debate.ConsensusResult, bool, error) {
	if res, ok := c.Get(key); ok {
		return res, true, nil
	}

	computed := false
	v, err, shared := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: another caller may have stored the
		// entry between our miss and acquiring the flight.
		if res, ok := c.Get(key); ok {
			return res, nil
		}
		res, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		computed = true
		c.put(key, res)
		return res, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrComputationFailed, err)
	}
	// Waiters that shared someone else's flight did not pay for the
	// computation themselves, but the result is fresh, not a cache hit.
	hit := !computed && !shared
	return v.(*debate.ConsensusResult), hit, nil
}

func (c *Cache) put(key string, res *debate.ConsensusResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.removeLocked(key)
	}
	for len(c.entries) >= c.capacity && len(c.order) > 0 {
		c.removeLocked(c.order[0])
	}
	now := c.now()
	c.entries[key] = &entry{
		result:    res,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
	c.order = append(c.order, key)
}

func (c *Cache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Stats reports entry counts for status displays.
type Stats struct {
	Total   int `json:"total_entries"`
	Valid   int `json:"valid_entries"`
	Expired int `json:"expired_entries"`
}

// Stats counts valid and expired entries without evicting anything.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Total: len(c.entries)}
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			s.Valid++
		} else {
			s.Expired++
		}
	}
	return s
}

// Purge removes every entry and returns how many were dropped.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]*entry)
	c.order = nil
	return n
}
