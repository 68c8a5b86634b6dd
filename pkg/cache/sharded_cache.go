package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

const numShards = 16

// Sharded is a string-keyed cache split across shards to keep lock
// contention low when many symbols update concurrently. Entries older than
// the configured TTL are treated as missing; a zero TTL never expires.
type Sharded[V any] struct {
	shards [numShards]*shard[V]
	ttl    atomic.Int64
	now    func() time.Time
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
}

type entry[V any] struct {
	value     V
	updatedAt time.Time
}

// New creates a cache whose entries expire after ttl.
func New[V any](ttl time.Duration) *Sharded[V] {
	c := &Sharded[V]{now: time.Now}
	c.ttl.Store(int64(ttl))
	for i := 0; i < numShards; i++ {
		c.shards[i] = &shard[V]{items: make(map[string]entry[V])}
	}
	return c
}

// WithClock replaces the time source; used by tests.
func (c *Sharded[V]) WithClock(now func() time.Time) *Sharded[V] {
	c.now = now
	return c
}

// TTL returns the expiry window.
func (c *Sharded[V]) TTL() time.Duration { return time.Duration(c.ttl.Load()) }

// SetTTL changes the expiry window for subsequent reads.
func (c *Sharded[V]) SetTTL(ttl time.Duration) {
	c.ttl.Store(int64(ttl))
}

func (c *Sharded[V]) getShard(key string) *shard[V] {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set stores value under key.
func (c *Sharded[V]) Set(key string, value V) {
	s := c.getShard(key)
	s.mu.Lock()
	s.items[key] = entry[V]{value: value, updatedAt: c.now()}
	s.mu.Unlock()
}

// Get returns the value for key if present and not expired.
func (c *Sharded[V]) Get(key string) (V, bool) {
	v, _, ok := c.GetWithAge(key)
	return v, ok
}

// GetWithAge returns the value and its age if present and not expired.
func (c *Sharded[V]) GetWithAge(key string) (V, time.Duration, bool) {
	s := c.getShard(key)
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	ttl := c.TTL()

	var zero V
	if !ok {
		return zero, 0, false
	}
	age := c.now().Sub(e.updatedAt)
	if ttl > 0 && age >= ttl {
		return zero, age, false
	}
	return e.value, age, true
}

// Delete removes key.
func (c *Sharded[V]) Delete(key string) {
	s := c.getShard(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Len returns total items across all shards, expired ones included.
func (c *Sharded[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// Cleanup drops expired entries and returns how many were removed.
func (c *Sharded[V]) Cleanup() int {
	ttl := c.TTL()
	if ttl <= 0 {
		return 0
	}
	removed := 0
	cutoff := c.now().Add(-ttl)

	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if !e.updatedAt.After(cutoff) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Snapshot returns all live values (for status endpoints).
func (c *Sharded[V]) Snapshot() map[string]V {
	result := make(map[string]V)
	for k := range c.keys() {
		if v, ok := c.Get(k); ok {
			result[k] = v
		}
	}
	return result
}

func (c *Sharded[V]) keys() map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range c.shards {
		s.mu.RLock()
		for k := range s.items {
			out[k] = struct{}{}
		}
		s.mu.RUnlock()
	}
	return out
}

// Stats provides cache statistics.
type Stats struct {
	TotalItems  int            `json:"total_items"`
	ShardCounts [numShards]int `json:"shard_counts"`
	OldestAge   time.Duration  `json:"oldest_age"`
}

// Stats returns cache statistics.
func (c *Sharded[V]) Stats() Stats {
	stats := Stats{}
	var oldest time.Time

	for i, s := range c.shards {
		s.mu.RLock()
		stats.ShardCounts[i] = len(s.items)
		stats.TotalItems += len(s.items)
		for _, e := range s.items {
			if oldest.IsZero() || e.updatedAt.Before(oldest) {
				oldest = e.updatedAt
			}
		}
		s.mu.RUnlock()
	}

	if !oldest.IsZero() {
		stats.OldestAge = c.now().Sub(oldest)
	}
	return stats
}
