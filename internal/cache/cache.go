// Package cache provides a size- and time-bounded memo map with its own
// lock. It holds non-authoritative lookup results only, never mutable
// counters; callers invalidate explicitly on context switches.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Stats reports cache effectiveness.
type Stats struct {
	Size   int
	Max    int
	Hits   int64
	Misses int64
}

type entry[K comparable, V any] struct {
	key      K
	value    V
	storedAt time.Time
}

// Cache is a thread-safe LRU with a TTL. Expired entries are dropped on
// access; the oldest entry is evicted when the size bound is hit.
type Cache[K comparable, V any] struct {
	mu     sync.Mutex
	max    int
	ttl    time.Duration
	order  *list.List // front = most recent
	byKey  map[K]*list.Element
	hits   int64
	misses int64

	// now is swappable for expiry tests.
	now func() time.Time
}

// New builds a cache bounded to max entries, each living at most ttl.
func New[K comparable, V any](max int, ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		max:   max,
		ttl:   ttl,
		order: list.New(),
		byKey: make(map[K]*list.Element),
		now:   time.Now,
	}
}

// Get returns the memoized value for key, if present and fresh.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.byKey[key]
	if !ok {
		c.misses++
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if c.now().Sub(e.storedAt) > c.ttl {
		c.order.Remove(el)
		delete(c.byKey, key)
		c.misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Put stores or refreshes a value, evicting the least recently used entry
// when the cache is full.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byKey[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.storedAt = c.now()
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.max {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.byKey, oldest.Value.(*entry[K, V]).key)
		}
	}
	c.byKey[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, storedAt: c.now()})
}

// Delete removes one entry.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byKey[key]; ok {
		c.order.Remove(el)
		delete(c.byKey, key)
	}
}

// Reset drops every entry. Called when the active order changes.
func (c *Cache[K, V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.byKey)
}

// Stats returns a snapshot of size and hit counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: c.order.Len(), Max: c.max, Hits: c.hits, Misses: c.misses}
}
