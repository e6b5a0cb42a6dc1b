// ABOUTME: Thread-safe bounded cache with least-recently-used eviction and TTL expiry.
// ABOUTME: Backs the rendered-output, intermediate-text and mention-existence caches.

package lru

import (
	"container/list"
	"sync"
	"time"
)

// entry is the per-key record held in the recency list.
type entry[K comparable, V any] struct {
	key            K
	value          V
	insertedAt     time.Time
	lastAccessedAt time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
	Len         int    `json:"len"`
}

// Cache is a capacity- and time-bounded key/value store.
// The recency list keeps the least recently used entry at the front, so
// eviction is O(1). Expired entries are purged lazily on lookup.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	items    map[K]*list.Element
	order    *list.List
	capacity int
	ttl      time.Duration
	now      func() time.Time

	hits, misses, evictions, expirations uint64
}

// New creates a cache holding at most capacity entries, each valid for ttl.
// A ttl of zero or less disables expiry.
func New[K comparable, V any](capacity int, ttl time.Duration) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the value stored for key. An entry older than the TTL is
// removed and reported as a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}

	e := elem.Value.(*entry[K, V])
	now := c.now()
	if c.expired(e, now) {
		c.removeElement(elem)
		c.expirations++
		c.misses++
		return zero, false
	}

	e.lastAccessedAt = now
	c.order.MoveToBack(elem)
	c.hits++
	return e.value, true
}

// Set stores value under key. When the cache is full the least recently
// used entry is evicted first.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if elem, exists := c.items[key]; exists {
		e := elem.Value.(*entry[K, V])
		e.value = value
		e.insertedAt = now
		e.lastAccessedAt = now
		c.order.MoveToBack(elem)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	c.items[key] = c.order.PushBack(&entry[K, V]{
		key:            key,
		value:          value,
		insertedAt:     now,
		lastAccessedAt: now,
	})
}

// Delete removes key if present.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear drops every entry. Counters are kept.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element, c.capacity)
	c.order.Init()
}

// Len reports the number of occupied slots, including expired entries that
// have not been looked up yet.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the configured maximum number of entries.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Len:         len(c.items),
	}
}

func (c *Cache[K, V]) expired(e *entry[K, V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.insertedAt) > c.ttl
}

// evictOldest removes the least recently used entry. Must be called with mu held.
func (c *Cache[K, V]) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	c.removeElement(front)
	c.evictions++
}

// removeElement unlinks elem from both the list and the map. Must be called with mu held.
func (c *Cache[K, V]) removeElement(elem *list.Element) {
	e := elem.Value.(*entry[K, V])
	c.order.Remove(elem)
	delete(c.items, e.key)
}
