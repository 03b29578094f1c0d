// Package cache provides an in-memory LRU cache with TTL for GET responses of
// the expensive read endpoints (tree view and reports), cleared whenever a
// mutation succeeds.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry holds a cached value with its expiration time.
type entry struct {
	key       string
	value     *Response
	expiresAt time.Time
}

// LRUCache is a thread-safe in-memory cache with TTL and least-recently-used
// eviction. Expired entries are lazily evicted on Get.
//
// Every InvalidateAll bumps a generation counter; SetIfGeneration refuses
// values computed before the most recent invalidation.
type LRUCache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	maxSize    int
	ttl        time.Duration
	generation uint64
	now        func() time.Time
}

// NewLRUCache creates a new LRU cache with the given maximum size and TTL.
// maxSize must be >= 1; ttl must be > 0.
func NewLRUCache(maxSize int, ttl time.Duration) *LRUCache {
	if maxSize < 1 {
		maxSize = 1
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LRUCache{
		items:   make(map[string]*list.Element, maxSize),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a cached value by key. Returns (nil, false) if the key is
// missing or expired.
func (c *LRUCache) Get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if c.now().After(e.expiresAt) {
		c.removeElement(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Generation returns the current invalidation generation.
func (c *LRUCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Set stores a value unconditionally.
func (c *LRUCache) Set(key string, value *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value)
}

// SetIfGeneration stores value only if no invalidation happened since gen
// was read. It reports whether the value was stored.
func (c *LRUCache) SetIfGeneration(key string, value *Response, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.set(key, value)
	return true
}

func (c *LRUCache) set(key string, value *Response) {
	expiresAt := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.maxSize {
		c.removeElement(c.order.Back())
	}
	c.items[key] = c.order.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
}

// Invalidate removes a specific key from the cache.
func (c *LRUCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// InvalidateAll removes all entries from the cache.
func (c *LRUCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.maxSize)
	c.order.Init()
	c.generation++
}

// Size returns the number of entries currently in the cache (including
// expired ones that have not been lazily cleaned).
func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// removeElement must be called with c.mu held.
func (c *LRUCache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
