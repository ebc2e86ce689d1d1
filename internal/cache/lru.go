// Package cache implements the two-level result cache: an in-process LRU with
// TTL and byte budgets (L1) in front of an optional network tier (L2).
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time. Injected so tests can move time.
type Clock func() time.Time

type entry struct {
	key          string
	value        []byte
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  int64
	ttl          time.Duration
	expiresAt    time.Time
	sizeBytes    int64
	prev, next   *entry
}

func (e *entry) expired(now time.Time) bool { return now.After(e.expiresAt) }

// LRUStats is a snapshot of L1 counters.
type LRUStats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
	Rejections  int64
	Count       int
	SizeBytes   int64
	MaxEntries  int
	MaxBytes    int64
}

// LRU is a thread-safe least-recently-used cache with per-entry TTL, an entry
// budget and a byte budget. Expired entries are removed lazily on Get and in
// bulk by Sweep.
type LRU struct {
	mu sync.Mutex

	maxEntries int
	maxBytes   int64
	defaultTTL time.Duration
	now        Clock

	items map[string]*entry
	// head.next is the most recently used, tail.prev the least
	head, tail *entry
	sizeBytes  int64

	hits, misses, evictions, expirations, rejections int64
}

// NewLRU creates an L1 cache. Non-positive budgets fall back to defaults.
func NewLRU(maxEntries int, maxBytes int64, defaultTTL time.Duration, now Clock) *LRU {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if maxBytes <= 0 {
		maxBytes = 100 << 20
	}
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Minute
	}
	if now == nil {
		now = time.Now
	}

	c := &LRU{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		defaultTTL: defaultTTL,
		now:        now,
		items:      make(map[string]*entry, maxEntries),
		head:       &entry{},
		tail:       &entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the value for key if present and not expired. A hit moves the
// entry to the front. An expired entry is removed and counts as a miss.
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	now := c.now()
	if e.expired(now) {
		c.removeEntry(e)
		c.expirations++
		c.misses++
		return nil, false
	}

	e.lastAccessed = now
	e.accessCount++
	c.moveToFront(e)
	c.hits++
	return e.value, true
}

// Put stores value under key. ttl <= 0 uses the default TTL. Returns false,
// storing nothing, when the entry alone exceeds the byte budget.
func (c *LRU) Put(key string, value []byte, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	size := int64(len(key) + len(value))

	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.maxBytes {
		c.rejections++
		return false
	}

	if old, ok := c.items[key]; ok {
		c.removeEntry(old)
	}

	for len(c.items) > 0 && (len(c.items)+1 > c.maxEntries || c.sizeBytes+size > c.maxBytes) {
		c.evictOldest()
	}

	now := c.now()
	e := &entry{
		key:          key,
		value:        value,
		createdAt:    now,
		lastAccessed: now,
		ttl:          ttl,
		expiresAt:    now.Add(ttl),
		sizeBytes:    size,
	}
	c.addToFront(e)
	c.items[key] = e
	c.sizeBytes += size
	return true
}

// Delete removes key. Returns true if it was present.
func (c *LRU) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeEntry(e)
	return true
}

// Clear removes all entries. Counters are kept.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry, c.maxEntries)
	c.head.next = c.tail
	c.tail.prev = c.head
	c.sizeBytes = 0
}

// Sweep removes every expired entry and returns how many were removed.
func (c *LRU) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for e := c.tail.prev; e != c.head; {
		prev := e.prev
		if e.expired(now) {
			c.removeEntry(e)
			removed++
		}
		e = prev
	}
	c.expirations += int64(removed)
	return removed
}

// Len returns the number of entries, expired ones included until swept.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the counters.
func (c *LRU) Stats() LRUStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return LRUStats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Rejections:  c.rejections,
		Count:       len(c.items),
		SizeBytes:   c.sizeBytes,
		MaxEntries:  c.maxEntries,
		MaxBytes:    c.maxBytes,
	}
}

// Internal methods (must be called with lock held)

func (c *LRU) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRU) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *LRU) removeEntry(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
	c.sizeBytes -= e.sizeBytes
}

func (c *LRU) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
	c.evictions++
}
