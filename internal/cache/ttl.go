// Package cache provides the time-expiring grid cache and the in-flight
// request table shared by the raster clients.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// DefaultTTL is how long a resampled grid stays cached.
const DefaultTTL = 30 * time.Minute

// Key builds the canonical cache key for a bbox and resolution. Coordinates
// are rounded to 4 decimals so near-identical viewports share an entry.
func Key(b domain.BoundingBox, width, height int) string {
	return fmt.Sprintf("%.4f:%.4f:%.4f:%.4f:%d:%d", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat, width, height)
}

// TTL is a thread-safe cache whose entries expire a fixed duration after
// insertion. Expired entries are dropped lazily on Get. When maxEntries is
// positive the least recently used entry is evicted on overflow.
type TTL[V any] struct {
	ttl        time.Duration
	maxEntries int
	clock      clockwork.Clock

	mu      sync.Mutex
	entries map[string]*entry[V]
	head    *entry[V] // most recently used
	tail    *entry[V] // least recently used
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	prev      *entry[V]
	next      *entry[V]
}

// NewTTL creates a cache. A nil clock uses real time.
func NewTTL[V any](ttl time.Duration, maxEntries int, clock clockwork.Clock) *TTL[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TTL[V]{
		ttl:        ttl,
		maxEntries: maxEntries,
		clock:      clock,
		entries:    make(map[string]*entry[V]),
	}
}

// Get returns the value for key if present and not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.clock.Now().After(e.expiresAt) {
		c.remove(e)
		delete(c.entries, key)
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

// Set inserts or overwrites key with a fresh expiry.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)

	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

// Len returns the number of stored entries, including any not yet lazily expired.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTL[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *TTL[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *TTL[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *TTL[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
