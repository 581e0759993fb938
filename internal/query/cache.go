package query

import (
	"context"
	"sync"
	"time"

	"github.com/sellinios/aethra/internal/domain"
)

// CachedPlaces wraps a PlaceFinder with an in-memory LRU cache. Entries
// expire after ttl so edited places are picked up; a zero ttl keeps them
// until evicted.
type CachedPlaces struct {
	inner PlaceFinder
	ttl   time.Duration
	cache *lruCache[string, domain.Place]
}

// NewCachedPlaces creates a cache decorator around a place lookup.
func NewCachedPlaces(inner PlaceFinder, maxEntries int, ttl time.Duration) *CachedPlaces {
	return &CachedPlaces{
		inner: inner,
		ttl:   ttl,
		cache: newLRUCache[string, domain.Place](maxEntries),
	}
}

// BySlug returns the cached place or loads it. Lookup errors, including
// unknown slugs, are not cached.
func (c *CachedPlaces) BySlug(ctx context.Context, slug string) (domain.Place, error) {
	now := domain.Now()
	if p, ok := c.cache.get(slug, now); ok {
		return p, nil
	}
	p, err := c.inner.BySlug(ctx, slug)
	if err != nil {
		return p, err
	}
	var expires time.Time
	if c.ttl > 0 {
		expires = now.Add(c.ttl)
	}
	c.cache.put(slug, p, expires)
	return p, nil
}

// lruCache is a small thread-safe LRU with optional per-entry expiry.
type lruCache[K comparable, V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[K]*entry[K, V]
	head       *entry[K, V] // most recently used
	tail       *entry[K, V] // least recently used
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
	prev    *entry[K, V]
	next    *entry[K, V]
}

func newLRUCache[K comparable, V any](maxEntries int) *lruCache[K, V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache[K, V]{
		maxEntries: maxEntries,
		entries:    make(map[K]*entry[K, V]),
	}
}

func (c *lruCache[K, V]) get(key K, now time.Time) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !e.expires.IsZero() && !now.Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[K, V]) put(key K, value V, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry[K, V]{key: key, value: value, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[K, V]) moveToFront(e *entry[K, V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[K, V]) addToFront(e *entry[K, V]) {
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

func (c *lruCache[K, V]) remove(e *entry[K, V]) {
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
}

func (c *lruCache[K, V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
