// Package cache is the in-memory response cache: LRU with TTL, a
// stale-while-revalidate window, and a single-flight revalidation guard.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/webpeel/webpeel/fetch"
	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/urlkey"
)

// Cache tuning constants.
const (
	// MaxEntries is the default entry cap.
	MaxEntries = 1000

	// DefaultTTL is how long an entry is served as fresh.
	DefaultTTL = 5 * time.Minute

	// StaleWindow is how long past TTL an entry may still be served stale
	// under the default TTL. The window tracks the TTL at twice its
	// length, so changing the TTL moves the window with it.
	StaleWindow = 2 * DefaultTTL

	// RevalidationTimeout is how long a revalidation claim holds before a
	// timed-out attempt may be retried by another caller.
	RevalidationTimeout = 30 * time.Second
)

// entry is one cached response. Entries are ordered in the LRU list; the
// front is most recently used.
type entry struct {
	key            string
	result         *fetch.Result
	storedAt       time.Time
	revalidating   bool
	revalidatingAt time.Time
}

// Cache is a TTL+SWR LRU keyed by normalized URL. It is safe for concurrent
// use. Cached results are treated as immutable; callers must not modify
// what Get returns.
type Cache struct {
	mu         sync.Mutex
	ll         *list.List // front = MRU
	items      map[string]*list.Element
	ttl        time.Duration
	maxEntries int
}

// New creates a Cache. maxEntries <= 0 selects the default cap.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = MaxEntries
	}
	return &Cache{
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		ttl:        DefaultTTL,
		maxEntries: maxEntries,
	}
}

// Get returns the cached result while it is fresh (age <= TTL) and touches
// the LRU position. Stale entries return nil; entries past the stale window
// are deleted on access.
func (c *Cache) Get(rawURL string) *fetch.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, e, ok := c.lookup(rawURL)
	if !ok {
		return nil
	}
	if time.Since(e.storedAt) > c.ttl {
		return nil
	}
	c.ll.MoveToFront(el)
	return e.result
}

// GetWithSWR returns the cached result with a staleness flag: fresh
// (age <= TTL) yields (result, false); stale (age within the stale window
// past TTL) yields (result, true); anything older yields (nil, false).
func (c *Cache) GetWithSWR(rawURL string) (*fetch.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, e, ok := c.lookup(rawURL)
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return e.result, time.Since(e.storedAt) > c.ttl
}

// MarkRevalidating claims the single revalidation slot for a stale entry.
// It succeeds only when the entry is stale and either no revalidation is in
// flight or the prior one started more than RevalidationTimeout ago.
func (c *Cache) MarkRevalidating(rawURL string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, e, ok := c.lookup(rawURL)
	if !ok {
		return false
	}

	if time.Since(e.storedAt) <= c.ttl {
		return false // still fresh, nothing to revalidate
	}
	if e.revalidating && time.Since(e.revalidatingAt) <= RevalidationTimeout {
		return false // someone else holds the slot
	}

	e.revalidating = true
	e.revalidatingAt = time.Now()
	c.ll.MoveToFront(el)
	return true
}

// Set stores a result as the most recently used entry, replacing any prior
// entry for the same URL, and evicts from the LRU end down to the cap.
func (c *Cache) Set(rawURL string, result *fetch.Result) {
	key := urlkey.Normalize(rawURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.result = result
		e.storedAt = time.Now()
		e.revalidating = false
		e.revalidatingAt = time.Time{}
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&entry{key: key, result: result, storedAt: time.Now()})
	c.items[key] = el

	for len(c.items) > c.maxEntries {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	c.mu.Unlock()
}

// SetTTL changes the freshness window. The stale window scales along with
// it. The duration must be positive.
func (c *Cache) SetTTL(d time.Duration) error {
	if d <= 0 {
		return models.NewPeelError(models.KindInvalidRequest, "cache TTL must be a positive duration", nil)
	}
	c.mu.Lock()
	c.ttl = d
	c.mu.Unlock()
	return nil
}

// TTL returns the current freshness window.
func (c *Cache) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// lookup finds an entry by URL, deleting it if it has aged past the stale
// window. Callers must hold c.mu.
func (c *Cache) lookup(rawURL string) (*list.Element, *entry, bool) {
	key := urlkey.Normalize(rawURL)
	el, ok := c.items[key]
	if !ok {
		return nil, nil, false
	}
	e := el.Value.(*entry)
	if time.Since(e.storedAt) > c.ttl+c.staleWindow() {
		c.removeElement(el)
		return nil, nil, false
	}
	return el, e, true
}

// staleWindow is how long past TTL an entry remains servable as stale.
// Callers must hold c.mu.
func (c *Cache) staleWindow() time.Duration {
	return 2 * c.ttl
}

// removeElement unlinks one entry. Callers must hold c.mu.
func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.items, e.key)
}
