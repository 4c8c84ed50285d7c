// Package respcache caches completed responses keyed by a deterministic hash
// of the normalized request. It runs two tiers: a bounded in-process map with
// least-recently-accessed eviction, and an optional persistent store.
//
// The cache is strictly best-effort: persistence failures are swallowed and
// degrade to a miss, never failing the enclosing request. Expired entries are
// evicted by the read that discovers them and are never returned.
package respcache

import (
	"sort"
	"sync"
	"time"

	"github.com/mireles/aibridge/pkg/request"
)

// Defaults applied when Options leaves the corresponding field zero.
const (
	DefaultTTL        = time.Hour
	DefaultMaxEntries = 1000
)

// evictionSlack is how many extra entries an eviction pass removes beyond the
// bare minimum, so a full cache does not evict on every subsequent Set.
const evictionSlack = 10

// Entry is one cached response with its creation time.
type Entry struct {
	CreatedAt time.Time        `json:"created_at"`
	Response  request.Response `json:"response"`
}

// Store persists cache entries across restarts. Read returns (nil, nil) on a
// clean miss and an error for corrupt or unreadable entries.
type Store interface {
	Read(key string) (*Entry, error)
	Write(key string, e *Entry) error
	Delete(key string) error
	Keys() ([]string, error)
}

// Options configures a Cache.
type Options struct {
	TTL        time.Duration // Entry lifetime; DefaultTTL when zero.
	MaxEntries int           // In-process tier capacity; DefaultMaxEntries when zero.
	Store      Store         // Optional persistent tier.
}

// Cache is a two-tier response cache safe for concurrent use.
type Cache struct {
	ttl        time.Duration
	maxEntries int
	store      Store

	mu     sync.Mutex
	memory map[string]*Entry
	access map[string]time.Time

	now func() time.Time
}

// New creates a Cache with the given options.
func New(opts Options) *Cache {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	maxEntries := opts.MaxEntries
	if maxEntries == 0 {
		maxEntries = DefaultMaxEntries
	}

	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		store:      opts.Store,
		memory:     make(map[string]*Entry),
		access:     make(map[string]time.Time),
		now:        time.Now,
	}
}

// Get returns the cached response for key, or (nil, false) on a miss. The
// in-process tier is checked first; a persistent-tier hit is promoted into
// the in-process tier. Expired entries are evicted on the read that finds
// them. The returned response is marked Cached.
func (c *Cache) Get(key string) (*request.Response, bool) {
	c.mu.Lock()
	now := c.now()

	if e, ok := c.memory[key]; ok {
		if now.Sub(e.CreatedAt) < c.ttl {
			c.access[key] = now
			resp := e.Response
			resp.Cached = true
			c.mu.Unlock()
			return &resp, true
		}

		delete(c.memory, key)
		delete(c.access, key)
	}
	c.mu.Unlock()

	if c.store == nil {
		return nil, false
	}

	e, err := c.store.Read(key)
	if err != nil {
		// Corrupt entry: evict silently and report a miss.
		_ = c.store.Delete(key)
		return nil, false
	}
	if e == nil {
		return nil, false
	}

	if now := c.now(); now.Sub(e.CreatedAt) >= c.ttl {
		_ = c.store.Delete(key)
		return nil, false
	}

	c.mu.Lock()
	c.memory[key] = e
	c.access[key] = c.now()
	c.evictLocked()
	c.mu.Unlock()

	resp := e.Response
	resp.Cached = true

	return &resp, true
}

// Set stores a response under key in both tiers. Persistence errors are
// swallowed; the in-process tier evicts least-recently-accessed entries in a
// batch when over capacity.
func (c *Cache) Set(key string, resp *request.Response) {
	e := &Entry{CreatedAt: c.now(), Response: *resp}

	c.mu.Lock()
	c.memory[key] = e
	c.access[key] = c.now()
	c.evictLocked()
	c.mu.Unlock()

	if c.store != nil {
		_ = c.store.Write(key, e)
	}
}

// evictLocked removes the least-recently-accessed entries when the in-process
// tier exceeds capacity. It removes evictionSlack more than strictly needed
// to amortize the cost of sorting. Caller must hold c.mu.
func (c *Cache) evictLocked() {
	if len(c.memory) <= c.maxEntries {
		return
	}

	keys := make([]string, 0, len(c.access))
	for k := range c.access {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.access[keys[i]].Before(c.access[keys[j]])
	})

	toRemove := len(c.memory) - c.maxEntries + evictionSlack
	if toRemove > len(keys) {
		toRemove = len(keys)
	}

	for _, k := range keys[:toRemove] {
		delete(c.memory, k)
		delete(c.access, k)
	}
}

// Clear empties the in-process tier and, when a store is configured, deletes
// every persisted entry it can enumerate.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.memory = make(map[string]*Entry)
	c.access = make(map[string]time.Time)
	c.mu.Unlock()

	if c.store == nil {
		return
	}

	keys, err := c.store.Keys()
	if err != nil {
		return
	}
	for _, k := range keys {
		_ = c.store.Delete(k)
	}
}

// Stats reports cache occupancy.
type Stats struct {
	MemoryEntries int
	StoreEntries  int
	MaxEntries    int
	TTL           time.Duration
}

// Stats returns current cache statistics. Store enumeration errors leave
// StoreEntries at zero.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	s := Stats{
		MemoryEntries: len(c.memory),
		MaxEntries:    c.maxEntries,
		TTL:           c.ttl,
	}
	c.mu.Unlock()

	if c.store != nil {
		if keys, err := c.store.Keys(); err == nil {
			s.StoreEntries = len(keys)
		}
	}

	return s
}
