package projectfs

import (
	"strings"
	"sync"
	"time"
)

// Cache remembers store Stat results, including misses, for a limited time.
// Overlay lookups are never cached; they are already in memory.
//
// Hits and misses are each bounded by maxEntries (zero means unbounded).
// When a bound is reached the entry closest to expiry is dropped.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	found   int
	missing int

	statTTL     time.Duration
	negativeTTL time.Duration
	maxEntries  int
	enabled     bool

	hits   int64
	misses int64
}

// cacheEntry is either a stat result or, when absent is set, a recorded miss.
type cacheEntry struct {
	info    Info
	absent  bool
	expires time.Time
}

func newCache(enabled bool, statTTL, negativeTTL time.Duration, maxEntries int) *Cache {
	if !enabled {
		return &Cache{}
	}
	return &Cache{
		entries:     make(map[string]cacheEntry),
		statTTL:     statTTL,
		negativeTTL: negativeTTL,
		maxEntries:  maxEntries,
		enabled:     true,
	}
}

// lookup returns the live entry for name, dropping it if it has expired.
// The caller holds c.mu.
func (c *Cache) lookup(name string) (cacheEntry, bool) {
	e, ok := c.entries[name]
	if !ok {
		return cacheEntry{}, false
	}
	if time.Now().After(e.expires) {
		c.remove(name)
		return cacheEntry{}, false
	}
	return e, true
}

// getStat returns a live cached Info for name.
func (c *Cache) getStat(name string) (Info, bool) {
	if !c.enabled {
		return Info{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(name)
	if !ok || e.absent {
		c.misses++
		return Info{}, false
	}
	c.hits++
	return e.info, true
}

// isNegative reports whether name is known not to exist in the store.
func (c *Cache) isNegative(name string) bool {
	if !c.enabled {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(name)
	return ok && e.absent
}

func (c *Cache) putStat(name string, info Info) {
	c.put(name, cacheEntry{info: info, expires: time.Now().Add(c.statTTL)})
}

func (c *Cache) putNegative(name string) {
	c.put(name, cacheEntry{absent: true, expires: time.Now().Add(c.negativeTTL)})
}

func (c *Cache) put(name string, e cacheEntry) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.remove(name)
	if c.maxEntries > 0 && c.count(e.absent) >= c.maxEntries {
		c.evict(e.absent)
	}
	c.entries[name] = e
	if e.absent {
		c.missing++
	} else {
		c.found++
	}
}

func (c *Cache) count(absent bool) int {
	if absent {
		return c.missing
	}
	return c.found
}

// evict drops the entry of the given sort that expires first.
func (c *Cache) evict(absent bool) {
	var (
		victim string
		oldest time.Time
	)
	for name, e := range c.entries {
		if e.absent != absent {
			continue
		}
		if victim == "" || e.expires.Before(oldest) {
			victim, oldest = name, e.expires
		}
	}
	if victim != "" {
		c.remove(victim)
	}
}

// remove deletes name and keeps the counters in step. The caller holds c.mu.
func (c *Cache) remove(name string) {
	e, ok := c.entries[name]
	if !ok {
		return
	}
	delete(c.entries, name)
	if e.absent {
		c.missing--
	} else {
		c.found--
	}
}

func (c *Cache) invalidate(name string) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(name)
}

// invalidateTree drops name and every cached entry below it.
func (c *Cache) invalidateTree(name string) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := dirPrefix(name)
	for p := range c.entries {
		if p == name || strings.HasPrefix(p, prefix) {
			c.remove(p)
		}
	}
}

func (c *Cache) clear() {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
	c.found, c.missing = 0, 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	if !c.enabled {
		return CacheStats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Enabled:           true,
		StatCacheSize:     c.found,
		NegativeCacheSize: c.missing,
		MaxEntries:        c.maxEntries,
		StatTTL:           c.statTTL,
		NegativeTTL:       c.negativeTTL,
		Hits:              c.hits,
		Misses:            c.misses,
	}
}

// CacheStats reports cache configuration and occupancy.
type CacheStats struct {
	Enabled           bool
	StatCacheSize     int
	NegativeCacheSize int
	MaxEntries        int
	StatTTL           time.Duration
	NegativeTTL       time.Duration
	Hits              int64
	Misses            int64
}
