package recipe

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// DefaultCacheSize is the number of compiled recipes a Cache keeps when no
// size is given.
const DefaultCacheSize = 128

// Cache memoizes successful compiles keyed by the hash of the recipe text.
// Failed compiles are not cached so that fixing a directive registration is
// picked up on the next call.
type Cache struct {
	compiler *Compiler
	size     int

	mu      sync.RWMutex
	entries map[uint64]*cacheEntry
	hits    int
	misses  int
}

type cacheEntry struct {
	text   string
	status *Status
}

// NewCache wraps compiler with a cache of at most size entries.
func NewCache(compiler *Compiler, size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		compiler: compiler,
		size:     size,
		entries:  make(map[uint64]*cacheEntry, size),
	}
}

// Compile returns the cached status for text, compiling it on a miss.
// Returned statuses are shared and must not be modified.
func (c *Cache) Compile(text string) *Status {
	key := xxh3.HashString(text)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && e.text == text {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return e.status
	}

	status := c.compiler.Compile(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	if !status.OK() {
		return status
	}
	if len(c.entries) >= c.size {
		// Evict an arbitrary entry.
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[key] = &cacheEntry{text: text, status: status}
	return status
}

// Len returns the number of cached recipes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
