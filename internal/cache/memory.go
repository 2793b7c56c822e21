package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache is the L1 cache: a fixed number of entries with LRU eviction.
type MemoryCache struct {
	entries *lru.Cache[string, []byte]

	mu    sync.Mutex
	stats Stats
}

// NewMemoryCache creates a memory cache holding at most size entries.
func NewMemoryCache(size int) (*MemoryCache, error) {
	c := &MemoryCache{stats: Stats{Capacity: int64(size)}}
	entries, err := lru.NewWithEvict[string, []byte](size, func(string, []byte) {
		c.mu.Lock()
		c.stats.Evictions++
		c.mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// Get retrieves a value and marks it most recently used.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	v, ok := c.entries.Get(key)

	c.mu.Lock()
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	c.mu.Unlock()

	return v, ok
}

// Put stores a value, evicting the least recently used entry when full.
func (c *MemoryCache) Put(key string, value []byte) error {
	c.entries.Add(key, value)
	return nil
}

// Delete removes an entry.
func (c *MemoryCache) Delete(key string) error {
	c.entries.Remove(key)
	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear() error {
	c.entries.Purge()
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

// Stats returns a snapshot of the cache metrics.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = int64(c.entries.Len())
	s.ItemCount = s.Size
	return s
}
