// Package cache provides the in-process index from cache keys to stored audio objects.
package cache

import "sync"

// MemoryCache is an unbounded, process-lifetime map from cache key to audio
// object name. It is safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]string),
	}
}

// Get returns the object name stored under key.
func (c *MemoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.entries[key]

	return value, ok
}

// PutIfAbsent stores value under key unless the key is already present.
// It returns the value held after the call and whether it was inserted.
func (c *MemoryCache) PutIfAbsent(key, value string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		return existing, false
	}

	c.entries[key] = value

	return value, true
}

// Len returns the number of entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
