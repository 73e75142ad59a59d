package routing

import (
	"context"
	"sync"
	"time"
)

// CachedDirections is a cached provider response with its freshness window.
type CachedDirections struct {
	Response  *DirectionsResponse `json:"response"`
	FetchedAt time.Time           `json:"fetchedAt"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// Fresh reports whether the entry can be served without asking the provider.
func (c *CachedDirections) Fresh(now time.Time) bool {
	return now.Before(c.ExpiresAt)
}

// Cache stores directions responses. Entries may be evicted once retention has
// passed; a Get miss is reported as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (*CachedDirections, bool, error)
	Set(ctx context.Context, key string, entry *CachedDirections, retention time.Duration) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu              sync.RWMutex
	entries         map[string]*memoryEntry
	cleanupInterval time.Duration
	lastCleanup     time.Time
}

type memoryEntry struct {
	cached  *CachedDirections
	evictAt time.Time
}

// NewMemoryCache creates an in-memory cache that sweeps evictable entries at most
// once per cleanupInterval (default: 5 minutes).
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}
	return &MemoryCache{
		entries:         make(map[string]*memoryEntry),
		cleanupInterval: cleanupInterval,
	}
}

// Get returns the entry stored under key.
func (c *MemoryCache) Get(_ context.Context, key string) (*CachedDirections, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.evictAt) {
		return nil, false, nil
	}
	return e.cached, true, nil
}

// Set stores entry under key until retention has passed.
func (c *MemoryCache) Set(_ context.Context, key string, entry *CachedDirections, retention time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &memoryEntry{
		cached:  entry,
		evictAt: entry.FetchedAt.Add(retention),
	}
	c.cleanupIfNeeded()
	return nil
}

// Len returns the number of stored entries, evictable ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cleanupIfNeeded removes evictable entries. Caller holds the write lock.
func (c *MemoryCache) cleanupIfNeeded() {
	now := time.Now()
	if now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}
	c.lastCleanup = now

	for key, e := range c.entries {
		if now.After(e.evictAt) {
			delete(c.entries, key)
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
