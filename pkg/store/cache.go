package store

import (
	"context"
	"sync"
	"time"
)

// cacheEntry is one cached execution result with bookkeeping for TTL expiry
// and LRU eviction.
type cacheEntry struct {
	value          *CachedResult
	expiresAt      time.Time
	createdAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
}

// ResultCache is a thread-safe in-memory CacheStore with per-entry TTL and
// LRU eviction. Fingerprint keys already encode the tenant, so the cache is
// tenant-partitioned by construction. Reads and writes are independent per
// key; a lost write only causes a redundant recomputation.
type ResultCache struct {
	entries    map[string]*cacheEntry
	maxEntries int
	mu         sync.RWMutex

	// stopCh signals the cleanup goroutine to stop
	stopCh   chan struct{}
	stopOnce sync.Once

	// cleanupInterval is how often to sweep expired entries
	cleanupInterval time.Duration
}

// NewResultCache creates a result cache holding at most maxEntries entries
// (0 = unlimited). A background goroutine sweeps expired entries.
func NewResultCache(maxEntries int) *ResultCache {
	c := &ResultCache{
		entries:         make(map[string]*cacheEntry),
		maxEntries:      maxEntries,
		stopCh:          make(chan struct{}),
		cleanupInterval: time.Minute,
	}
	go c.cleanupExpired()
	return c
}

// Get retrieves a cached result by fingerprint key.
// Returns (nil, false) if absent or expired.
func (c *ResultCache) Get(_ context.Context, key string) (*CachedResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	if !ok {
		c.mu.RUnlock()
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.RUnlock()
		return nil, false
	}
	value := entry.value
	c.mu.RUnlock()

	// Update access bookkeeping with the write lock; the entry may have
	// been deleted between locks.
	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		entry.lastAccessedAt = time.Now()
		entry.accessCount++
	}
	c.mu.Unlock()

	return value, true
}

// Put stores a result under the fingerprint key with the given TTL.
// When the cache is full, the least recently accessed entry is evicted.
func (c *ResultCache) Put(_ context.Context, key string, value *CachedResult, ttl time.Duration) {
	if value == nil || ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[key]; !exists {
			c.evictLRU()
		}
	}

	now := time.Now()
	c.entries[key] = &cacheEntry{
		value:          value,
		expiresAt:      now.Add(ttl),
		createdAt:      now,
		lastAccessedAt: now,
		accessCount:    1,
	}
}

// Invalidate removes an entry.
func (c *ResultCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Size returns the current number of entries.
func (c *ResultCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Close stops the background cleanup goroutine.
func (c *ResultCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// evictLRU evicts the least recently accessed entry.
// Must be called with the write lock held.
func (c *ResultCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastAccessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastAccessedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// cleanupExpired sweeps expired entries until Close is called.
func (c *ResultCache) cleanupExpired() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *ResultCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
