package receipt

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// DefaultCacheTTL is how long an extraction result is reused
const DefaultCacheTTL = time.Hour

// Cache memoizes pipeline results by Request.CacheKey
type Cache interface {
	// Get returns a copy of the live entry for key
	Get(key string) (*Result, bool)
	// Set stores result under key for the cache window
	Set(key string, result *Result) error
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache keeps results in process memory. Entries are stored encoded so every
// Get hands out an independent copy.
type MemoryCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	timeSource TimeSource
	entries    map[string]memoryEntry
}

// NewMemoryCache creates a MemoryCache with the given time window
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return NewMemoryCacheWithDeps(ttl, &defaultTimeSource{})
}

// NewMemoryCacheWithDeps creates a MemoryCache with a custom time source for testing
func NewMemoryCacheWithDeps(ttl time.Duration, timeSrc TimeSource) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		ttl:        ttl,
		timeSource: timeSrc,
		entries:    make(map[string]memoryEntry),
	}
}

// Get returns the cached result for key if it has not expired
func (c *MemoryCache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !c.timeSource.Now().Before(entry.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return nil, false
	}

	var result Result
	if err := json.Unmarshal(entry.data, &result); err != nil {
		slog.Warn("Discarding unreadable cache entry", "error", err)
		return nil, false
	}
	return &result, true
}

// Set stores result and prunes expired entries
func (c *MemoryCache) Set(key string, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.timeSource.Now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	if _, exists := c.entries[key]; !exists {
		c.entries[key] = memoryEntry{data: data, expiresAt: now.Add(c.ttl)}
	}
	return nil
}

// Len returns the number of stored entries, expired or not
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
