package util

import (
	"sync"
	"time"
)

// ResponseCache provides a simple in-memory cache for serialized responses
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	maxAge  time.Duration
	maxSize int
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type cacheEntry struct {
	data      []byte
	timestamp time.Time
}

// NewResponseCache creates a new response cache with the specified max age and size
func NewResponseCache(maxAge time.Duration, maxSize int) *ResponseCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	cache := &ResponseCache{
		entries: make(map[string]*cacheEntry, maxSize),
		maxAge:  maxAge,
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if maxAge > 0 {
		go cache.cleanupLoop()
	}
	return cache
}

// Get retrieves a cached response if it exists and is not expired
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if c.now().Sub(entry.timestamp) > c.maxAge {
		return nil, false
	}

	return entry.data, true
}

// Set stores a response in the cache, evicting the oldest entry when full
func (c *ResponseCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for k, v := range c.entries {
			if first || v.timestamp.Before(oldestTime) {
				oldestKey = k
				oldestTime = v.timestamp
				first = false
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[key] = &cacheEntry{
		data:      data,
		timestamp: c.now(),
	}
}

// Len returns the number of stored entries, expired ones included
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background cleanup goroutine
func (c *ResponseCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// cleanupLoop periodically removes expired entries
func (c *ResponseCache) cleanupLoop() {
	interval := c.maxAge / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stop:
			return
		}
	}
}

// cleanup removes expired entries
func (c *ResponseCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.Sub(entry.timestamp) > c.maxAge {
			delete(c.entries, key)
		}
	}
}
