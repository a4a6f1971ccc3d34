// SPDX-License-Identifier: MIT

// Package cache stores serialized harmonic-constants responses so that
// repeated extraction requests skip the model file reads.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Cache is a byte-payload cache with per-entry TTL.
type Cache interface {
	// Get returns the payload stored under key, or false when the key is
	// absent or expired.
	Get(key string) ([]byte, bool)
	// Set stores a payload under key for ttl.
	Set(key string, payload []byte, ttl time.Duration)
	// Delete removes a key.
	Delete(key string)
	// Clear removes every entry.
	Clear()
	// Stats reports hit/miss counters and the current size.
	Stats() Stats
	// Close releases backend resources.
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

// Key derives a cache key from the request parameters that change the
// result: model name, variable, interpolation options and the points.
func Key(model, variable, method string, lon, lat []float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00", model, variable, method)
	for p := range lon {
		fmt.Fprintf(h, "%.9f,%.9f;", lon[p], lat[p])
	}
	return "constants:" + hex.EncodeToString(h.Sum(nil))[:32]
}

type entry struct {
	payload    []byte
	expiration time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiration)
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   Stats
	stop    chan struct{}
	once    sync.Once
}

// NewMemory creates an in-memory cache. When cleanupInterval is
// positive a background janitor removes expired entries.
func NewMemory(cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.expired(time.Now()) {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.payload, true
}

func (c *memoryCache) Set(key string, payload []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{payload: payload, expiration: time.Now().Add(ttl)}
	c.stats.Sets++
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

func (c *memoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *memoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *memoryCache) deleteExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			c.stats.Evictions++
		}
	}
}

// NewNoop returns a cache that stores nothing.
func NewNoop() Cache { return noopCache{} }

type noopCache struct{}

func (noopCache) Get(string) ([]byte, bool)         { return nil, false }
func (noopCache) Set(string, []byte, time.Duration) {}
func (noopCache) Delete(string)                     {}
func (noopCache) Clear()                            {}
func (noopCache) Stats() Stats                      { return Stats{} }
func (noopCache) Close() error                      { return nil }
