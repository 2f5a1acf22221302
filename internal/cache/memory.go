package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	entry     *Entry
	expiresAt time.Time
}

// MemoryCache is a per-process ResponseCache with LRU eviction.
type MemoryCache struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryCache returns a MemoryCache holding at most size entries, none of
// which outlives maxTTL.
func NewMemoryCache(size int, maxTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, bool, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.entry, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	c.lru.Add(key, memoryEntry{entry: entry, expiresAt: c.now().Add(ttl)})
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}
