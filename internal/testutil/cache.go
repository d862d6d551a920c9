package testutil

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is an in-memory cache.Cache with a controllable clock and injectable failures.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     time.Time

	GetErr    error
	SetErr    error
	RemoveErr error
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry), now: time.Unix(0, 0)}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return nil, false, c.GetErr
	}
	entry, ok := c.entries[key]
	if !ok || !c.now.Before(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}
	c.entries[key] = cacheEntry{value: append([]byte(nil), value...), expiresAt: c.now.Add(ttl)}
	return nil
}

func (c *Cache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.RemoveErr != nil {
		return c.RemoveErr
	}
	delete(c.entries, key)
	return nil
}

// Has reports whether key holds an unexpired entry.
func (c *Cache) Has(key string) bool {
	_, ok, _ := c.Get(context.Background(), key)
	return ok
}

// Advance moves the cache clock forward.
func (c *Cache) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
