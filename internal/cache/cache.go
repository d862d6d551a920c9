// Package cache implements the read-through/write-invalidate layer that sits
// in front of the store. Entries are never authoritative; callers decide when
// to populate and when to invalidate.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cache is an opaque key/blob store with per-entry TTL.
type Cache interface {
	// Get returns the stored blob and true, or false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Key builds the deterministic key {kind}:{attribute}:{lowercased value}.
func Key(kind, attribute, value string) string {
	return fmt.Sprintf("%s:%s:%s", kind, attribute, strings.ToLower(value))
}

// GetJSON loads and decodes a projection stored under key.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var out T
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return out, true, nil
}

// SetJSON encodes value and stores it under key for ttl.
func SetJSON[T any](ctx context.Context, c Cache, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}
