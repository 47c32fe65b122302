// Package datacache provides a per-cycle cache for collector data.
//
// Five firms evaluate the same markets in sequence, so every upstream
// lookup would otherwise run five times per cycle. The cache keys on
// (symbol, source), collapses concurrent loads with singleflight, and is
// reset between cycles so no cycle ever sees stale data.
package datacache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader produces the value for a missing key.
type Loader func(ctx context.Context) (interface{}, error)

// Cache is a cycle-scoped single-flight cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]interface{}
	group   singleflight.Group
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]interface{})}
}

func key(symbol, source string) string {
	return fmt.Sprintf("%s|%s", symbol, source)
}

// Get returns the cached value for (symbol, source), invoking loader at
// most once per cycle even under concurrent callers. Loader errors are
// not cached; the next call retries.
func (c *Cache) Get(ctx context.Context, symbol, source string, loader Loader) (interface{}, error) {
	k := key(symbol, source)

	c.mu.RLock()
	if v, ok := c.entries[k]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(k, func() (interface{}, error) {
		c.mu.RLock()
		if v, ok := c.entries[k]; ok {
			c.mu.RUnlock()
			return v, nil
		}
		c.mu.RUnlock()

		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[k] = v
		c.mu.Unlock()
		return v, nil
	})
	return v, err
}

// Reset drops every entry. Called between cycles.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]interface{})
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
