// Package lru provides an in-memory strata.Cache with least recently used
// eviction.
package lru

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/syssam/strata"
)

// DefaultSize is the number of entries a Cache holds when New is given a
// non-positive size.
const DefaultSize = 5000

type entry struct {
	value   []byte
	expires time.Time // zero for no expiry
}

// Cache is a strata.Cache backed by a fixed size LRU. It is safe for
// concurrent use.
type Cache struct {
	entries *lru.Cache[string, entry]
	now     func() time.Time
}

var _ strata.Cache = (*Cache)(nil)

// New returns a cache holding up to size entries.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries, now: time.Now}, nil
}

// Get returns the value of key, or nil when it is missing or expired.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.entries.Remove(key)
		return nil, nil
	}
	return e.value, nil
}

// Set stores value under key. A zero ttl never expires.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries.Add(key, e)
	return nil
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.entries.Remove(key)
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (c *Cache) DeletePrefix(_ context.Context, prefix string) error {
	for _, k := range c.entries.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.entries.Remove(k)
		}
	}
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear(context.Context) error {
	c.entries.Purge()
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	return c.entries.Len()
}
