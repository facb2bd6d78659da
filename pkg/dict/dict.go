// Package dict caches dictionary option lists per dictionary type.
package dict

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jmake-zxb/jk-ui/internal/logging"
	"github.com/jmake-zxb/jk-ui/internal/metrics"
	"github.com/jmake-zxb/jk-ui/pkg/models"
)

// Loader fetches the items of one dictionary type.
type Loader interface {
	DictItems(ctx context.Context, dictType string) ([]models.DictItem, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, dictType string) ([]models.DictItem, error)

// DictItems implements Loader.
func (f LoaderFunc) DictItems(ctx context.Context, dictType string) ([]models.DictItem, error) {
	return f(ctx, dictType)
}

// Cache holds the options of every dictionary type fetched so far. Each
// type is loaded once; concurrent misses share one request. Entries live
// until Invalidate or Reset.
type Cache struct {
	loader Loader

	mu      sync.RWMutex
	entries map[string][]models.DictOption
	group   singleflight.Group
}

// NewCache creates an empty cache.
func NewCache(loader Loader) *Cache {
	return &Cache{
		loader:  loader,
		entries: make(map[string][]models.DictOption),
	}
}

// Get returns the options of each requested type, keyed by type. A failed
// type aborts the whole call; types loaded before it stay cached.
func (c *Cache) Get(ctx context.Context, types ...string) (map[string][]models.DictOption, error) {
	out := make(map[string][]models.DictOption, len(types))
	for _, t := range types {
		opts, err := c.get(ctx, t)
		if err != nil {
			return nil, err
		}
		out[t] = opts
	}
	return out, nil
}

// Options returns the options of one type.
func (c *Cache) Options(ctx context.Context, dictType string) ([]models.DictOption, error) {
	return c.get(ctx, dictType)
}

// Label maps a value to its label, or returns value when unknown.
func (c *Cache) Label(ctx context.Context, dictType, value string) (string, error) {
	opts, err := c.get(ctx, dictType)
	if err != nil {
		return "", err
	}
	for _, o := range opts {
		if o.Value == value {
			return o.Label, nil
		}
	}
	return value, nil
}

func (c *Cache) get(ctx context.Context, dictType string) ([]models.DictOption, error) {
	if opts, ok := c.lookup(dictType); ok {
		metrics.RecordDictLookup(true)
		return opts, nil
	}
	metrics.RecordDictLookup(false)

	v, err, _ := c.group.Do(dictType, func() (any, error) {
		if opts, ok := c.lookup(dictType); ok {
			return opts, nil
		}
		items, err := c.loader.DictItems(ctx, dictType)
		if err != nil {
			return nil, err
		}
		opts := make([]models.DictOption, 0, len(items))
		for _, it := range items {
			opts = append(opts, it.Option())
		}
		c.mu.Lock()
		c.entries[dictType] = opts
		c.mu.Unlock()
		logging.Debug("dictionary loaded",
			logging.String("type", dictType),
			logging.Int("items", len(opts)),
		)
		return opts, nil
	})
	if err != nil {
		return nil, fmt.Errorf("dict %s: %w", dictType, err)
	}
	return clone(v.([]models.DictOption)), nil
}

func (c *Cache) lookup(dictType string) ([]models.DictOption, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	opts, ok := c.entries[dictType]
	if !ok {
		return nil, false
	}
	return clone(opts), true
}

// Invalidate drops one type so the next Get reloads it.
func (c *Cache) Invalidate(dictType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, dictType)
}

// Reset drops every cached type.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]models.DictOption)
}

// Len returns the number of cached types.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func clone(in []models.DictOption) []models.DictOption {
	return append([]models.DictOption(nil), in...)
}
