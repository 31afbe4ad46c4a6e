package shipment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
)

type cacheEntry struct {
	modTime time.Time
	size    int64
	dataset *Dataset
}

// Cache memoizes loaded datasets per file. An entry is valid while the file's
// modification time and size are unchanged.
type Cache struct {
	opts   LoadOptions
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

// NewCache creates a dataset cache decoding files with opts.
func NewCache(opts LoadOptions, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		opts:    opts,
		logger:  logger.With(slog.String("component", "shipment_cache")),
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the dataset for path, loading it when absent or stale.
// The boolean reports a cache hit.
func (c *Cache) Get(ctx context.Context, path string) (*Dataset, bool, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, false, apperrors.NewStorageError("resolve dataset path", err).WithContext("path", path)
	}

	info, err := os.Stat(key)
	if err != nil {
		return nil, false, apperrors.NewStorageError("stat dataset", err).WithContext("path", key)
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.dataset, true, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		start := time.Now()
		ds, err := Load(key, c.opts)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = cacheEntry{modTime: info.ModTime(), size: info.Size(), dataset: ds}
		c.mu.Unlock()

		c.logger.InfoContext(ctx, "dataset loaded",
			slog.String("path", key),
			slog.Int("records", ds.Len()),
			slog.Int("centers", len(ds.centers)),
			slog.Duration("duration", time.Since(start)),
			slog.Bool("reload", ok))
		return ds, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("load dataset: %w", err)
	}
	return v.(*Dataset), false, nil
}

// Invalidate drops the entry for path.
func (c *Cache) Invalidate(path string) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of cached datasets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
