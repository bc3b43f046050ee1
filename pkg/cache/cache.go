// Package cache bounds the number of open region files.
//
// A Cache maps a RegionPos to the one open region.File for it. Files are
// opened (or created) on first use and closed least-recently-used first once
// Capacity files are open. Eviction flushes and closes the victim before the
// new file is opened, so unflushed data is never dropped.
//
// Every use of a file goes through Do, which holds that file's lock for the
// duration of the callback. Two goroutines never touch the same File at once.
// Callbacks must not call back into the same Cache.
package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/regionstore/internal/logger"
	"github.com/marmos91/regionstore/internal/telemetry"
	"github.com/marmos91/regionstore/pkg/region"
)

// Cache is an LRU of open region files.
type Cache struct {
	dir      string
	capacity int
	opts     region.Options
	open     OpenFunc
	metrics  Metrics

	globalMu sync.Mutex
	entries  map[uint64]*list.Element // RegionPos.Key() -> element holding *entry
	lru      *list.List               // front is most recently used
	closed   bool

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates an empty cache.
func New(cfg Config) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache: directory is required")
	}
	if cfg.Capacity < 0 {
		return nil, fmt.Errorf("cache: capacity must not be negative, got %d", cfg.Capacity)
	}
	opts := cfg.Options.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c := &Cache{
		dir:      cfg.Dir,
		capacity: cfg.Capacity,
		opts:     opts,
		open:     cfg.Open,
		metrics:  cfg.Metrics,
		entries:  make(map[uint64]*list.Element),
		lru:      list.New(),
	}
	if c.capacity == 0 {
		c.capacity = DefaultCapacity
	}
	if c.open == nil {
		c.open = region.Open
	}
	return c, nil
}

// Dir returns the directory holding the region files.
func (c *Cache) Dir() string { return c.dir }

// Options returns the options region files are opened with.
func (c *Cache) Options() region.Options { return c.opts }

// Capacity returns the maximum number of open region files.
func (c *Cache) Capacity() int { return c.capacity }

// Path returns the path of the region file for pos.
func (c *Cache) Path(pos region.RegionPos) string {
	return filepath.Join(c.dir, pos.FileName(c.opts.Extension))
}

// Do runs fn with exclusive use of the region file for pos, opening it first
// if needed. With create=false a missing file yields ErrRegionNotFound and
// nothing is created.
//
// fn must not retain f after returning.
func (c *Cache) Do(ctx context.Context, pos region.RegionPos, create bool, fn func(f *region.File) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e, err := c.acquire(ctx, pos, create)
		if err != nil {
			return err
		}

		e.mu.Lock()
		if e.closed {
			// Evicted between lookup and lock; look it up again.
			e.mu.Unlock()
			continue
		}
		err = fn(e.file)
		e.mu.Unlock()
		return err
	}
}

// acquire returns the entry for pos, moving it to the front of the LRU list
// or opening it. It does not lock the entry.
func (c *Cache) acquire(ctx context.Context, pos region.RegionPos, create bool) (*entry, error) {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()

	if c.closed {
		return nil, ErrCacheClosed
	}

	if el, ok := c.entries[pos.Key()]; ok {
		c.lru.MoveToFront(el)
		c.hits.Add(1)
		return el.Value.(*entry), nil
	}
	c.misses.Add(1)

	path := c.Path(pos)
	existed := true
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if !create {
			return nil, fmt.Errorf("%s: %w", pos, ErrRegionNotFound)
		}
		existed = false
	}

	// Make room before opening so the bound holds at every instant.
	for c.lru.Len() >= c.capacity {
		if err := c.evictLocked(c.lru.Back(), ReasonCapacity); err != nil {
			return nil, err
		}
	}

	_, span := telemetry.StartSpan(ctx, telemetry.SpanCacheOpen)
	span.SetAttributes(telemetry.Region(pos.X, pos.Z))

	start := time.Now()
	f, err := c.open(path, c.opts)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("open region %s: %w", pos, err)
	}
	c.recordOpen(!existed, time.Since(start))

	e := &entry{pos: pos, file: f}
	c.entries[pos.Key()] = c.lru.PushFront(e)
	c.reportSizeLocked()

	logger.Debug("Region cached",
		logger.Region(pos.X, pos.Z),
		logger.KeyCacheSize, c.lru.Len(),
		logger.KeyCacheCapacity, c.capacity)
	return e, nil
}

// Contains reports whether the region file for pos is open.
func (c *Cache) Contains(pos region.RegionPos) bool {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()
	_, ok := c.entries[pos.Key()]
	return ok
}

// Len returns the number of open region files.
func (c *Cache) Len() int {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()
	return c.lru.Len()
}

// Regions returns the open regions, most recently used first.
func (c *Cache) Regions() []region.RegionPos {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()

	out := make([]region.RegionPos, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).pos)
	}
	return out
}

// Stats returns counters since New.
func (c *Cache) Stats() Stats {
	return Stats{
		Open:      c.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
