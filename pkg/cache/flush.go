package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/regionstore/internal/logger"
)

// snapshot returns the open entries, most recently used first.
func (c *Cache) snapshot() []*entry {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()

	out := make([]*entry, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry))
	}
	return out
}

// FlushAll flushes every open region file. A failure does not stop the
// remaining flushes; all failures are returned joined.
func (c *Cache) FlushAll(ctx context.Context) error {
	c.globalMu.Lock()
	closed := c.closed
	c.globalMu.Unlock()
	if closed {
		return ErrCacheClosed
	}

	var errs []error
	for _, e := range c.snapshot() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := e.flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush region %s: %w", e.pos, err))
		}
	}
	return errors.Join(errs...)
}

func (e *entry) flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	return e.file.Flush()
}

// CloseAll closes every open region file and the cache. Every file is
// attempted even when some fail; failures are returned joined. Later calls
// return nil, and every other operation returns ErrCacheClosed.
func (c *Cache) CloseAll() error {
	c.globalMu.Lock()
	if c.closed {
		c.globalMu.Unlock()
		return nil
	}
	c.closed = true

	victims := make([]*entry, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		victims = append(victims, el.Value.(*entry))
	}
	c.lru.Init()
	clear(c.entries)
	c.reportSizeLocked()
	c.globalMu.Unlock()

	var errs []error
	for _, e := range victims {
		c.evictions.Add(1)
		c.recordEviction(ReasonClose)
		if err := e.close(); err != nil {
			logger.Warn("Region close failed", logger.Region(e.pos.X, e.pos.Z), logger.Err(err))
			errs = append(errs, fmt.Errorf("close region %s: %w", e.pos, err))
		}
	}
	logger.Debug("Region cache closed", logger.KeyCount, len(victims), "failed", len(errs))
	return errors.Join(errs...)
}
