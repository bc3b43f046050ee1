package cache

import (
	"container/list"
	"context"
	"fmt"

	"github.com/marmos91/regionstore/internal/logger"
	"github.com/marmos91/regionstore/pkg/region"
)

// ============================================================================
// Eviction (LRU)
// ============================================================================
//
// The victim is always the back of the LRU list, so the region used most
// recently is never the next one evicted. The victim is removed from the map
// first and then closed under its own lock: a Do already inside the victim's
// callback finishes before the close, and a Do that looked the entry up
// before removal sees closed=true and retries.
//
// A failed close still removes the victim. Its error is returned to the
// caller that triggered the eviction.

// evictLocked removes el and closes its file. Must be called with globalMu
// held.
func (c *Cache) evictLocked(el *list.Element, reason string) error {
	e := el.Value.(*entry)
	c.lru.Remove(el)
	delete(c.entries, e.pos.Key())

	err := e.close()

	c.evictions.Add(1)
	c.recordEviction(reason)
	c.reportSizeLocked()

	if err != nil {
		logger.Warn("Region eviction failed to close file",
			logger.Evicted(e.pos.String()), logger.KeyReason, reason, logger.Err(err))
		return fmt.Errorf("evict region %s: %w", e.pos, err)
	}
	logger.Debug("Region evicted",
		logger.Evicted(e.pos.String()), logger.KeyReason, reason,
		logger.KeyCacheSize, c.lru.Len())
	return nil
}

// close flushes and closes the file and marks the entry unusable.
func (e *entry) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.file.Close()
}

// Evict closes the region file for pos if it is open. It reports whether a
// file was evicted.
func (c *Cache) Evict(ctx context.Context, pos region.RegionPos) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.globalMu.Lock()
	defer c.globalMu.Unlock()

	if c.closed {
		return false, ErrCacheClosed
	}
	el, ok := c.entries[pos.Key()]
	if !ok {
		return false, nil
	}
	return true, c.evictLocked(el, ReasonManual)
}
