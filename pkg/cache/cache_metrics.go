package cache

import (
	"time"
)

// Metrics provides observability for the region cache.
//
// This is optional - a nil Metrics skips collection. The Prometheus
// implementation lives in pkg/metrics/prometheus.
type Metrics interface {
	// RecordOpen records a region file being opened; created is true when
	// the file did not exist before.
	RecordOpen(created bool)

	// RecordEviction records a region file leaving the cache.
	RecordEviction(reason string)

	// SetOpenRegions records the number of open region files.
	SetOpenRegions(n int)

	// ObserveOpen records how long opening (and header replay) took.
	ObserveOpen(d time.Duration)
}

func (c *Cache) recordOpen(created bool, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordOpen(created)
	c.metrics.ObserveOpen(d)
}

func (c *Cache) recordEviction(reason string) {
	if c.metrics != nil {
		c.metrics.RecordEviction(reason)
	}
}

// reportSizeLocked must be called with globalMu held.
func (c *Cache) reportSizeLocked() {
	if c.metrics != nil {
		c.metrics.SetOpenRegions(c.lru.Len())
	}
}
