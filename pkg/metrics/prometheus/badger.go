package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/regionstore/pkg/metrics"
	"github.com/marmos91/regionstore/pkg/store/badger"
)

// badgerMetrics is the Prometheus implementation of badger.Metrics.
type badgerMetrics struct {
	cacheHitRatio *prometheus.GaugeVec
	size          *prometheus.GaugeVec
}

// NewBadgerMetrics creates a new Prometheus-backed BadgerDB metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewBadgerMetrics() badger.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return newBadgerMetrics(metrics.GetRegistry())
}

func newBadgerMetrics(reg prometheus.Registerer) *badgerMetrics {
	m := &badgerMetrics{
		cacheHitRatio: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regionstore_badger_cache_hit_ratio",
				Help: "BadgerDB cache hit ratio (0.0 to 1.0) by cache type",
			},
			[]string{"cache_type"}, // "block", "index"
		),
		size: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regionstore_badger_size_bytes",
				Help: "BadgerDB on-disk size by file kind",
			},
			[]string{"kind"}, // "lsm", "vlog"
		),
	}
	m.cacheHitRatio = registerOrExisting(reg, m.cacheHitRatio)
	m.size = registerOrExisting(reg, m.size)
	return m
}

// RecordCacheHitRatio records the cache hit ratio for a specific cache type.
// ratio should be between 0.0 and 1.0
func (m *badgerMetrics) RecordCacheHitRatio(cacheType string, ratio float64) {
	if m == nil {
		return
	}
	m.cacheHitRatio.WithLabelValues(cacheType).Set(ratio)
}

// RecordSizes records the LSM tree and value log sizes.
func (m *badgerMetrics) RecordSizes(lsm, vlog int64) {
	if m == nil {
		return
	}
	m.size.WithLabelValues("lsm").Set(float64(lsm))
	m.size.WithLabelValues("vlog").Set(float64(vlog))
}
