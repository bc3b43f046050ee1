package metrics

import (
	"github.com/marmos91/regionstore/pkg/cache"
)

// NewCacheMetrics creates a Prometheus-backed cache.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or the
// Prometheus implementation was not imported. Passing nil to cache.New
// disables collection.
//
// Example usage:
//
//	metrics.InitRegistry()
//	c, err := cache.New(cache.Config{Dir: dir, Metrics: metrics.NewCacheMetrics()})
func NewCacheMetrics() cache.Metrics {
	if !IsEnabled() || newPrometheusCacheMetrics == nil {
		return nil
	}
	return newPrometheusCacheMetrics()
}

// newPrometheusCacheMetrics is set by pkg/metrics/prometheus.
// This indirection avoids an import cycle.
var newPrometheusCacheMetrics func() cache.Metrics

// RegisterCacheMetricsConstructor registers the Prometheus cache metrics
// constructor. Called by pkg/metrics/prometheus during initialization.
func RegisterCacheMetricsConstructor(constructor func() cache.Metrics) {
	newPrometheusCacheMetrics = constructor
}
