package metrics

import (
	"github.com/marmos91/regionstore/pkg/store/badger"
)

// NewBadgerMetrics creates a Prometheus-backed badger.Metrics.
//
// Returns nil if metrics are not enabled.
func NewBadgerMetrics() badger.Metrics {
	if !IsEnabled() || newPrometheusBadgerMetrics == nil {
		return nil
	}
	return newPrometheusBadgerMetrics()
}

var newPrometheusBadgerMetrics func() badger.Metrics

// RegisterBadgerMetricsConstructor registers the Prometheus BadgerDB metrics
// constructor.
func RegisterBadgerMetricsConstructor(constructor func() badger.Metrics) {
	newPrometheusBadgerMetrics = constructor
}
