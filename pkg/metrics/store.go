package metrics

import (
	"time"

	"github.com/marmos91/regionstore/pkg/store"
)

// NewStoreMetrics creates a Prometheus-backed store.Metrics labelled with the
// backend name ("region", "badger", "memory").
//
// Returns nil if metrics are not enabled.
func NewStoreMetrics(backend string) store.Metrics {
	if !IsEnabled() || newPrometheusStoreMetrics == nil {
		return nil
	}
	return newPrometheusStoreMetrics(backend)
}

var newPrometheusStoreMetrics func(backend string) store.Metrics

// RegisterStoreMetricsConstructor registers the Prometheus store metrics
// constructor.
func RegisterStoreMetricsConstructor(constructor func(backend string) store.Metrics) {
	newPrometheusStoreMetrics = constructor
}

// ObserveOperation records one store operation. m may be nil.
//
// Example usage:
//
//	start := time.Now()
//	data, err := s.Read(ctx, pos)
//	metrics.ObserveOperation(m, "read", time.Since(start), err)
func ObserveOperation(m store.Metrics, op string, d time.Duration, err error) {
	if m != nil {
		m.ObserveOperation(op, d, err)
	}
}

// RecordBytes records payload bytes moved by an operation. m may be nil.
func RecordBytes(m store.Metrics, op string, n int) {
	if m != nil {
		m.RecordBytes(op, n)
	}
}
