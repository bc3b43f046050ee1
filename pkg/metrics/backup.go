package metrics

import (
	"github.com/marmos91/regionstore/pkg/backup"
)

// NewBackupMetrics creates a Prometheus-backed backup.Metrics.
//
// Returns nil if metrics are not enabled.
func NewBackupMetrics() backup.Metrics {
	if !IsEnabled() || newPrometheusBackupMetrics == nil {
		return nil
	}
	return newPrometheusBackupMetrics()
}

var newPrometheusBackupMetrics func() backup.Metrics

// RegisterBackupMetricsConstructor registers the Prometheus backup metrics
// constructor.
func RegisterBackupMetricsConstructor(constructor func() backup.Metrics) {
	newPrometheusBackupMetrics = constructor
}
