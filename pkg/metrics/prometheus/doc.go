// Package prometheus provides the Prometheus implementations of the metrics
// interfaces declared by the cache, store and backup packages.
//
// Importing the package registers every constructor with pkg/metrics. Each
// constructor returns nil when metrics are disabled.
package prometheus

import (
	"github.com/marmos91/regionstore/pkg/metrics"
)

func init() {
	metrics.RegisterCacheMetricsConstructor(NewCacheMetrics)
	metrics.RegisterStoreMetricsConstructor(NewStoreMetrics)
	metrics.RegisterBackupMetricsConstructor(NewBackupMetrics)
	metrics.RegisterBadgerMetricsConstructor(NewBadgerMetrics)
}
