package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/regionstore/pkg/metrics"
	"github.com/marmos91/regionstore/pkg/store"
)

// storeMetrics is the Prometheus implementation of store.Metrics. The vectors
// are shared by every backend; backend is a constant label value.
type storeMetrics struct {
	backend    string
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.HistogramVec
}

// NewStoreMetrics creates a new Prometheus-backed store.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewStoreMetrics(backend string) store.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return newStoreMetrics(metrics.GetRegistry(), backend)
}

func newStoreMetrics(reg prometheus.Registerer, backend string) *storeMetrics {
	m := &storeMetrics{
		backend: backend,
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regionstore_store_operations_total",
				Help: "Total number of chunk store operations by backend, operation and status",
			},
			[]string{"backend", "operation", "status"}, // status: "success", "error"
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "regionstore_store_operation_duration_milliseconds",
				Help: "Duration of chunk store operations in milliseconds",
				Buckets: []float64{
					0.01, // 10us - cached, uncompressed
					0.05,
					0.1,
					0.5,
					1,
					5, // synchronous writes
					10,
					50,
					100,
					1000, // flush of many regions
				},
			},
			[]string{"backend", "operation"},
		),
		bytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "regionstore_store_payload_bytes",
				Help: "Distribution of uncompressed payload sizes",
				Buckets: []float64{
					256,
					1024,
					4096,    // one sector
					16384,   // typical chunk
					65536,
					262144,
					1048576, // 255 sectors is just under 1MB
					4194304,
				},
			},
			[]string{"backend", "operation"},
		),
	}
	m.operations = registerOrExisting(reg, m.operations)
	m.duration = registerOrExisting(reg, m.duration)
	m.bytes = registerOrExisting(reg, m.bytes)
	return m
}

func (m *storeMetrics) ObserveOperation(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(m.backend, op, status).Inc()
	m.duration.WithLabelValues(m.backend, op).Observe(float64(d.Microseconds()) / 1000.0)
}

func (m *storeMetrics) RecordBytes(op string, n int) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues(m.backend, op).Observe(float64(n))
}
