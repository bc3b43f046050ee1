package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/regionstore/pkg/backup"
	"github.com/marmos91/regionstore/pkg/metrics"
)

// backupMetrics is the Prometheus implementation of backup.Metrics.
type backupMetrics struct {
	uploads          *prometheus.CounterVec
	uploadBytes      prometheus.Counter
	uploadDuration   prometheus.Histogram
	snapshots        *prometheus.CounterVec
	snapshotFiles    prometheus.Gauge
	snapshotDuration prometheus.Histogram
}

// NewBackupMetrics creates a new Prometheus-backed backup.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewBackupMetrics() backup.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return newBackupMetrics(metrics.GetRegistry())
}

func newBackupMetrics(reg prometheus.Registerer) *backupMetrics {
	return &backupMetrics{
		uploads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "regionstore_backup_uploads_total",
				Help: "Total number of files uploaded by status",
			},
			[]string{"status"},
		),
		uploadBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "regionstore_backup_upload_bytes_total",
				Help: "Total bytes uploaded to the backup bucket",
			},
		),
		uploadDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "regionstore_backup_upload_duration_milliseconds",
				Help: "Duration of single file uploads in milliseconds",
				Buckets: []float64{
					10,
					50,
					100,
					500, // typical region file
					1000,
					5000,
					30000, // large region on a slow link
				},
			},
		),
		snapshots: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "regionstore_backup_snapshots_total",
				Help: "Total number of backup runs by status",
			},
			[]string{"status"},
		),
		snapshotFiles: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "regionstore_backup_last_snapshot_files",
				Help: "Number of files in the most recent snapshot",
			},
		),
		snapshotDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "regionstore_backup_snapshot_duration_seconds",
				Help:    "Duration of complete backup runs in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~1h
			},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *backupMetrics) ObserveUpload(bytes int64, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.uploadBytes.Add(float64(bytes))
	}
	m.uploadDuration.Observe(float64(d.Microseconds()) / 1000.0)
}

func (m *backupMetrics) RecordSnapshot(files int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.snapshotFiles.Set(float64(files))
	}
	m.snapshotDuration.Observe(d.Seconds())
}
