package config

import (
	"strings"
	"time"

	"github.com/marmos91/regionstore/internal/bytesize"
	"github.com/marmos91/regionstore/pkg/cache"
	"github.com/marmos91/regionstore/pkg/region"
	"github.com/marmos91/regionstore/pkg/store"
)

// Default values that are not owned by another package.
const (
	DefaultRegionPath    = "region"
	DefaultBackupPrefix  = "regionstore"
	DefaultBackupTimeout = 30 * time.Minute
	DefaultMetricsPort   = 9090
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyStorageDefaults(&cfg.Storage)
	applyBackupDefaults(&cfg.Backup)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyMetricsDefaults sets the port only when metrics are on.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// applyStorageDefaults fills the region layout with the standard format.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Backend == "" {
		cfg.Backend = store.BackendRegion
	}
	cfg.Backend = strings.ToLower(cfg.Backend)

	if cfg.Backend == store.BackendRegion && cfg.Path == "" {
		cfg.Path = DefaultRegionPath
	}
	if cfg.RegionSize == 0 {
		cfg.RegionSize = region.DefaultRegionSize
	}
	if cfg.SectorSize == 0 {
		cfg.SectorSize = bytesize.ByteSize(region.DefaultSectorSize)
	}
	if cfg.CacheCapacity == 0 {
		cfg.CacheCapacity = cache.DefaultCapacity
	}
	if cfg.Compression == "" {
		cfg.Compression = region.SchemeZlib.String()
	}
	cfg.Compression = strings.ToLower(cfg.Compression)

	if cfg.Extension == "" {
		cfg.Extension = region.DefaultExtension
	}
}

func applyBackupDefaults(cfg *BackupConfig) {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultBackupPrefix
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultBackupTimeout
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
