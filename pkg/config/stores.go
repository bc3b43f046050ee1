package config

import (
	"context"
	"fmt"

	"github.com/marmos91/regionstore/internal/logger"
	"github.com/marmos91/regionstore/pkg/backup"
	"github.com/marmos91/regionstore/pkg/metrics"
	"github.com/marmos91/regionstore/pkg/store"
	"github.com/marmos91/regionstore/pkg/store/badger"
	"github.com/marmos91/regionstore/pkg/store/memory"
)

// OpenStore creates the chunk store selected by cfg.Storage.Backend.
// Metrics are attached when the registry is enabled.
func OpenStore(cfg *Config) (store.ChunkStore, error) {
	switch cfg.Storage.Backend {
	case store.BackendRegion, "":
		return OpenRegionStore(cfg)
	case store.BackendBadger:
		return createBadgerStore(cfg.Badger)
	case store.BackendMemory:
		logger.Debug("Using in-memory chunk store")
		return store.Instrument(memory.New(), store.BackendMemory, metrics.NewStoreMetrics(store.BackendMemory)), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}

// OpenRegionStore creates a region store regardless of the configured
// backend. Commands that work on region files directly use it.
func OpenRegionStore(cfg *Config) (*store.RegionStore, error) {
	opts, err := cfg.Storage.RegionOptions()
	if err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}
	return store.NewRegionStore(store.RegionConfig{
		Dir:          cfg.Storage.Path,
		Capacity:     cfg.Storage.CacheCapacity,
		Options:      opts,
		CacheMetrics: metrics.NewCacheMetrics(),
		Metrics:      metrics.NewStoreMetrics(store.BackendRegion),
	})
}

// createBadgerStore opens a badger store and wraps it with instrumentation.
func createBadgerStore(cfg BadgerConfig) (store.ChunkStore, error) {
	s, err := badger.Open(badger.Config{
		Path:       cfg.Path,
		InMemory:   cfg.InMemory,
		SyncWrites: cfg.SyncWrites,
		Metrics:    metrics.NewBadgerMetrics(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return store.Instrument(s, store.BackendBadger, metrics.NewStoreMetrics(store.BackendBadger)), nil
}

// CreateUploader builds the S3 uploader of the backup section.
func CreateUploader(ctx context.Context, cfg BackupConfig) (*backup.S3Uploader, error) {
	return backup.NewS3UploaderFromConfig(ctx, backup.S3Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		ForcePathStyle:  cfg.ForcePathStyle,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
}
