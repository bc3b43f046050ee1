package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/regionstore/pkg/region"
	"github.com/marmos91/regionstore/pkg/store"
)

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, c *Config)
		region bool
	}{
		{"region", func(t *testing.T, c *Config) { c.Storage.Path = t.TempDir() }, true},
		{"badger", func(t *testing.T, c *Config) {
			c.Storage.Backend = store.BackendBadger
			c.Badger.Path = t.TempDir()
		}, false},
		{"badger in memory", func(t *testing.T, c *Config) {
			c.Storage.Backend = store.BackendBadger
			c.Badger.InMemory = true
		}, false},
		{"memory", func(t *testing.T, c *Config) { c.Storage.Backend = store.BackendMemory }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(t, cfg)
			require.NoError(t, Validate(cfg))

			s, err := OpenStore(cfg)
			require.NoError(t, err)
			defer s.Close()

			_, isRegion := s.(*store.RegionStore)
			assert.Equal(t, tt.region, isRegion)

			ctx := context.Background()
			pos := region.ChunkPos{X: -3, Z: 7}
			require.NoError(t, s.Write(ctx, pos, []byte("payload")))
			got, err := s.Read(ctx, pos)
			require.NoError(t, err)
			assert.Equal(t, []byte("payload"), got)
		})
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Backend = "postgres"
	_, err := OpenStore(cfg)
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestOpenRegionStoreUsesLayout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Storage.RegionSize = 16
	cfg.Storage.Compression = "gzip"
	cfg.Storage.Extension = "mcr"

	s, err := OpenRegionStore(cfg)
	require.NoError(t, err)
	defer s.Close()

	opts := s.Options()
	assert.Equal(t, 16, opts.RegionSize)
	assert.Equal(t, region.SchemeGzip, opts.Compression)
	assert.Equal(t, "mcr", opts.Extension)
	assert.Equal(t, cfg.Storage.CacheCapacity, s.CacheStats().Capacity)
}

func TestOpenRegionStoreRejectsBadLayout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Storage.SectorSize = 10
	_, err := OpenRegionStore(cfg)
	assert.Error(t, err)
}

func TestInitializeMetrics(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	InitializeMetrics(cfg)
	t.Cleanup(func() {
		cfg.Metrics.Enabled = false
		InitializeMetrics(cfg)
	})

	cfg.Storage.Path = t.TempDir()
	s, err := OpenStore(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestInitialize(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Output = "stderr"

	shutdown, err := Initialize(context.Background(), cfg, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
