package badger

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/regionstore/pkg/region"
	"github.com/marmos91/regionstore/pkg/store"
	"github.com/marmos91/regionstore/pkg/store/storetest"
)

func openTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformanceInMemory(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) store.ChunkStore {
		return openTestStore(t, Config{InMemory: true})
	})
}

func TestConformanceOnDisk(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping on-disk badger suite in short mode")
	}
	storetest.RunConformanceSuite(t, func(t *testing.T) store.ChunkStore {
		return openTestStore(t, Config{Path: filepath.Join(t.TempDir(), "chunks")})
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestChunkKeyOrder(t *testing.T) {
	positions := []region.ChunkPos{
		{X: -2147483648, Z: 0},
		{X: -1, Z: -1},
		{X: -1, Z: 0},
		{X: 0, Z: -5},
		{X: 0, Z: 5},
		{X: 7, Z: 2147483647},
	}

	keys := make([]string, len(positions))
	for i, pos := range positions {
		keys[i] = string(chunkKey(pos))

		got, ok := decodeChunkKey([]byte(keys[i]))
		require.True(t, ok)
		assert.Equal(t, pos, got)
	}
	assert.True(t, sort.StringsAreSorted(keys))

	_, ok := decodeChunkKey([]byte("short"))
	assert.False(t, ok)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks")
	ctx := context.Background()
	pos := region.ChunkPos{X: -70, Z: 3}
	want := storetest.Payload(5000, 1)

	s, err := Open(Config{Path: path, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, pos, want))
	require.NoError(t, s.Close())

	s = openTestStore(t, Config{Path: path})
	got, err := s.Read(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

type recordingMetrics struct {
	mu     sync.Mutex
	ratios map[string]float64
	sizes  int
}

func (m *recordingMetrics) RecordCacheHitRatio(cacheType string, ratio float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ratios == nil {
		m.ratios = map[string]float64{}
	}
	m.ratios[cacheType] = ratio
}

func (m *recordingMetrics) RecordSizes(lsm, vlog int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes++
}

func TestFlushRecordsMetrics(t *testing.T) {
	m := &recordingMetrics{}
	s := openTestStore(t, Config{Path: filepath.Join(t.TempDir(), "chunks"), Metrics: m})

	require.NoError(t, s.Write(context.Background(), region.ChunkPos{}, []byte("x")))
	require.NoError(t, s.Flush(context.Background()))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Contains(t, m.ratios, "block")
	assert.Contains(t, m.ratios, "index")
	assert.Equal(t, 1, m.sizes)
}
