package store_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/regionstore/pkg/region"
	"github.com/marmos91/regionstore/pkg/store"
	"github.com/marmos91/regionstore/pkg/store/storetest"
)

// ============================================================================
// Helpers
// ============================================================================

func newRegionStore(t *testing.T, cfg store.RegionConfig) *store.RegionStore {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(t.TempDir(), "region")
	}
	s, err := store.NewRegionStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type opMetrics struct {
	mu    sync.Mutex
	ops   map[string]int
	errs  map[string]int
	bytes map[string]int
}

func (m *opMetrics) ObserveOperation(op string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ops == nil {
		m.ops, m.errs, m.bytes = map[string]int{}, map[string]int{}, map[string]int{}
	}
	m.ops[op]++
	if err != nil {
		m.errs[op]++
	}
}

func (m *opMetrics) RecordBytes(op string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bytes == nil {
		m.ops, m.errs, m.bytes = map[string]int{}, map[string]int{}, map[string]int{}
	}
	m.bytes[op] += n
}

// ============================================================================
// Conformance
// ============================================================================

func TestRegionStoreConformance(t *testing.T) {
	schemes := []region.Scheme{region.SchemeZlib, region.SchemeGzip, region.SchemeNone}
	for _, scheme := range schemes {
		t.Run(scheme.String(), func(t *testing.T) {
			storetest.RunConformanceSuite(t, func(t *testing.T) store.ChunkStore {
				// A tiny cache forces eviction throughout the suite.
				return newRegionStore(t, store.RegionConfig{
					Capacity: 2,
					Options:  region.Options{Compression: scheme},
				})
			})
		})
	}
}

func TestRegionStoreConformanceSyncWrites(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) store.ChunkStore {
		return newRegionStore(t, store.RegionConfig{
			Options: region.Options{SyncWrites: true},
		})
	})
}

// ============================================================================
// On-disk behaviour
// ============================================================================

func TestTenThousandBytesOccupyThreeSectors(t *testing.T) {
	s := newRegionStore(t, store.RegionConfig{Options: region.Options{Compression: region.SchemeNone}})
	ctx := context.Background()
	want := storetest.Payload(10000, 42)

	require.NoError(t, s.Write(ctx, region.ChunkPos{}, want))
	require.NoError(t, s.Close())

	path := filepath.Join(s.Dir(), region.RegionPos{}.FileName(region.DefaultExtension))
	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5*region.DefaultSectorSize), fi.Size())

	f, err := region.Open(path, s.Options())
	require.NoError(t, err)
	defer f.Close()

	e, ok, err := f.Entry(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, region.SectorRun{Offset: 2, Count: 3}, e.Run)

	got, err := f.Read(0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCapacityTwoEvictionScenario(t *testing.T) {
	s := newRegionStore(t, store.RegionConfig{Capacity: 2})
	ctx := context.Background()

	a := region.ChunkPos{X: 0, Z: 0}    // r.0.0
	b := region.ChunkPos{X: 32, Z: 0}   // r.1.0
	c := region.ChunkPos{X: -1, Z: -33} // r.-1.-2
	payload := []byte("written to region A")

	require.NoError(t, s.Write(ctx, a, payload))
	require.NoError(t, s.Write(ctx, b, []byte("b")))
	require.NoError(t, s.Write(ctx, c, []byte("c")))

	st := s.CacheStats()
	assert.Equal(t, 2, st.Open)
	assert.Equal(t, uint64(1), st.Evictions)

	// A was flushed and closed on eviction: an independent open sees the data.
	f, err := region.Open(filepath.Join(s.Dir(), "r.0.0.mca"), s.Options())
	require.NoError(t, err)
	got, err := f.Read(0)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, payload, got)

	// Reading through the store reopens A, evicting B.
	got, err = s.Read(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, uint64(2), s.CacheStats().Evictions)
}

func TestReadsDoNotCreateRegionFiles(t *testing.T) {
	s := newRegionStore(t, store.RegionConfig{})
	ctx := context.Background()
	pos := region.ChunkPos{X: 100, Z: 100}

	data, err := s.Read(ctx, pos)
	require.NoError(t, err)
	assert.Nil(t, data)

	found, err := s.Scan(ctx, pos, func([]byte) error { return nil })
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Delete(ctx, pos))
	require.NoError(t, s.Write(ctx, pos, nil))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, s.CacheStats().Open)
}

func TestCorruptPayloadIsIsolated(t *testing.T) {
	opts := region.Options{Compression: region.SchemeNone}
	s := newRegionStore(t, store.RegionConfig{Options: opts})
	ctx := context.Background()
	bad, good := region.ChunkPos{X: 0, Z: 0}, region.ChunkPos{X: 1, Z: 0}

	require.NoError(t, s.Write(ctx, bad, []byte("soon corrupt")))
	require.NoError(t, s.Write(ctx, good, []byte("intact")))
	dir := s.Dir()
	require.NoError(t, s.Close())

	// The first payload starts at sector 2; its scheme byte follows the
	// 4-byte length.
	fh, err := os.OpenFile(filepath.Join(dir, "r.0.0.mca"), os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = fh.WriteAt([]byte{0x7e}, 2*region.DefaultSectorSize+4)
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	s2 := newRegionStore(t, store.RegionConfig{Dir: dir, Options: opts})
	_, err = s2.Read(ctx, bad)
	assert.ErrorIs(t, err, region.ErrCorruptPayload)

	var se *region.SlotError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 0, se.Slot)

	got, err := s2.Read(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, []byte("intact"), got)
}

func TestOversizedPayloadUsesSidecar(t *testing.T) {
	opts := region.Options{Compression: region.SchemeNone}
	s := newRegionStore(t, store.RegionConfig{Options: opts})
	ctx := context.Background()
	pos := region.ChunkPos{X: 3, Z: 4}
	big := storetest.Payload(region.MaxRunSectors*region.DefaultSectorSize+1, 5)

	require.NoError(t, s.Write(ctx, pos, big))
	assert.FileExists(t, filepath.Join(s.Dir(), "c.3.4.mcac"))

	got, err := s.Read(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, big, got)

	require.NoError(t, s.Write(ctx, pos, []byte("small again")))
	assert.NoFileExists(t, filepath.Join(s.Dir(), "c.3.4.mcac"))
}

// ============================================================================
// Enumeration and inspection
// ============================================================================

func TestRegionsIgnoresForeignFiles(t *testing.T) {
	s := newRegionStore(t, store.RegionConfig{})
	ctx := context.Background()

	for _, pos := range []region.ChunkPos{{X: 40, Z: 0}, {X: -1, Z: 5}, {X: 0, Z: -64}} {
		require.NoError(t, s.Write(ctx, pos, []byte{1}))
	}
	for _, name := range []string{"notes.txt", "r.a.b.mca", "r.0.0.mcr", "level.dat"} {
		require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "r.9.9.mca"), 0o755))

	regions, err := s.Regions()
	require.NoError(t, err)
	assert.Equal(t, []region.RegionPos{{X: -1, Z: 0}, {X: 0, Z: -2}, {X: 1, Z: 0}}, regions)

	var got []region.ChunkPos
	require.NoError(t, s.Positions(ctx, func(pos region.ChunkPos) error {
		got = append(got, pos)
		return nil
	}))
	assert.Equal(t, []region.ChunkPos{{X: -1, Z: 5}, {X: 0, Z: -64}, {X: 40, Z: 0}}, got)
}

func TestInspect(t *testing.T) {
	s := newRegionStore(t, store.RegionConfig{})
	ctx := context.Background()

	found, err := s.Inspect(ctx, region.RegionPos{}, func(*region.File) error { return nil })
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Write(ctx, region.ChunkPos{X: 2, Z: 1}, []byte("x")))

	var entries []region.SlotEntry
	found, err = s.Inspect(ctx, region.RegionPos{}, func(f *region.File) error {
		var err error
		entries, err = f.Entries()
		return err
	})
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, entries, 1)
	assert.Equal(t, 2+1*region.DefaultRegionSize, entries[0].Slot)
}

// ============================================================================
// Lifecycle and metrics
// ============================================================================

func TestReopenKeepsData(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "world")
	ctx := context.Background()
	want := map[region.ChunkPos][]byte{}

	s := newRegionStore(t, store.RegionConfig{Dir: dir, Capacity: 3})
	for i := range 50 {
		pos := region.ChunkPos{X: int32(i*11 - 200), Z: int32(i*17 - 300)}
		want[pos] = storetest.Payload(i*300, uint64(i))
		require.NoError(t, s.Write(ctx, pos, want[pos]))
	}
	require.NoError(t, s.Close())

	s = newRegionStore(t, store.RegionConfig{Dir: dir, Capacity: 3})
	for pos, data := range want {
		got, err := s.Read(ctx, pos)
		require.NoError(t, err)
		assert.Equal(t, data, got, "chunk %s", pos)
	}
}

func TestCloseFlushesEveryRegion(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "world")
	s := newRegionStore(t, store.RegionConfig{Dir: dir, Options: region.Options{SyncWrites: false}})
	ctx := context.Background()

	for x := range int32(4) {
		require.NoError(t, s.Write(ctx, region.ChunkPos{X: x * 32}, []byte{byte(x)}))
	}
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Close())

	for x := range int32(4) {
		report, err := region.Verify(filepath.Join(dir, region.RegionPos{X: x}.FileName("mca")), region.Options{})
		require.NoError(t, err)
		assert.True(t, report.OK())
		assert.Equal(t, 1, report.Present)
	}
}

func TestRegionStoreMetrics(t *testing.T) {
	m := &opMetrics{}
	s := newRegionStore(t, store.RegionConfig{Metrics: m})
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, region.ChunkPos{}, []byte("12345")))
	_, err := s.Read(ctx, region.ChunkPos{})
	require.NoError(t, err)
	_, err = s.Read(ctx, region.ChunkPos{X: 1})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, region.ChunkPos{}))
	require.NoError(t, s.Flush(ctx))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.ops[store.OpWrite])
	assert.Equal(t, 2, m.ops[store.OpRead])
	assert.Equal(t, 1, m.ops[store.OpDelete])
	assert.Equal(t, 1, m.ops[store.OpFlush])
	assert.Equal(t, 5, m.bytes[store.OpWrite])
	assert.Equal(t, 5, m.bytes[store.OpRead])
	assert.Empty(t, m.errs)
}

func TestNewRegionStoreValidation(t *testing.T) {
	_, err := store.NewRegionStore(store.RegionConfig{})
	assert.Error(t, err)

	_, err = store.NewRegionStore(store.RegionConfig{
		Dir:     t.TempDir(),
		Options: region.Options{SectorSize: 32},
	})
	assert.Error(t, err)
}
