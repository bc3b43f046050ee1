package region

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Helpers
// ============================================================================

func randomBytes(n int, seed uint64) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(r.Uint32())
	}
	return out
}

func regionPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), RegionPos{}.FileName(DefaultExtension))
}

func openFile(t *testing.T, path string, opts Options) *File {
	t.Helper()
	f, err := Open(path, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		if !f.closed {
			_ = f.Close()
		}
	})
	return f
}

func uncompressed() Options {
	return Options{Compression: SchemeNone}
}

// patchFile overwrites bytes of a closed region file.
func patchFile(t *testing.T, path string, off int64, b []byte) {
	t.Helper()
	fh, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = fh.WriteAt(b, off)
	require.NoError(t, err)
	require.NoError(t, fh.Close())
}

// ============================================================================
// Create / Open
// ============================================================================

func TestOpenCreatesEmptyHeader(t *testing.T) {
	path := regionPath(t)
	f := openFile(t, path, Options{})
	require.NoError(t, f.Close())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), fi.Size())

	f = openFile(t, path, Options{})
	entries, err := f.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, uint32(2), f.Allocator().End())
}

func TestOpenRejectsBadOptions(t *testing.T) {
	_, err := Open(regionPath(t), Options{SectorSize: 16})
	assert.Error(t, err)

	_, err = Open(regionPath(t), Options{Compression: 99})
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestOpenMissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "r.0.0.mca"), Options{})
	var pathErr *os.PathError
	assert.ErrorAs(t, err, &pathErr)
}

// ============================================================================
// Round trips
// ============================================================================

func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 100, 4091, 4092, 10000, 64 << 10, 500 << 10}

	for _, scheme := range []Scheme{SchemeGzip, SchemeZlib, SchemeNone} {
		t.Run(scheme.String(), func(t *testing.T) {
			path := regionPath(t)
			f := openFile(t, path, Options{Compression: scheme})

			for i, n := range sizes {
				require.NoError(t, f.Write(i, randomBytes(n, uint64(i))))
			}
			for i, n := range sizes {
				got, err := f.Read(i)
				require.NoError(t, err)
				assert.Equal(t, randomBytes(n, uint64(i)), got, "slot %d", i)
			}

			// Survives a reopen.
			require.NoError(t, f.Close())
			f = openFile(t, path, Options{Compression: scheme})
			for i, n := range sizes {
				got, err := f.Read(i)
				require.NoError(t, err)
				assert.Len(t, got, n)
				assert.Equal(t, randomBytes(n, uint64(i)), got)
			}
		})
	}
}

func TestReadEmptySlot(t *testing.T) {
	f := openFile(t, regionPath(t), Options{})

	got, err := f.Read(17)
	assert.NoError(t, err)
	assert.Nil(t, got)

	has, err := f.Has(17)
	assert.NoError(t, err)
	assert.False(t, has)
}

func TestEmptyPayloadIsPresent(t *testing.T) {
	f := openFile(t, regionPath(t), Options{})
	require.NoError(t, f.Write(3, nil))

	got, err := f.Read(3)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReadsHonourStoredScheme(t *testing.T) {
	path := regionPath(t)
	f := openFile(t, path, Options{Compression: SchemeGzip})
	require.NoError(t, f.Write(0, []byte("gzip payload")))
	require.NoError(t, f.Close())

	f = openFile(t, path, Options{Compression: SchemeZlib})
	got, err := f.Read(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("gzip payload"), got)
}

func TestTenThousandBytesUseThreeSectors(t *testing.T) {
	path := regionPath(t)
	f := openFile(t, path, uncompressed())
	data := randomBytes(10000, 7)
	require.NoError(t, f.Write(0, data))
	require.NoError(t, f.Close())

	f = openFile(t, path, uncompressed())
	e, ok, err := f.Entry(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, SectorRun{Offset: 2, Count: 3}, e.Run)

	got, err := f.Read(0)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5*4096), fi.Size())
}

func TestInvalidSlot(t *testing.T) {
	f := openFile(t, regionPath(t), Options{})

	for _, slot := range []int{-1, 1024} {
		_, err := f.Read(slot)
		assert.ErrorIs(t, err, ErrInvalidSlot)
		assert.ErrorIs(t, f.Write(slot, []byte("x")), ErrInvalidSlot)
		assert.ErrorIs(t, f.Clear(slot), ErrInvalidSlot)
	}
}

// ============================================================================
// Rewrite / Clear
// ============================================================================

func TestRewriteIsCopyOnWrite(t *testing.T) {
	f := openFile(t, regionPath(t), uncompressed())

	require.NoError(t, f.Write(0, randomBytes(10000, 1))) // [2,5)
	require.NoError(t, f.Write(1, randomBytes(100, 2)))   // [5,6)

	// Shrinking slot 0 allocates fresh sectors before releasing the old run.
	require.NoError(t, f.Write(0, randomBytes(100, 3)))
	e, _, err := f.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, SectorRun{Offset: 6, Count: 1}, e.Run)
	assert.Equal(t, []SectorRun{{2, 3}}, f.Allocator().FreeRuns())

	// The freed run is reused by the next write that fits.
	require.NoError(t, f.Write(2, randomBytes(5000, 4)))
	e, _, err = f.Entry(2)
	require.NoError(t, err)
	assert.Equal(t, SectorRun{Offset: 2, Count: 2}, e.Run)

	got, err := f.Read(0)
	require.NoError(t, err)
	assert.Equal(t, randomBytes(100, 3), got)
}

func TestClear(t *testing.T) {
	path := regionPath(t)
	f := openFile(t, path, Options{})

	require.NoError(t, f.Write(5, []byte("payload")))
	require.NoError(t, f.Clear(5))
	require.NoError(t, f.Clear(5), "clear is idempotent")
	require.NoError(t, f.Clear(6), "clearing an empty slot is a no-op")

	got, err := f.Read(5)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, uint32(2), f.Allocator().End())

	require.NoError(t, f.Close())
	f = openFile(t, path, Options{})
	has, err := f.Has(5)
	require.NoError(t, err)
	assert.False(t, has)
	e, _, err := f.Entry(5)
	require.NoError(t, err)
	assert.True(t, e.Modified.IsZero())
}

func TestTimestamps(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	path := regionPath(t)
	f := openFile(t, path, Options{Now: func() time.Time { return now }})
	require.NoError(t, f.Write(9, []byte("x")))
	require.NoError(t, f.Close())

	f = openFile(t, path, Options{})
	e, ok, err := f.Entry(9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, now.Equal(e.Modified))
}

func TestRunsStayDisjointAcrossReopen(t *testing.T) {
	path := regionPath(t)
	f := openFile(t, path, Options{Compression: SchemeNone})

	r := rand.New(rand.NewPCG(42, 42))
	for i := 0; i < 300; i++ {
		slot := r.IntN(64)
		if r.IntN(5) == 0 {
			require.NoError(t, f.Clear(slot))
			continue
		}
		require.NoError(t, f.Write(slot, randomBytes(r.IntN(20000), uint64(i))))
	}
	require.NoError(t, f.Close())

	f = openFile(t, path, Options{Compression: SchemeNone})
	entries, err := f.Entries()
	require.NoError(t, err)
	for i, a := range entries {
		assert.GreaterOrEqual(t, a.Run.Offset, uint32(2))
		for _, b := range entries[i+1:] {
			assert.False(t, a.Run.Overlaps(b.Run), "slot %d %v overlaps slot %d %v", a.Slot, a.Run, b.Slot, b.Run)
		}
	}
}

// ============================================================================
// Scan
// ============================================================================

func TestScan(t *testing.T) {
	f := openFile(t, regionPath(t), Options{})
	data := randomBytes(50000, 11)
	require.NoError(t, f.Write(0, data))

	t.Run("StreamsWholePayload", func(t *testing.T) {
		var got bytes.Buffer
		found, err := f.Scan(0, func(p []byte) error {
			got.Write(p)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, data, got.Bytes())
	})

	t.Run("SkipRestStopsEarly", func(t *testing.T) {
		calls := 0
		var got []byte
		found, err := f.Scan(0, func(p []byte) error {
			calls++
			got = append(got, p...)
			return SkipRest
		})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 1, calls)
		assert.Equal(t, data[:len(got)], got)
	})

	t.Run("CallbackErrorPropagates", func(t *testing.T) {
		boom := errors.New("boom")
		found, err := f.Scan(0, func([]byte) error { return boom })
		assert.True(t, found)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("MissingSlot", func(t *testing.T) {
		found, err := f.Scan(1, func([]byte) error {
			t.Fatal("callback invoked for empty slot")
			return nil
		})
		assert.NoError(t, err)
		assert.False(t, found)
	})
}

// ============================================================================
// Corruption
// ============================================================================

func TestCorruptHeader(t *testing.T) {
	t.Run("Truncated", func(t *testing.T) {
		path := regionPath(t)
		require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

		_, err := Open(path, Options{})
		assert.ErrorIs(t, err, ErrCorruptHeader)
	})

	t.Run("OverlappingRuns", func(t *testing.T) {
		path := regionPath(t)
		f := openFile(t, path, uncompressed())
		require.NoError(t, f.Write(0, randomBytes(9000, 1)))
		require.NoError(t, f.Write(1, randomBytes(100, 2)))
		require.NoError(t, f.Close())

		var entry [4]byte
		binary.BigEndian.PutUint32(entry[:], SectorRun{Offset: 3, Count: 2}.pack())
		patchFile(t, path, 4, entry[:])

		_, err := Open(path, uncompressed())
		assert.ErrorIs(t, err, ErrCorruptHeader)
	})

	t.Run("RunInsideHeader", func(t *testing.T) {
		path := regionPath(t)
		require.NoError(t, openFile(t, path, Options{}).Close())

		var entry [4]byte
		binary.BigEndian.PutUint32(entry[:], SectorRun{Offset: 1, Count: 1}.pack())
		patchFile(t, path, 0, entry[:])

		_, err := Open(path, Options{})
		assert.ErrorIs(t, err, ErrCorruptHeader)
	})
}

func TestCorruptPayload(t *testing.T) {
	payloadOffset := int64(2 * DefaultSectorSize)

	tests := []struct {
		name  string
		off   int64
		patch []byte
	}{
		{"LengthTooLarge", 0, []byte{0xff, 0xff, 0xff, 0xff}},
		{"ZeroLength", 0, []byte{0, 0, 0, 0}},
		{"UnknownScheme", 4, []byte{9}},
		{"MalformedStream", 5, []byte{0xde, 0xad, 0xbe, 0xef}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := regionPath(t)
			f := openFile(t, path, Options{Compression: SchemeZlib})
			require.NoError(t, f.Write(0, randomBytes(3000, 5)))
			require.NoError(t, f.Write(1, []byte("neighbour")))
			require.NoError(t, f.Close())

			patchFile(t, path, payloadOffset+tt.off, tt.patch)

			f = openFile(t, path, Options{})
			_, err := f.Read(0)
			require.ErrorIs(t, err, ErrCorruptPayload)

			var se *SlotError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, 0, se.Slot)

			// Other slots are unaffected.
			got, err := f.Read(1)
			require.NoError(t, err)
			assert.Equal(t, []byte("neighbour"), got)
		})
	}
}

func TestRunPastEndOfFile(t *testing.T) {
	path := regionPath(t)
	f := openFile(t, path, uncompressed())
	require.NoError(t, f.Write(0, randomBytes(100, 1)))
	require.NoError(t, f.Close())

	var entry [4]byte
	binary.BigEndian.PutUint32(entry[:], SectorRun{Offset: 40, Count: 1}.pack())
	patchFile(t, path, 0, entry[:])

	f = openFile(t, path, uncompressed())
	_, err := f.Read(0)
	assert.ErrorIs(t, err, ErrCorruptPayload)
}

// ============================================================================
// Crash and I/O failure
// ============================================================================

func TestCrashBetweenPayloadAndHeader(t *testing.T) {
	path := regionPath(t)
	f := openFile(t, path, uncompressed())

	original := randomBytes(6000, 1)
	require.NoError(t, f.Write(0, original))
	require.NoError(t, f.Flush())

	crash := errors.New("simulated crash")
	f.afterPayload = func() error { return crash }
	err := f.Write(0, randomBytes(9000, 2))
	require.ErrorIs(t, err, crash)

	// In-memory state still references the original payload.
	got, err := f.Read(0)
	require.NoError(t, err)
	assert.Equal(t, original, got)
	assert.Equal(t, uint32(4), f.Allocator().End())

	// So does the file on disk, as seen by a fresh open.
	g, err := Open(path, uncompressed())
	require.NoError(t, err)
	defer g.Close()
	got, err = g.Read(0)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestCrashBeforeHeaderKeepsExternalPayload(t *testing.T) {
	opts := Options{Compression: SchemeNone, SectorSize: 64}
	path := regionPath(t)
	f := openFile(t, path, opts)

	first := randomBytes(MaxRunSectors*64+1000, 4)
	require.NoError(t, f.Write(5, first))
	small := []byte("in region")
	require.NoError(t, f.Write(6, small))

	crash := errors.New("simulated crash")
	f.afterPayload = func() error { return crash }
	require.ErrorIs(t, f.Write(5, randomBytes(MaxRunSectors*64+2000, 5)), crash)
	require.ErrorIs(t, f.Write(6, randomBytes(MaxRunSectors*64+3000, 6)), crash)

	got, err := f.Read(5)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	got, err = f.Read(6)
	require.NoError(t, err)
	assert.Equal(t, small, got)

	assert.NoFileExists(t, f.ExternalPath(5)+".tmp")
	assert.NoFileExists(t, f.ExternalPath(6))
	assert.NoFileExists(t, f.ExternalPath(6)+".tmp")

	g, err := Open(path, opts)
	require.NoError(t, err)
	defer g.Close()
	got, err = g.Read(5)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	// Once the failure clears the rewrite goes through.
	f.afterPayload = nil
	second := randomBytes(MaxRunSectors*64+2000, 7)
	require.NoError(t, f.Write(5, second))
	got, err = f.Read(5)
	require.NoError(t, err)
	assert.Equal(t, second, got)
	assert.NoFileExists(t, f.ExternalPath(5)+".tmp")
}

func TestSidecarRenameFailureKeepsOldPayload(t *testing.T) {
	opts := Options{Compression: SchemeNone, SectorSize: 64}
	path := regionPath(t)
	f := openFile(t, path, opts)

	small := []byte("in region")
	require.NoError(t, f.Write(7, small))

	// A directory in the sidecar's place makes the rename fail.
	require.NoError(t, os.Mkdir(f.ExternalPath(7), 0o755))
	require.Error(t, f.Write(7, randomBytes(MaxRunSectors*64+1000, 8)))

	got, err := f.Read(7)
	require.NoError(t, err)
	assert.Equal(t, small, got)
	assert.NoFileExists(t, f.ExternalPath(7)+".tmp")

	require.NoError(t, f.Close())
	f = openFile(t, path, opts)
	got, err = f.Read(7)
	require.NoError(t, err)
	assert.Equal(t, small, got)
}

// faultyHandle wraps a real file and fails selected operations.
type faultyHandle struct {
	*os.File
	failWriteAt int64 // fail writes at this offset, -1 disables
	failClose   bool
}

func (h *faultyHandle) WriteAt(p []byte, off int64) (int, error) {
	if h.failWriteAt >= 0 && off == h.failWriteAt {
		return 0, errors.New("injected write failure")
	}
	return h.File.WriteAt(p, off)
}

func (h *faultyHandle) Close() error {
	err := h.File.Close()
	if h.failClose {
		return errors.New("injected close failure")
	}
	return err
}

func TestWriteFailureKeepsOldPayload(t *testing.T) {
	path := regionPath(t)
	fh, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)

	h := &faultyHandle{File: fh, failWriteAt: -1}
	f, err := OpenHandle(h, path, uncompressed())
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Write(0, []byte("first")))

	// The rewrite lands at sector 3; make that write fail.
	h.failWriteAt = 3 * DefaultSectorSize
	err = f.Write(0, []byte("second"))
	require.Error(t, err)

	got, err := f.Read(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)
	assert.Equal(t, uint32(3), f.Allocator().End())

	// Header write failure also leaves the old payload referenced.
	h.failWriteAt = 0
	require.Error(t, f.Write(0, []byte("third")))
	got, err = f.Read(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)
}

func TestHeaderFailureRestoresTimestamp(t *testing.T) {
	path := regionPath(t)
	fh, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)

	written := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := written
	opts := Options{Compression: SchemeNone, Now: func() time.Time { return now }}

	h := &faultyHandle{File: fh, failWriteAt: -1}
	f, err := OpenHandle(h, path, opts)
	require.NoError(t, err)

	require.NoError(t, f.Write(0, []byte("first")))

	// The timestamp write succeeds, the offset write fails.
	now = written.Add(time.Hour)
	h.failWriteAt = 0
	require.Error(t, f.Write(0, []byte("second")))

	e, ok, err := f.Entry(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, written.Equal(e.Modified))
	require.NoError(t, f.Close())

	g := openFile(t, path, Options{Compression: SchemeNone})
	e, ok, err = g.Entry(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, written.Equal(e.Modified), "on-disk timestamp %v", e.Modified)
	got, err := g.Read(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)
}

func TestCloseReportsHandleError(t *testing.T) {
	path := regionPath(t)
	fh, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)

	f, err := OpenHandle(&faultyHandle{File: fh, failWriteAt: -1, failClose: true}, path, Options{})
	require.NoError(t, err)

	assert.Error(t, f.Close())
	assert.ErrorIs(t, f.Close(), ErrClosed)
}

func TestClosedFile(t *testing.T) {
	f := openFile(t, regionPath(t), Options{})
	require.NoError(t, f.Close())

	_, err := f.Read(0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.Write(0, []byte("x")), ErrClosed)
	assert.ErrorIs(t, f.Clear(0), ErrClosed)
	assert.ErrorIs(t, f.Flush(), ErrClosed)
	_, err = f.Entries()
	assert.ErrorIs(t, err, ErrClosed)
}

// ============================================================================
// External payloads
// ============================================================================

func TestExternalPayload(t *testing.T) {
	opts := Options{Compression: SchemeNone, SectorSize: 64}
	path := regionPath(t)
	f := openFile(t, path, opts)

	big := randomBytes(MaxRunSectors*64+1000, 3)
	require.NoError(t, f.Write(5, big))

	sidecar := filepath.Join(filepath.Dir(path), "c.5.0.mcac")
	assert.Equal(t, sidecar, f.ExternalPath(5))
	assert.FileExists(t, sidecar)

	e, _, err := f.Entry(5)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), e.Run.Count)

	got, err := f.Read(5)
	require.NoError(t, err)
	assert.Equal(t, big, got)

	require.NoError(t, f.Close())
	f = openFile(t, path, opts)
	got, err = f.Read(5)
	require.NoError(t, err)
	assert.Equal(t, big, got)

	// A small rewrite moves the payload back in place.
	require.NoError(t, f.Write(5, []byte("small")))
	assert.NoFileExists(t, sidecar)

	require.NoError(t, f.Write(5, big))
	assert.FileExists(t, sidecar)
	require.NoError(t, f.Clear(5))
	assert.NoFileExists(t, sidecar)
}

func TestOnlyPooledBuffersReturnToPool(t *testing.T) {
	f := openFile(t, regionPath(t), Options{Compression: SchemeNone, SectorSize: 64})
	require.NoError(t, f.Write(0, randomBytes(MaxRunSectors*64+1000, 9)))
	require.NoError(t, f.Write(1, []byte("in region")))

	rc, found, err := f.openPayload(0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Nil(t, rc.(*payloadReader).raw, "sidecar bytes are not pool buffers")
	require.NoError(t, rc.Close())

	rc, found, err = f.openPayload(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotNil(t, rc.(*payloadReader).raw)
	require.NoError(t, rc.Close())
}

func TestExternalPayloadMissingSidecar(t *testing.T) {
	opts := Options{Compression: SchemeNone, SectorSize: 64}
	path := regionPath(t)
	f := openFile(t, path, opts)
	require.NoError(t, f.Write(0, randomBytes(MaxRunSectors*64, 1)))
	require.NoError(t, os.Remove(f.ExternalPath(0)))

	_, err := f.Read(0)
	assert.ErrorIs(t, err, ErrCorruptPayload)
}

func TestOversizedWithoutPathIsRejected(t *testing.T) {
	fh, err := os.CreateTemp(t.TempDir(), "anon")
	require.NoError(t, err)

	f, err := OpenHandle(fh, "", Options{Compression: SchemeNone, SectorSize: 64})
	require.NoError(t, err)
	defer f.Close()

	err = f.Write(0, randomBytes(MaxRunSectors*64, 1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestSyncWrites(t *testing.T) {
	path := regionPath(t)
	f := openFile(t, path, Options{SyncWrites: true})
	require.NoError(t, f.Write(0, []byte("durable")))
	assert.False(t, f.dirty)
	require.NoError(t, f.Flush())

	got, err := f.Read(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), got)
}
