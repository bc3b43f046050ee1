package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/regionstore/internal/logger"
	"github.com/marmos91/regionstore/internal/telemetry"
	"github.com/marmos91/regionstore/pkg/cache"
	"github.com/marmos91/regionstore/pkg/region"
)

// RegionConfig configures a RegionStore.
type RegionConfig struct {
	// Dir holds the region files. It is created if missing.
	Dir string

	// Capacity bounds the number of open region files.
	Capacity int

	// Options apply to every region file.
	Options region.Options

	// CacheMetrics and Metrics are optional.
	CacheMetrics cache.Metrics
	Metrics      Metrics
}

// RegionStore is a ChunkStore over a directory of region files.
type RegionStore struct {
	cache   *cache.Cache
	opts    region.Options
	metrics Metrics
	closed  atomic.Bool
}

var _ ChunkStore = (*RegionStore)(nil)

// NewRegionStore creates the directory if needed and returns a store over it.
// No region file is opened until first use.
func NewRegionStore(cfg RegionConfig) (*RegionStore, error) {
	if cfg.Dir == "" {
		return nil, errors.New("region store: directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("region store: %w", err)
	}

	c, err := cache.New(cache.Config{
		Dir:      cfg.Dir,
		Capacity: cfg.Capacity,
		Options:  cfg.Options,
		Metrics:  cfg.CacheMetrics,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Region store opened",
		logger.KeyPath, cfg.Dir,
		logger.KeyCacheCapacity, c.Capacity(),
		logger.KeyScheme, c.Options().Compression.String())

	return &RegionStore{cache: c, opts: c.Options(), metrics: cfg.Metrics}, nil
}

// Dir returns the region directory.
func (s *RegionStore) Dir() string { return s.cache.Dir() }

// Options returns the effective region options.
func (s *RegionStore) Options() region.Options { return s.opts }

// CacheStats returns the region cache counters.
func (s *RegionStore) CacheStats() cache.Stats { return s.cache.Stats() }

// ============================================================================
// Operation plumbing
// ============================================================================

// begin starts the span and log context of one chunk operation.
func (s *RegionStore) begin(ctx context.Context, op, span string, pos region.ChunkPos) (context.Context, trace.Span, time.Time) {
	ctx, sp := telemetry.StartChunkSpan(ctx, span, BackendRegion, pos.X, pos.Z)
	rpos := s.opts.Region(pos)
	sp.SetAttributes(telemetry.Region(rpos.X, rpos.Z), telemetry.Slot(s.opts.Slot(pos)))

	lc := logger.NewLogContext(op, BackendRegion).
		WithChunk(pos.X, pos.Z).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	return logger.WithContext(ctx, lc), sp, lc.StartTime
}

// end finishes an operation started by begin.
func (s *RegionStore) end(ctx context.Context, op string, sp trace.Span, start time.Time, err error) {
	telemetry.EndSpan(sp, err)
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, time.Since(start), err)
	}
	switch {
	case err == nil:
		logger.DebugCtx(ctx, "Chunk operation complete", logger.KeyDurationMs, logger.Duration(start))
	case errors.Is(err, region.ErrCorruptPayload):
		logger.WarnCtx(ctx, "Chunk payload is corrupt", logger.Err(err))
	case errors.Is(err, ErrStoreClosed), errors.Is(err, context.Canceled):
	default:
		logger.ErrorCtx(ctx, "Chunk operation failed", logger.Err(err))
	}
}

func (s *RegionStore) recordBytes(op string, n int) {
	if s.metrics != nil {
		s.metrics.RecordBytes(op, n)
	}
}

// do runs fn on the region file holding pos. With create=false a missing
// file is not an error and fn is not called.
func (s *RegionStore) do(ctx context.Context, pos region.ChunkPos, create bool, fn func(f *region.File, slot int) error) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	slot := s.opts.Slot(pos)
	err := s.cache.Do(ctx, s.opts.Region(pos), create, func(f *region.File) error {
		return fn(f, slot)
	})
	switch {
	case errors.Is(err, cache.ErrRegionNotFound):
		return nil
	case errors.Is(err, cache.ErrCacheClosed):
		return ErrStoreClosed
	}
	return err
}

// ============================================================================
// ChunkStore
// ============================================================================

// Read returns the payload at pos, or nil if it was never written. Reading
// never creates a region file.
func (s *RegionStore) Read(ctx context.Context, pos region.ChunkPos) (data []byte, err error) {
	ctx, sp, start := s.begin(ctx, OpRead, telemetry.SpanStoreRead, pos)
	defer func() { s.end(ctx, OpRead, sp, start, err) }()

	err = s.do(ctx, pos, false, func(f *region.File, slot int) error {
		var rerr error
		data, rerr = f.Read(slot)
		return rerr
	})
	if err != nil {
		return nil, err
	}

	sp.SetAttributes(telemetry.Found(data != nil))
	if data != nil {
		sp.SetAttributes(telemetry.Bytes(len(data)))
		s.recordBytes(OpRead, len(data))
	}
	return data, nil
}

// Write stores data at pos. nil data deletes.
func (s *RegionStore) Write(ctx context.Context, pos region.ChunkPos, data []byte) (err error) {
	if data == nil {
		return s.Delete(ctx, pos)
	}

	ctx, sp, start := s.begin(ctx, OpWrite, telemetry.SpanStoreWrite, pos)
	sp.SetAttributes(telemetry.Bytes(len(data)))
	defer func() { s.end(ctx, OpWrite, sp, start, err) }()

	err = s.do(ctx, pos, true, func(f *region.File, slot int) error {
		return f.Write(slot, data)
	})
	if err == nil {
		s.recordBytes(OpWrite, len(data))
	}
	return err
}

// Delete clears the slot of pos. A missing region file is left missing.
func (s *RegionStore) Delete(ctx context.Context, pos region.ChunkPos) (err error) {
	ctx, sp, start := s.begin(ctx, OpDelete, telemetry.SpanStoreWrite, pos)
	defer func() { s.end(ctx, OpDelete, sp, start, err) }()

	err = s.do(ctx, pos, false, func(f *region.File, slot int) error {
		return f.Clear(slot)
	})
	return err
}

// Scan streams the decompressed payload at pos to fn.
func (s *RegionStore) Scan(ctx context.Context, pos region.ChunkPos, fn region.ScanFunc) (found bool, err error) {
	ctx, sp, start := s.begin(ctx, OpScan, telemetry.SpanStoreScan, pos)
	defer func() { s.end(ctx, OpScan, sp, start, err) }()

	n := 0
	counted := func(p []byte) error {
		n += len(p)
		return fn(p)
	}
	err = s.do(ctx, pos, false, func(f *region.File, slot int) error {
		var serr error
		found, serr = f.Scan(slot, counted)
		return serr
	})
	if err != nil {
		return false, err
	}

	sp.SetAttributes(telemetry.Found(found))
	if found {
		s.recordBytes(OpScan, n)
	}
	return found, nil
}

// Positions visits every stored coordinate, region by region in file name
// order and slot order within a region.
func (s *RegionStore) Positions(ctx context.Context, fn func(pos region.ChunkPos) error) (err error) {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	ctx, sp := telemetry.StartStoreSpan(ctx, telemetry.SpanStorePositions, BackendRegion)
	start := time.Now()
	defer func() {
		telemetry.EndSpan(sp, err)
		if s.metrics != nil {
			s.metrics.ObserveOperation(OpPositions, time.Since(start), err)
		}
	}()

	regions, err := s.Regions()
	if err != nil {
		return err
	}

	for _, rpos := range regions {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Collect under the region lock, call fn outside it.
		var slots []int
		err := s.cache.Do(ctx, rpos, false, func(f *region.File) error {
			entries, err := f.Entries()
			if err != nil {
				return err
			}
			for _, e := range entries {
				slots = append(slots, e.Slot)
			}
			return nil
		})
		if errors.Is(err, cache.ErrRegionNotFound) {
			continue // removed since listing
		}
		if errors.Is(err, cache.ErrCacheClosed) {
			return ErrStoreClosed
		}
		if err != nil {
			return err
		}

		for _, slot := range slots {
			if err := fn(s.opts.Chunk(rpos, slot)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Regions lists the region files present in the directory, sorted by
// coordinate.
func (s *RegionStore) Regions() ([]region.RegionPos, error) {
	entries, err := os.ReadDir(s.cache.Dir())
	if err != nil {
		return nil, err
	}

	var out []region.RegionPos
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if rpos, ok := region.ParseFileName(e.Name(), s.opts.Extension); ok {
			out = append(out, rpos)
		}
	}
	slices.SortFunc(out, func(a, b region.RegionPos) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Z, b.Z)
	})
	return out, nil
}

// Inspect runs fn on the region file at rpos without creating it. It reports
// false when the file does not exist.
func (s *RegionStore) Inspect(ctx context.Context, rpos region.RegionPos, fn func(f *region.File) error) (bool, error) {
	if s.closed.Load() {
		return false, ErrStoreClosed
	}
	err := s.cache.Do(ctx, rpos, false, fn)
	switch {
	case errors.Is(err, cache.ErrRegionNotFound):
		return false, nil
	case errors.Is(err, cache.ErrCacheClosed):
		return false, ErrStoreClosed
	}
	return err == nil, err
}

// Flush flushes every open region file.
func (s *RegionStore) Flush(ctx context.Context) (err error) {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	ctx, sp := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreFlush, BackendRegion)
	start := time.Now()
	defer func() {
		telemetry.EndSpan(sp, err)
		if s.metrics != nil {
			s.metrics.ObserveOperation(OpFlush, time.Since(start), err)
		}
	}()

	err = s.cache.FlushAll(ctx)
	if errors.Is(err, cache.ErrCacheClosed) {
		return ErrStoreClosed
	}
	return err
}

// Close flushes and closes every open region file. Every file is attempted
// even if some fail. Later calls return nil.
func (s *RegionStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	_, sp := telemetry.StartStoreSpan(context.Background(), telemetry.SpanStoreClose, BackendRegion)
	stats := s.cache.Stats()
	err := s.cache.CloseAll()
	telemetry.EndSpan(sp, err)

	if err != nil {
		logger.Error("Region store closed with errors", logger.KeyPath, s.Dir(), logger.Err(err))
		return err
	}
	logger.Debug("Region store closed",
		logger.KeyPath, s.Dir(),
		"hits", stats.Hits, "misses", stats.Misses, "evictions", stats.Evictions)
	return nil
}
