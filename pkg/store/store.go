// Package store defines ChunkStore, the coordinate-addressed payload store,
// and RegionStore, its implementation over region files.
//
// Payloads are opaque byte slices keyed by region.ChunkPos. A payload that
// was never written reads back as nil with a nil error. Writing nil deletes.
//
// Other backends live in subpackages (memory, badger) and are checked against
// the same behaviour by pkg/store/storetest.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/regionstore/pkg/region"
)

// ============================================================================
// Errors
// ============================================================================

// ErrStoreClosed is returned by every operation after Close.
var ErrStoreClosed = errors.New("store is closed")

// ============================================================================
// Interfaces
// ============================================================================

// ChunkStore stores one payload per chunk coordinate.
//
// Implementations are safe for concurrent use.
type ChunkStore interface {
	// Read returns the payload at pos, or nil if none was written.
	Read(ctx context.Context, pos region.ChunkPos) ([]byte, error)

	// Write stores data at pos, replacing any previous payload. A nil data
	// deletes the payload; an empty non-nil slice stores an empty payload.
	Write(ctx context.Context, pos region.ChunkPos, data []byte) error

	// Delete removes the payload at pos. Deleting an absent payload is a
	// no-op.
	Delete(ctx context.Context, pos region.ChunkPos) error

	// Scan streams the payload at pos to fn. It reports whether a payload
	// existed. fn returning region.SkipRest ends the scan without error.
	Scan(ctx context.Context, pos region.ChunkPos, fn region.ScanFunc) (bool, error)

	// Positions calls fn for every stored coordinate. fn may call back into
	// the store. An error from fn stops the walk and is returned.
	Positions(ctx context.Context, fn func(pos region.ChunkPos) error) error

	// Flush forces buffered state to stable storage.
	Flush(ctx context.Context) error

	// Close flushes and releases every resource. It is idempotent.
	Close() error
}

// Metrics provides observability for store operations.
//
// This is optional - a nil Metrics skips collection.
type Metrics interface {
	// ObserveOperation records one operation ("read", "write", "delete",
	// "scan", "positions", "flush") and its outcome.
	ObserveOperation(op string, d time.Duration, err error)

	// RecordBytes records the uncompressed payload size moved by op.
	RecordBytes(op string, n int)
}

// Operation names used for logging, tracing and metrics.
const (
	OpRead      = "read"
	OpWrite     = "write"
	OpDelete    = "delete"
	OpScan      = "scan"
	OpPositions = "positions"
	OpFlush     = "flush"
	OpClose     = "close"
)

// Backend names.
const (
	BackendRegion = "region"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// ScanAll collects a streamed payload into one slice. It is the Scan-based
// equivalent of Read.
func ScanAll(ctx context.Context, s ChunkStore, pos region.ChunkPos) ([]byte, bool, error) {
	var out []byte
	found, err := s.Scan(ctx, pos, func(p []byte) error {
		out = append(out, p...)
		return nil
	})
	if err != nil || !found {
		return nil, found, err
	}
	if out == nil {
		out = []byte{}
	}
	return out, true, nil
}

// Copy writes every payload of src into dst and returns the number copied.
func Copy(ctx context.Context, dst, src ChunkStore) (int, error) {
	n := 0
	err := src.Positions(ctx, func(pos region.ChunkPos) error {
		data, err := src.Read(ctx, pos)
		if err != nil {
			return err
		}
		if data == nil {
			return nil
		}
		if err := dst.Write(ctx, pos, data); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}
