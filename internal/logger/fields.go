package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging. Use these consistently so
// log aggregation can query on them.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Operation
	// ========================================================================
	KeyOperation  = "operation"   // read, write, scan, delete, flush, close
	KeyBackend    = "backend"     // region, badger, memory
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"
	KeyCount      = "count"

	// ========================================================================
	// Chunk / Region addressing
	// ========================================================================
	KeyChunkX = "chunk_x"
	KeyChunkZ = "chunk_z"
	KeyRegion = "region" // r.<x>.<z>
	KeySlot   = "slot"

	// ========================================================================
	// Storage layout
	// ========================================================================
	KeyPath         = "path"
	KeySize         = "size"
	KeyBytes        = "bytes"
	KeySectorOffset = "sector_offset"
	KeySectorCount  = "sector_count"
	KeyScheme       = "scheme"

	// ========================================================================
	// Region cache
	// ========================================================================
	KeyCacheSize     = "cache_size"
	KeyCacheCapacity = "cache_capacity"
	KeyEvicted       = "evicted"
	KeyReason        = "reason"

	// ========================================================================
	// Backup
	// ========================================================================
	KeyBucket   = "bucket"
	KeyKey      = "key"
	KeySnapshot = "snapshot"
)

// ============================================================================
// Field constructors
// ============================================================================

// Region returns a slog.Attr naming a region file coordinate.
func Region(x, z int32) slog.Attr {
	return slog.String(KeyRegion, fmt.Sprintf("r.%d.%d", x, z))
}

// Slot returns a slog.Attr for a header slot index.
func Slot(slot int) slog.Attr {
	return slog.Int(KeySlot, slot)
}

// Path returns a slog.Attr for a file path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Bytes returns a slog.Attr for a byte count.
func Bytes(n int) slog.Attr {
	return slog.Int(KeyBytes, n)
}

// Err returns a slog.Attr for an error. A nil error yields an empty Attr,
// which handlers skip.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns a slog.Attr for an elapsed time in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Evicted returns a slog.Attr naming an evicted region.
func Evicted(region string) slog.Attr {
	return slog.String(KeyEvicted, region)
}
