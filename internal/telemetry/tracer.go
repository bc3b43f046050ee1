package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for storage operations.
const (
	AttrChunkX    = "chunk.x"
	AttrChunkZ    = "chunk.z"
	AttrRegion    = "region"
	AttrSlot      = "region.slot"
	AttrBackend   = "store.backend"
	AttrOperation = "store.operation"
	AttrBytes     = "payload.bytes"
	AttrFound     = "payload.found"
	AttrDeleted   = "payload.deleted"
	AttrCacheSize = "cache.size"
	AttrEvicted   = "cache.evicted"
	AttrBucket    = "storage.bucket"
	AttrKey       = "storage.key"
)

// Span names.
const (
	SpanStoreRead      = "store.read"
	SpanStoreWrite     = "store.write"
	SpanStoreScan      = "store.scan"
	SpanStoreFlush     = "store.flush"
	SpanStoreClose     = "store.close"
	SpanStorePositions = "store.positions"
	SpanCacheOpen      = "cache.open"
	SpanBackup         = "backup.run"
	SpanBackupUpload   = "backup.upload"
)

// Chunk returns the chunk.x and chunk.z attributes.
func Chunk(x, z int32) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrChunkX, int(x)),
		attribute.Int(AttrChunkZ, int(z)),
	}
}

// Region returns an attribute naming a region file coordinate.
func Region(x, z int32) attribute.KeyValue {
	return attribute.String(AttrRegion, fmt.Sprintf("r.%d.%d", x, z))
}

// Slot returns an attribute for a header slot index.
func Slot(slot int) attribute.KeyValue {
	return attribute.Int(AttrSlot, slot)
}

// Backend returns an attribute naming the store backend.
func Backend(name string) attribute.KeyValue {
	return attribute.String(AttrBackend, name)
}

// Bytes returns an attribute for a payload size.
func Bytes(n int) attribute.KeyValue {
	return attribute.Int(AttrBytes, n)
}

// Found returns an attribute recording whether a payload existed.
func Found(found bool) attribute.KeyValue {
	return attribute.Bool(AttrFound, found)
}

// Bucket returns an attribute for an object storage bucket.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// Key returns an attribute for an object key.
func Key(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartChunkSpan starts a span for a store operation on one chunk.
func StartChunkSpan(ctx context.Context, name, backend string, x, z int32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, 3+len(attrs))
	all = append(all, Backend(backend))
	all = append(all, Chunk(x, z)...)
	all = append(all, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(all...))
}

// StartStoreSpan starts a span for a store-wide operation.
func StartStoreSpan(ctx context.Context, name, backend string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Backend(backend)}, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(all...))
}

// EndSpan records err, if any, and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
