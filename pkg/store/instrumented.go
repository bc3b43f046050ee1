package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/regionstore/internal/logger"
	"github.com/marmos91/regionstore/internal/telemetry"
	"github.com/marmos91/regionstore/pkg/region"
)

// Instrument wraps s with tracing spans, debug logging and metrics labelled
// with backend. RegionStore instruments itself and does not need this.
func Instrument(s ChunkStore, backend string, m Metrics) ChunkStore {
	return &instrumented{next: s, backend: backend, metrics: m}
}

type instrumented struct {
	next    ChunkStore
	backend string
	metrics Metrics
}

// Unwrap returns the wrapped store.
func (s *instrumented) Unwrap() ChunkStore { return s.next }

func (s *instrumented) start(ctx context.Context, op, span string, pos region.ChunkPos) (context.Context, trace.Span) {
	ctx, sp := telemetry.StartChunkSpan(ctx, span, s.backend, pos.X, pos.Z)
	lc := logger.NewLogContext(op, s.backend).WithChunk(pos.X, pos.Z)
	return logger.WithContext(ctx, lc), sp
}

func (s *instrumented) finish(ctx context.Context, op string, sp trace.Span, start time.Time, n int, err error) {
	telemetry.EndSpan(sp, err)
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, time.Since(start), err)
		if err == nil && n >= 0 {
			s.metrics.RecordBytes(op, n)
		}
	}
	if err != nil {
		logger.WarnCtx(ctx, "Chunk operation failed", logger.Err(err))
		return
	}
	logger.DebugCtx(ctx, "Chunk operation complete", logger.KeyDurationMs, logger.Duration(start))
}

func (s *instrumented) Read(ctx context.Context, pos region.ChunkPos) ([]byte, error) {
	start := time.Now()
	ctx, sp := s.start(ctx, OpRead, telemetry.SpanStoreRead, pos)
	data, err := s.next.Read(ctx, pos)
	sp.SetAttributes(telemetry.Found(data != nil))

	n := -1
	if data != nil {
		n = len(data)
	}
	s.finish(ctx, OpRead, sp, start, n, err)
	return data, err
}

func (s *instrumented) Write(ctx context.Context, pos region.ChunkPos, data []byte) error {
	if data == nil {
		return s.Delete(ctx, pos)
	}
	start := time.Now()
	ctx, sp := s.start(ctx, OpWrite, telemetry.SpanStoreWrite, pos)
	sp.SetAttributes(telemetry.Bytes(len(data)))
	err := s.next.Write(ctx, pos, data)
	s.finish(ctx, OpWrite, sp, start, len(data), err)
	return err
}

func (s *instrumented) Delete(ctx context.Context, pos region.ChunkPos) error {
	start := time.Now()
	ctx, sp := s.start(ctx, OpDelete, telemetry.SpanStoreWrite, pos)
	err := s.next.Delete(ctx, pos)
	s.finish(ctx, OpDelete, sp, start, -1, err)
	return err
}

func (s *instrumented) Scan(ctx context.Context, pos region.ChunkPos, fn region.ScanFunc) (bool, error) {
	start := time.Now()
	ctx, sp := s.start(ctx, OpScan, telemetry.SpanStoreScan, pos)

	n := 0
	found, err := s.next.Scan(ctx, pos, func(p []byte) error {
		n += len(p)
		return fn(p)
	})
	sp.SetAttributes(telemetry.Found(found))
	if !found {
		n = -1
	}
	s.finish(ctx, OpScan, sp, start, n, err)
	return found, err
}

func (s *instrumented) Positions(ctx context.Context, fn func(pos region.ChunkPos) error) error {
	start := time.Now()
	ctx, sp := telemetry.StartStoreSpan(ctx, telemetry.SpanStorePositions, s.backend)
	err := s.next.Positions(ctx, fn)
	telemetry.EndSpan(sp, err)
	if s.metrics != nil {
		s.metrics.ObserveOperation(OpPositions, time.Since(start), err)
	}
	return err
}

func (s *instrumented) Flush(ctx context.Context) error {
	start := time.Now()
	ctx, sp := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreFlush, s.backend)
	err := s.next.Flush(ctx)
	telemetry.EndSpan(sp, err)
	if s.metrics != nil {
		s.metrics.ObserveOperation(OpFlush, time.Since(start), err)
	}
	return err
}

func (s *instrumented) Close() error {
	_, sp := telemetry.StartStoreSpan(context.Background(), telemetry.SpanStoreClose, s.backend)
	err := s.next.Close()
	telemetry.EndSpan(sp, err)
	return err
}
