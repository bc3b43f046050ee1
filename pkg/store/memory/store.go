// Package memory provides an in-memory ChunkStore.
// It is thread-safe but ephemeral - all data is lost on Close.
// Use it for tests and for benchmarking the layers above storage.
package memory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/marmos91/regionstore/pkg/region"
	"github.com/marmos91/regionstore/pkg/store"
)

// Store is an in-memory implementation of store.ChunkStore.
type Store struct {
	mu     sync.RWMutex
	chunks map[region.ChunkPos][]byte
	closed bool
}

var _ store.ChunkStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{chunks: make(map[region.ChunkPos][]byte)}
}

// Len returns the number of stored payloads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Read returns a copy of the payload at pos.
func (s *Store) Read(ctx context.Context, pos region.ChunkPos) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrStoreClosed
	}
	data, ok := s.chunks[pos]
	if !ok {
		return nil, nil
	}
	return append([]byte{}, data...), nil
}

// Write stores a copy of data. nil deletes.
func (s *Store) Write(ctx context.Context, pos region.ChunkPos, data []byte) error {
	if data == nil {
		return s.Delete(ctx, pos)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrStoreClosed
	}
	s.chunks[pos] = append([]byte{}, data...)
	return nil
}

// Delete removes the payload at pos.
func (s *Store) Delete(ctx context.Context, pos region.ChunkPos) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrStoreClosed
	}
	delete(s.chunks, pos)
	return nil
}

// Scan hands the whole payload to fn in one call.
func (s *Store) Scan(ctx context.Context, pos region.ChunkPos, fn region.ScanFunc) (bool, error) {
	data, err := s.Read(ctx, pos)
	if err != nil || data == nil {
		return false, err
	}
	if len(data) == 0 {
		return true, nil
	}
	if err := fn(data); err != nil && !errors.Is(err, region.SkipRest) {
		return true, err
	}
	return true, nil
}

// Positions visits the stored coordinates ordered by X, then Z. The set is
// snapshotted first, so fn may modify the store.
func (s *Store) Positions(ctx context.Context, fn func(pos region.ChunkPos) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return store.ErrStoreClosed
	}
	keys := make([]region.ChunkPos, 0, len(s.chunks))
	for pos := range s.chunks {
		keys = append(keys, pos)
	}
	s.mu.RUnlock()

	slices.SortFunc(keys, func(a, b region.ChunkPos) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Z, b.Z)
	})

	for _, pos := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(pos); err != nil {
			return err
		}
	}
	return nil
}

// Flush is a no-op.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	return ctx.Err()
}

// Close drops every payload.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.chunks = nil
	return nil
}
