package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/regionstore/pkg/region"
	"github.com/marmos91/regionstore/pkg/store"
)

func runLifecycleTests(t *testing.T, factory StoreFactory) {
	t.Run("Flush", func(t *testing.T) {
		s := factory(t)
		require.NoError(t, s.Write(t.Context(), region.ChunkPos{}, []byte("x")))
		assert.NoError(t, s.Flush(t.Context()))
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		s := factory(t)
		require.NoError(t, s.Write(t.Context(), region.ChunkPos{}, []byte("x")))
		require.NoError(t, s.Close())
		assert.NoError(t, s.Close())
	})

	t.Run("UseAfterClose", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.Close())

		_, err := s.Read(ctx, region.ChunkPos{})
		assert.ErrorIs(t, err, store.ErrStoreClosed)
		assert.ErrorIs(t, s.Write(ctx, region.ChunkPos{}, []byte("x")), store.ErrStoreClosed)
		assert.ErrorIs(t, s.Delete(ctx, region.ChunkPos{}), store.ErrStoreClosed)
		_, err = s.Scan(ctx, region.ChunkPos{}, func([]byte) error { return nil })
		assert.ErrorIs(t, err, store.ErrStoreClosed)
		assert.ErrorIs(t, s.Positions(ctx, func(region.ChunkPos) error { return nil }), store.ErrStoreClosed)
		assert.ErrorIs(t, s.Flush(ctx), store.ErrStoreClosed)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := factory(t)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		assert.ErrorIs(t, s.Write(ctx, region.ChunkPos{}, []byte("x")), context.Canceled)
		_, err := s.Read(ctx, region.ChunkPos{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("ConcurrentWriters", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		const workers, perWorker = 8, 40

		var wg sync.WaitGroup
		for w := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range perWorker {
					// Spread across several regions per worker.
					pos := region.ChunkPos{X: int32(i * 13), Z: int32(w*7 - 20)}
					if err := s.Write(ctx, pos, []byte(fmt.Sprint(w, i))); err != nil {
						t.Errorf("write %v: %v", pos, err)
						return
					}
				}
			}()
		}
		wg.Wait()

		for w := range workers {
			for i := range perWorker {
				pos := region.ChunkPos{X: int32(i * 13), Z: int32(w*7 - 20)}
				got, err := s.Read(ctx, pos)
				require.NoError(t, err)
				assert.Equal(t, fmt.Sprint(w, i), string(got))
			}
		}
	})
}
