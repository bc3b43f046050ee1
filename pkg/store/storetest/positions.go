package storetest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/regionstore/pkg/region"
)

func runPositionsTests(t *testing.T, factory StoreFactory) {
	t.Run("Empty", func(t *testing.T) {
		s := factory(t)
		calls := 0
		require.NoError(t, s.Positions(t.Context(), func(region.ChunkPos) error {
			calls++
			return nil
		}))
		assert.Zero(t, calls)
	})

	t.Run("VisitsEveryStoredPosition", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		want := []region.ChunkPos{
			{X: 0, Z: 0}, {X: 31, Z: 31}, {X: 32, Z: 0},
			{X: -1, Z: -1}, {X: -100, Z: 7}, {X: 5000, Z: -5000},
		}
		for _, pos := range want {
			require.NoError(t, s.Write(ctx, pos, []byte{1}))
		}
		require.NoError(t, s.Write(ctx, region.ChunkPos{X: 9, Z: 9}, []byte{1}))
		require.NoError(t, s.Delete(ctx, region.ChunkPos{X: 9, Z: 9}))

		var got []region.ChunkPos
		require.NoError(t, s.Positions(ctx, func(pos region.ChunkPos) error {
			got = append(got, pos)
			return nil
		}))
		assert.ElementsMatch(t, want, got)
	})

	t.Run("CallbackMayReadBack", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.Write(ctx, region.ChunkPos{X: 1, Z: 2}, []byte("one-two")))

		require.NoError(t, s.Positions(ctx, func(pos region.ChunkPos) error {
			data, err := s.Read(ctx, pos)
			if err != nil {
				return err
			}
			assert.Equal(t, "one-two", string(data))
			return nil
		}))
	})

	t.Run("CallbackErrorStops", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		for i := range 10 {
			require.NoError(t, s.Write(ctx, region.ChunkPos{X: int32(i * 40)}, []byte{1}))
		}

		stop := errors.New("stop")
		calls := 0
		err := s.Positions(ctx, func(region.ChunkPos) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}
