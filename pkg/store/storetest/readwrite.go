package storetest

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/regionstore/pkg/region"
)

func runReadWriteTests(t *testing.T, factory StoreFactory) {
	t.Run("ReadMissing", func(t *testing.T) {
		s := factory(t)
		data, err := s.Read(t.Context(), region.ChunkPos{X: 4, Z: 2})
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("RoundTripSizes", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		sizes := []int{0, 1, 100, 4091, 4096, 10000, 100_000, 1 << 20}

		for i, n := range sizes {
			pos := region.ChunkPos{X: int32(i), Z: int32(-i)}
			want := Payload(n, uint64(n))
			require.NoError(t, s.Write(ctx, pos, want), "size %d", n)

			got, err := s.Read(ctx, pos)
			require.NoError(t, err, "size %d", n)
			require.NotNil(t, got, "size %d", n)
			assert.True(t, bytes.Equal(want, got), "size %d", n)
		}
	})

	t.Run("CompressiblePayload", func(t *testing.T) {
		s := factory(t)
		want := bytes.Repeat([]byte("region"), 50_000)
		pos := region.ChunkPos{X: 1, Z: 1}

		require.NoError(t, s.Write(t.Context(), pos, want))
		got, err := s.Read(t.Context(), pos)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		pos := region.ChunkPos{X: 7, Z: 3}

		for i, n := range []int{100, 20000, 50, 9000} {
			want := Payload(n, uint64(i))
			require.NoError(t, s.Write(ctx, pos, want))
			got, err := s.Read(ctx, pos)
			require.NoError(t, err)
			assert.Equal(t, want, got, "write %d", i)
		}
	})

	t.Run("EmptyPayloadIsNotMissing", func(t *testing.T) {
		s := factory(t)
		pos := region.ChunkPos{X: 0, Z: 0}

		require.NoError(t, s.Write(t.Context(), pos, []byte{}))
		got, err := s.Read(t.Context(), pos)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("NilWriteDeletes", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		pos := region.ChunkPos{X: 12, Z: -40}

		require.NoError(t, s.Write(ctx, pos, []byte("payload")))
		require.NoError(t, s.Write(ctx, pos, nil))

		got, err := s.Read(ctx, pos)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		pos := region.ChunkPos{X: -5, Z: 5}

		require.NoError(t, s.Delete(ctx, pos), "deleting a never written payload")
		require.NoError(t, s.Write(ctx, pos, []byte("x")))
		require.NoError(t, s.Delete(ctx, pos))
		require.NoError(t, s.Delete(ctx, pos))

		got, err := s.Read(ctx, pos)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("NegativeAndDistantCoordinates", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		positions := []region.ChunkPos{
			{X: -1, Z: -1},
			{X: -32, Z: -32},
			{X: -33, Z: 31},
			{X: 31, Z: -33},
			{X: 1_000_000, Z: -1_000_000},
		}

		for _, pos := range positions {
			require.NoError(t, s.Write(ctx, pos, []byte(pos.String())))
		}
		for _, pos := range positions {
			got, err := s.Read(ctx, pos)
			require.NoError(t, err)
			assert.Equal(t, pos.String(), string(got))
		}
	})

	t.Run("NeighboursAreIndependent", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		for x := int32(-2); x <= 2; x++ {
			for z := int32(-2); z <= 2; z++ {
				pos := region.ChunkPos{X: x, Z: z}
				require.NoError(t, s.Write(ctx, pos, []byte(fmt.Sprint(x, z))))
			}
		}
		require.NoError(t, s.Delete(ctx, region.ChunkPos{}))

		for x := int32(-2); x <= 2; x++ {
			for z := int32(-2); z <= 2; z++ {
				got, err := s.Read(ctx, region.ChunkPos{X: x, Z: z})
				require.NoError(t, err)
				if x == 0 && z == 0 {
					assert.Nil(t, got)
					continue
				}
				assert.Equal(t, fmt.Sprint(x, z), string(got))
			}
		}
	})
}
