package storetest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/regionstore/pkg/region"
	"github.com/marmos91/regionstore/pkg/store"
)

func runScanTests(t *testing.T, factory StoreFactory) {
	t.Run("MatchesRead", func(t *testing.T) {
		s := factory(t)
		pos := region.ChunkPos{X: 3, Z: 9}
		want := Payload(50_000, 3)
		require.NoError(t, s.Write(t.Context(), pos, want))

		got, found, err := store.ScanAll(t.Context(), s, pos)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, want, got)
	})

	t.Run("Missing", func(t *testing.T) {
		s := factory(t)
		called := false
		found, err := s.Scan(t.Context(), region.ChunkPos{X: 1}, func([]byte) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.False(t, found)
		assert.False(t, called)
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		s := factory(t)
		pos := region.ChunkPos{X: 2}
		require.NoError(t, s.Write(t.Context(), pos, []byte{}))

		got, found, err := store.ScanAll(t.Context(), s, pos)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Empty(t, got)
	})

	t.Run("SkipRestStopsEarly", func(t *testing.T) {
		s := factory(t)
		pos := region.ChunkPos{X: -7, Z: 4}
		want := Payload(200_000, 9)
		require.NoError(t, s.Write(t.Context(), pos, want))

		calls := 0
		var first []byte
		found, err := s.Scan(t.Context(), pos, func(p []byte) error {
			calls++
			first = append(first, p...)
			return region.SkipRest
		})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 1, calls)
		assert.Equal(t, want[:len(first)], first)
	})

	t.Run("CallbackErrorPropagates", func(t *testing.T) {
		s := factory(t)
		pos := region.ChunkPos{X: 5}
		require.NoError(t, s.Write(t.Context(), pos, []byte("abc")))

		boom := errors.New("boom")
		_, err := s.Scan(t.Context(), pos, func([]byte) error { return boom })
		assert.ErrorIs(t, err, boom)

		// The payload is unaffected.
		got, err := s.Read(t.Context(), pos)
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), got)
	})
}
