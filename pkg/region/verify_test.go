package region

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	t.Run("HealthyFile", func(t *testing.T) {
		path := regionPath(t)
		f := openFile(t, path, Options{})
		for slot := 0; slot < 10; slot++ {
			require.NoError(t, f.Write(slot, randomBytes(slot*1000, uint64(slot))))
		}
		require.NoError(t, f.Close())

		report, err := Verify(path, Options{})
		require.NoError(t, err)
		assert.True(t, report.OK(), "%v", report.Problems)
		assert.Equal(t, 10, report.Present)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		path := regionPath(t)
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		report, err := Verify(path, Options{})
		require.NoError(t, err)
		assert.True(t, report.OK())
		assert.Zero(t, report.Present)
	})

	t.Run("ReportsEveryDefect", func(t *testing.T) {
		path := regionPath(t)
		f := openFile(t, path, uncompressed())
		require.NoError(t, f.Write(0, randomBytes(9000, 1))) // [2,5)
		require.NoError(t, f.Write(1, randomBytes(100, 2)))  // [5,6)
		require.NoError(t, f.Write(2, randomBytes(100, 3)))  // [6,7)
		require.NoError(t, f.Close())

		var entry [4]byte
		binary.BigEndian.PutUint32(entry[:], SectorRun{Offset: 4, Count: 1}.pack())
		patchFile(t, path, 4, entry[:]) // slot 1 overlaps slot 0
		patchFile(t, path, 6*DefaultSectorSize+4, []byte{77})

		report, err := Verify(path, uncompressed())
		require.NoError(t, err)
		require.Len(t, report.Problems, 2)
		assert.Equal(t, ProblemOverlap, report.Problems[0].Kind)
		assert.Equal(t, 1, report.Problems[0].Slot)
		assert.Equal(t, ProblemPayload, report.Problems[1].Kind)
		assert.Equal(t, 2, report.Problems[1].Slot)
	})

	t.Run("Truncated", func(t *testing.T) {
		path := regionPath(t)
		require.NoError(t, os.WriteFile(path, make([]byte, 10), 0o644))

		report, err := Verify(path, Options{})
		require.NoError(t, err)
		require.Len(t, report.Problems, 1)
		assert.Equal(t, ProblemTruncated, report.Problems[0].Kind)
	})

	t.Run("DoesNotModifyFile", func(t *testing.T) {
		path := regionPath(t)
		f := openFile(t, path, Options{})
		require.NoError(t, f.Write(0, []byte("x")))
		require.NoError(t, f.Close())

		before, err := os.ReadFile(path)
		require.NoError(t, err)
		_, err = Verify(path, Options{})
		require.NoError(t, err)
		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}
