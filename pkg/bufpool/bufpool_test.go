package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Size Class Tests
// ============================================================================

func TestSectorClasses(t *testing.T) {
	t.Run("OneSectorIsSmall", func(t *testing.T) {
		buf := Get(DefaultSectorSize)
		defer Put(buf)

		assert.Equal(t, DefaultSectorSize, len(buf))
		assert.Equal(t, DefaultSmallSize, cap(buf))
	})

	t.Run("TwoSectorsAreMedium", func(t *testing.T) {
		buf := Get(2 * DefaultSectorSize)
		defer Put(buf)

		assert.Equal(t, DefaultMediumSize, cap(buf))
	})

	t.Run("MaxRunFitsLarge", func(t *testing.T) {
		buf := Get(255 * DefaultSectorSize)
		defer Put(buf)

		assert.Equal(t, 255*DefaultSectorSize, len(buf))
		assert.Equal(t, DefaultLargeSize, cap(buf))
	})

	t.Run("OversizedIsNotPooled", func(t *testing.T) {
		buf := Get(DefaultLargeSize + 1)
		defer Put(buf)

		assert.Equal(t, len(buf), cap(buf))
	})

	t.Run("ZeroSize", func(t *testing.T) {
		buf := Get(0)
		defer Put(buf)

		assert.NotNil(t, buf)
		assert.Equal(t, DefaultSmallSize, cap(buf))
	})
}

func TestForSectorSize(t *testing.T) {
	cfg := ForSectorSize(512)
	assert.Equal(t, 512, cfg.SmallSize)
	assert.Equal(t, 512*MediumSectors, cfg.MediumSize)
	assert.Equal(t, 512*LargeSectors, cfg.LargeSize)

	assert.Equal(t, DefaultConfig(), ForSectorSize(0))
}

func TestForSectorSharesPools(t *testing.T) {
	assert.Same(t, globalPool, ForSector(DefaultSectorSize))

	p1 := ForSector(1024)
	p2 := ForSector(1024)
	assert.Same(t, p1, p2)
	assert.Equal(t, 1024, p1.SmallSize())
}

// ============================================================================
// Put and Reuse Tests
// ============================================================================

func TestPutAndReuse(t *testing.T) {
	t.Run("ReusesReturnedBuffer", func(t *testing.T) {
		buf1 := Get(1024)
		Put(buf1)

		buf2 := Get(1024)
		Put(buf2)

		assert.Equal(t, cap(buf1), cap(buf2))
	})

	t.Run("HandlesNilPut", func(t *testing.T) {
		require.NotPanics(t, func() { Put(nil) })
	})

	t.Run("HandlesForeignBuffer", func(t *testing.T) {
		require.NotPanics(t, func() { Put(make([]byte, 17)) })
	})

	t.Run("GetZeroedClearsReusedBuffer", func(t *testing.T) {
		pool := NewPool(&Config{SectorSize: 256})

		dirty := pool.Get(256)
		for i := range dirty {
			dirty[i] = 0xff
		}
		pool.Put(dirty)

		buf := pool.GetZeroed(200)
		defer pool.Put(buf)
		assert.Len(t, buf, 200)
		for _, b := range buf {
			require.Zero(t, b)
		}
	})
}

// ============================================================================
// Custom Pool Tests
// ============================================================================

func TestCustomPool(t *testing.T) {
	t.Run("ExplicitSizes", func(t *testing.T) {
		pool := NewPool(&Config{
			SmallSize:  1024,
			MediumSize: 8192,
			LargeSize:  65536,
		})

		small := pool.Get(500)
		assert.Equal(t, 1024, cap(small))
		pool.Put(small)

		medium := pool.Get(2000)
		assert.Equal(t, 8192, cap(medium))
		pool.Put(medium)

		large := pool.Get(10000)
		assert.Equal(t, 65536, cap(large))
		pool.Put(large)
	})

	t.Run("ZeroConfigUsesDefaults", func(t *testing.T) {
		pool := NewPool(&Config{})

		buf := pool.Get(100)
		assert.Equal(t, DefaultSmallSize, cap(buf))
		pool.Put(buf)
	})
}

// ============================================================================
// Concurrency Tests
// ============================================================================

func TestConcurrentGetAndPut(t *testing.T) {
	const numGoroutines = 10
	const iterations = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				buf := Get((id*DefaultSectorSize + j) % DefaultLargeSize)
				if len(buf) > 0 {
					buf[0] = byte(id)
				}
				Put(buf)
			}
		}(i)
	}

	wg.Wait()
}

func BenchmarkGetSector(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := Get(DefaultSectorSize)
		Put(buf)
	}
}
