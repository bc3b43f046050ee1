// Package storetest is a conformance suite for store.ChunkStore
// implementations. Every backend runs it from its own tests:
//
//	func TestConformance(t *testing.T) {
//		storetest.RunConformanceSuite(t, func(t *testing.T) store.ChunkStore {
//			s := memory.New()
//			t.Cleanup(func() { _ = s.Close() })
//			return s
//		})
//	}
package storetest

import (
	"math/rand/v2"
	"testing"

	"github.com/marmos91/regionstore/pkg/store"
)

// StoreFactory creates a fresh ChunkStore for each test. It should register
// cleanup with t.Cleanup; the suite may close the store itself first.
type StoreFactory func(t *testing.T) store.ChunkStore

// RunConformanceSuite runs the full conformance test suite against the
// provided store factory. Each test gets a fresh store instance.
//
// The suite covers:
//   - ReadWrite: round trips across sizes, overwrite, delete, empty payloads
//   - Scan: streaming, early stop, callback errors
//   - Positions: enumeration and early stop
//   - Lifecycle: flush, idempotent close, use after close, concurrency
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("ReadWrite", func(t *testing.T) {
		runReadWriteTests(t, factory)
	})

	t.Run("Scan", func(t *testing.T) {
		runScanTests(t, factory)
	})

	t.Run("Positions", func(t *testing.T) {
		runPositionsTests(t, factory)
	})

	t.Run("Lifecycle", func(t *testing.T) {
		runLifecycleTests(t, factory)
	})
}

// Payload returns n pseudo-random bytes determined by seed. Random data
// does not compress, so sizes map predictably onto sectors.
func Payload(n int, seed uint64) []byte {
	r := rand.New(rand.NewPCG(seed, seed*31+7))
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(r.Uint32())
	}
	return out
}
