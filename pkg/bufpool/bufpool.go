// Package bufpool provides tiered buffer pools sized in region sectors.
//
// Region payload runs are whole multiples of the sector size and never exceed
// 255 sectors in place, so three tiers cover every read and write:
//   - Small: one sector, for payload prefixes and tiny chunks
//   - Medium: 16 sectors, for typical compressed chunk payloads
//   - Large: 256 sectors, enough for the largest in-place run
//
// Buffers larger than the large tier are allocated directly and not pooled.
//
// All operations are safe for concurrent use via sync.Pool.
//
// Usage:
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sync"
)

// Default size classes, expressed for the default 4 KiB sector.
const (
	DefaultSectorSize = 4 << 10

	// MediumSectors is the sector count of a medium buffer.
	MediumSectors = 16

	// LargeSectors is the sector count of a large buffer.
	LargeSectors = 256

	DefaultSmallSize  = DefaultSectorSize
	DefaultMediumSize = DefaultSectorSize * MediumSectors
	DefaultLargeSize  = DefaultSectorSize * LargeSectors
)

// Pool manages byte slice pools organised by size class.
type Pool struct {
	small      sync.Pool
	medium     sync.Pool
	large      sync.Pool
	smallSize  int
	mediumSize int
	largeSize  int
}

// Config holds the configuration of a custom pool.
type Config struct {
	// SectorSize derives all three classes when the explicit sizes are zero.
	SectorSize int

	SmallSize  int
	MediumSize int
	LargeSize  int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return ForSectorSize(DefaultSectorSize)
}

// ForSectorSize returns a configuration whose classes are 1, MediumSectors and
// LargeSectors sectors of the given size.
func ForSectorSize(sectorSize int) Config {
	if sectorSize <= 0 {
		sectorSize = DefaultSectorSize
	}
	return Config{
		SectorSize: sectorSize,
		SmallSize:  sectorSize,
		MediumSize: sectorSize * MediumSectors,
		LargeSize:  sectorSize * LargeSectors,
	}
}

// NewPool creates a new buffer pool. A nil config uses DefaultConfig.
func NewPool(cfg *Config) *Pool {
	if cfg == nil {
		defaultCfg := DefaultConfig()
		cfg = &defaultCfg
	}

	derived := ForSectorSize(cfg.SectorSize)
	if cfg.SmallSize <= 0 {
		cfg.SmallSize = derived.SmallSize
	}
	if cfg.MediumSize <= 0 {
		cfg.MediumSize = derived.MediumSize
	}
	if cfg.LargeSize <= 0 {
		cfg.LargeSize = derived.LargeSize
	}

	p := &Pool{
		smallSize:  cfg.SmallSize,
		mediumSize: cfg.MediumSize,
		largeSize:  cfg.LargeSize,
	}

	p.small = sync.Pool{
		New: func() any {
			buf := make([]byte, p.smallSize)
			return &buf
		},
	}
	p.medium = sync.Pool{
		New: func() any {
			buf := make([]byte, p.mediumSize)
			return &buf
		},
	}
	p.large = sync.Pool{
		New: func() any {
			buf := make([]byte, p.largeSize)
			return &buf
		},
	}

	return p
}

// Get returns a byte slice of exactly size bytes, backed by a pooled buffer
// when one of the classes fits. The contents are not zeroed.
//
// The caller must call Put when finished with the buffer.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= p.smallSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= p.mediumSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= p.largeSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	buf := *bufPtr
	return buf[:size]
}

// GetZeroed is Get followed by clearing the returned slice.
func (p *Pool) GetZeroed(size int) []byte {
	buf := p.Get(size)
	clear(buf)
	return buf
}

// Put returns a buffer obtained from Get. Buffers whose capacity does not
// match a class are left to the garbage collector.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}

	fullBuf := buf[:cap(buf)]
	switch cap(buf) {
	case p.smallSize:
		p.small.Put(&fullBuf)
	case p.mediumSize:
		p.medium.Put(&fullBuf)
	case p.largeSize:
		p.large.Put(&fullBuf)
	}
}

// SmallSize returns the capacity of the small class.
func (p *Pool) SmallSize() int { return p.smallSize }

// =============================================================================
// Global Pool
// =============================================================================

// globalPool serves callers that use the default sector size.
var globalPool = NewPool(nil)

// Get returns a byte slice of size bytes from the global pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}

// =============================================================================
// Per-sector-size pools
// =============================================================================

var (
	sectorPoolsMu sync.Mutex
	sectorPools   = map[int]*Pool{DefaultSectorSize: globalPool}
)

// ForSector returns the shared pool for the given sector size, creating it on
// first use. Region files with the same sector size share one pool.
func ForSector(sectorSize int) *Pool {
	sectorPoolsMu.Lock()
	defer sectorPoolsMu.Unlock()

	if p, ok := sectorPools[sectorSize]; ok {
		return p
	}
	cfg := ForSectorSize(sectorSize)
	p := NewPool(&cfg)
	sectorPools[sectorSize] = p
	return p
}
