package cache

import (
	"errors"
	"sync"

	"github.com/marmos91/regionstore/pkg/region"
)

// ============================================================================
// Errors
// ============================================================================

var (
	// ErrCacheClosed is returned by every operation after CloseAll.
	ErrCacheClosed = errors.New("cache is closed")

	// ErrRegionNotFound is returned by Do with create=false when the region
	// file does not exist.
	ErrRegionNotFound = errors.New("region file not found")
)

// ============================================================================
// Configuration
// ============================================================================

// DefaultCapacity is the number of region files kept open when Config leaves
// Capacity unset.
const DefaultCapacity = 256

// Eviction reasons reported to Metrics.
const (
	ReasonCapacity = "capacity"
	ReasonClose    = "close"
	ReasonManual   = "manual"
)

// OpenFunc opens or creates the region file at path.
type OpenFunc func(path string, opts region.Options) (*region.File, error)

// Config configures a Cache.
type Config struct {
	// Dir holds the region files. It must exist.
	Dir string

	// Capacity bounds the number of simultaneously open region files.
	// Zero means DefaultCapacity.
	Capacity int

	// Options are passed to every opened region file.
	Options region.Options

	// Metrics is optional.
	Metrics Metrics

	// Open replaces region.Open. Used by tests to inject failing handles.
	Open OpenFunc
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Open      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// entry owns one open region file. mu serialises every use of file,
// including the close performed by eviction.
type entry struct {
	mu     sync.Mutex
	pos    region.RegionPos
	file   *region.File
	closed bool
}
