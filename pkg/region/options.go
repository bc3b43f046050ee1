package region

import (
	"fmt"
	"time"
)

// Format limits.
const (
	// DefaultRegionSize is the number of slots per region side.
	DefaultRegionSize = 32

	// DefaultSectorSize is the allocation unit in bytes.
	DefaultSectorSize = 4096

	// DefaultExtension is the region file extension.
	DefaultExtension = "mca"

	// MaxRunSectors is the largest run a header entry can describe.
	MaxRunSectors = 255

	// MaxSectorOffset is the largest sector offset a header entry can hold.
	MaxSectorOffset = 1<<24 - 1

	// MinSectorSize keeps the payload prefix inside the first sector.
	MinSectorSize = 64

	// MaxRegionSize bounds the header to a sane number of slots.
	MaxRegionSize = 1024

	entrySize  = 4
	prefixSize = 5
)

// Options configures a region file. The zero value of each field selects the
// default.
type Options struct {
	// RegionSize is the slot grid side length.
	RegionSize int

	// SectorSize is the allocation unit in bytes.
	SectorSize int

	// Compression is the scheme used for new writes. Reads honour whatever
	// scheme each payload was written with.
	Compression Scheme

	// SyncWrites syncs payload bytes before the header update and the
	// header after it.
	SyncWrites bool

	// Extension is the region file extension, without the dot.
	Extension string

	// Now supplies header timestamps. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the standard layout: 32x32 slots, 4 KiB sectors,
// zlib compression.
func DefaultOptions() Options {
	return Options{
		RegionSize:  DefaultRegionSize,
		SectorSize:  DefaultSectorSize,
		Compression: SchemeZlib,
		Extension:   DefaultExtension,
	}
}

// WithDefaults fills unset fields with their defaults.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.RegionSize == 0 {
		o.RegionSize = d.RegionSize
	}
	if o.SectorSize == 0 {
		o.SectorSize = d.SectorSize
	}
	if o.Compression == 0 {
		o.Compression = d.Compression
	}
	if o.Extension == "" {
		o.Extension = d.Extension
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Validate checks the options after defaults have been applied.
func (o Options) Validate() error {
	if o.RegionSize < 1 || o.RegionSize > MaxRegionSize {
		return fmt.Errorf("region size %d out of range [1, %d]", o.RegionSize, MaxRegionSize)
	}
	if o.SectorSize < MinSectorSize {
		return fmt.Errorf("sector size %d below minimum %d", o.SectorSize, MinSectorSize)
	}
	if _, ok := codecFor(o.Compression); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownScheme, o.Compression)
	}
	return nil
}

// Slots returns the number of slots in one region.
func (o Options) Slots() int {
	n := o.regionSize()
	return n * n
}

// HeaderSectors returns the number of sectors reserved for the header.
func (o Options) HeaderSectors() int {
	ss := o.sectorSize()
	return (2*entrySize*o.Slots() + ss - 1) / ss
}

// HeaderBytes returns the padded header size in bytes.
func (o Options) HeaderBytes() int {
	return o.HeaderSectors() * o.sectorSize()
}

// SectorsFor returns the number of sectors a payload record of the given
// compressed size occupies, prefix included.
func (o Options) SectorsFor(compressed int) int {
	ss := o.sectorSize()
	return (prefixSize + compressed + ss - 1) / ss
}

func (o Options) regionSize() int {
	if o.RegionSize <= 0 {
		return DefaultRegionSize
	}
	return o.RegionSize
}

func (o Options) sectorSize() int {
	if o.SectorSize <= 0 {
		return DefaultSectorSize
	}
	return o.SectorSize
}
