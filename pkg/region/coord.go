package region

import (
	"fmt"
	"strconv"
	"strings"
)

// ChunkPos is the world coordinate of one chunk payload.
type ChunkPos struct {
	X int32
	Z int32
}

// String returns the coordinate as "(x, z)".
func (p ChunkPos) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Z)
}

// RegionPos identifies one region file.
type RegionPos struct {
	X int32
	Z int32
}

// String returns the coordinate as "r.x.z".
func (r RegionPos) String() string {
	return fmt.Sprintf("r.%d.%d", r.X, r.Z)
}

// Key packs the coordinate into a single 64-bit map key.
func (r RegionPos) Key() uint64 {
	return uint64(uint32(r.X))<<32 | uint64(uint32(r.Z))
}

// RegionPosFromKey is the inverse of RegionPos.Key.
func RegionPosFromKey(key uint64) RegionPos {
	return RegionPos{X: int32(uint32(key >> 32)), Z: int32(uint32(key))}
}

// FileName returns the region file name for the given extension.
func (r RegionPos) FileName(ext string) string {
	return fmt.Sprintf("r.%d.%d.%s", r.X, r.Z, ext)
}

// ParseFileName extracts the region coordinate from a file name of the form
// r.<x>.<z>.<ext>. It reports false for any other name.
func ParseFileName(name, ext string) (RegionPos, bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 4 || parts[0] != "r" || parts[3] != ext {
		return RegionPos{}, false
	}
	x, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return RegionPos{}, false
	}
	z, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return RegionPos{}, false
	}
	return RegionPos{X: int32(x), Z: int32(z)}, true
}

// externalFileName returns the sidecar name for an oversized payload.
func externalFileName(p ChunkPos, ext string) string {
	return fmt.Sprintf("c.%d.%d.%sc", p.X, p.Z, ext)
}

// floorDiv divides rounding towards negative infinity, so that chunk -1
// lands in region -1 rather than region 0.
func floorDiv(a, n int32) int32 {
	q := a / n
	if a%n != 0 && (a < 0) != (n < 0) {
		q--
	}
	return q
}

func floorMod(a, n int32) int32 {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

// Region returns the region containing the chunk.
func (o Options) Region(p ChunkPos) RegionPos {
	n := int32(o.regionSize())
	return RegionPos{X: floorDiv(p.X, n), Z: floorDiv(p.Z, n)}
}

// Slot returns the header slot index of the chunk inside its region.
func (o Options) Slot(p ChunkPos) int {
	n := int32(o.regionSize())
	return int(floorMod(p.X, n) + floorMod(p.Z, n)*n)
}

// Chunk is the inverse of Region and Slot.
func (o Options) Chunk(r RegionPos, slot int) ChunkPos {
	n := int32(o.regionSize())
	s := int32(slot)
	return ChunkPos{X: r.X*n + s%n, Z: r.Z*n + s/n}
}
