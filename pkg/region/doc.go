// Package region implements the region container file format.
//
// A region file stores the payloads of a fixed grid of chunk slots
// (RegionSize x RegionSize, 32x32 by default). Space inside the file is
// managed in fixed-size sectors (4096 bytes by default).
//
// File Format:
//
//	Header (HeaderSectors() sectors, 2 for the defaults):
//	  - Offsets: RegionSize² big-endian uint32, one per slot (row-major by Z)
//	      bits 31..8: sector offset of the payload run (0 = absent)
//	      bits  7..0: sector count of the payload run
//	  - Timestamps: RegionSize² big-endian uint32 Unix seconds of the last write
//
//	Payload run (Count sectors starting at Offset):
//	  - Length: uint32 big-endian, counts the scheme byte plus compressed bytes
//	  - Scheme: uint8 compression tag (1=gzip, 2=zlib, 3=none)
//	            high bit set = payload lives in an external sidecar file
//	  - Data: compressed bytes, zero padded to a whole number of sectors
//
// Write ordering:
// A rewritten payload is always placed in a freshly allocated run. The payload
// bytes are written first, the header entry second, and only then is the old
// run returned to the allocator. A crash at any point therefore leaves the
// header pointing at a complete payload.
//
// File names encode the region coordinate: r.<regionX>.<regionZ>.<ext>.
// Oversized payloads (more than MaxRunSectors sectors) are stored next to the
// region file in c.<chunkX>.<chunkZ>.<ext>c.
//
// A File is not safe for concurrent use; callers serialise access (see
// pkg/cache).
package region
