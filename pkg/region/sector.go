package region

import (
	"fmt"
	"sort"
)

// SectorRun is a contiguous range of sectors. The zero value means absent.
type SectorRun struct {
	Offset uint32 `json:"offset" yaml:"offset"`
	Count  uint32 `json:"count" yaml:"count"`
}

// IsZero reports whether the run describes no sectors.
func (r SectorRun) IsZero() bool { return r.Count == 0 }

// End returns the first sector past the run.
func (r SectorRun) End() uint32 { return r.Offset + r.Count }

// Overlaps reports whether the two runs share at least one sector.
func (r SectorRun) Overlaps(o SectorRun) bool {
	if r.IsZero() || o.IsZero() {
		return false
	}
	return r.Offset < o.End() && o.Offset < r.End()
}

func (r SectorRun) String() string {
	return fmt.Sprintf("[%d+%d]", r.Offset, r.Count)
}

func (r SectorRun) pack() uint32 {
	return r.Offset<<8 | r.Count&0xff
}

func unpackRun(v uint32) SectorRun {
	return SectorRun{Offset: v >> 8, Count: v & 0xff}
}

// SectorAllocator hands out sector runs inside one region file.
//
// It keeps a sorted, coalesced list of free runs below end. Sectors at or past
// end are unused. Sectors below reserved hold the header and are never handed
// out. The free list never contains a run that touches end.
type SectorAllocator struct {
	reserved uint32
	end      uint32
	free     []SectorRun
}

// NewSectorAllocator returns an allocator for a file whose first reserved
// sectors hold the header.
func NewSectorAllocator(reserved uint32) *SectorAllocator {
	return &SectorAllocator{reserved: reserved, end: reserved}
}

// End returns the first sector past the used area.
func (a *SectorAllocator) End() uint32 { return a.end }

// FreeRuns returns a copy of the free list, sorted by offset.
func (a *SectorAllocator) FreeRuns() []SectorRun {
	out := make([]SectorRun, len(a.free))
	copy(out, a.free)
	return out
}

// FreeSectors returns the total number of free sectors below End.
func (a *SectorAllocator) FreeSectors() uint32 {
	var n uint32
	for _, r := range a.free {
		n += r.Count
	}
	return n
}

// Allocate returns a run of exactly n sectors: the lowest-offset free run that
// fits, or else fresh sectors at the end of the used area. n must be positive.
func (a *SectorAllocator) Allocate(n int) (SectorRun, error) {
	if n <= 0 {
		panic(fmt.Sprintf("region: allocate of %d sectors", n))
	}
	need := uint32(n)

	for i, f := range a.free {
		if f.Count < need {
			continue
		}
		run := SectorRun{Offset: f.Offset, Count: need}
		if f.Count == need {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = SectorRun{Offset: f.Offset + need, Count: f.Count - need}
		}
		return run, nil
	}

	if uint64(a.end)+uint64(need) > MaxSectorOffset+1 {
		return SectorRun{}, fmt.Errorf("%w: need %d sectors at %d", ErrRegionFull, need, a.end)
	}
	run := SectorRun{Offset: a.end, Count: need}
	a.end += need
	return run, nil
}

// Free returns a run to the allocator. Freeing the zero run is a no-op.
// Freeing sectors that are already free or inside the header panics.
func (a *SectorAllocator) Free(run SectorRun) {
	if run.IsZero() {
		return
	}
	if run.Offset < a.reserved || run.End() > a.end {
		panic(fmt.Sprintf("region: free of run %v outside used area [%d, %d)", run, a.reserved, a.end))
	}

	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].Offset >= run.Offset })
	if i < len(a.free) && a.free[i].Overlaps(run) || i > 0 && a.free[i-1].Overlaps(run) {
		panic(fmt.Sprintf("region: double free of run %v", run))
	}

	mergePrev := i > 0 && a.free[i-1].End() == run.Offset
	mergeNext := i < len(a.free) && run.End() == a.free[i].Offset

	switch {
	case mergePrev && mergeNext:
		a.free[i-1].Count += run.Count + a.free[i].Count
		a.free = append(a.free[:i], a.free[i+1:]...)
	case mergePrev:
		a.free[i-1].Count += run.Count
	case mergeNext:
		a.free[i] = SectorRun{Offset: run.Offset, Count: run.Count + a.free[i].Count}
	default:
		a.free = append(a.free, SectorRun{})
		copy(a.free[i+1:], a.free[i:])
		a.free[i] = run
	}

	if last := len(a.free) - 1; last >= 0 && a.free[last].End() == a.end {
		a.end = a.free[last].Offset
		a.free = a.free[:last]
	}
}

// Reserve marks an existing on-disk run as used. It is called for each header
// entry while a file is opened, in any order, and fails if the run overlaps
// the header or a run reserved earlier.
func (a *SectorAllocator) Reserve(run SectorRun) error {
	if run.IsZero() {
		return nil
	}
	if run.Offset < a.reserved {
		return fmt.Errorf("run %v overlaps header sectors [0, %d)", run, a.reserved)
	}

	if run.Offset >= a.end {
		if run.Offset > a.end {
			a.free = append(a.free, SectorRun{Offset: a.end, Count: run.Offset - a.end})
		}
		a.end = run.End()
		return nil
	}

	// The run starts inside the used area, so its head must sit in a free gap.
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].End() > run.Offset })
	if i == len(a.free) || a.free[i].Offset > run.Offset {
		return fmt.Errorf("run %v overlaps a reserved run", run)
	}
	f := a.free[i]
	// Gaps never touch end, so a run running past its gap hits a reserved run.
	if run.End() > f.End() {
		return fmt.Errorf("run %v overlaps a reserved run", run)
	}

	var pieces []SectorRun
	if run.Offset > f.Offset {
		pieces = append(pieces, SectorRun{Offset: f.Offset, Count: run.Offset - f.Offset})
	}
	if run.End() < f.End() {
		pieces = append(pieces, SectorRun{Offset: run.End(), Count: f.End() - run.End()})
	}

	rest := append(pieces, a.free[i+1:]...)
	a.free = append(a.free[:i], rest...)
	return nil
}
