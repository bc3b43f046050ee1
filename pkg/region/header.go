package region

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Entry is the header state of one slot.
type Entry struct {
	Run      SectorRun
	Modified time.Time
}

// SlotEntry pairs a slot index with its header entry.
type SlotEntry struct {
	Slot int
	Entry
}

// header is the in-memory copy of the offset and timestamp tables.
type header struct {
	runs       []SectorRun
	timestamps []uint32
}

func newHeader(slots int) *header {
	return &header{
		runs:       make([]SectorRun, slots),
		timestamps: make([]uint32, slots),
	}
}

func (h *header) slots() int { return len(h.runs) }

// encode renders both tables into a buffer of size bytes. size must cover
// the tables; the remainder is zero padding.
func (h *header) encode(size int) []byte {
	n := h.slots()
	buf := make([]byte, size)
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint32(buf[i*entrySize:], h.runs[i].pack())
		binary.BigEndian.PutUint32(buf[(n+i)*entrySize:], h.timestamps[i])
	}
	return buf
}

// decodeHeader parses the offset and timestamp tables. It only checks the
// buffer length; layout problems are reported by check.
func decodeHeader(buf []byte, slots int) (*header, error) {
	if len(buf) < 2*entrySize*slots {
		return nil, corruptHeader("truncated: %d bytes, need %d", len(buf), 2*entrySize*slots)
	}
	h := newHeader(slots)
	for i := 0; i < slots; i++ {
		h.runs[i] = unpackRun(binary.BigEndian.Uint32(buf[i*entrySize:]))
		h.timestamps[i] = binary.BigEndian.Uint32(buf[(slots+i)*entrySize:])
	}
	return h, nil
}

// ProblemKind classifies a header or payload defect.
type ProblemKind string

const (
	ProblemEmptyRun  ProblemKind = "empty-run"
	ProblemInHeader  ProblemKind = "in-header"
	ProblemOverlap   ProblemKind = "overlap"
	ProblemPastEOF   ProblemKind = "past-eof"
	ProblemPayload   ProblemKind = "payload"
	ProblemSidecar   ProblemKind = "sidecar"
	ProblemTruncated ProblemKind = "truncated"
)

// Problem describes one defect found in a region file.
type Problem struct {
	Slot   int         `json:"slot" yaml:"slot"`
	Run    SectorRun   `json:"run" yaml:"run"`
	Kind   ProblemKind `json:"kind" yaml:"kind"`
	Detail string      `json:"detail" yaml:"detail"`
}

func (p Problem) String() string {
	return fmt.Sprintf("slot %d %v: %s: %s", p.Slot, p.Run, p.Kind, p.Detail)
}

// fatal reports whether the problem prevents a consistent allocator rebuild.
func (p Problem) fatal() bool {
	switch p.Kind {
	case ProblemEmptyRun, ProblemInHeader, ProblemOverlap:
		return true
	}
	return false
}

// replay reserves every present run in a fresh allocator and reports layout
// problems. fileSectors is the number of whole or partial sectors on disk.
func (h *header) replay(headerSectors, fileSectors uint32) (*SectorAllocator, []Problem) {
	alloc := NewSectorAllocator(headerSectors)
	var problems []Problem

	for slot, raw := range h.runs {
		switch {
		case raw.Offset == 0 && raw.Count == 0:
			continue
		case raw.Count == 0:
			problems = append(problems, Problem{Slot: slot, Run: raw, Kind: ProblemEmptyRun,
				Detail: "offset set with zero sector count"})
			continue
		case raw.Offset < headerSectors:
			problems = append(problems, Problem{Slot: slot, Run: raw, Kind: ProblemInHeader,
				Detail: fmt.Sprintf("run starts inside header sectors [0, %d)", headerSectors)})
			continue
		}

		if err := alloc.Reserve(raw); err != nil {
			problems = append(problems, Problem{Slot: slot, Run: raw, Kind: ProblemOverlap, Detail: err.Error()})
			continue
		}
		if raw.End() > fileSectors {
			problems = append(problems, Problem{Slot: slot, Run: raw, Kind: ProblemPastEOF,
				Detail: fmt.Sprintf("run ends at sector %d, file has %d", raw.End(), fileSectors)})
		}
	}
	return alloc, problems
}

func unixTime(ts uint32) time.Time {
	return time.Unix(int64(ts), 0)
}
