package region

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/regionstore/pkg/bufpool"
)

// Report is the result of Verify.
type Report struct {
	Path        string    `json:"path" yaml:"path"`
	Size        int64     `json:"size" yaml:"size"`
	Present     int       `json:"present" yaml:"present"`
	UsedSectors uint32    `json:"used_sectors" yaml:"used_sectors"`
	FreeSectors uint32    `json:"free_sectors" yaml:"free_sectors"`
	Problems    []Problem `json:"problems,omitempty" yaml:"problems,omitempty"`
}

// OK reports whether no problems were found.
func (r *Report) OK() bool { return len(r.Problems) == 0 }

// Verify checks a region file without modifying it. It replays the header,
// reports layout problems, and decodes every payload whose run is sound.
// The returned error covers failures to inspect the file at all; defects
// inside it are listed in the report.
func Verify(path string, opts Options) (*Report, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	fi, err := fh.Stat()
	if err != nil {
		return nil, err
	}
	report := &Report{Path: path, Size: fi.Size()}
	if fi.Size() == 0 {
		return report, nil
	}

	tables := 2 * entrySize * opts.Slots()
	if fi.Size() < int64(tables) {
		report.Problems = append(report.Problems, Problem{Slot: -1, Kind: ProblemTruncated,
			Detail: fmt.Sprintf("file is %d bytes, header tables need %d", fi.Size(), tables)})
		return report, nil
	}

	buf := make([]byte, tables)
	if _, err := fh.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	hdr, err := decodeHeader(buf, opts.Slots())
	if err != nil {
		return nil, err
	}

	ss := int64(opts.SectorSize)
	fileSectors := uint32((fi.Size() + ss - 1) / ss)
	alloc, problems := hdr.replay(uint32(opts.HeaderSectors()), fileSectors)
	report.Problems = append(report.Problems, problems...)
	report.FreeSectors = alloc.FreeSectors()

	skip := make(map[int]bool, len(problems))
	for _, p := range problems {
		skip[p.Slot] = true
	}

	// Decode through a read-only File that shares the replayed state.
	f := &File{
		h:      readOnlyHandle{fh},
		path:   path,
		dir:    filepath.Dir(path),
		opts:   opts,
		header: hdr,
		alloc:  alloc,
		size:   fi.Size(),
	}
	f.pos, f.hasPos = ParseFileName(filepath.Base(path), opts.Extension)
	f.pool = bufpool.ForSector(opts.SectorSize)

	for slot, run := range hdr.runs {
		if run.IsZero() || skip[slot] {
			continue
		}
		report.Present++
		report.UsedSectors += run.Count

		_, err := f.Scan(slot, func([]byte) error { return nil })
		if err == nil {
			continue
		}
		kind := ProblemPayload
		var se *SlotError
		if errors.As(err, &se) && f.isExternal(run) {
			kind = ProblemSidecar
		}
		report.Problems = append(report.Problems, Problem{Slot: slot, Run: run, Kind: kind, Detail: err.Error()})
	}
	return report, nil
}

// readOnlyHandle rejects writes so Verify can never modify a file.
type readOnlyHandle struct{ *os.File }

func (readOnlyHandle) WriteAt([]byte, int64) (int, error) {
	return 0, errors.New("region: verify handle is read-only")
}
