package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/marmos91/regionstore/cmd/regionstore/cmdutil"
	"github.com/marmos91/regionstore/internal/bytesize"
	"github.com/marmos91/regionstore/internal/cli/output"
	"github.com/marmos91/regionstore/pkg/config"
	"github.com/marmos91/regionstore/pkg/region"
	"github.com/marmos91/regionstore/pkg/store"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <regionX> <regionZ>",
	Short: "Show the slot table of a region file",
	Long: `Show the header of one region file: every present slot with its chunk
coordinate, sector run, modification time, and whether the payload lives
in an external sidecar file.

The region file is never created by this command.

Examples:
  regionstore inspect 0 0
  regionstore inspect -o json -- -1 2`,
	Args: cobra.ExactArgs(2),
	RunE: runInspect,
}

type slotInfo struct {
	Slot     int       `json:"slot" yaml:"slot"`
	X        int32     `json:"x" yaml:"x"`
	Z        int32     `json:"z" yaml:"z"`
	Offset   uint32    `json:"offset" yaml:"offset"`
	Sectors  uint32    `json:"sectors" yaml:"sectors"`
	Modified time.Time `json:"modified,omitzero" yaml:"modified,omitempty"`
	External bool      `json:"external,omitempty" yaml:"external,omitempty"`
}

type regionInfo struct {
	Region      string     `json:"region" yaml:"region"`
	Path        string     `json:"path" yaml:"path"`
	Size        int64      `json:"size" yaml:"size"`
	Chunks      int        `json:"chunks" yaml:"chunks"`
	EndSector   uint32     `json:"end_sector" yaml:"end_sector"`
	FreeSectors uint32     `json:"free_sectors" yaml:"free_sectors"`
	Slots       []slotInfo `json:"slots" yaml:"slots"`
}

func (r *regionInfo) Headers() []string {
	return []string{"SLOT", "CHUNK", "OFFSET", "SECTORS", "MODIFIED", "EXTERNAL"}
}

func (r *regionInfo) Rows() [][]string {
	rows := make([][]string, 0, len(r.Slots))
	for _, s := range r.Slots {
		modified := "-"
		if !s.Modified.IsZero() {
			modified = s.Modified.Format(time.RFC3339)
		}
		external := ""
		if s.External {
			external = "yes"
		}
		rows = append(rows, []string{
			strconv.Itoa(s.Slot),
			region.ChunkPos{X: s.X, Z: s.Z}.String(),
			strconv.FormatUint(uint64(s.Offset), 10),
			strconv.FormatUint(uint64(s.Sectors), 10),
			modified,
			external,
		})
	}
	return rows
}

func (r *regionInfo) summary() [][2]string {
	return [][2]string{
		{"Region", r.Region},
		{"Path", r.Path},
		{"Size", bytesize.ByteSize(r.Size).String()},
		{"Chunks", strconv.Itoa(r.Chunks)},
		{"End sector", strconv.FormatUint(uint64(r.EndSector), 10)},
		{"Free sectors", strconv.FormatUint(uint64(r.FreeSectors), 10)},
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	rpos, err := cmdutil.ParseRegionPos(args)
	if err != nil {
		return err
	}

	p, err := cmdutil.Printer(cmd)
	if err != nil {
		return err
	}

	var info *regionInfo
	err = cmdutil.WithRegionStore(cmd, func(ctx context.Context, cfg *config.Config, s *store.RegionStore) error {
		found, err := s.Inspect(ctx, rpos, func(f *region.File) error {
			var derr error
			info, derr = describeRegion(rpos, f)
			return derr
		})
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("region file %s does not exist in %s", rpos.FileName(s.Options().Extension), s.Dir())
		}
		return nil
	})
	if err != nil {
		return err
	}

	if p.Format() == output.FormatTable {
		if err := output.PrintKeyValues(p.Writer(), info.summary()); err != nil {
			return err
		}
		if len(info.Slots) == 0 {
			return nil
		}
		p.Printf("\n")
	}
	return p.Print(info)
}

func describeRegion(rpos region.RegionPos, f *region.File) (*regionInfo, error) {
	entries, err := f.Entries()
	if err != nil {
		return nil, err
	}

	opts := f.Options()
	info := &regionInfo{
		Region:      rpos.String(),
		Path:        f.Path(),
		Size:        f.Size(),
		Chunks:      len(entries),
		EndSector:   f.Allocator().End(),
		FreeSectors: f.Allocator().FreeSectors(),
		Slots:       make([]slotInfo, 0, len(entries)),
	}
	for _, e := range entries {
		pos := opts.Chunk(rpos, e.Slot)
		si := slotInfo{
			Slot:     e.Slot,
			X:        pos.X,
			Z:        pos.Z,
			Offset:   e.Run.Offset,
			Sectors:  e.Run.Count,
			Modified: e.Modified,
		}
		if path := f.ExternalPath(e.Slot); path != "" {
			if _, err := os.Stat(path); err == nil {
				si.External = true
			}
		}
		info.Slots = append(info.Slots, si)
	}
	return info, nil
}
