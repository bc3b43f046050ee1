package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/marmos91/regionstore/cmd/regionstore/cmdutil"
	"github.com/marmos91/regionstore/internal/bytesize"
	"github.com/marmos91/regionstore/internal/cli/output"
	"github.com/marmos91/regionstore/pkg/region"
	"github.com/marmos91/regionstore/pkg/store"
	"github.com/spf13/cobra"
)

var (
	scanSizes bool
	scanLimit int
)

var scanCmd = &cobra.Command{
	Use:     "scan",
	Aliases: []string{"ls"},
	Short:   "List stored chunks",
	Long: `List the coordinate of every chunk that holds a payload.

Examples:
  # List every chunk
  regionstore scan

  # Include payload sizes, as JSON
  regionstore scan --sizes -o json`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanSizes, "sizes", false, "Read every payload to report its size")
	scanCmd.Flags().IntVar(&scanLimit, "limit", 0, "Stop after this many chunks (0 = no limit)")
}

// errScanLimit stops the walk once --limit chunks were collected.
var errScanLimit = errors.New("scan limit reached")

type chunkRow struct {
	X    int32  `json:"x" yaml:"x"`
	Z    int32  `json:"z" yaml:"z"`
	Size *int64 `json:"size,omitempty" yaml:"size,omitempty"`
}

type chunkList []chunkRow

func (l chunkList) Headers() []string {
	if len(l) > 0 && l[0].Size != nil {
		return []string{"X", "Z", "SIZE"}
	}
	return []string{"X", "Z"}
}

func (l chunkList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, c := range l {
		row := []string{strconv.Itoa(int(c.X)), strconv.Itoa(int(c.Z))}
		if c.Size != nil {
			row = append(row, bytesize.ByteSize(*c.Size).String())
		}
		rows = append(rows, row)
	}
	return rows
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanLimit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	p, err := cmdutil.Printer(cmd)
	if err != nil {
		return err
	}

	var list chunkList
	err = cmdutil.WithStore(cmd, func(ctx context.Context, s store.ChunkStore) error {
		err := s.Positions(ctx, func(pos region.ChunkPos) error {
			row := chunkRow{X: pos.X, Z: pos.Z}
			if scanSizes {
				data, err := s.Read(ctx, pos)
				if err != nil {
					return fmt.Errorf("read chunk %s: %w", pos, err)
				}
				n := int64(len(data))
				row.Size = &n
			}
			list = append(list, row)
			if scanLimit > 0 && len(list) >= scanLimit {
				return errScanLimit
			}
			return nil
		})
		if errors.Is(err, errScanLimit) {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].X != list[j].X {
			return list[i].X < list[j].X
		}
		return list[i].Z < list[j].Z
	})

	if len(list) == 0 && p.Format() == output.FormatTable {
		p.Warning("No chunks stored")
		return nil
	}
	if list == nil {
		list = chunkList{}
	}
	return p.Print(list)
}
