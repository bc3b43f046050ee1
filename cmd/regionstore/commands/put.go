package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/marmos91/regionstore/cmd/regionstore/cmdutil"
	"github.com/marmos91/regionstore/internal/bytesize"
	"github.com/marmos91/regionstore/pkg/store"
	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <x> <z> [file]",
	Short: "Store a chunk payload",
	Long: `Store a payload at a chunk coordinate, replacing any previous one.

The payload is read from file, or from stdin when file is omitted or "-".
Put "--" before the coordinates when one of them is negative.

Examples:
  regionstore put -- 3 -7 chunk.bin
  cat chunk.bin | regionstore put -- 3 -7`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runPut,
}

func runPut(cmd *cobra.Command, args []string) error {
	pos, err := cmdutil.ParseChunkPos(args)
	if err != nil {
		return err
	}

	data, err := readPayload(cmd, args[2:])
	if err != nil {
		return err
	}

	return cmdutil.WithStore(cmd, func(ctx context.Context, s store.ChunkStore) error {
		if err := s.Write(ctx, pos, data); err != nil {
			return err
		}
		if err := s.Flush(ctx); err != nil {
			return err
		}

		p, err := cmdutil.Printer(cmd)
		if err != nil {
			return err
		}
		p.Success(fmt.Sprintf("Stored %s at chunk %s", bytesize.ByteSize(len(data)), pos))
		return nil
	})
}

// readPayload reads the named file, or stdin. The result is never nil, so
// an empty input stores an empty payload rather than deleting.
func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}
