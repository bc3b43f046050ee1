package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/marmos91/regionstore/cmd/regionstore/cmdutil"
	"github.com/marmos91/regionstore/pkg/store"
	"github.com/spf13/cobra"
)

var getFile string

var getCmd = &cobra.Command{
	Use:   "get <x> <z>",
	Short: "Print a chunk payload",
	Long: `Stream the decompressed payload of a chunk to stdout or to a file.

Put "--" before the coordinates when one of them is negative.

Examples:
  # Print the payload of chunk (3, -7)
  regionstore get -- 3 -7 > chunk.bin

  # Write it to a file instead
  regionstore get --file chunk.bin -- 3 -7`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVarP(&getFile, "file", "f", "", "Write the payload to this file instead of stdout")
}

func runGet(cmd *cobra.Command, args []string) error {
	pos, err := cmdutil.ParseChunkPos(args)
	if err != nil {
		return err
	}

	return cmdutil.WithStore(cmd, func(ctx context.Context, s store.ChunkStore) error {
		var (
			w    io.Writer = cmd.OutOrStdout()
			file *os.File
		)
		if getFile != "" {
			f, err := os.Create(getFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			file, w = f, f
		}

		found, err := s.Scan(ctx, pos, func(p []byte) error {
			_, werr := w.Write(p)
			return werr
		})

		if file != nil {
			err = errors.Join(err, file.Close())
			if err != nil || !found {
				_ = os.Remove(getFile)
			}
		}
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no payload stored at chunk %s", pos)
		}
		return nil
	})
}
