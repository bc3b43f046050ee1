package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/regionstore/cmd/regionstore/cmdutil"
	"github.com/marmos91/regionstore/internal/cli/prompt"
	"github.com/marmos91/regionstore/pkg/store"
	"github.com/spf13/cobra"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:     "delete <x> <z>",
	Aliases: []string{"rm"},
	Short:   "Delete a chunk payload",
	Long: `Delete the payload stored at a chunk coordinate.

Deleting a chunk that holds no payload is a no-op. You will be asked for
confirmation unless --force is given.

Examples:
  regionstore delete -- 3 -7
  regionstore delete --force -- 3 -7`,
	Args: cobra.ExactArgs(2),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	pos, err := cmdutil.ParseChunkPos(args)
	if err != nil {
		return err
	}

	p, err := cmdutil.Printer(cmd)
	if err != nil {
		return err
	}

	ok, err := prompt.Confirmer{}.ConfirmWithForce(fmt.Sprintf("Delete chunk %s", pos), deleteForce)
	if err != nil {
		if prompt.IsAborted(err) {
			p.Warning("Aborted")
			return nil
		}
		return err
	}
	if !ok {
		p.Warning("Aborted")
		return nil
	}

	return cmdutil.WithStore(cmd, func(ctx context.Context, s store.ChunkStore) error {
		if err := s.Delete(ctx, pos); err != nil {
			return err
		}
		if err := s.Flush(ctx); err != nil {
			return err
		}
		p.Success(fmt.Sprintf("Deleted chunk %s", pos))
		return nil
	})
}
