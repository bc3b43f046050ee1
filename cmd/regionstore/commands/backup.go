package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/marmos91/regionstore/cmd/regionstore/cmdutil"
	"github.com/marmos91/regionstore/internal/bytesize"
	"github.com/marmos91/regionstore/internal/cli/output"
	"github.com/marmos91/regionstore/pkg/backup"
	"github.com/marmos91/regionstore/pkg/config"
	"github.com/marmos91/regionstore/pkg/metrics"
	"github.com/marmos91/regionstore/pkg/store"
	"github.com/spf13/cobra"
)

var (
	backupID      string
	backupTimeout time.Duration
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a snapshot of every region file to S3",
	Long: `Flush the region store and upload every region file, every external
payload file and a JSON manifest to the bucket of the backup section.

Objects are written under <prefix>/<snapshot-id>/. The manifest is written
last, so a snapshot without manifest.json is incomplete.

Examples:
  regionstore backup
  regionstore backup --id nightly-2026-10-15 -o json`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().StringVar(&backupID, "id", "", "Snapshot id (default: random UUID)")
	backupCmd.Flags().DurationVar(&backupTimeout, "timeout", 0, "Overall timeout (default: backup.timeout)")
}

type manifestView struct{ *backup.Manifest }

func (m manifestView) Headers() []string { return []string{"FILE", "SIZE", "CHUNKS", "SHA256"} }

func (m manifestView) Rows() [][]string {
	rows := make([][]string, 0, len(m.Files))
	for _, f := range m.Files {
		chunks := ""
		if f.Chunks > 0 {
			chunks = strconv.Itoa(f.Chunks)
		}
		rows = append(rows, []string{f.Name, bytesize.ByteSize(f.Size).String(), chunks, f.SHA256[:12]})
	}
	return rows
}

func runBackup(cmd *cobra.Command, args []string) error {
	p, err := cmdutil.Printer(cmd)
	if err != nil {
		return err
	}

	var manifest *backup.Manifest
	err = cmdutil.WithRegionStore(cmd, func(ctx context.Context, cfg *config.Config, s *store.RegionStore) error {
		timeout := cfg.Backup.Timeout
		if backupTimeout > 0 {
			timeout = backupTimeout
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		up, err := config.CreateUploader(ctx, cfg.Backup)
		if err != nil {
			return err
		}

		opts := backup.Options{
			Prefix:  cfg.Backup.Prefix,
			Bucket:  cfg.Backup.Bucket,
			Metrics: metrics.NewBackupMetrics(),
		}
		if backupID != "" {
			id := backupID
			opts.NewID = func() string { return id }
		}

		manifest, err = backup.Run(ctx, s, up, opts)
		return err
	})
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	if p.Format() != output.FormatTable {
		return p.Print(manifest)
	}
	if err := output.PrintKeyValues(p.Writer(), [][2]string{
		{"Snapshot", manifest.Snapshot},
		{"Created", manifest.CreatedAt.Format(time.RFC3339)},
		{"Files", strconv.Itoa(len(manifest.Files))},
		{"Bytes", bytesize.ByteSize(manifest.Bytes).String()},
	}); err != nil {
		return err
	}
	p.Printf("\n")
	return p.Print(manifestView{manifest})
}
