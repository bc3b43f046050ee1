package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/regionstore/cmd/regionstore/cmdutil"
	"github.com/marmos91/regionstore/internal/logger"
	"github.com/marmos91/regionstore/pkg/config"
	"github.com/marmos91/regionstore/pkg/store"
	"github.com/spf13/cobra"
)

var (
	migrateTo          string
	migrateToPath      string
	migrateCompression string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy every chunk into another store",
	Long: `Copy every payload of the configured store into a second store.

The destination uses the same configuration except for its backend, its
path and, for region stores, its compression scheme. Existing payloads at
the same coordinates in the destination are replaced.

Examples:
  # Move a region directory into badger
  regionstore migrate --to badger --to-path /srv/world/chunks.db

  # Recompress a region directory with gzip
  regionstore migrate --to region --to-path /srv/world/region-gz --compression gzip`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "Destination backend (region|badger)")
	migrateCmd.Flags().StringVar(&migrateToPath, "to-path", "", "Destination directory")
	migrateCmd.Flags().StringVar(&migrateCompression, "compression", "", "Compression for a region destination (gzip|zlib|none)")
	_ = migrateCmd.MarkFlagRequired("to")
	_ = migrateCmd.MarkFlagRequired("to-path")
}

// destinationConfig derives the destination configuration from the source.
func destinationConfig(src *config.Config, backend, path, compression string) (*config.Config, error) {
	dst := *src
	dst.Storage.Backend = strings.ToLower(backend)
	switch dst.Storage.Backend {
	case store.BackendRegion:
		dst.Storage.Path = path
		if compression != "" {
			dst.Storage.Compression = strings.ToLower(compression)
		}
	case store.BackendBadger:
		dst.Badger.Path = path
		dst.Badger.InMemory = false
	default:
		return nil, fmt.Errorf("cannot migrate to backend %q (valid: region, badger)", backend)
	}
	if err := config.Validate(&dst); err != nil {
		return nil, fmt.Errorf("invalid destination: %w", err)
	}

	if dst.Storage.Backend == src.Storage.Backend && samePath(storePath(src), storePath(&dst)) {
		return nil, errors.New("source and destination are the same store")
	}
	return &dst, nil
}

func storePath(cfg *config.Config) string {
	if cfg.Storage.Backend == store.BackendBadger {
		return cfg.Badger.Path
	}
	return cfg.Storage.Path
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

func runMigrate(cmd *cobra.Command, args []string) error {
	p, err := cmdutil.Printer(cmd)
	if err != nil {
		return err
	}

	ctx := cmdutil.Context(cmd)
	sess, err := cmdutil.Start(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close(context.Background()) }()

	if sess.Config.Storage.Backend == store.BackendMemory {
		return errors.New("the memory backend holds no data to migrate")
	}
	dstCfg, err := destinationConfig(sess.Config, migrateTo, migrateToPath, migrateCompression)
	if err != nil {
		return err
	}

	src, err := config.OpenStore(sess.Config)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, err := config.OpenStore(dstCfg)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}

	start := time.Now()
	n, err := store.Copy(ctx, dst, src)
	if err == nil {
		err = dst.Flush(ctx)
	}
	if cerr := dst.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		return fmt.Errorf("migration failed after %d chunks: %w", n, err)
	}

	logger.Info("Migration complete",
		"from", sess.Config.Storage.Backend,
		"to", dstCfg.Storage.Backend,
		"chunks", n,
		"duration", time.Since(start).String())
	p.Success(fmt.Sprintf("Copied %d chunks to %s store at %s", n, dstCfg.Storage.Backend, migrateToPath))
	return nil
}
