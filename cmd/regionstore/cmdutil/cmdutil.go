// Package cmdutil holds the state and helpers shared by regionstore commands.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/regionstore/internal/cli/output"
	"github.com/marmos91/regionstore/internal/logger"
	"github.com/marmos91/regionstore/pkg/config"
	"github.com/marmos91/regionstore/pkg/region"
	"github.com/marmos91/regionstore/pkg/store"
	"github.com/spf13/cobra"
)

// GlobalFlags holds the persistent flags of the root command.
type GlobalFlags struct {
	ConfigFile string
	Dir        string
	Backend    string
	Output     string
	NoColor    bool
}

// Flags is synced from the root command before any subcommand runs.
var Flags = &GlobalFlags{}

// Version is the binary version, reported to tracing and profiling backends.
var Version = "dev"

// Printer returns a printer for the --output and --no-color flags.
func Printer(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(Flags.Output)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(cmd.OutOrStdout(), format, !Flags.NoColor), nil
}

// LoadConfig loads the configuration selected by --config and applies the
// --dir and --backend overrides. A missing default file yields the
// defaults plus REGIONSTORE_* environment overrides.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(Flags.ConfigFile)
	if err != nil {
		return nil, err
	}
	if Flags.Backend != "" {
		cfg.Storage.Backend = strings.ToLower(Flags.Backend)
	}
	if Flags.Dir != "" {
		switch cfg.Storage.Backend {
		case store.BackendBadger:
			cfg.Badger.Path = Flags.Dir
		default:
			cfg.Storage.Path = Flags.Dir
		}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Session is a loaded configuration with logging, metrics and telemetry
// initialized from it.
type Session struct {
	Config   *config.Config
	shutdown func(context.Context) error
}

// Start loads the configuration, lets mutate adjust it, and initializes the
// process-wide sections. mutate may be nil.
func Start(ctx context.Context, mutate func(*config.Config)) (*Session, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	shutdown, err := config.Initialize(ctx, cfg, Version)
	if err != nil {
		return nil, err
	}
	return &Session{Config: cfg, shutdown: shutdown}, nil
}

// Close stops tracing and profiling.
func (s *Session) Close(ctx context.Context) error {
	if s.shutdown == nil {
		return nil
	}
	return s.shutdown(ctx)
}

// WithStore opens the configured chunk store, runs fn and closes the store.
// A close failure is reported alongside fn's error.
func WithStore(cmd *cobra.Command, fn func(ctx context.Context, s store.ChunkStore) error) (err error) {
	ctx, sess, err := begin(cmd)
	if err != nil {
		return err
	}
	defer sess.end()

	s, err := config.OpenStore(sess.Config)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()

	return fn(ctx, s)
}

// WithRegionStore is WithStore for commands that need region files. It
// fails when another backend is configured.
func WithRegionStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, s *store.RegionStore) error) (err error) {
	ctx, sess, err := begin(cmd)
	if err != nil {
		return err
	}
	defer sess.end()

	if b := sess.Config.Storage.Backend; b != store.BackendRegion {
		return fmt.Errorf("%s requires the region backend (configured: %s)", cmd.Name(), b)
	}

	s, err := config.OpenRegionStore(sess.Config)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()

	return fn(ctx, sess.Config, s)
}

func begin(cmd *cobra.Command) (context.Context, *Session, error) {
	ctx := Context(cmd)
	sess, err := Start(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	return ctx, sess, nil
}

// end closes the session, logging instead of failing the command.
func (s *Session) end() {
	if err := s.Close(context.Background()); err != nil {
		logger.Warn("Telemetry shutdown failed", "error", err)
	}
}

// Context returns the command context, or a background context when the
// command runs outside ExecuteContext.
func Context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// ParseChunkPos parses "<x> <z>" command arguments.
func ParseChunkPos(args []string) (region.ChunkPos, error) {
	x, z, err := parsePair(args)
	if err != nil {
		return region.ChunkPos{}, err
	}
	return region.ChunkPos{X: x, Z: z}, nil
}

// ParseRegionPos parses "<regionX> <regionZ>" command arguments.
func ParseRegionPos(args []string) (region.RegionPos, error) {
	x, z, err := parsePair(args)
	if err != nil {
		return region.RegionPos{}, err
	}
	return region.RegionPos{X: x, Z: z}, nil
}

func parsePair(args []string) (int32, int32, error) {
	if len(args) < 2 {
		return 0, 0, fmt.Errorf("expected two coordinates, got %d", len(args))
	}
	x, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x coordinate %q: %w", args[0], err)
	}
	z, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid z coordinate %q: %w", args[1], err)
	}
	return int32(x), int32(z), nil
}
