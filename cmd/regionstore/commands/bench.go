package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/marmos91/regionstore/cmd/regionstore/cmdutil"
	"github.com/marmos91/regionstore/internal/bytesize"
	"github.com/marmos91/regionstore/internal/cli/output"
	"github.com/marmos91/regionstore/internal/logger"
	"github.com/marmos91/regionstore/pkg/config"
	"github.com/marmos91/regionstore/pkg/metrics"
	"github.com/marmos91/regionstore/pkg/region"
	"github.com/marmos91/regionstore/pkg/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	benchCount        int
	benchSize         string
	benchWorkers      int
	benchSeed         uint64
	benchCompressible bool
	benchInPlace      bool
	benchMetrics      bool
	benchLinger       time.Duration
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure write and read throughput",
	Long: `Write a grid of generated chunk payloads, flush, then read every payload
back and check it.

Unless --in-place is given the benchmark runs against a scratch store: a
temporary directory for the region backend and an in-memory database for
badger. With --metrics the Prometheus endpoint is served on metrics.port
for the duration of the run, plus --linger.

Examples:
  regionstore bench --count 4096 --size 16KiB --workers 8
  regionstore bench --metrics --linger 30s`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&benchCount, "count", "n", 1024, "Number of chunks to write")
	benchCmd.Flags().StringVar(&benchSize, "size", "4KiB", "Payload size per chunk")
	benchCmd.Flags().IntVarP(&benchWorkers, "workers", "w", 4, "Concurrent workers")
	benchCmd.Flags().Uint64Var(&benchSeed, "seed", 1, "Seed for generated payloads")
	benchCmd.Flags().BoolVar(&benchCompressible, "compressible", false, "Generate repetitive payloads instead of random bytes")
	benchCmd.Flags().BoolVar(&benchInPlace, "in-place", false, "Run against the configured store instead of a scratch one")
	benchCmd.Flags().BoolVar(&benchMetrics, "metrics", false, "Serve Prometheus metrics while the benchmark runs")
	benchCmd.Flags().DurationVar(&benchLinger, "linger", 0, "Keep serving metrics this long after the run")
}

type benchPhase struct {
	Seconds   float64 `json:"seconds" yaml:"seconds"`
	OpsPerSec float64 `json:"ops_per_sec" yaml:"ops_per_sec"`
	MiBPerSec float64 `json:"mib_per_sec" yaml:"mib_per_sec"`
}

type benchResult struct {
	Backend     string     `json:"backend" yaml:"backend"`
	Compression string     `json:"compression,omitempty" yaml:"compression,omitempty"`
	Chunks      int        `json:"chunks" yaml:"chunks"`
	PayloadSize int        `json:"payload_size" yaml:"payload_size"`
	Workers     int        `json:"workers" yaml:"workers"`
	Write       benchPhase `json:"write" yaml:"write"`
	Flush       benchPhase `json:"flush" yaml:"flush"`
	Read        benchPhase `json:"read" yaml:"read"`
}

func (r *benchResult) pairs() [][2]string {
	phase := func(p benchPhase) string {
		return fmt.Sprintf("%.3fs  %.0f ops/s  %.2f MiB/s", p.Seconds, p.OpsPerSec, p.MiBPerSec)
	}
	pairs := [][2]string{
		{"Backend", r.Backend},
	}
	if r.Compression != "" {
		pairs = append(pairs, [2]string{"Compression", r.Compression})
	}
	return append(pairs,
		[2]string{"Chunks", strconv.Itoa(r.Chunks)},
		[2]string{"Payload size", bytesize.ByteSize(r.PayloadSize).String()},
		[2]string{"Workers", strconv.Itoa(r.Workers)},
		[2]string{"Write", phase(r.Write)},
		[2]string{"Flush", fmt.Sprintf("%.3fs", r.Flush.Seconds)},
		[2]string{"Read", phase(r.Read)},
	)
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchCount <= 0 {
		return errors.New("--count must be positive")
	}
	if benchWorkers <= 0 {
		return errors.New("--workers must be positive")
	}
	size, err := bytesize.ParseByteSize(benchSize)
	if err != nil {
		return fmt.Errorf("invalid --size: %w", err)
	}

	p, err := cmdutil.Printer(cmd)
	if err != nil {
		return err
	}

	scratch := ""
	if !benchInPlace {
		scratch, err = os.MkdirTemp("", "regionstore-bench-")
		if err != nil {
			return err
		}
		defer func() { _ = os.RemoveAll(scratch) }()
	}

	ctx := cmdutil.Context(cmd)
	sess, err := cmdutil.Start(ctx, func(cfg *config.Config) {
		if scratch != "" {
			cfg.Storage.Path = scratch
			cfg.Badger.Path = ""
			cfg.Badger.InMemory = true
		}
		if benchMetrics {
			cfg.Metrics.Enabled = true
			if cfg.Metrics.Port == 0 {
				cfg.Metrics.Port = config.DefaultMetricsPort
			}
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close(context.Background()) }()
	cfg := sess.Config

	if benchMetrics {
		srvCtx, stop := context.WithCancel(ctx)
		srv := metrics.NewServer(cfg.Metrics.Port)
		srvDone := make(chan error, 1)
		go func() { srvDone <- srv.Start(srvCtx) }()
		defer func() {
			if benchLinger > 0 {
				logger.Info("Serving metrics after benchmark", "linger", benchLinger)
				select {
				case <-time.After(benchLinger):
				case <-ctx.Done():
				}
			}
			stop()
			if err := <-srvDone; err != nil {
				logger.Warn("Metrics server", "error", err)
			}
		}()
	}

	s, err := config.OpenStore(cfg)
	if err != nil {
		return err
	}

	result, runErr := benchmark(ctx, s, benchCount, int(size), benchWorkers)
	if cerr := s.Close(); cerr != nil {
		runErr = errors.Join(runErr, cerr)
	}
	if runErr != nil {
		return runErr
	}

	result.Backend = cfg.Storage.Backend
	if cfg.Storage.Backend == store.BackendRegion {
		result.Compression = cfg.Storage.Compression
	}

	if p.Format() == output.FormatTable {
		return output.PrintKeyValues(p.Writer(), result.pairs())
	}
	return p.Print(result)
}

func benchmark(ctx context.Context, s store.ChunkStore, count, size, workers int) (*benchResult, error) {
	side := int(math.Ceil(math.Sqrt(float64(count))))
	positions := make([]region.ChunkPos, count)
	for i := range positions {
		// Centre the grid on the origin so negative coordinates are covered.
		positions[i] = region.ChunkPos{X: int32(i%side - side/2), Z: int32(i/side - side/2)}
	}

	result := &benchResult{Chunks: count, PayloadSize: size, Workers: workers}
	total := float64(count) * float64(size)

	start := time.Now()
	err := forEach(ctx, workers, positions, func(ctx context.Context, i int, pos region.ChunkPos) error {
		return s.Write(ctx, pos, benchPayload(i, size))
	})
	if err != nil {
		return nil, fmt.Errorf("write phase: %w", err)
	}
	result.Write = newBenchPhase(time.Since(start), count, total)

	start = time.Now()
	if err := s.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	result.Flush = benchPhase{Seconds: time.Since(start).Seconds()}

	start = time.Now()
	err = forEach(ctx, workers, positions, func(ctx context.Context, i int, pos region.ChunkPos) error {
		data, err := s.Read(ctx, pos)
		if err != nil {
			return err
		}
		if !bytes.Equal(data, benchPayload(i, size)) {
			return fmt.Errorf("chunk %s: payload mismatch (%d bytes read)", pos, len(data))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read phase: %w", err)
	}
	result.Read = newBenchPhase(time.Since(start), count, total)

	return result, nil
}

func forEach(ctx context.Context, workers int, positions []region.ChunkPos, fn func(ctx context.Context, i int, pos region.ChunkPos) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, pos := range positions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i, pos)
		})
	}
	return g.Wait()
}

// benchPayload generates the payload of the i-th chunk. The same seed and
// index always give the same bytes, so reads can be checked without
// keeping the written data around.
func benchPayload(i, size int) []byte {
	data := make([]byte, size)
	if benchCompressible {
		pattern := []byte(fmt.Sprintf("chunk-%d;", i))
		for off := 0; off < size; {
			off += copy(data[off:], pattern)
		}
		return data
	}
	rng := rand.New(rand.NewPCG(benchSeed, uint64(i)))
	for off := 0; off < size; off += 8 {
		v := rng.Uint64()
		for b := 0; b < 8 && off+b < size; b++ {
			data[off+b] = byte(v >> (8 * b))
		}
	}
	return data
}

func newBenchPhase(d time.Duration, ops int, total float64) benchPhase {
	secs := d.Seconds()
	if secs <= 0 {
		return benchPhase{}
	}
	return benchPhase{
		Seconds:   secs,
		OpsPerSec: float64(ops) / secs,
		MiBPerSec: total / (1 << 20) / secs,
	}
}
