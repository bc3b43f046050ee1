package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/regionstore/internal/logger"
	"github.com/marmos91/regionstore/internal/telemetry"
	"github.com/marmos91/regionstore/pkg/metrics"
)

// Initialize applies the process-wide sections of cfg: logging, tracing,
// profiling and the metrics registry. The returned function stops the
// tracer and the profiler.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	shutdown, err := config.Initialize(ctx, cfg, version)
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
func Initialize(ctx context.Context, cfg *Config, version string) (func(context.Context) error, error) {
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	InitializeMetrics(cfg)

	stopTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "regionstore",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	stopProfiling, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "regionstore",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
		Tags:           map[string]string{"backend": cfg.Storage.Backend},
	})
	if err != nil {
		_ = stopTracing(ctx)
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}

	if cfg.Telemetry.Enabled {
		logger.Info("Tracing enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if cfg.Telemetry.Profiling.Enabled {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	return func(ctx context.Context) error {
		return errors.Join(stopProfiling(), stopTracing(ctx))
	}, nil
}

// InitializeMetrics creates the Prometheus registry when metrics are enabled.
// It must run before any store is opened, since stores pick up their metrics
// at construction.
func InitializeMetrics(cfg *Config) {
	if !cfg.Metrics.Enabled {
		metrics.Disable()
		return
	}
	metrics.InitRegistry()
	logger.Debug("Metrics enabled", "port", cfg.Metrics.Port)
}
