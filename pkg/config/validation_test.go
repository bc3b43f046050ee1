package config

import (
	"strings"
	"testing"

	"github.com/marmos91/regionstore/pkg/region"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"invalid log level", func(c *Config) { c.Logging.Level = "INVALID" }, "oneof"},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, "oneof"},
		{"sample rate above one", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "lte"},
		{"metrics port out of range", func(c *Config) { c.Metrics.Port = 70000 }, "max"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }, "oneof"},
		{"region backend without path", func(c *Config) { c.Storage.Path = "" }, "required_if"},
		{"region size too large", func(c *Config) { c.Storage.RegionSize = 2048 }, "max"},
		{"negative cache capacity", func(c *Config) { c.Storage.CacheCapacity = -1 }, "gte"},
		{"unknown compression", func(c *Config) { c.Storage.Compression = "lz4" }, "oneof"},
		{"extension with dot", func(c *Config) { c.Storage.Extension = ".mca" }, "alphanum"},
		{"sector size too small", func(c *Config) { c.Storage.SectorSize = 32 }, "sector size"},
		{"badger without path", func(c *Config) { c.Storage.Backend = "badger" }, "badger: path"},
		{"badger in memory", func(c *Config) {
			c.Storage.Backend = "badger"
			c.Badger.InMemory = true
		}, ""},
		{"memory backend without path", func(c *Config) {
			c.Storage.Backend = "memory"
			c.Storage.Path = ""
		}, ""},
		{"bad backup endpoint", func(c *Config) { c.Backup.Endpoint = "not a url" }, "url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatal("Expected error for nil config")
	}
}

func TestRegionOptions(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Compression = "none"
	cfg.Storage.SyncWrites = true

	opts, err := cfg.Storage.RegionOptions()
	if err != nil {
		t.Fatalf("RegionOptions failed: %v", err)
	}
	if opts.Compression != region.SchemeNone {
		t.Errorf("Expected scheme none, got %v", opts.Compression)
	}
	if opts.RegionSize != 32 || opts.SectorSize != 4096 || opts.Extension != "mca" {
		t.Errorf("Unexpected layout: %+v", opts)
	}
	if !opts.SyncWrites {
		t.Error("Expected sync writes")
	}
	if opts.HeaderSectors() != 2 {
		t.Errorf("Expected 2 header sectors, got %d", opts.HeaderSectors())
	}
}
