package config

import (
	"fmt"
	"os"

	"github.com/marmos91/regionstore/cmd/regionstore/cmdutil"
	"github.com/marmos91/regionstore/pkg/config"
	"github.com/marmos91/regionstore/pkg/store"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the regionstore configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  regionstore config validate

  # Validate specific config file
  regionstore config validate --config /etc/regionstore/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

// Warnings lists settings that are valid but probably not intended.
func Warnings(cfg *config.Config) []string {
	var warnings []string

	if cfg.Backup.Bucket == "" {
		warnings = append(warnings, "backup.bucket not configured - regionstore backup will fail")
	}
	if (cfg.Backup.AccessKeyID == "") != (cfg.Backup.SecretAccessKey == "") {
		warnings = append(warnings, "backup.access_key_id and backup.secret_access_key should be set together")
	}

	switch cfg.Storage.Backend {
	case store.BackendRegion:
		if _, err := os.Stat(cfg.Storage.Path); os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("storage path %s does not exist yet - it will be created", cfg.Storage.Path))
		}
	case store.BackendMemory:
		warnings = append(warnings, "memory backend selected - nothing is persisted")
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.SampleRate == 0 {
		warnings = append(warnings, "telemetry enabled with sample_rate 0 - no traces will be exported")
	}
	return warnings
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath := cmdutil.Flags.ConfigFile

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := Warnings(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Backend:         %s\n", cfg.Storage.Backend)
	switch cfg.Storage.Backend {
	case store.BackendRegion:
		_, _ = fmt.Fprintf(out, "  Region path:     %s\n", cfg.Storage.Path)
		_, _ = fmt.Fprintf(out, "  Region size:     %dx%d\n", cfg.Storage.RegionSize, cfg.Storage.RegionSize)
		_, _ = fmt.Fprintf(out, "  Sector size:     %s\n", cfg.Storage.SectorSize.Exact())
		_, _ = fmt.Fprintf(out, "  Compression:     %s\n", cfg.Storage.Compression)
	case store.BackendBadger:
		_, _ = fmt.Fprintf(out, "  Badger path:     %s\n", cfg.Badger.Path)
	}
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
