package config

import (
	"github.com/marmos91/regionstore/cmd/regionstore/cmdutil"
	"github.com/marmos91/regionstore/internal/cli/output"
	"github.com/spf13/cobra"
)

const redacted = "********"

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, environment variables and the
--dir and --backend flags are applied. Secrets are redacted.

The table format prints YAML.

Examples:
  regionstore config show
  REGIONSTORE_STORAGE_COMPRESSION=gzip regionstore config show -o json`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	p, err := cmdutil.Printer(cmd)
	if err != nil {
		return err
	}

	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Backup.SecretAccessKey != "" {
		cfg.Backup.SecretAccessKey = redacted
	}

	if p.Format() == output.FormatTable {
		return output.PrintYAML(p.Writer(), cfg)
	}
	return p.Print(cfg)
}
