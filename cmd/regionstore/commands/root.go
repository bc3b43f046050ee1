// Package commands implements the regionstore CLI.
package commands

import (
	"github.com/marmos91/regionstore/cmd/regionstore/cmdutil"
	configcmd "github.com/marmos91/regionstore/cmd/regionstore/commands/config"
	"github.com/spf13/cobra"

	// Registers the Prometheus metrics constructors.
	_ "github.com/marmos91/regionstore/pkg/metrics/prometheus"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "regionstore",
	Short: "Region-based chunk storage",
	Long: `regionstore stores chunk payloads in region files: fixed grids of
slots backed by sector-aligned runs, with an LRU cache of open files.

Configuration is read from $XDG_CONFIG_HOME/regionstore/config.yaml unless
--config is given. Every key can be overridden with a REGIONSTORE_*
environment variable, e.g. REGIONSTORE_STORAGE_PATH.

Use "regionstore [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.ConfigFile, _ = cmd.Flags().GetString("config")
		cmdutil.Flags.Dir, _ = cmd.Flags().GetString("dir")
		cmdutil.Flags.Backend, _ = cmd.Flags().GetString("backend")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Version = Version
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: $XDG_CONFIG_HOME/regionstore/config.yaml)")
	rootCmd.PersistentFlags().String("dir", "", "Storage directory (overrides storage.path, or badger.path for the badger backend)")
	rootCmd.PersistentFlags().String("backend", "", "Storage backend (region|badger|memory)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configcmd.Cmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
