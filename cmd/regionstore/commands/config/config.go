// Package config implements the "regionstore config" subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent of the configuration subcommands.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `Create, print, validate and describe the regionstore configuration file.

The file is looked up at $XDG_CONFIG_HOME/regionstore/config.yaml unless
--config is given.`,
}

func init() {
	Cmd.AddCommand(initCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(schemaCmd)
	Cmd.AddCommand(validateCmd)
}
