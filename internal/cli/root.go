// Package cli implements the shipfloor command-line interface: schema
// bootstrap, the backorder watcher entrypoint, and pool diagnostics.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitSuccess  = 0
	exitUserErr  = 1
	exitSysError = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configFile string
	dbPath     string
}

var flags rootFlags

// NewRootCmd creates the top-level "shipfloor" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shipfloor",
		Short: "Warehouse fulfillment consistency core",
		Long: "Shipfloor keeps concurrently-touched fulfillment state consistent:\n" +
			"trip packages, pick counters, and backorders over one shared database.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default: shipfloor.yaml)")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "database file (overrides config)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newWatcherCmd())
	root.AddCommand(newStatsCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserErr)
	}
}
