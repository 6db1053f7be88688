// Package cli wires the harness's cobra command surface.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// NewRootCommand returns the base command when called without subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "symbion-harness",
		Short: "Symbion contract-compliance test harness",
		Long: `symbion-harness boots a Symbion system under test (the coordinator plus its
plugins), observes the MQTT traffic they emit, and verifies that traffic
against the declared topic contracts and JSON schemas.

The harness is a passive observer plus process launcher: it never publishes
business traffic itself. A completed run exits 0 even when compliance gaps
are found; gaps are itemized in the report (use --strict to change that).`,
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file path (default is ./harness-config.json)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
