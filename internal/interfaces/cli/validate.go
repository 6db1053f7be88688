package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"symbion.dev/harness/internal/harness"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Offline preflight: check declared contracts resolve, start nothing",
		Long: `Validate loads the contract and plugin stores and reports every declared
contract that does not resolve, without connecting to the broker or starting
any process. Unresolved references are diagnostics, not failures; the exit
code is nonzero only when a store directory is missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("contracts-dir"); v != "" {
				cfg.ContractsDir = v
			}
			if v, _ := cmd.Flags().GetString("plugins-dir"); v != "" {
				cfg.PluginsDir = v
			}

			diags, err := harness.Preflight(cfg, logger)
			if err != nil {
				return err
			}

			if len(diags) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "All declared contracts resolve.")
				return nil
			}
			for _, d := range diags {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", d.Kind, d.Message)
			}
			return nil
		},
	}

	cmd.Flags().String("contracts-dir", "", "Directory containing contract definitions")
	cmd.Flags().String("plugins-dir", "", "Directory containing plugin manifests")

	return cmd
}
