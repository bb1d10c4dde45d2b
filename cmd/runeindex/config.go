package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synnergy-labs/runeindex/internal/config"
)

// configCmd implements `runeindex config new`, writing a default TOML
// config for the selected network to a path (spec §6.3, §6.4).
func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "manage the indexer's TOML config"}

	var mainnet, testnet, signet bool
	var path string

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			network := config.Regtest
			switch {
			case mainnet:
				network = config.Mainnet
			case testnet:
				network = config.Testnet
			case signet:
				network = config.Signet
			}
			if err := config.WriteDefault(path, network); err != nil {
				return fmt.Errorf("config new: %w", err)
			}
			fmt.Fprintf(os.Stdout, "wrote default %s config to %s\n", network, path)
			return nil
		},
	}
	newCmd.Flags().BoolVar(&mainnet, "mainnet", false, "generate a mainnet config")
	newCmd.Flags().BoolVar(&testnet, "testnet", false, "generate a testnet config")
	newCmd.Flags().BoolVar(&signet, "signet", false, "generate a signet config")
	newCmd.Flags().StringVar(&path, "config-path", "Config.toml", "path to write the config file")

	cmd.AddCommand(newCmd)
	return cmd
}
