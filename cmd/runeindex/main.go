// Command runeindex is the indexer's CLI entrypoint: config generation,
// the long-running service, batch scans, and administrative rollback
// (spec §6.3).
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{Use: "runeindex", Short: "Runes protocol indexer"}
	root.AddCommand(configCmd())
	root.AddCommand(serviceCmd())
	root.AddCommand(scanCmd())
	root.AddCommand(dbCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
