package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// dbCmd implements `runeindex db drop`, an administrative reorg-delete
// over an explicit height range, used to recover from a rollback the
// observer sidecar missed (spec §6.3, §4.5 DeleteBlock).
func dbCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "db", Short: "administrative database operations"}

	var configPath string
	var yes bool

	drop := &cobra.Command{
		Use:   "drop START END",
		Short: "delete all indexed state for a height range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(args[0], args[1])
			if err != nil {
				return err
			}
			if !yes && !confirm(fmt.Sprintf("drop all indexed state for heights %d..%d?", start, end)) {
				fmt.Println("aborted")
				return nil
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			for h := start; h <= end; h++ {
				if err := a.store.DeleteBlock(ctx, h); err != nil {
					return fmt.Errorf("db drop: delete block %d: %w", h, err)
				}
			}
			fmt.Printf("dropped heights %d..%d\n", start, end)
			return nil
		},
	}
	drop.Flags().StringVar(&configPath, "config-path", "Config.toml", "path to the TOML config file")
	drop.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")

	cmd.AddCommand(drop)
	return cmd
}

func parseRange(startArg, endArg string) (uint64, uint64, error) {
	var start, end uint64
	if _, err := fmt.Sscanf(startArg, "%d", &start); err != nil {
		return 0, 0, fmt.Errorf("db drop: invalid start height %q", startArg)
	}
	if _, err := fmt.Sscanf(endArg, "%d", &end); err != nil {
		return 0, 0, fmt.Errorf("db drop: invalid end height %q", endArg)
	}
	if end < start {
		return 0, 0, fmt.Errorf("db drop: end %d is before start %d", end, start)
	}
	return start, end, nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
