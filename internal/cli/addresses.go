package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietddude/mintwatch/internal/control"
	"github.com/vietddude/mintwatch/internal/core/tracker"
	"github.com/vietddude/mintwatch/internal/infra/explorer"
)

var addCmd = &cobra.Command{
	Use:   "add [address] [name...]",
	Short: "Start monitoring an address from its next block",
	Args:  cobra.MinimumNArgs(2),
	Run:   runAdd,
}

var removeCmd = &cobra.Command{
	Use:   "remove [address]",
	Short: "Stop monitoring an address",
	Args:  cobra.ExactArgs(1),
	Run:   runRemove,
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	client := explorer.NewClient(cfg.Explorer)
	name := strings.Join(args[1:], " ")

	ctx := context.Background()
	err := editState(ctx, cfg, func(t *tracker.Tracker) error {
		added, err := control.NewCommands(t, client, client.AddressURL, nil).Start(ctx, args[0], name)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (%s) from block %d\n", added.Address, added.Name, added.NextBlock)
		return nil
	})
	if err != nil {
		slog.Error("Failed to add address", "address", args[0], "error", err)
		os.Exit(1)
	}
}

func runRemove(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	err := editState(context.Background(), cfg, func(t *tracker.Tracker) error {
		name, err := t.Remove(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Stopped monitoring %s (%s)\n", args[0], name)
		return nil
	})
	if err != nil {
		slog.Error("Failed to remove address", "address", args[0], "error", err)
		os.Exit(1)
	}
}
