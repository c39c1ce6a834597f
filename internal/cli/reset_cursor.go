package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vietddude/mintwatch/internal/core/tracker"
)

var resetCursorCmd = &cobra.Command{
	Use:   "reset-cursor [address] [block]",
	Short: "Move the scan position of an address to a given block",
	Long: `Move the scan position of an address to a given block. Moving it back
rescans the blocks in between and may repeat notifications.`,
	Args: cobra.ExactArgs(2),
	Run:  runResetCursor,
}

func init() {
	rootCmd.AddCommand(resetCursorCmd)
}

func runResetCursor(cmd *cobra.Command, args []string) {
	address := args[0]
	block, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Printf("Invalid block: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig()
	err = editState(context.Background(), cfg, func(t *tracker.Tracker) error {
		return t.Reset(address, block)
	})
	if err != nil {
		slog.Error("Failed to reset cursor", "address", address, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset cursor for %s to block %d\n", address, block)
}
