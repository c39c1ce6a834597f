package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/mintwatch/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the monitored addresses and their scan positions",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	stores, err := control.OpenStores(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = stores.Close()
	}()

	state, err := stores.State.Load(ctx)
	if err != nil {
		slog.Error("Failed to load state", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ADDRESS\tNAME\tNEXT BLOCK")
	for _, a := range state.Addresses {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", a.Address, a.Name, a.NextBlock)
	}
	_ = w.Flush()

	fmt.Printf("\nMethod cache: %d mint, %d other selectors\n",
		len(state.MethodCache.Include), len(state.MethodCache.Exclude))
}
