package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/mintwatch/internal/control"
	"github.com/vietddude/mintwatch/internal/core/config"
)

var missesCmd = &cobra.Command{
	Use:   "misses",
	Short: "List transactions awaiting classification",
	Run:   runMisses,
}

func init() {
	rootCmd.AddCommand(missesCmd)
}

func runMisses(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Storage.Driver == config.DriverFile {
		fmt.Println("The file storage driver keeps the journal in memory; nothing to show.")
		return
	}

	ctx := context.Background()
	stores, err := control.OpenStores(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = stores.Close()
	}()

	missed, err := stores.Journal.List(ctx)
	if err != nil {
		slog.Error("Failed to list journal", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ADDRESS\tTX\tBLOCK\tATTEMPTS\tCREATED")
	for _, m := range missed {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			m.Address, m.Transaction.Hash, m.Transaction.BlockNumber, m.Attempts,
			m.CreatedAt.UTC().Format(time.DateTime))
	}
	_ = w.Flush()
}
