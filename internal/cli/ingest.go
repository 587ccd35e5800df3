package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"kline-backfill/internal/app"
)

var (
	ingestLedger    string
	ingestInterval  string
	ingestOutputDir string
	ingestDryRun    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch klines for all ledger currencies and persist them",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestLedger == "" {
			return fmt.Errorf("--ledger must be provided")
		}

		opts := app.IngestOptions{
			LedgerPath: ingestLedger,
			Interval:   ingestInterval,
			OutputDir:  ingestOutputDir,
			DryRun:     ingestDryRun,
		}

		return getApp().Ingest(cmd.Context(), opts)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestLedger, "ledger", "", "Path to the transactions CSV file")
	ingestCmd.Flags().StringVar(&ingestInterval, "interval", "", "Kline interval (1m/5m/15m/1h/4h/1d); overrides config")
	ingestCmd.Flags().StringVar(&ingestOutputDir, "output-dir", "", "Directory for partition files; overrides config")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Fetch and normalize without writing to storage")
}
