package cli

import (
	"github.com/spf13/cobra"

	"kline-backfill/internal/app"
)

var (
	showLimit int
	showRunID int64
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show recent ingestion runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{Limit: showLimit, RunID: showRunID}
		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 10, "Number of runs to display")
	showCmd.Flags().Int64Var(&showRunID, "run-id", 0, "Show per-symbol outcomes for one run")
}
