package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"kline-backfill/internal/app"
)

var resolveLedger string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the symbols a run over the ledger would fetch",
	RunE: func(cmd *cobra.Command, args []string) error {
		if resolveLedger == "" {
			return fmt.Errorf("--ledger must be provided")
		}
		return getApp().Resolve(app.ResolveOptions{LedgerPath: resolveLedger})
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveLedger, "ledger", "", "Path to the transactions CSV file")
}
