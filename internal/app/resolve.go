package app

import (
	"fmt"
	"os"

	"kline-backfill/internal/ingest"
	"kline-backfill/internal/ledger"
)

// Resolve prints the symbols a run over the given ledger would fetch,
// without touching the exchange.
func (a *App) Resolve(opts ResolveOptions) error {
	summary, err := ledger.NewReader(a.Logger).Read(opts.LedgerPath)
	if err != nil {
		return err
	}

	symbols := ingest.ResolveSymbols(
		summary.Currencies,
		a.Config.Ingestion.QuoteAsset,
		ingest.CurrencySet(a.Config.Ingestion.Exclude),
		ingest.CurrencySet(a.Config.Ingestion.Stablecoins),
	)
	if len(symbols) == 0 {
		return ingest.ErrNoSymbols
	}

	fmt.Fprintf(os.Stdout, "window: %s -> %s (%d transactions)\n",
		summary.StartTime().Format("2006-01-02 15:04:05"),
		summary.EndTime().Format("2006-01-02 15:04:05"),
		summary.RecordCount,
	)
	for _, symbol := range symbols {
		fmt.Fprintln(os.Stdout, symbol)
	}
	return nil
}
