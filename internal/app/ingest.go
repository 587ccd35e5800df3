package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kline-backfill/internal/ingest"
	"kline-backfill/internal/kline"
	"kline-backfill/internal/ledger"
	"kline-backfill/internal/storage"
)

// Ingest runs one full backfill over the ledger's time range. It returns an
// error only when the run could not start; per-symbol failures are reported
// in the summary and do not fail the command.
func (a *App) Ingest(ctx context.Context, opts IngestOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	intervalKey := opts.Interval
	if intervalKey == "" {
		intervalKey = a.Config.Ingestion.Interval
	}
	interval, err := kline.ParseInterval(intervalKey)
	if err != nil {
		return err
	}

	summary, err := ledger.NewReader(a.Logger).Read(opts.LedgerPath)
	if err != nil {
		return err
	}

	sinks, closeStore, store, err := a.buildSinks(ctx, opts)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc := ingest.New(a.newWindowFetcher(), sinks, ingest.Options{
		Interval:    interval,
		QuoteAsset:  a.Config.Ingestion.QuoteAsset,
		Exclude:     ingest.CurrencySet(a.Config.Ingestion.Exclude),
		Stablecoins: ingest.CurrencySet(a.Config.Ingestion.Stablecoins),
		SymbolDelay: a.Config.Binance.SymbolDelay,
		Format:      a.Config.Storage.Format,
	}, a.Logger)

	runSummary, runErr := svc.Run(ctx, summary)
	if runErr != nil {
		return runErr
	}

	if store != nil {
		if err := a.recordRun(ctx, store, runSummary); err != nil {
			a.Logger.Error().Err(err).Msg("failed to persist run history")
		}
	}

	fmt.Fprintln(os.Stdout, runSummary.String())
	if runSummary.FailedCount > 0 {
		a.Logger.Warn().Int("failed", runSummary.FailedCount).Msg("run finished with failed symbols")
	}
	return nil
}

func (a *App) buildSinks(ctx context.Context, opts IngestOptions) ([]storage.Sink, func(), *storage.Store, error) {
	if opts.DryRun {
		a.Logger.Warn().Msg("dry-run: nothing will be persisted")
		return nil, nil, nil, nil
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = a.Config.Storage.OutputDir
	}

	fileSink, err := storage.NewFileSink(outputDir, a.Logger)
	if err != nil {
		return nil, nil, nil, err
	}
	sinks := []storage.Sink{fileSink}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if store == nil {
		a.Logger.Info().Msg("database.dsn not configured; relational persistence disabled")
		return sinks, nil, nil, nil
	}

	if err := store.EnsureSchema(ctx); err != nil {
		closeStore()
		return nil, nil, nil, err
	}
	sinks = append(sinks, store)
	return sinks, closeStore, store, nil
}

func (a *App) recordRun(ctx context.Context, store *storage.Store, summary ingest.RunSummary) error {
	run := storage.RunRecord{
		StartedAt:       summary.StartTime,
		FinishedAt:      summary.EndTime,
		TotalSymbols:    summary.TotalSymbols,
		SuccessfulCount: summary.SuccessfulCount,
		FailedCount:     summary.FailedCount,
	}

	outcomes := make([]storage.OutcomeRecord, 0, len(summary.Outcomes))
	for _, o := range summary.Outcomes {
		rec := storage.OutcomeRecord{
			Symbol:      o.Symbol,
			Interval:    o.Interval,
			Success:     o.Success,
			RecordCount: o.RecordCount,
		}
		if o.ErrorMessage != "" {
			msg := o.ErrorMessage
			rec.Error = &msg
		}
		outcomes = append(outcomes, rec)
	}

	_, err := store.InsertRun(ctx, run, outcomes)
	return err
}
