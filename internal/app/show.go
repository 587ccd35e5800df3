package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"kline-backfill/internal/storage"
)

// Show prints recent ingestion runs, or one run's per-symbol outcomes.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show runs")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.RunID > 0 {
		return a.showOutcomes(ctx, store, opts.RunID)
	}

	runs, err := store.ListRecentRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "no runs found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tStarted (UTC)\tDuration\tSymbols\tOK\tFailed")
	for _, run := range runs {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%d\t%d\t%d\n",
			run.ID,
			run.StartedAt.UTC().Format(time.RFC3339),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Second),
			run.TotalSymbols,
			run.SuccessfulCount,
			run.FailedCount,
		)
	}
	return writer.Flush()
}

func (a *App) showOutcomes(ctx context.Context, store *storage.Store, runID int64) error {
	outcomes, err := store.ListRunOutcomes(ctx, runID)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Fprintln(os.Stdout, "no outcomes found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tInterval\tStatus\tRecords\tError")
	for _, o := range outcomes {
		status := "ok"
		errMsg := ""
		if !o.Success {
			status = "failed"
			if o.Error != nil {
				errMsg = sanitizeInline(*o.Error)
			}
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\n", o.Symbol, o.Interval, status, o.RecordCount, errMsg)
	}
	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
