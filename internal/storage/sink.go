package storage

import (
	"context"
	"fmt"
	"time"

	"kline-backfill/internal/kline"
)

// SaveOutcome summarizes one persisted dataset.
type SaveOutcome struct {
	Dataset   string
	Location  string
	RowCount  int
	SizeBytes int64
}

// Sink persists one symbol's normalized records under a dataset name.
// Saving the same dataset twice must be idempotent: (symbol, interval,
// open_time) fully determines a row's identity.
type Sink interface {
	Save(ctx context.Context, dataset string, records []kline.Record, format string) (SaveOutcome, error)
}

// PartitionName builds the canonical dataset name for a symbol's window,
// e.g. BTCUSDT__20240101__20240102.
func PartitionName(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s__%s__%s", symbol, start.UTC().Format("20060102"), end.UTC().Format("20060102"))
}
