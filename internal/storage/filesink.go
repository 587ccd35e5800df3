package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"kline-backfill/internal/kline"
)

// FormatCSV is the only file format currently produced.
const FormatCSV = "csv"

var csvHeader = []string{
	"symbol",
	"interval",
	"open_time",
	"open",
	"high",
	"low",
	"close",
	"volume",
	"close_time",
	"quote_asset_volume",
	"number_of_trades",
	"taker_buy_base_asset_volume",
	"taker_buy_quote_asset_volume",
	"open_time_dt",
	"close_time_dt",
	"fetched_at",
}

// FileSink writes one partition file per dataset under a base directory.
// Existing partitions are overwritten in place.
type FileSink struct {
	dir    string
	logger zerolog.Logger
}

// NewFileSink constructs a file sink rooted at dir, creating it if needed.
func NewFileSink(dir string, logger zerolog.Logger) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("file sink: output directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &FileSink{dir: dir, logger: logger.With().Str("component", "file_sink").Logger()}, nil
}

// Save writes records as one CSV partition named after the dataset.
func (s *FileSink) Save(ctx context.Context, dataset string, records []kline.Record, format string) (SaveOutcome, error) {
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV {
		return SaveOutcome{}, fmt.Errorf("file sink: unsupported format %q", format)
	}
	if err := ctx.Err(); err != nil {
		return SaveOutcome{}, err
	}

	path := filepath.Join(s.dir, dataset+"."+FormatCSV)
	file, err := os.Create(path)
	if err != nil {
		return SaveOutcome{}, fmt.Errorf("create partition %s: %w", dataset, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return SaveOutcome{}, err
	}

	for _, rec := range records {
		row := []string{
			rec.Symbol,
			rec.Interval,
			strconv.FormatInt(rec.OpenTime, 10),
			rec.Open.String(),
			rec.High.String(),
			rec.Low.String(),
			rec.Close.String(),
			rec.Volume.String(),
			strconv.FormatInt(rec.CloseTime, 10),
			rec.QuoteAssetVolume.String(),
			strconv.FormatInt(rec.NumberOfTrades, 10),
			rec.TakerBuyBaseAssetVolume.String(),
			rec.TakerBuyQuoteAssetVolume.String(),
			rec.OpenTimeUTC().Format(time.RFC3339),
			rec.CloseTimeUTC().Format(time.RFC3339),
			rec.FetchedAt.Format(time.RFC3339Nano),
		}
		if err := writer.Write(row); err != nil {
			return SaveOutcome{}, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return SaveOutcome{}, err
	}

	info, err := file.Stat()
	if err != nil {
		return SaveOutcome{}, err
	}

	outcome := SaveOutcome{
		Dataset:   dataset,
		Location:  path,
		RowCount:  len(records),
		SizeBytes: info.Size(),
	}

	s.logger.Info().
		Str("dataset", dataset).
		Int("rows", outcome.RowCount).
		Int64("bytes", outcome.SizeBytes).
		Msg("partition written")

	return outcome, nil
}

var _ Sink = (*FileSink)(nil)
