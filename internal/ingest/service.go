package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"kline-backfill/internal/fetcher"
	"kline-backfill/internal/kline"
	"kline-backfill/internal/ledger"
	"kline-backfill/internal/storage"
)

// ErrNoSymbols indicates symbol resolution produced nothing to fetch. The
// run cannot start.
var ErrNoSymbols = errors.New("ingest: no symbols resolved")

// WindowFetcher is the paginated fetch dependency of the orchestrator.
type WindowFetcher interface {
	Fetch(ctx context.Context, req fetcher.WindowRequest) (fetcher.Result, error)
}

// Options configure one ingestion run.
type Options struct {
	Interval    kline.Interval
	QuoteAsset  string
	Exclude     map[string]struct{}
	Stablecoins map[string]struct{}
	SymbolDelay time.Duration
	Format      string
}

// Service walks the resolved symbol list, isolating each symbol's pipeline so
// one failure never aborts the run.
type Service struct {
	windows WindowFetcher
	sinks   []storage.Sink
	opts    Options
	logger  zerolog.Logger
}

// New constructs the run orchestrator.
func New(windows WindowFetcher, sinks []storage.Sink, opts Options, logger zerolog.Logger) *Service {
	if opts.QuoteAsset == "" {
		opts.QuoteAsset = "USDT"
	}
	if opts.Format == "" {
		opts.Format = storage.FormatCSV
	}
	return &Service{
		windows: windows,
		sinks:   sinks,
		opts:    opts,
		logger:  logger.With().Str("component", "ingest").Logger(),
	}
}

// Run executes a full backfill over the ledger summary's time range. It
// returns an error only when the run could not start at all; per-symbol
// failures are folded into the summary.
func (s *Service) Run(ctx context.Context, summary ledger.TransactionSummary) (RunSummary, error) {
	result := RunSummary{StartTime: time.Now().UTC()}

	if summary.StartMS >= summary.EndMS {
		return result, fmt.Errorf("%w: ledger window [%d, %d) is empty", fetcher.ErrInvalidRequest, summary.StartMS, summary.EndMS)
	}

	symbols := ResolveSymbols(summary.Currencies, s.opts.QuoteAsset, s.opts.Exclude, s.opts.Stablecoins)
	if len(symbols) == 0 {
		return result, ErrNoSymbols
	}

	result.TotalSymbols = len(symbols)
	result.Outcomes = make([]SymbolOutcome, 0, len(symbols))

	s.logger.Info().
		Int("symbols", len(symbols)).
		Str("interval", s.opts.Interval.Key).
		Time("start", summary.StartTime()).
		Time("end", summary.EndTime()).
		Msg("starting run")

	for idx, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			result.EndTime = time.Now().UTC()
			return result, err
		}

		s.logger.Info().
			Str("symbol", symbol).
			Int("position", idx+1).
			Int("total", len(symbols)).
			Msg("processing symbol")

		outcome := s.processSymbol(ctx, symbol, summary)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Success {
			result.SuccessfulCount++
		} else {
			result.FailedCount++
			s.logger.Error().
				Str("symbol", symbol).
				Str("error", outcome.ErrorMessage).
				Msg("symbol failed")
		}

		if idx < len(symbols)-1 && s.opts.SymbolDelay > 0 {
			if err := sleepCtx(ctx, s.opts.SymbolDelay); err != nil {
				result.EndTime = time.Now().UTC()
				return result, err
			}
		}
	}

	result.EndTime = time.Now().UTC()
	s.logger.Info().
		Int("successful", result.SuccessfulCount).
		Int("failed", result.FailedCount).
		Msg("run complete")

	return result, nil
}

func (s *Service) processSymbol(ctx context.Context, symbol string, summary ledger.TransactionSummary) SymbolOutcome {
	outcome := SymbolOutcome{Symbol: symbol, Interval: s.opts.Interval.Key}

	req, err := fetcher.NewWindowRequest(symbol, s.opts.Interval, summary.StartMS, summary.EndMS)
	if err != nil {
		outcome.ErrorMessage = err.Error()
		return outcome
	}

	fetched, err := s.windows.Fetch(ctx, req)
	if err != nil {
		outcome.ErrorMessage = err.Error()
		return outcome
	}

	if fetched.IsEmpty() {
		outcome.ErrorMessage = "no data from API"
		return outcome
	}

	records, err := kline.Normalize(symbol, s.opts.Interval, fetched.Rows)
	if err != nil {
		outcome.ErrorMessage = err.Error()
		return outcome
	}

	dataset := storage.PartitionName(symbol, fetched.WindowStart, fetched.WindowEnd)
	for _, sink := range s.sinks {
		if _, err := sink.Save(ctx, dataset, records, s.opts.Format); err != nil {
			outcome.ErrorMessage = fmt.Sprintf("persist %s: %v", dataset, err)
			return outcome
		}
	}

	outcome.Success = true
	outcome.RecordCount = len(records)
	return outcome
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
