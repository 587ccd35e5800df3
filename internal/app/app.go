package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"kline-backfill/internal/config"
	"kline-backfill/internal/fetcher"
	"kline-backfill/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// newWindowFetcher builds the page source chain: Binance client wrapped in
// the retry policy, driven by the pagination loop.
func (a *App) newWindowFetcher() *fetcher.WindowFetcher {
	client := fetcher.NewBinance(fetcher.BinanceOptions{
		BaseURL:    a.Config.Binance.BaseURL,
		KlinesPath: a.Config.Binance.KlinesPath,
		Timeout:    a.Config.Binance.RequestTimeout,
		UserAgent:  a.Config.Binance.UserAgent,
	}, a.Logger)

	source := fetcher.WithRetry(client, fetcher.RetryOptions{
		MaxAttempts:    a.Config.Binance.Retry.MaxAttempts,
		InitialBackoff: a.Config.Binance.Retry.InitialBackoff,
		MaxBackoff:     a.Config.Binance.Retry.MaxBackoff,
	}, a.Logger)

	return fetcher.NewWindowFetcher(source, fetcher.WindowOptions{
		PageLimit: a.Config.Binance.PageLimit,
		PageDelay: a.Config.Binance.PageDelay,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// IngestOptions configure the backfill job.
type IngestOptions struct {
	LedgerPath string
	Interval   string
	OutputDir  string
	DryRun     bool
}

// ResolveOptions configure the resolve command.
type ResolveOptions struct {
	LedgerPath string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
	RunID int64
}

// ExportOptions hold parameters for exporting stored klines.
type ExportOptions struct {
	Symbol    string
	From      *time.Time
	To        *time.Time
	CSVPath   string
	PNGPath   string
	MaxPoints int
}
