package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"kline-backfill/internal/kline"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS klines (
        symbol TEXT NOT NULL,
        interval TEXT NOT NULL,
        open_time BIGINT NOT NULL,
        open NUMERIC NOT NULL,
        high NUMERIC NOT NULL,
        low NUMERIC NOT NULL,
        close NUMERIC NOT NULL,
        volume NUMERIC NOT NULL,
        close_time BIGINT NOT NULL,
        quote_asset_volume NUMERIC NOT NULL,
        number_of_trades BIGINT NOT NULL,
        taker_buy_base_asset_volume NUMERIC NOT NULL,
        taker_buy_quote_asset_volume NUMERIC NOT NULL,
        fetched_at TIMESTAMPTZ NOT NULL,
        PRIMARY KEY (symbol, interval, open_time)
    );`,
	`CREATE TABLE IF NOT EXISTS ingestion_runs (
        id BIGSERIAL PRIMARY KEY,
        started_at TIMESTAMPTZ NOT NULL,
        finished_at TIMESTAMPTZ NOT NULL,
        total_symbols INT NOT NULL,
        successful_count INT NOT NULL,
        failed_count INT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`,
	`CREATE TABLE IF NOT EXISTS ingestion_symbol_outcomes (
        id BIGSERIAL PRIMARY KEY,
        run_id BIGINT NOT NULL REFERENCES ingestion_runs(id) ON DELETE CASCADE,
        symbol TEXT NOT NULL,
        interval TEXT NOT NULL,
        success BOOLEAN NOT NULL,
        record_count INT NOT NULL,
        error TEXT
    );`,
}

const (
	upsertKlineSQL = `INSERT INTO klines (
        symbol,
        interval,
        open_time,
        open,
        high,
        low,
        close,
        volume,
        close_time,
        quote_asset_volume,
        number_of_trades,
        taker_buy_base_asset_volume,
        taker_buy_quote_asset_volume,
        fetched_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
    )
    ON CONFLICT (symbol, interval, open_time) DO UPDATE
    SET
        open                         = EXCLUDED.open,
        high                         = EXCLUDED.high,
        low                          = EXCLUDED.low,
        close                        = EXCLUDED.close,
        volume                       = EXCLUDED.volume,
        close_time                   = EXCLUDED.close_time,
        quote_asset_volume           = EXCLUDED.quote_asset_volume,
        number_of_trades             = EXCLUDED.number_of_trades,
        taker_buy_base_asset_volume  = EXCLUDED.taker_buy_base_asset_volume,
        taker_buy_quote_asset_volume = EXCLUDED.taker_buy_quote_asset_volume,
        fetched_at                   = EXCLUDED.fetched_at;`

	insertRunSQL = `INSERT INTO ingestion_runs (
        started_at,
        finished_at,
        total_symbols,
        successful_count,
        failed_count
    ) VALUES ($1,$2,$3,$4,$5)
    RETURNING id, created_at;`

	insertOutcomeSQL = `INSERT INTO ingestion_symbol_outcomes (
        run_id,
        symbol,
        interval,
        success,
        record_count,
        error
    ) VALUES ($1,$2,$3,$4,$5,$6);`

	listRecentRunsSQL = `SELECT
        id,
        started_at,
        finished_at,
        total_symbols,
        successful_count,
        failed_count,
        created_at
    FROM ingestion_runs
    ORDER BY started_at DESC
    LIMIT $1;`

	listRunOutcomesSQL = `SELECT
        id,
        run_id,
        symbol,
        interval,
        success,
        record_count,
        error
    FROM ingestion_symbol_outcomes
    WHERE run_id = $1
    ORDER BY symbol;`

	listClosesSQL = `SELECT
        open_time,
        close
    FROM klines
    WHERE symbol = $1
      AND interval = $2
      AND open_time >= $3
      AND open_time < $4
    ORDER BY open_time;`

	countKlinesSQL = `SELECT COUNT(*) FROM klines;`
)

// KlineStore defines relational persistence for normalized klines.
type KlineStore interface {
	UpsertKlines(ctx context.Context, records []kline.Record) error
	ListCloses(ctx context.Context, symbol, interval string, from, to time.Time) ([]ClosePoint, error)
	CountKlines(ctx context.Context) (int64, error)
}

// RunStore defines persistence for run history.
type RunStore interface {
	InsertRun(ctx context.Context, run RunRecord, outcomes []OutcomeRecord) (RunRecord, error)
	ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	ListRunOutcomes(ctx context.Context, runID int64) ([]OutcomeRecord, error)
}

// Store aggregates relational access to klines and run history.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the klines and run-history tables when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	for _, stmt := range schemaStatements {
		if _, execErr := pool.Exec(ctx, stmt); execErr != nil {
			return fmt.Errorf("ensure schema: %w", execErr)
		}
	}
	return nil
}

// UpsertKlines persists records in one batch, overwriting on the natural key.
func (s *Store) UpsertKlines(ctx context.Context, records []kline.Record) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(upsertKlineSQL,
			rec.Symbol,
			rec.Interval,
			rec.OpenTime,
			rec.Open.String(),
			rec.High.String(),
			rec.Low.String(),
			rec.Close.String(),
			rec.Volume.String(),
			rec.CloseTime,
			rec.QuoteAssetVolume.String(),
			rec.NumberOfTrades,
			rec.TakerBuyBaseAssetVolume.String(),
			rec.TakerBuyQuoteAssetVolume.String(),
			rec.FetchedAt,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("upsert klines: %w", execErr)
		}
	}
	return nil
}

// Save implements Sink on top of the klines table. The dataset name is only
// informational here: idempotence comes from the upsert key.
func (s *Store) Save(ctx context.Context, dataset string, records []kline.Record, format string) (SaveOutcome, error) {
	if err := s.UpsertKlines(ctx, records); err != nil {
		return SaveOutcome{}, err
	}
	return SaveOutcome{
		Dataset:  dataset,
		Location: "klines",
		RowCount: len(records),
	}, nil
}

// InsertRun persists a run header together with its per-symbol outcomes.
func (s *Store) InsertRun(ctx context.Context, run RunRecord, outcomes []OutcomeRecord) (RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return RunRecord{}, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return RunRecord{}, fmt.Errorf("begin run insert: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, insertRunSQL,
		run.StartedAt,
		run.FinishedAt,
		run.TotalSymbols,
		run.SuccessfulCount,
		run.FailedCount,
	)
	if scanErr := row.Scan(&run.ID, &run.CreatedAt); scanErr != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", scanErr)
	}

	for _, outcome := range outcomes {
		var errMsg interface{}
		if outcome.Error != nil {
			errMsg = *outcome.Error
		}
		if _, execErr := tx.Exec(ctx, insertOutcomeSQL,
			run.ID,
			outcome.Symbol,
			outcome.Interval,
			outcome.Success,
			outcome.RecordCount,
			errMsg,
		); execErr != nil {
			return RunRecord{}, fmt.Errorf("insert outcome: %w", execErr)
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return RunRecord{}, fmt.Errorf("commit run insert: %w", commitErr)
	}
	return run, nil
}

// ListRecentRuns lists the most recent runs ordered by start time.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		var run RunRecord
		if scanErr := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.TotalSymbols,
			&run.SuccessfulCount,
			&run.FailedCount,
			&run.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// ListRunOutcomes lists a run's per-symbol outcomes ordered by symbol.
func (s *Store) ListRunOutcomes(ctx context.Context, runID int64) ([]OutcomeRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRunOutcomesSQL, runID)
	if queryErr != nil {
		return nil, fmt.Errorf("list run outcomes: %w", queryErr)
	}
	defer rows.Close()

	outcomes := make([]OutcomeRecord, 0)
	for rows.Next() {
		var rec OutcomeRecord
		var errMsg sql.NullString
		if scanErr := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Symbol,
			&rec.Interval,
			&rec.Success,
			&rec.RecordCount,
			&errMsg,
		); scanErr != nil {
			return nil, scanErr
		}
		if errMsg.Valid {
			msg := errMsg.String
			rec.Error = &msg
		}
		outcomes = append(outcomes, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return outcomes, nil
}

// ListCloses returns the close series for one symbol within a window.
func (s *Store) ListCloses(ctx context.Context, symbol, interval string, from, to time.Time) ([]ClosePoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listClosesSQL, symbol, interval, from.UnixMilli(), to.UnixMilli())
	if queryErr != nil {
		return nil, fmt.Errorf("list closes: %w", queryErr)
	}
	defer rows.Close()

	points := make([]ClosePoint, 0)
	for rows.Next() {
		var openTime int64
		var closeStr string
		if scanErr := rows.Scan(&openTime, &closeStr); scanErr != nil {
			return nil, scanErr
		}
		closeVal, convErr := decimal.NewFromString(closeStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse close: %w", convErr)
		}
		points = append(points, ClosePoint{
			Bucket: time.UnixMilli(openTime).UTC(),
			Close:  closeVal,
		})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

// CountKlines counts stored klines.
func (s *Store) CountKlines(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countKlinesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count klines: %w", scanErr)
	}
	return count, nil
}

var _ Sink = (*Store)(nil)
var _ KlineStore = (*Store)(nil)
var _ RunStore = (*Store)(nil)
