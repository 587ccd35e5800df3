package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"kline-backfill/internal/kline"
)

// ErrInvalidRequest indicates a malformed window request. Fatal at the call
// site: no fetching is attempted for it.
var ErrInvalidRequest = errors.New("fetcher: invalid window request")

// WindowRequest is the immutable description of one symbol's backfill range.
type WindowRequest struct {
	Symbol   string
	Interval kline.Interval
	StartMS  int64
	EndMS    int64
}

// NewWindowRequest validates and constructs a window request.
func NewWindowRequest(symbol string, interval kline.Interval, startMS, endMS int64) (WindowRequest, error) {
	req := WindowRequest{Symbol: symbol, Interval: interval, StartMS: startMS, EndMS: endMS}
	if err := req.Validate(); err != nil {
		return WindowRequest{}, err
	}
	return req, nil
}

// Validate checks the request invariants.
func (r WindowRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: symbol must not be empty", ErrInvalidRequest)
	}
	if r.Interval.Key == "" {
		return fmt.Errorf("%w: interval must be set", ErrInvalidRequest)
	}
	if r.StartMS >= r.EndMS {
		return fmt.Errorf("%w: start %d must be before end %d", ErrInvalidRequest, r.StartMS, r.EndMS)
	}
	return nil
}

// StartTime returns the window start as UTC time.
func (r WindowRequest) StartTime() time.Time {
	return time.UnixMilli(r.StartMS).UTC()
}

// EndTime returns the window end as UTC time.
func (r WindowRequest) EndTime() time.Time {
	return time.UnixMilli(r.EndMS).UTC()
}

// Result accumulates all pages fetched for one window.
type Result struct {
	Symbol      string
	Interval    kline.Interval
	Rows        []kline.RawRow
	TotalCount  int
	WindowStart time.Time
	WindowEnd   time.Time
}

// IsEmpty reports whether the window returned no data at all.
func (r Result) IsEmpty() bool {
	return r.TotalCount == 0
}

// WindowOptions tune the pagination loop.
type WindowOptions struct {
	PageLimit int
	PageDelay time.Duration
}

// WindowFetcher walks a [start, end) range in bounded pages, advancing a
// cursor derived from the returned data until the range is exhausted.
type WindowFetcher struct {
	source    PageSource
	pageLimit int
	pageDelay time.Duration
	logger    zerolog.Logger
}

// NewWindowFetcher constructs a window fetcher over the given page source.
func NewWindowFetcher(source PageSource, opts WindowOptions, logger zerolog.Logger) *WindowFetcher {
	pageLimit := opts.PageLimit
	if pageLimit <= 0 {
		pageLimit = 1000
	}
	pageDelay := opts.PageDelay
	if pageDelay < 0 {
		pageDelay = 0
	}
	return &WindowFetcher{
		source:    source,
		pageLimit: pageLimit,
		pageDelay: pageDelay,
		logger:    logger.With().Str("component", "window_fetcher").Logger(),
	}
}

// Fetch retrieves every kline in the request's range. The cursor advances to
// the last row's close_time + 1 after each page; using close_time rather than
// open_time avoids re-fetching the final returned interval.
func (f *WindowFetcher) Fetch(ctx context.Context, req WindowRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	result := Result{
		Symbol:      req.Symbol,
		Interval:    req.Interval,
		WindowStart: req.StartTime(),
		WindowEnd:   req.EndTime(),
	}

	f.logger.Info().
		Str("symbol", req.Symbol).
		Str("interval", req.Interval.Key).
		Time("start", result.WindowStart).
		Time("end", result.WindowEnd).
		Msg("fetching window")

	cursor := req.StartMS
	pages := 0

	for cursor < req.EndMS {
		rows, err := f.source.FetchPage(ctx, PageRequest{
			Symbol:   req.Symbol,
			Interval: req.Interval.Key,
			StartMS:  cursor,
			EndMS:    req.EndMS,
			Limit:    f.pageLimit,
		})
		if err != nil {
			return Result{}, err
		}

		// No more data in range. Normal termination, not an error.
		if len(rows) == 0 {
			break
		}

		result.Rows = append(result.Rows, rows...)
		pages++

		lastClose, err := kline.CloseTimeOf(rows[len(rows)-1])
		if err != nil {
			return Result{}, err
		}
		if lastClose+1 <= cursor {
			return Result{}, fmt.Errorf("cursor did not advance for %s: close_time %d at cursor %d", req.Symbol, lastClose, cursor)
		}
		cursor = lastClose + 1

		f.logger.Debug().
			Str("symbol", req.Symbol).
			Int("page", pages).
			Int("rows", len(rows)).
			Int64("cursor", cursor).
			Msg("page accumulated")

		// A short page means the exchange has no further data in range.
		if len(rows) < f.pageLimit {
			break
		}

		if cursor < req.EndMS && f.pageDelay > 0 {
			if err := sleepCtx(ctx, f.pageDelay); err != nil {
				return Result{}, err
			}
		}
	}

	result.TotalCount = len(result.Rows)
	f.logger.Info().
		Str("symbol", req.Symbol).
		Int("pages", pages).
		Int("rows", result.TotalCount).
		Msg("window complete")

	return result, nil
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
