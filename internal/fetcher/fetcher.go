package fetcher

import (
	"context"

	"kline-backfill/internal/kline"
)

// PageRequest describes one bounded page request against the exchange.
type PageRequest struct {
	Symbol   string
	Interval string
	StartMS  int64
	EndMS    int64
	Limit    int
}

// PageSource fetches a single page of raw klines. An empty slice with a nil
// error means the range holds no more data.
type PageSource interface {
	FetchPage(ctx context.Context, req PageRequest) ([]kline.RawRow, error)
}
