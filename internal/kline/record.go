package kline

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawRow is one kline as returned by the exchange: a 12-element positional
// array mixing numbers and decimal strings.
type RawRow []any

// rawRowFields is the number of positions the exchange guarantees per row.
const rawRowFields = 12

// Record is a normalized candle for one (symbol, interval, open time) bucket.
type Record struct {
	Symbol                   string
	Interval                 string
	OpenTime                 int64
	Open                     decimal.Decimal
	High                     decimal.Decimal
	Low                      decimal.Decimal
	Close                    decimal.Decimal
	Volume                   decimal.Decimal
	CloseTime                int64
	QuoteAssetVolume         decimal.Decimal
	NumberOfTrades           int64
	TakerBuyBaseAssetVolume  decimal.Decimal
	TakerBuyQuoteAssetVolume decimal.Decimal
	FetchedAt                time.Time
}

// OpenTimeUTC returns the bucket open timestamp as a UTC time.
func (r Record) OpenTimeUTC() time.Time {
	return time.UnixMilli(r.OpenTime).UTC()
}

// CloseTimeUTC returns the bucket close timestamp as a UTC time.
func (r Record) CloseTimeUTC() time.Time {
	return time.UnixMilli(r.CloseTime).UTC()
}
