package kline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// MalformedRowError reports a raw row that does not match the expected
// exchange shape. It aborts normalization of the whole batch: a short row
// means the upstream schema changed.
type MalformedRowError struct {
	Index  int
	Fields int
	Cause  error
}

func (e *MalformedRowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed kline row %d: %v", e.Index, e.Cause)
	}
	return fmt.Sprintf("malformed kline row %d: got %d fields, want %d", e.Index, e.Fields, rawRowFields)
}

func (e *MalformedRowError) Unwrap() error {
	return e.Cause
}

// Normalize converts raw positional rows into typed records, stamping each
// with the current UTC wall clock. It is pure apart from that timestamp.
func Normalize(symbol string, interval Interval, rows []RawRow) ([]Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	fetchedAt := time.Now().UTC()
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		if len(row) < rawRowFields {
			return nil, &MalformedRowError{Index: i, Fields: len(row)}
		}

		rec := Record{
			Symbol:    symbol,
			Interval:  interval.Key,
			FetchedAt: fetchedAt,
		}

		var err error
		if rec.OpenTime, err = toInt64(row[0]); err != nil {
			return nil, &MalformedRowError{Index: i, Cause: fmt.Errorf("open_time: %w", err)}
		}
		if rec.Open, err = toDecimal(row[1]); err != nil {
			return nil, &MalformedRowError{Index: i, Cause: fmt.Errorf("open: %w", err)}
		}
		if rec.High, err = toDecimal(row[2]); err != nil {
			return nil, &MalformedRowError{Index: i, Cause: fmt.Errorf("high: %w", err)}
		}
		if rec.Low, err = toDecimal(row[3]); err != nil {
			return nil, &MalformedRowError{Index: i, Cause: fmt.Errorf("low: %w", err)}
		}
		if rec.Close, err = toDecimal(row[4]); err != nil {
			return nil, &MalformedRowError{Index: i, Cause: fmt.Errorf("close: %w", err)}
		}
		if rec.Volume, err = toDecimal(row[5]); err != nil {
			return nil, &MalformedRowError{Index: i, Cause: fmt.Errorf("volume: %w", err)}
		}
		if rec.CloseTime, err = toInt64(row[6]); err != nil {
			return nil, &MalformedRowError{Index: i, Cause: fmt.Errorf("close_time: %w", err)}
		}
		if rec.QuoteAssetVolume, err = toDecimal(row[7]); err != nil {
			return nil, &MalformedRowError{Index: i, Cause: fmt.Errorf("quote_asset_volume: %w", err)}
		}
		if rec.NumberOfTrades, err = toInt64(row[8]); err != nil {
			return nil, &MalformedRowError{Index: i, Cause: fmt.Errorf("number_of_trades: %w", err)}
		}
		if rec.TakerBuyBaseAssetVolume, err = toDecimal(row[9]); err != nil {
			return nil, &MalformedRowError{Index: i, Cause: fmt.Errorf("taker_buy_base_asset_volume: %w", err)}
		}
		if rec.TakerBuyQuoteAssetVolume, err = toDecimal(row[10]); err != nil {
			return nil, &MalformedRowError{Index: i, Cause: fmt.Errorf("taker_buy_quote_asset_volume: %w", err)}
		}

		records = append(records, rec)
	}

	return records, nil
}

// CloseTimeOf extracts the close_time field from a raw row without fully
// normalizing it. The pagination cursor advances on this value.
func CloseTimeOf(row RawRow) (int64, error) {
	if len(row) < 7 {
		return 0, &MalformedRowError{Fields: len(row)}
	}
	return toInt64(row[6])
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseInt(t, 10, 64)
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case json.Number:
		return t.Int64()
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		return decimal.NewFromString(t)
	case float64:
		return decimal.NewFromFloat(t), nil
	case json.Number:
		return decimal.NewFromString(t.String())
	default:
		return decimal.Decimal{}, fmt.Errorf("cannot convert %T to decimal", v)
	}
}
