package kline

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Interval is a supported candle granularity as understood by the exchange.
type Interval struct {
	Key      string
	Duration time.Duration
}

var supportedIntervals = map[string]Interval{
	"1m":  {Key: "1m", Duration: time.Minute},
	"5m":  {Key: "5m", Duration: 5 * time.Minute},
	"15m": {Key: "15m", Duration: 15 * time.Minute},
	"1h":  {Key: "1h", Duration: time.Hour},
	"4h":  {Key: "4h", Duration: 4 * time.Hour},
	"1d":  {Key: "1d", Duration: 24 * time.Hour},
}

// ParseInterval returns the normalized interval definition.
func ParseInterval(input string) (Interval, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	iv, ok := supportedIntervals[key]
	if !ok {
		return Interval{}, fmt.Errorf("unsupported interval: %q (supported: %s)", input, strings.Join(SupportedIntervals(), ", "))
	}
	return iv, nil
}

// SupportedIntervals returns all supported keys, sorted by duration.
func SupportedIntervals() []string {
	keys := make([]string, 0, len(supportedIntervals))
	for k := range supportedIntervals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return supportedIntervals[keys[i]].Duration < supportedIntervals[keys[j]].Duration
	})
	return keys
}

// Millis returns the interval length in milliseconds.
func (iv Interval) Millis() int64 {
	return iv.Duration.Milliseconds()
}

func (iv Interval) String() string {
	return iv.Key
}
