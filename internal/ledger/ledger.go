package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoCurrencies indicates the ledger parsed cleanly but contained no
// usable destination currencies.
var ErrNoCurrencies = errors.New("ledger: no currencies found")

// TransactionSummary is the read-only digest of a transaction ledger that
// drives one ingestion run.
type TransactionSummary struct {
	Currencies  []string
	StartMS     int64
	EndMS       int64
	RecordCount int
}

// StartTime returns the earliest transaction timestamp as UTC time.
func (s TransactionSummary) StartTime() time.Time {
	return time.UnixMilli(s.StartMS).UTC()
}

// EndTime returns the latest transaction timestamp as UTC time.
func (s TransactionSummary) EndTime() time.Time {
	return time.UnixMilli(s.EndMS).UTC()
}

// Reader extracts transaction summaries from delimited ledger files.
type Reader struct {
	logger zerolog.Logger
}

// NewReader constructs a ledger reader.
func NewReader(logger zerolog.Logger) *Reader {
	return &Reader{logger: logger.With().Str("component", "ledger").Logger()}
}

// timestampLayouts lists the created_at formats accepted from upstream
// exports, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Read parses the ledger at path and summarizes its distinct destination
// currencies and covered time range. Missing required columns are fatal.
func (r *Reader) Read(path string) (TransactionSummary, error) {
	file, err := os.Open(path)
	if err != nil {
		return TransactionSummary{}, fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	return r.parse(file)
}

func (r *Reader) parse(src io.Reader) (TransactionSummary, error) {
	reader := csv.NewReader(src)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return TransactionSummary{}, fmt.Errorf("read ledger header: %w", err)
	}

	currencyIdx, createdIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(strings.ToLower(col)) {
		case "destination_currency":
			currencyIdx = i
		case "created_at":
			createdIdx = i
		}
	}
	if currencyIdx < 0 || createdIdx < 0 {
		missing := make([]string, 0, 2)
		if currencyIdx < 0 {
			missing = append(missing, "destination_currency")
		}
		if createdIdx < 0 {
			missing = append(missing, "created_at")
		}
		return TransactionSummary{}, fmt.Errorf("ledger missing required columns: %s", strings.Join(missing, ", "))
	}

	seen := make(map[string]struct{})
	var startMS, endMS int64
	count := 0

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return TransactionSummary{}, fmt.Errorf("read ledger row: %w", err)
		}
		count++

		if currency := strings.ToUpper(strings.TrimSpace(row[currencyIdx])); currency != "" {
			seen[currency] = struct{}{}
		}

		ts, err := parseTimestamp(row[createdIdx])
		if err != nil {
			return TransactionSummary{}, fmt.Errorf("ledger row %d: %w", count, err)
		}
		ms := ts.UnixMilli()
		if startMS == 0 || ms < startMS {
			startMS = ms
		}
		if ms > endMS {
			endMS = ms
		}
	}

	currencies := make([]string, 0, len(seen))
	for c := range seen {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	summary := TransactionSummary{
		Currencies:  currencies,
		StartMS:     startMS,
		EndMS:       endMS,
		RecordCount: count,
	}

	r.logger.Info().
		Int("transactions", count).
		Int("currencies", len(currencies)).
		Time("start", summary.StartTime()).
		Time("end", summary.EndTime()).
		Msg("ledger summarized")

	if len(currencies) == 0 {
		return summary, ErrNoCurrencies
	}
	return summary, nil
}

func parseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable created_at value %q", value)
}
