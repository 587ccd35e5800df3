package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"kline-backfill/internal/fetcher"
	"kline-backfill/internal/kline"
	"kline-backfill/internal/ledger"
	"kline-backfill/internal/storage"
)

const hourMS = int64(3_600_000)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func hourInterval(t *testing.T) kline.Interval {
	t.Helper()
	iv, err := kline.ParseInterval("1h")
	if err != nil {
		t.Fatalf("parse interval: %v", err)
	}
	return iv
}

func makeRows(startMS int64, n int) []kline.RawRow {
	rows := make([]kline.RawRow, 0, n)
	for i := 0; i < n; i++ {
		openTS := startMS + int64(i)*hourMS
		closeTS := openTS + hourMS - 1
		rows = append(rows, kline.RawRow{
			json.Number(strconv.FormatInt(openTS, 10)),
			"100.0", "101.0", "99.0", "100.5", "10.0",
			json.Number(strconv.FormatInt(closeTS, 10)),
			"1000.0",
			json.Number("42"),
			"5.0", "500.0",
			json.Number("0"),
		})
	}
	return rows
}

// stubWindows serves canned per-symbol results or errors.
type stubWindows struct {
	rows     map[string][]kline.RawRow
	errs     map[string]error
	requests []fetcher.WindowRequest
}

func (s *stubWindows) Fetch(ctx context.Context, req fetcher.WindowRequest) (fetcher.Result, error) {
	s.requests = append(s.requests, req)
	if err := s.errs[req.Symbol]; err != nil {
		return fetcher.Result{}, err
	}
	rows := s.rows[req.Symbol]
	return fetcher.Result{
		Symbol:      req.Symbol,
		Interval:    req.Interval,
		Rows:        rows,
		TotalCount:  len(rows),
		WindowStart: req.StartTime(),
		WindowEnd:   req.EndTime(),
	}, nil
}

// recordingSink captures saves and optionally fails.
type recordingSink struct {
	saves map[string]int
	fail  error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{saves: make(map[string]int)}
}

func (s *recordingSink) Save(ctx context.Context, dataset string, records []kline.Record, format string) (storage.SaveOutcome, error) {
	if s.fail != nil {
		return storage.SaveOutcome{}, s.fail
	}
	s.saves[dataset] = len(records)
	return storage.SaveOutcome{Dataset: dataset, RowCount: len(records)}, nil
}

func testSummary(startMS, endMS int64, currencies ...string) ledger.TransactionSummary {
	return ledger.TransactionSummary{
		Currencies:  currencies,
		StartMS:     startMS,
		EndMS:       endMS,
		RecordCount: len(currencies),
	}
}

func newService(t *testing.T, windows WindowFetcher, sinks ...storage.Sink) *Service {
	t.Helper()
	return New(windows, sinks, Options{
		Interval:    hourInterval(t),
		QuoteAsset:  "USDT",
		Exclude:     CurrencySet([]string{"VND"}),
		Stablecoins: CurrencySet([]string{"USDT", "USDC", "BUSD"}),
	}, noopLogger())
}

func TestRunIsolatesSymbolFailure(t *testing.T) {
	start := int64(1704067200000)
	end := start + 24*hourMS
	upstream := &fetcher.UpstreamError{Symbol: "ETHUSDT", Attempts: 3, Cause: errors.New("unavailable")}

	windows := &stubWindows{
		rows: map[string][]kline.RawRow{
			"BTCUSDT": makeRows(start, 24),
			"SOLUSDT": makeRows(start, 24),
		},
		errs: map[string]error{"ETHUSDT": upstream},
	}
	sink := newRecordingSink()

	summary, err := newService(t, windows, sink).Run(context.Background(), testSummary(start, end, "BTC", "ETH", "SOL"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.TotalSymbols != 3 || summary.SuccessfulCount != 2 || summary.FailedCount != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if len(summary.Outcomes) != summary.TotalSymbols {
		t.Fatalf("expected %d outcomes, got %d", summary.TotalSymbols, len(summary.Outcomes))
	}

	failed := summary.Outcomes[1]
	if failed.Symbol != "ETHUSDT" || failed.Success {
		t.Fatalf("expected ETHUSDT failure, got %+v", failed)
	}
	if !strings.Contains(failed.ErrorMessage, "unavailable") {
		t.Fatalf("error message must carry the cause: %q", failed.ErrorMessage)
	}
	if len(sink.saves) != 2 {
		t.Fatalf("expected 2 persisted datasets, got %d", len(sink.saves))
	}
}

func TestRunScenarioLedgerToPartition(t *testing.T) {
	// Ledger currencies BTC/VND/USDT over one day resolve to BTCUSDT only;
	// the stub returns 24 hourly rows in a single short page.
	start := int64(1704067200000) // 2024-01-01T00:00:00Z
	end := start + 24*hourMS

	windows := &stubWindows{
		rows: map[string][]kline.RawRow{"BTCUSDT": makeRows(start, 24)},
	}
	sink := newRecordingSink()

	summary, err := newService(t, windows, sink).Run(context.Background(), testSummary(start, end, "BTC", "VND", "USDT"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.TotalSymbols != 1 || summary.SuccessfulCount != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.Outcomes[0].RecordCount != 24 {
		t.Fatalf("expected 24 records, got %d", summary.Outcomes[0].RecordCount)
	}

	wantDataset := "BTCUSDT__20240101__20240102"
	if count, ok := sink.saves[wantDataset]; !ok || count != 24 {
		t.Fatalf("expected dataset %s with 24 rows, got %v", wantDataset, sink.saves)
	}
}

func TestRunMarksEmptySymbolFailed(t *testing.T) {
	start := int64(1704067200000)
	windows := &stubWindows{rows: map[string][]kline.RawRow{}}
	sink := newRecordingSink()

	summary, err := newService(t, windows, sink).Run(context.Background(), testSummary(start, start+hourMS, "BTC"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.FailedCount != 1 {
		t.Fatalf("expected 1 failed, got %+v", summary)
	}
	if summary.Outcomes[0].ErrorMessage != "no data from API" {
		t.Fatalf("unexpected message: %q", summary.Outcomes[0].ErrorMessage)
	}
	if len(sink.saves) != 0 {
		t.Fatal("nothing may be persisted for an empty symbol")
	}
}

func TestRunMalformedRowsPersistNothing(t *testing.T) {
	start := int64(1704067200000)
	short := kline.RawRow{
		json.Number(strconv.FormatInt(start, 10)),
		"1", "2", "3", "4", "5",
		json.Number(strconv.FormatInt(start+hourMS-1, 10)),
		"6",
	}
	windows := &stubWindows{rows: map[string][]kline.RawRow{"BTCUSDT": {short}}}
	sink := newRecordingSink()

	summary, err := newService(t, windows, sink).Run(context.Background(), testSummary(start, start+hourMS, "BTC"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.FailedCount != 1 || summary.SuccessfulCount != 0 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if !strings.Contains(summary.Outcomes[0].ErrorMessage, "malformed") {
		t.Fatalf("expected malformed-row message, got %q", summary.Outcomes[0].ErrorMessage)
	}
	if len(sink.saves) != 0 {
		t.Fatal("no partial output may be persisted for a malformed batch")
	}
}

func TestRunSinkFailureIsolatedPerSymbol(t *testing.T) {
	start := int64(1704067200000)
	windows := &stubWindows{rows: map[string][]kline.RawRow{
		"BTCUSDT": makeRows(start, 2),
		"ETHUSDT": makeRows(start, 2),
	}}
	sink := &recordingSink{saves: make(map[string]int), fail: errors.New("disk full")}

	summary, err := newService(t, windows, sink).Run(context.Background(), testSummary(start, start+2*hourMS, "BTC", "ETH"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.FailedCount != 2 {
		t.Fatalf("expected both symbols failed on persistence, got %+v", summary)
	}
	for _, o := range summary.Outcomes {
		if !strings.Contains(o.ErrorMessage, "disk full") {
			t.Fatalf("expected persistence cause, got %q", o.ErrorMessage)
		}
	}
}

func TestRunNoSymbolsFailsFast(t *testing.T) {
	start := int64(1704067200000)
	windows := &stubWindows{}

	_, err := newService(t, windows).Run(context.Background(), testSummary(start, start+hourMS, "USDT", "VND"))
	if !errors.Is(err, ErrNoSymbols) {
		t.Fatalf("expected ErrNoSymbols, got %v", err)
	}
	if len(windows.requests) != 0 {
		t.Fatal("no fetch may happen without resolved symbols")
	}
}

func TestRunRejectsEmptyWindow(t *testing.T) {
	windows := &stubWindows{}

	_, err := newService(t, windows).Run(context.Background(), testSummary(10, 10, "BTC"))
	if !errors.Is(err, fetcher.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if len(windows.requests) != 0 {
		t.Fatal("no fetch may happen for an empty window")
	}
}
