package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"kline-backfill/internal/kline"
)

// flakySource fails a configured number of times before succeeding.
type flakySource struct {
	failures int
	err      error
	rows     []kline.RawRow
	attempts int
}

func (s *flakySource) FetchPage(ctx context.Context, req PageRequest) ([]kline.RawRow, error) {
	s.attempts++
	if s.attempts <= s.failures {
		return nil, s.err
	}
	return s.rows, nil
}

func fastRetry(attempts int) RetryOptions {
	return RetryOptions{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	rows := makeRows(1704067200000, 2)
	source := &flakySource{
		failures: 2,
		err:      &StatusError{StatusCode: 503, Message: "unavailable"},
		rows:     rows,
	}

	got, err := WithRetry(source, fastRetry(3), noopLogger()).
		FetchPage(context.Background(), PageRequest{Symbol: "BTCUSDT"})
	if err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if source.attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", source.attempts)
	}
}

func TestRetryExhaustionYieldsUpstreamError(t *testing.T) {
	cause := &StatusError{StatusCode: 500, Message: "boom"}
	source := &flakySource{failures: 10, err: cause}

	_, err := WithRetry(source, fastRetry(3), noopLogger()).
		FetchPage(context.Background(), PageRequest{Symbol: "BTCUSDT"})
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %T", err)
	}
	if upstream.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", upstream.Attempts)
	}
	if !errors.Is(err, cause) {
		t.Fatal("UpstreamError must carry the last underlying cause")
	}
	if source.attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", source.attempts)
	}
}

func TestRetryDoesNotRetryClientErrors(t *testing.T) {
	cause := &StatusError{StatusCode: 400, Message: "bad symbol"}
	source := &flakySource{failures: 10, err: cause}

	_, err := WithRetry(source, fastRetry(3), noopLogger()).
		FetchPage(context.Background(), PageRequest{Symbol: "NOPEUSDT"})
	if err == nil {
		t.Fatal("expected error")
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		t.Fatal("client errors must not be wrapped as UpstreamError")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected the client error itself, got %v", err)
	}
	if source.attempts != 1 {
		t.Fatalf("client errors must not be retried, got %d attempts", source.attempts)
	}
}

func TestRetryEmptyPageIsNotAFailure(t *testing.T) {
	source := &flakySource{rows: nil}

	rows, err := WithRetry(source, fastRetry(3), noopLogger()).
		FetchPage(context.Background(), PageRequest{Symbol: "BTCUSDT"})
	if err != nil {
		t.Fatalf("empty page must not error: %v", err)
	}
	if rows != nil {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
	if source.attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", source.attempts)
	}
}
