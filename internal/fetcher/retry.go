package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"kline-backfill/internal/kline"
)

// RetryOptions tune the per-page retry policy.
type RetryOptions struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 2 * time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Second
	}
	return o
}

// UpstreamError reports that the retry policy exhausted its attempts for a
// single page request.
type UpstreamError struct {
	Symbol   string
	Attempts int
	Cause    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error for %s after %d attempts: %v", e.Symbol, e.Attempts, e.Cause)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// retrySource wraps a PageSource so each individual page request is retried
// with exponential backoff. Already fetched pages are never replayed: the
// wrapper sees one page at a time.
type retrySource struct {
	inner  PageSource
	opts   RetryOptions
	logger zerolog.Logger
}

// WithRetry decorates source with the retry policy.
func WithRetry(source PageSource, opts RetryOptions, logger zerolog.Logger) PageSource {
	return &retrySource{
		inner:  source,
		opts:   opts.withDefaults(),
		logger: logger.With().Str("component", "retry").Logger(),
	}
}

func (s *retrySource) FetchPage(ctx context.Context, req PageRequest) ([]kline.RawRow, error) {
	var rows []kline.RawRow
	attempts := 0

	operation := func() error {
		attempts++
		var err error
		rows, err = s.inner.FetchPage(ctx, req)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		s.logger.Warn().
			Err(err).
			Str("symbol", req.Symbol).
			Int64("start_ms", req.StartMS).
			Int("attempt", attempts).
			Msg("transient page failure, will retry")
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.InitialBackoff
	policy.MaxInterval = s.opts.MaxBackoff
	policy.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(s.opts.MaxAttempts-1)), ctx))
	if err != nil {
		// Permanent failures (client errors, cancellation) propagate as-is;
		// only exhausted transient failures become UpstreamError.
		if !isRetryable(err) {
			return nil, err
		}
		return nil, &UpstreamError{Symbol: req.Symbol, Attempts: attempts, Cause: err}
	}
	return rows, nil
}

// isRetryable classifies transport failures and 5xx responses as transient.
// Client errors and cancelled contexts are terminal.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

var _ PageSource = (*retrySource)(nil)
