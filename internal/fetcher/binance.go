package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kline-backfill/internal/kline"
)

const defaultKlinesPath = "/api/v3/klines"

// BinanceOptions parameterise the Binance klines client.
type BinanceOptions struct {
	BaseURL    string
	KlinesPath string
	Timeout    time.Duration
	UserAgent  string
}

// Binance fetches kline pages from the Binance spot REST API.
type Binance struct {
	opts    BinanceOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewBinance constructs a Binance page source.
func NewBinance(opts BinanceOptions, logger zerolog.Logger) *Binance {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	if opts.KlinesPath == "" {
		opts.KlinesPath = defaultKlinesPath
	}

	return &Binance{
		opts:    opts,
		logger:  logger.With().Str("component", "binance_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchPage performs one GET /api/v3/klines request.
func (b *Binance) FetchPage(ctx context.Context, req PageRequest) ([]kline.RawRow, error) {
	endpoint, err := url.Parse(b.baseURL + b.opts.KlinesPath)
	if err != nil {
		return nil, fmt.Errorf("parse klines endpoint: %w", err)
	}

	query := endpoint.Query()
	query.Set("symbol", req.Symbol)
	query.Set("interval", req.Interval)
	query.Set("startTime", strconv.FormatInt(req.StartMS, 10))
	query.Set("endTime", strconv.FormatInt(req.EndMS, 10))
	query.Set("limit", strconv.Itoa(req.Limit))
	endpoint.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(b.opts.UserAgent); ua != "" {
		httpReq.Header.Set("User-Agent", ua)
	} else {
		httpReq.Header.Set("User-Agent", "klinefill/1.0")
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var rows []kline.RawRow
	if err := decoder.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode klines payload: %w", err)
	}

	b.logger.Debug().
		Str("symbol", req.Symbol).
		Int64("start_ms", req.StartMS).
		Int("rows", len(rows)).
		Msg("page fetched")

	return rows, nil
}

// StatusError carries a non-200 exchange response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("binance api error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("binance api error (%d)", e.StatusCode)
}

// Retryable reports whether the response indicates a transient server-side
// condition. Client errors are terminal.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

type errorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Msg != "" {
		return &StatusError{StatusCode: status, Message: apiErr.Msg}
	}
	if len(payload) > 0 {
		return &StatusError{StatusCode: status, Message: strings.TrimSpace(string(payload))}
	}
	return &StatusError{StatusCode: status}
}

var _ PageSource = (*Binance)(nil)
