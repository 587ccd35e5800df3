package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: klinefill\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Binance.BaseURL != "https://api.binance.com" {
		t.Fatalf("unexpected base url: %s", cfg.Binance.BaseURL)
	}
	if cfg.Binance.PageLimit != 1000 {
		t.Fatalf("unexpected page limit: %d", cfg.Binance.PageLimit)
	}
	if cfg.Binance.PageDelay != 200*time.Millisecond {
		t.Fatalf("unexpected page delay: %s", cfg.Binance.PageDelay)
	}
	if cfg.Binance.SymbolDelay != time.Second {
		t.Fatalf("unexpected symbol delay: %s", cfg.Binance.SymbolDelay)
	}
	if cfg.Binance.Retry.MaxAttempts != 3 {
		t.Fatalf("unexpected retry attempts: %d", cfg.Binance.Retry.MaxAttempts)
	}
	if cfg.Binance.Retry.InitialBackoff != 2*time.Second || cfg.Binance.Retry.MaxBackoff != 10*time.Second {
		t.Fatalf("unexpected retry backoff: %+v", cfg.Binance.Retry)
	}
	if cfg.Ingestion.Interval != "1h" || cfg.Ingestion.QuoteAsset != "USDT" {
		t.Fatalf("unexpected ingestion defaults: %+v", cfg.Ingestion)
	}
	if len(cfg.Ingestion.Exclude) != 5 || cfg.Ingestion.Exclude[0] != "VND" {
		t.Fatalf("unexpected exclusions: %v", cfg.Ingestion.Exclude)
	}
	if len(cfg.Ingestion.Stablecoins) != 3 {
		t.Fatalf("unexpected stablecoins: %v", cfg.Ingestion.Stablecoins)
	}
	if cfg.Storage.Format != "csv" {
		t.Fatalf("unexpected storage format: %s", cfg.Storage.Format)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
binance:
  page_limit: 500
  page_delay: 50ms
ingestion:
  interval: 1d
  quote_asset: BUSD
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Binance.PageLimit != 500 {
		t.Fatalf("unexpected page limit: %d", cfg.Binance.PageLimit)
	}
	if cfg.Binance.PageDelay != 50*time.Millisecond {
		t.Fatalf("unexpected page delay: %s", cfg.Binance.PageDelay)
	}
	if cfg.Ingestion.Interval != "1d" || cfg.Ingestion.QuoteAsset != "BUSD" {
		t.Fatalf("unexpected ingestion overrides: %+v", cfg.Ingestion)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"page limit too large", "binance:\n  page_limit: 1500\n"},
		{"zero retry attempts", "binance:\n  retry:\n    max_attempts: 0\n"},
		{"negative delay", "binance:\n  page_delay: -1s\n"},
		{"unknown interval", "ingestion:\n  interval: 7m\n"},
		{"empty quote asset", "ingestion:\n  quote_asset: \" \"\n"},
		{"unsupported format", "storage:\n  format: parquet\n"},
		{"zero export points", "export:\n  max_data_points: 0\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Fatalf("expected validation error for %q", tc.yaml)
			}
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 100}}

	if got := cfg.ResolveMaxPoints(0); got != 100 {
		t.Fatalf("expected config default, got %d", got)
	}
	if got := cfg.ResolveMaxPoints(25); got != 25 {
		t.Fatalf("expected override, got %d", got)
	}
}
