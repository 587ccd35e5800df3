package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"kline-backfill/internal/kline"
	"kline-backfill/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Binance   BinanceConfig   `mapstructure:"binance"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// BinanceConfig captures exchange API connectivity and pacing.
type BinanceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	KlinesPath     string        `mapstructure:"klines_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PageLimit      int           `mapstructure:"page_limit"`
	PageDelay      time.Duration `mapstructure:"page_delay"`
	SymbolDelay    time.Duration `mapstructure:"symbol_delay"`
	UserAgent      string        `mapstructure:"user_agent"`
	Retry          RetryConfig   `mapstructure:"retry"`
}

// RetryConfig governs per-page retry behaviour.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// IngestionConfig selects what gets fetched.
type IngestionConfig struct {
	Interval    string   `mapstructure:"interval"`
	QuoteAsset  string   `mapstructure:"quote_asset"`
	Exclude     []string `mapstructure:"exclude"`
	Stablecoins []string `mapstructure:"stablecoins"`
}

// StorageConfig sets file output behaviour.
type StorageConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	Format    string `mapstructure:"format"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KLINEFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "klinefill")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("binance.base_url", "https://api.binance.com")
	v.SetDefault("binance.klines_path", "/api/v3/klines")
	v.SetDefault("binance.request_timeout", "30s")
	v.SetDefault("binance.page_limit", 1000)
	v.SetDefault("binance.page_delay", "200ms")
	v.SetDefault("binance.symbol_delay", "1s")
	v.SetDefault("binance.user_agent", "klinefill/1.0")
	v.SetDefault("binance.retry.max_attempts", 3)
	v.SetDefault("binance.retry.initial_backoff", "2s")
	v.SetDefault("binance.retry.max_backoff", "10s")

	v.SetDefault("ingestion.interval", "1h")
	v.SetDefault("ingestion.quote_asset", "USDT")
	v.SetDefault("ingestion.exclude", []string{"VND", "USD", "EUR", "GBP", "JPY"})
	v.SetDefault("ingestion.stablecoins", []string{"USDT", "USDC", "BUSD"})

	v.SetDefault("storage.output_dir", "output/raw_rates")
	v.SetDefault("storage.format", "csv")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Binance.PageLimit <= 0 || c.Binance.PageLimit > 1000 {
		return fmt.Errorf("binance.page_limit must be in (0, 1000]")
	}
	if c.Binance.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("binance.retry.max_attempts must be greater than zero")
	}
	if c.Binance.PageDelay < 0 || c.Binance.SymbolDelay < 0 {
		return fmt.Errorf("binance pacing delays cannot be negative")
	}
	if _, err := kline.ParseInterval(c.Ingestion.Interval); err != nil {
		return fmt.Errorf("ingestion.interval: %w", err)
	}
	if strings.TrimSpace(c.Ingestion.QuoteAsset) == "" {
		return fmt.Errorf("ingestion.quote_asset must not be empty")
	}
	if c.Storage.Format != "" && c.Storage.Format != "csv" {
		return fmt.Errorf("storage.format %q is not supported", c.Storage.Format)
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
