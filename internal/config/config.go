// Package config provides the single read-only configuration object for
// the pipeline: credentials, per-provider rate limits, symbol universes
// and path roots. Configuration is loaded once at process start (file,
// then environment overrides) and passed into each component by
// reference; no component reads globals.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default symbol universes, mirroring the sets the archive was
// originally built from.
var (
	DefaultEquitySymbols  = []string{"AAPL", "GOOGL", "MSFT", "TSLA", "NVDA", "AMZN", "META", "NFLX", "SPY", "QQQ"}
	DefaultCryptoSymbols  = []string{"BTCUSDT", "ETHUSDT", "ADAUSDT", "DOTUSDT", "LINKUSDT", "BNBUSDT", "SOLUSDT", "AVAXUSDT"}
	DefaultFuturesSymbols = []string{"ES=F", "NQ=F", "YM=F", "RTY=F", "CL=F", "GC=F", "SI=F", "ZB=F", "ZN=F", "ZF=F"}
	DefaultOptionsSymbols = []string{"SPY", "QQQ", "AAPL", "TSLA", "NVDA", "MSFT"}
)

// AppConfig is the complete application configuration.
type AppConfig struct {
	// DataRoot is the root of the archive tree.
	DataRoot string `json:"data_root" env:"DATA_ROOT"`

	// Compress selects zip containers for sub-daily archive files;
	// false writes bare csv.
	Compress bool `json:"compress" env:"ARCHIVE_COMPRESS"`

	// Resolution and date range applied to every symbol request.
	Resolution string `json:"resolution" env:"RESOLUTION"`
	StartDate  string `json:"start_date" env:"START_DATE"` // YYYY-MM-DD
	EndDate    string `json:"end_date" env:"END_DATE"`     // YYYY-MM-DD

	// Symbol universes per asset class.
	EquitySymbols  []string `json:"equity_symbols"`
	CryptoSymbols  []string `json:"crypto_symbols"`
	FuturesSymbols []string `json:"futures_symbols"`
	OptionsSymbols []string `json:"options_symbols"`

	// Provider credentials and budgets.
	Alpaca  ProviderConfig `json:"alpaca"`
	Binance ProviderConfig `json:"binance"`
	Yahoo   ProviderConfig `json:"yahoo"`

	Logging LoggingConfig `json:"logging"`

	// Retry tuning for transient fetch failures.
	RetryAttempts int `json:"retry_attempts" env:"RETRY_ATTEMPTS"`
}

// ProviderConfig holds one provider's credentials and request budget.
type ProviderConfig struct {
	APIKey            string `json:"api_key"`
	APISecret         string `json:"api_secret"`
	RequestsPerMinute int    `json:"requests_per_minute"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `json:"level" env:"LOG_LEVEL"`       // debug, info, warn, error
	Format   string `json:"format" env:"LOG_FORMAT"`     // json, text
	FilePath string `json:"file_path" env:"LOG_FILE"`    // empty logs to stderr
	MaxSize  int    `json:"max_size" env:"LOG_MAX_SIZE"` // rotated file size in MB
}

// Default returns the configuration defaults: one year of minute data
// for the default universes, zip containers, info-level text logs.
func Default() *AppConfig {
	now := time.Now().UTC()
	return &AppConfig{
		DataRoot:       "data",
		Compress:       true,
		Resolution:     "minute",
		StartDate:      now.AddDate(-1, 0, 0).Format("2006-01-02"),
		EndDate:        now.Format("2006-01-02"),
		EquitySymbols:  DefaultEquitySymbols,
		CryptoSymbols:  DefaultCryptoSymbols,
		FuturesSymbols: DefaultFuturesSymbols,
		OptionsSymbols: DefaultOptionsSymbols,
		Alpaca:         ProviderConfig{RequestsPerMinute: 200},
		Binance:        ProviderConfig{RequestsPerMinute: 1200},
		Yahoo:          ProviderConfig{RequestsPerMinute: 2000},
		Logging:        LoggingConfig{Level: "info", Format: "text", MaxSize: 100},
		RetryAttempts:  3,
	}
}

// Load builds the configuration: defaults, then the JSON file at path
// (if it exists), then environment overrides, then validation.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	loadEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func loadEnv(cfg *AppConfig) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString(&cfg.DataRoot, "DATA_ROOT")
	setString(&cfg.Resolution, "RESOLUTION")
	setString(&cfg.StartDate, "START_DATE")
	setString(&cfg.EndDate, "END_DATE")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Logging.FilePath, "LOG_FILE")
	setInt(&cfg.Logging.MaxSize, "LOG_MAX_SIZE")
	setInt(&cfg.RetryAttempts, "RETRY_ATTEMPTS")

	if v := os.Getenv("ARCHIVE_COMPRESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Compress = b
		}
	}

	setString(&cfg.Alpaca.APIKey, "ALPACA_API_KEY")
	setString(&cfg.Alpaca.APISecret, "ALPACA_SECRET_KEY")
	setInt(&cfg.Alpaca.RequestsPerMinute, "ALPACA_RATE_LIMIT")
	setString(&cfg.Binance.APIKey, "BINANCE_API_KEY")
	setString(&cfg.Binance.APISecret, "BINANCE_SECRET_KEY")
	setInt(&cfg.Binance.RequestsPerMinute, "BINANCE_RATE_LIMIT")
	setInt(&cfg.Yahoo.RequestsPerMinute, "YAHOO_RATE_LIMIT")
}

// Validate checks the loaded configuration for usable values.
func (c *AppConfig) Validate() error {
	if c.DataRoot == "" {
		return fmt.Errorf("data_root cannot be empty")
	}

	if _, err := c.Start(); err != nil {
		return err
	}
	if _, err := c.End(); err != nil {
		return err
	}

	for name, p := range map[string]ProviderConfig{"alpaca": c.Alpaca, "binance": c.Binance, "yahoo": c.Yahoo} {
		if p.RequestsPerMinute <= 0 {
			return fmt.Errorf("%s: requests_per_minute must be positive", name)
		}
	}

	if c.RetryAttempts <= 0 {
		return fmt.Errorf("retry_attempts must be positive")
	}

	return nil
}

// Start parses the configured start date.
func (c *AppConfig) Start() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start_date %q: %w", c.StartDate, err)
	}
	return t, nil
}

// End parses the configured end date.
func (c *AppConfig) End() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.EndDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid end_date %q: %w", c.EndDate, err)
	}
	return t, nil
}
