// Package config loads the journal engine configuration from a YAML file,
// a .env file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tradejournal/journal-engine/internal/keycase"
	"github.com/tradejournal/journal-engine/internal/logger"
	"github.com/tradejournal/journal-engine/internal/marketdata"
	"github.com/tradejournal/journal-engine/internal/risk"
	"github.com/tradejournal/journal-engine/internal/trade"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Market data providers.
const (
	ProviderYahoo  = "yahoo"
	ProviderStatic = "static"
	ProviderNone   = "none"
)

type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Store struct {
		Driver      string        `yaml:"driver"`
		SQLitePath  string        `yaml:"sqlite_path"`
		DatabaseURL string        `yaml:"database_url"`
		RedisURL    string        `yaml:"redis_url"`
		CacheTTL    time.Duration `yaml:"cache_ttl"`
	} `yaml:"store"`
	Market struct {
		Timezone  string `yaml:"timezone"`
		CloseTime string `yaml:"close_time"`
	} `yaml:"market"`
	MarketData struct {
		Provider string        `yaml:"provider"`
		BaseURL  string        `yaml:"base_url"`
		Timeout  time.Duration `yaml:"timeout"`
		// Prices are closing-price overrides keyed "TICKER:YYYY-MM-DD".
		Prices map[string]string `yaml:"prices"`
	} `yaml:"market_data"`
	Report struct {
		Dir     string `yaml:"dir"`
		KeyCase string `yaml:"key_case"`
	} `yaml:"report"`
	Risk struct {
		MaxCollateralPerTicker string `yaml:"max_collateral_per_ticker"`
		MaxTotalCollateral     string `yaml:"max_total_collateral"`
	} `yaml:"risk"`
	Log struct {
		Level          string `yaml:"level"`
		Format         string `yaml:"format"`
		TracingEnabled bool   `yaml:"tracing_enabled"`
	} `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads .env (if present), then the YAML file at path (skipped when
// path is empty), then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	c.applyEnv()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Server.Port, "PORT")
	setFromEnv(&c.Store.DatabaseURL, "DATABASE_URL")
	setFromEnv(&c.Store.RedisURL, "REDIS_URL")
	setFromEnv(&c.Store.SQLitePath, "SQLITE_PATH")
	setFromEnv(&c.Store.Driver, "STORE_DRIVER")
	setFromEnv(&c.MarketData.Provider, "MARKET_DATA_PROVIDER")
	setFromEnv(&c.Report.Dir, "REPORT_DIR")
	setFromEnv(&c.Log.Level, "LOG_LEVEL")
	setFromEnv(&c.Log.Format, "LOG_FORMAT")
	if v := os.Getenv("LOG_TRACING_ENABLED"); v != "" {
		c.Log.TracingEnabled, _ = strconv.ParseBool(v)
	}
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}

	// A database URL selects Postgres unless a driver is named.
	if c.Store.Driver == "" {
		if c.Store.DatabaseURL != "" {
			c.Store.Driver = DriverPostgres
		} else {
			c.Store.Driver = DriverSQLite
		}
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "journal.db"
	}
	if c.Store.CacheTTL == 0 {
		c.Store.CacheTTL = 30 * time.Second
	}

	if c.Market.Timezone == "" {
		c.Market.Timezone = "America/New_York"
	}
	if c.Market.CloseTime == "" {
		c.Market.CloseTime = "16:00"
	}

	if c.MarketData.Provider == "" {
		c.MarketData.Provider = ProviderYahoo
	}
	if c.MarketData.Timeout == 0 {
		c.MarketData.Timeout = 10 * time.Second
	}

	if c.Report.Dir == "" {
		c.Report.Dir = "reports"
	}
	if c.Report.KeyCase == "" {
		c.Report.KeyCase = keycase.Snake
	}

	if c.Log.Level == "" {
		c.Log.Level = "INFO"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("store.database_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be 'memory', 'sqlite', or 'postgres', got '%s'", c.Store.Driver)
	}

	switch c.MarketData.Provider {
	case ProviderYahoo, ProviderStatic, ProviderNone:
	default:
		return fmt.Errorf("market_data.provider must be 'yahoo', 'static', or 'none', got '%s'", c.MarketData.Provider)
	}
	if _, err := c.StaticPrices(); err != nil {
		return err
	}

	if c.Report.KeyCase != keycase.Snake && c.Report.KeyCase != keycase.Camel {
		return fmt.Errorf("report.key_case must be 'snake' or 'camel', got '%s'", c.Report.KeyCase)
	}
	if _, err := c.Calendar(); err != nil {
		return err
	}
	if _, err := c.Limiter(); err != nil {
		return err
	}
	return nil
}

// Calendar builds the market calendar from the market section.
func (c *Config) Calendar() (trade.Calendar, error) {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return trade.Calendar{}, fmt.Errorf("market.timezone: %w", err)
	}
	at, err := time.Parse("15:04", c.Market.CloseTime)
	if err != nil {
		return trade.Calendar{}, fmt.Errorf("market.close_time must be HH:MM, got '%s'", c.Market.CloseTime)
	}
	closeAt := time.Duration(at.Hour())*time.Hour + time.Duration(at.Minute())*time.Minute
	return trade.Calendar{Location: loc, Close: closeAt}, nil
}

// Limiter builds the collateral limiter, or nil when no limit is set.
func (c *Config) Limiter() (*risk.Limiter, error) {
	perTicker, err := parseLimit("risk.max_collateral_per_ticker", c.Risk.MaxCollateralPerTicker)
	if err != nil {
		return nil, err
	}
	total, err := parseLimit("risk.max_total_collateral", c.Risk.MaxTotalCollateral)
	if err != nil {
		return nil, err
	}
	if perTicker.IsZero() && total.IsZero() {
		return nil, nil
	}
	return risk.NewLimiter(perTicker, total), nil
}

func parseLimit(name, v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must be a non-negative number, got '%s'", name, v)
	}
	return d, nil
}

// StaticPrices parses the configured closing-price overrides.
func (c *Config) StaticPrices() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(c.MarketData.Prices))
	for key, v := range c.MarketData.Prices {
		ticker, date, ok := strings.Cut(key, ":")
		if !ok {
			return nil, fmt.Errorf("market_data.prices key must be TICKER:YYYY-MM-DD, got '%s'", key)
		}
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("market_data.prices key must be TICKER:YYYY-MM-DD, got '%s'", key)
		}
		p, err := decimal.NewFromString(v)
		if err != nil || !p.IsPositive() {
			return nil, fmt.Errorf("market_data.prices[%s] must be a positive number, got '%s'", key, v)
		}
		out[marketdata.Key(ticker, day)] = p
	}
	return out, nil
}

// LogConfig returns the logger settings.
func (c *Config) LogConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:          c.Log.Level,
		Format:         c.Log.Format,
		TracingEnabled: c.Log.TracingEnabled,
	}
}
