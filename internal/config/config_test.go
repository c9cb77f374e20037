package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var envKeys = []string{
	"PORT", "DATABASE_URL", "REDIS_URL", "SQLITE_PATH", "STORE_DRIVER",
	"MARKET_DATA_PROVIDER", "REPORT_DIR", "LOG_LEVEL", "LOG_FORMAT", "LOG_TRACING_ENABLED",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", c.Server.Port)
	}
	if c.Store.Driver != DriverSQLite || c.Store.SQLitePath != "journal.db" {
		t.Errorf("expected sqlite journal.db, got %s %s", c.Store.Driver, c.Store.SQLitePath)
	}
	if c.MarketData.Provider != ProviderYahoo {
		t.Errorf("expected yahoo provider, got %s", c.MarketData.Provider)
	}
	if c.Report.Dir != "reports" || c.Report.KeyCase != "snake" {
		t.Errorf("unexpected report section %+v", c.Report)
	}

	l, err := c.Limiter()
	if err != nil || l != nil {
		t.Errorf("expected no limiter by default, got %v, %v", l, err)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: "9090"
  request_timeout: 15s
store:
  driver: memory
market:
  timezone: America/Chicago
  close_time: "15:00"
market_data:
  provider: static
  prices:
    aapl:2024-01-19: "191.56"
report:
  dir: out
  key_case: camel
risk:
  max_collateral_per_ticker: "10000"
  max_total_collateral: "25000"
log:
  level: DEBUG
  format: text
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Port != "9090" || c.Server.RequestTimeout != 15*time.Second {
		t.Errorf("unexpected server section %+v", c.Server)
	}
	if c.Store.Driver != DriverMemory {
		t.Errorf("expected memory driver, got %s", c.Store.Driver)
	}

	cal, err := c.Calendar()
	if err != nil {
		t.Fatalf("Calendar: %v", err)
	}
	if cal.Close != 15*time.Hour || cal.Location.String() != "America/Chicago" {
		t.Errorf("unexpected calendar %v %v", cal.Location, cal.Close)
	}

	prices, err := c.StaticPrices()
	if err != nil {
		t.Fatalf("StaticPrices: %v", err)
	}
	if p, ok := prices["AAPL:2024-01-19"]; !ok || !p.Equal(decimal.RequireFromString("191.56")) {
		t.Errorf("expected AAPL:2024-01-19 = 191.56, got %v", prices)
	}

	l, err := c.Limiter()
	if err != nil || l == nil {
		t.Fatalf("expected a limiter, got %v, %v", l, err)
	}
	if !l.MaxPerTicker.Equal(decimal.NewFromInt(10000)) || !l.MaxTotal.Equal(decimal.NewFromInt(25000)) {
		t.Errorf("unexpected limits %s / %s", l.MaxPerTicker, l.MaxTotal)
	}

	lc := c.LogConfig()
	if lc.Level != "DEBUG" || lc.Format != "text" {
		t.Errorf("unexpected log config %+v", lc)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  port: \"9090\"\nreport:\n  dir: out\n")
	t.Setenv("PORT", "7070")
	t.Setenv("REPORT_DIR", "/tmp/reports")
	t.Setenv("DATABASE_URL", "postgres://journal@localhost/journal")
	t.Setenv("LOG_TRACING_ENABLED", "true")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Port != "7070" {
		t.Errorf("expected PORT override, got %s", c.Server.Port)
	}
	if c.Report.Dir != "/tmp/reports" {
		t.Errorf("expected REPORT_DIR override, got %s", c.Report.Dir)
	}
	if c.Store.Driver != DriverPostgres {
		t.Errorf("DATABASE_URL should select postgres, got %s", c.Store.Driver)
	}
	if !c.Log.TracingEnabled {
		t.Error("expected tracing enabled")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"postgres without url", func(c *Config) { c.Store.Driver = DriverPostgres }, "database_url"},
		{"bad provider", func(c *Config) { c.MarketData.Provider = "bloomberg" }, "market_data.provider"},
		{"bad price key", func(c *Config) { c.MarketData.Prices = map[string]string{"AAPL": "1"} }, "market_data.prices"},
		{"bad price", func(c *Config) { c.MarketData.Prices = map[string]string{"AAPL:2024-01-19": "-1"} }, "positive"},
		{"bad key case", func(c *Config) { c.Report.KeyCase = "kebab" }, "report.key_case"},
		{"bad timezone", func(c *Config) { c.Market.Timezone = "Mars/Olympus" }, "market.timezone"},
		{"bad close", func(c *Config) { c.Market.CloseTime = "4pm" }, "market.close_time"},
		{"negative limit", func(c *Config) { c.Risk.MaxTotalCollateral = "-5" }, "risk.max_total_collateral"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}
