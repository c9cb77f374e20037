package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const document = `{"tradeEvents": [
  {"executionTime": "2024-01-02T15:00:00Z", "ticker": "AAPL", "expirationDate": "2024-01-19",
   "legs": [{"strike": 150, "type": "call", "side": "buy", "premium": 2}]},
  {"executionTime": "2024-01-05T15:00:00Z", "ticker": "AAPL", "expirationDate": "2024-01-19",
   "legs": [{"strike": 150, "type": "call", "side": "sell", "premium": 3}]}
]}`

func setup(t *testing.T) (configPath, docPath, reportDir string) {
	t.Helper()
	for _, k := range []string{"PORT", "DATABASE_URL", "REDIS_URL", "SQLITE_PATH", "STORE_DRIVER",
		"MARKET_DATA_PROVIDER", "REPORT_DIR", "LOG_LEVEL", "LOG_FORMAT", "LOG_TRACING_ENABLED"} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	reportDir = filepath.Join(dir, "reports")
	configPath = filepath.Join(dir, "journal.yaml")
	cfg := "store:\n  driver: sqlite\n  sqlite_path: " + filepath.Join(dir, "journal.db") +
		"\nmarket_data:\n  provider: none\nreport:\n  dir: " + reportDir + "\nlog:\n  level: ERROR\n"
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	docPath = filepath.Join(dir, "trades.json")
	if err := os.WriteFile(docPath, []byte(document), 0o644); err != nil {
		t.Fatal(err)
	}
	return configPath, docPath, reportDir
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("journal %v: %v\n%s", args, err, errOut.String())
	}
	return out.String()
}

func TestIngestTradesReport(t *testing.T) {
	configPath, docPath, reportDir := setup(t)

	out := run(t, "--config", configPath, "ingest", docPath)
	if !strings.Contains(out, "2 events, 0 share fills recorded, 0 already known") {
		t.Errorf("unexpected ingest output: %s", out)
	}

	out = run(t, "--config", configPath, "ingest", docPath)
	if !strings.Contains(out, "0 events, 0 share fills recorded, 2 already known") {
		t.Errorf("re-ingest should skip known events: %s", out)
	}

	out = run(t, "--config", configPath, "trades")
	if !strings.Contains(out, "AAPL:2024-01-19") || !strings.Contains(out, "Close Position") {
		t.Errorf("unexpected trades output: %s", out)
	}

	out = run(t, "--config", configPath, "report")
	if !strings.Contains(out, "Report written to "+reportDir) {
		t.Errorf("unexpected report output: %s", out)
	}
	if !strings.Contains(out, "100.00") || !strings.Contains(out, "Win rate") {
		t.Errorf("expected option profit 100.00 in summary: %s", out)
	}

	entries, err := os.ReadDir(reportDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one report file, got %v (%v)", entries, err)
	}
}

func TestReportWithInput(t *testing.T) {
	configPath, docPath, _ := setup(t)

	out := run(t, "--config", configPath, "--json", "report", "--input", docPath)
	if !strings.Contains(out, `"total_option_profit": "100"`) {
		t.Errorf("expected input document in report: %s", out)
	}

	out = run(t, "--config", configPath, "trades")
	if !strings.Contains(out, "No trades recorded") {
		t.Errorf("--input must not be recorded: %s", out)
	}
}

func TestIngestMissingFile(t *testing.T) {
	configPath, _, _ := setup(t)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", configPath, "ingest", filepath.Join(t.TempDir(), "missing.json")})
	if err := cmd.Execute(); err == nil {
		t.Error("expected an error for a missing document")
	}
}
