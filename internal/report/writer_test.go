package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type sample struct {
	TotalOptionProfit *decimal.Decimal           `json:"total_option_profit"`
	ProfitByTicker    map[string]decimal.Decimal `json:"option_profit_by_ticker"`
	ClosedTrades      []sampleTrade              `json:"closed_trades"`
}

type sampleTrade struct {
	ExpirationDate string `json:"expiration_date"`
}

func newSample() sample {
	p := decimal.RequireFromString("35.10")
	return sample{
		TotalOptionProfit: &p,
		ProfitByTicker:    map[string]decimal.Decimal{"AAPL": decimal.RequireFromString("35.10")},
		ClosedTrades:      []sampleTrade{{ExpirationDate: "2024-01-19"}},
	}
}

func TestWriteSnakeCase(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	w.now = func() time.Time { return time.Date(2024, 1, 22, 10, 0, 0, 0, time.UTC) }

	path, err := w.Write(newSample())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("report written outside %s: %s", dir, path)
	}
	name := filepath.Base(path)
	if !strings.HasPrefix(name, "2024-01-22T10-00-00.000000-") || !strings.HasSuffix(name, ".json") {
		t.Errorf("unexpected file name %s", name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if got["total_option_profit"] != "35.1" {
		t.Errorf("expected total_option_profit 35.1, got %v", got["total_option_profit"])
	}
}

func TestWriteCamelCase(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "camel")
	if err != nil {
		t.Fatal(err)
	}
	data, err := w.Encode(newSample())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	text := string(data)
	for _, key := range []string{`"totalOptionProfit"`, `"optionProfitByTicker"`, `"closedTrades"`, `"expirationDate"`, `"AAPL"`} {
		if !strings.Contains(text, key) {
			t.Errorf("expected %s in %s", key, text)
		}
	}
	if strings.Contains(text, "_") {
		t.Errorf("snake_case key left in camel report: %s", text)
	}
}

func TestRunsDoNotCollide(t *testing.T) {
	w, _ := NewWriter(t.TempDir(), "snake")
	fixed := time.Date(2024, 1, 22, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	a, err := w.Write(newSample())
	if err != nil {
		t.Fatal(err)
	}
	b, err := w.Write(newSample())
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("two runs wrote the same file %s", a)
	}
}

func TestUnknownCase(t *testing.T) {
	if _, err := NewWriter(t.TempDir(), "kebab"); !errors.Is(err, ErrUnknownCase) {
		t.Errorf("expected ErrUnknownCase, got %v", err)
	}
}
