package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestCheck_WithinLimits(t *testing.T) {
	l := NewLimiter(d(10000), d(25000))
	if err := l.Check("AAPL", d(5000), nil); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheck_TickerExceeded(t *testing.T) {
	l := NewLimiter(d(10000), d(25000))
	existing := map[string]decimal.Decimal{"AAPL": d(9500)}

	// 9500 + 1000 = 10500 > 10000.
	err := l.Check("aapl", d(1000), existing)
	if !errors.Is(err, ErrTickerLimitExceeded) {
		t.Errorf("expected ErrTickerLimitExceeded, got %v", err)
	}
}

func TestCheck_TotalExceeded(t *testing.T) {
	l := NewLimiter(d(10000), d(20000))
	existing := map[string]decimal.Decimal{
		"AAPL": d(8000),
		"MSFT": d(8000),
		"SPY":  d(3000),
	}

	// SPY becomes 5000; total 21000 > 20000.
	err := l.Check("SPY", d(2000), existing)
	if !errors.Is(err, ErrTotalLimitExceeded) {
		t.Errorf("expected ErrTotalLimitExceeded, got %v", err)
	}
}

func TestCheck_ReducingExposure(t *testing.T) {
	l := NewLimiter(d(10000), d(20000))
	existing := map[string]decimal.Decimal{"AAPL": d(12000)}

	if err := l.Check("AAPL", d(-3000), existing); err != nil {
		t.Errorf("expected reduction below the limit to pass, got %v", err)
	}
}

func TestCheck_ZeroLimitsDisabled(t *testing.T) {
	l := NewLimiter(decimal.Zero, d(-1))
	if err := l.Check("AAPL", d(1e9), nil); err != nil {
		t.Errorf("expected disabled limits, got %v", err)
	}
}

func TestBreaches(t *testing.T) {
	l := NewLimiter(d(10000), d(20000))
	exposures := map[string]decimal.Decimal{
		"TSLA": d(15000),
		"AAPL": d(4000),
		"MSFT": d(11000),
	}

	got := l.Breaches(exposures)
	if len(got) != 3 {
		t.Fatalf("expected 3 breaches, got %+v", got)
	}
	if got[0].Ticker != "MSFT" || got[1].Ticker != "TSLA" {
		t.Errorf("expected ticker breaches in order, got %+v", got)
	}
	if got[2].Scope != ScopeTotal || !got[2].Exposure.Equal(d(30000)) {
		t.Errorf("unexpected total breach %+v", got[2])
	}
	if s := got[2].String(); s != "total collateral 30000.00 exceeds 20000.00" {
		t.Errorf("unexpected string %q", s)
	}
}

func TestBreaches_None(t *testing.T) {
	l := NewLimiter(d(10000), d(20000))
	if got := l.Breaches(map[string]decimal.Decimal{"AAPL": d(10000)}); len(got) != 0 {
		t.Errorf("limit is inclusive, got %+v", got)
	}
}
