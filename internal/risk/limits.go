// Package risk checks open collateral against per-ticker and account-wide
// limits.
//
// Exposure is the collateral of each open trade's current strategy, summed
// per ticker. A journal records what already happened, so limits never
// reject executions; breaches are reported and logged.
package risk

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
)

var (
	// ErrTickerLimitExceeded is returned when one ticker's open collateral
	// would exceed the per-ticker maximum.
	ErrTickerLimitExceeded = errors.New("risk: per-ticker collateral limit exceeded")

	// ErrTotalLimitExceeded is returned when open collateral across all
	// tickers would exceed the account maximum.
	ErrTotalLimitExceeded = errors.New("risk: total collateral limit exceeded")
)

// Scopes reported on a Breach.
const (
	ScopeTicker = "ticker"
	ScopeTotal  = "total"
)

// Limiter holds the configured collateral limits. A zero limit is disabled.
type Limiter struct {
	// MaxPerTicker caps the open collateral of any single ticker.
	MaxPerTicker decimal.Decimal

	// MaxTotal caps the open collateral summed over every ticker.
	MaxTotal decimal.Decimal
}

// NewLimiter creates a limiter. Negative limits are treated as disabled.
func NewLimiter(maxPerTicker, maxTotal decimal.Decimal) *Limiter {
	if maxPerTicker.IsNegative() {
		maxPerTicker = decimal.Zero
	}
	if maxTotal.IsNegative() {
		maxTotal = decimal.Zero
	}
	return &Limiter{MaxPerTicker: maxPerTicker, MaxTotal: maxTotal}
}

// Check reports whether adding delta collateral on ticker keeps exposures
// within limits. exposures maps ticker to current open collateral and is
// not modified.
func (l *Limiter) Check(ticker string, delta decimal.Decimal, exposures map[string]decimal.Decimal) error {
	ticker = model.NormalizeTicker(ticker)
	next := exposures[ticker].Add(delta)

	if l.MaxPerTicker.IsPositive() && next.GreaterThan(l.MaxPerTicker) {
		return fmt.Errorf("%w: %s %s > %s", ErrTickerLimitExceeded, ticker, next.StringFixed(2), l.MaxPerTicker.StringFixed(2))
	}

	total := next
	for t, exposure := range exposures {
		if t == ticker {
			continue // counted via next
		}
		total = total.Add(exposure)
	}
	if l.MaxTotal.IsPositive() && total.GreaterThan(l.MaxTotal) {
		return fmt.Errorf("%w: %s > %s", ErrTotalLimitExceeded, total.StringFixed(2), l.MaxTotal.StringFixed(2))
	}
	return nil
}

// Breach is one limit exceeded by current exposures.
type Breach struct {
	Scope    string          `json:"scope"`
	Ticker   string          `json:"ticker,omitempty"`
	Exposure decimal.Decimal `json:"exposure"`
	Limit    decimal.Decimal `json:"limit"`
}

func (b Breach) String() string {
	if b.Scope == ScopeTotal {
		return fmt.Sprintf("total collateral %s exceeds %s", b.Exposure.StringFixed(2), b.Limit.StringFixed(2))
	}
	return fmt.Sprintf("%s collateral %s exceeds %s", b.Ticker, b.Exposure.StringFixed(2), b.Limit.StringFixed(2))
}

// Breaches lists every limit the exposures exceed: tickers in order, then
// the total.
func (l *Limiter) Breaches(exposures map[string]decimal.Decimal) []Breach {
	var out []Breach
	total := decimal.Zero
	for _, ticker := range slices.Sorted(maps.Keys(exposures)) {
		exposure := exposures[ticker]
		total = total.Add(exposure)
		if l.MaxPerTicker.IsPositive() && exposure.GreaterThan(l.MaxPerTicker) {
			out = append(out, Breach{Scope: ScopeTicker, Ticker: ticker, Exposure: exposure, Limit: l.MaxPerTicker})
		}
	}
	if l.MaxTotal.IsPositive() && total.GreaterThan(l.MaxTotal) {
		out = append(out, Breach{Scope: ScopeTotal, Exposure: total, Limit: l.MaxTotal})
	}
	return out
}
