// Package contract parses OCC option symbols into instrument metadata used
// when ingesting broker executions.
package contract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
)

// symbolRegex matches: {root}{YYMMDD}{C|P}{strike x 1000, 8 digits}
// The root may be space padded to six characters.
// Example: "AAPL  240119C00190000"
var symbolRegex = regexp.MustCompile(
	`^([A-Z][A-Z0-9.]{0,5})\s*(\d{6})([CP])(\d{8})$`,
)

// ErrInvalidSymbol is returned for symbols that are not OCC formatted.
var ErrInvalidSymbol = errors.New("contract: invalid option symbol")

var strikeScale = decimal.NewFromInt(1000)

// Instrument is the static description of one listed option contract.
type Instrument struct {
	Symbol     string          `json:"symbol"`
	Ticker     string          `json:"ticker"`
	Expiration time.Time       `json:"expiration_date"`
	Strike     decimal.Decimal `json:"strike"`
	IsCall     bool            `json:"is_call"`
}

// Option builds one leg of this instrument.
func (i Instrument) Option(premium decimal.Decimal, isLong bool) (model.Option, error) {
	return model.NewOption(i.Ticker, i.Strike, premium, i.IsCall, isLong, i.Expiration)
}

// ParseSymbol parses and validates an OCC option symbol.
// Format: {root}{YYMMDD}{C|P}{strike x 1000}
func ParseSymbol(symbol string) (*Instrument, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	matches := symbolRegex.FindStringSubmatch(s)
	if matches == nil {
		return nil, fmt.Errorf("%w: %q (expected {root}{YYMMDD}{C|P}{strike x 1000})",
			ErrInvalidSymbol, symbol)
	}

	root := matches[1]
	dateStr := matches[2]
	kind := matches[3]
	strikeStr := matches[4]

	expiry, err := time.Parse("060102", dateStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %s", ErrInvalidSymbol, dateStr)
	}

	raw, err := decimal.NewFromString(strikeStr)
	if err != nil || !raw.IsPositive() {
		return nil, fmt.Errorf("%w: invalid strike %s", ErrInvalidSymbol, strikeStr)
	}

	return &Instrument{
		Symbol:     FormatSymbol(root, expiry, kind == "C", raw.Div(strikeScale)),
		Ticker:     root,
		Expiration: expiry,
		Strike:     raw.Div(strikeScale),
		IsCall:     kind == "C",
	}, nil
}

// FormatSymbol renders the padded OCC symbol, e.g. "AAPL  240119C00190000".
func FormatSymbol(ticker string, expiration time.Time, isCall bool, strike decimal.Decimal) string {
	kind := "P"
	if isCall {
		kind = "C"
	}
	return fmt.Sprintf("%-6s%s%s%08d",
		model.NormalizeTicker(ticker),
		expiration.Format("060102"),
		kind,
		strike.Mul(strikeScale).IntPart(),
	)
}

// Resolver looks up instrument metadata by symbol.
type Resolver interface {
	Resolve(ctx context.Context, symbol string) (*Instrument, error)
}

// SymbolResolver resolves instruments by parsing the symbol itself.
type SymbolResolver struct{}

func (SymbolResolver) Resolve(_ context.Context, symbol string) (*Instrument, error) {
	return ParseSymbol(symbol)
}

// CachingResolver memoizes another resolver's successful lookups.
type CachingResolver struct {
	next Resolver

	mu    sync.RWMutex
	cache map[string]Instrument
}

// NewCachingResolver wraps next with an in-memory cache.
func NewCachingResolver(next Resolver) *CachingResolver {
	return &CachingResolver{next: next, cache: make(map[string]Instrument)}
}

func (r *CachingResolver) Resolve(ctx context.Context, symbol string) (*Instrument, error) {
	key := strings.ToUpper(strings.TrimSpace(symbol))

	r.mu.RLock()
	inst, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return &inst, nil
	}

	found, err := r.next.Resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[key] = *found
	r.mu.Unlock()

	out := *found
	return &out, nil
}

// Len returns the number of cached instruments.
func (r *CachingResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
