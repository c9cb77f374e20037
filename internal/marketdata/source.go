// Package marketdata supplies underlying closing prices used to settle
// expiring option positions.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
)

// ErrPriceUnavailable is returned when a source has no close for the day.
var ErrPriceUnavailable = errors.New("marketdata: closing price unavailable")

// PriceSource returns the official closing price of ticker on date.
type PriceSource interface {
	ClosingPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error)
}

// PriceCache persists closing prices between runs.
type PriceCache interface {
	GetClosingPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, bool, error)
	PutClosingPrice(ctx context.Context, ticker string, date time.Time, price decimal.Decimal) error
}

// Key formats the lookup key for a ticker and day, e.g. "AAPL:2024-01-19".
func Key(ticker string, date time.Time) string {
	return model.NormalizeTicker(ticker) + ":" + model.CalendarDate(date).Format(model.DateLayout)
}

// StaticSource serves prices from memory. Used for configured overrides and
// tests.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStaticSource creates a source seeded with prices keyed by Key.
func NewStaticSource(prices map[string]decimal.Decimal) *StaticSource {
	s := &StaticSource{prices: make(map[string]decimal.Decimal, len(prices))}
	for k, v := range prices {
		s.prices[k] = v
	}
	return s
}

// Set records the closing price for ticker on date.
func (s *StaticSource) Set(ticker string, date time.Time, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[Key(ticker, date)] = price
}

func (s *StaticSource) ClosingPrice(_ context.Context, ticker string, date time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[Key(ticker, date)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, Key(ticker, date))
	}
	return p, nil
}

// CachedSource reads through a PriceCache before asking the wrapped source,
// and stores what it fetches.
type CachedSource struct {
	next  PriceSource
	cache PriceCache
}

// NewCachedSource wraps next with a persistent cache.
func NewCachedSource(next PriceSource, cache PriceCache) *CachedSource {
	return &CachedSource{next: next, cache: cache}
}

func (s *CachedSource) ClosingPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error) {
	if p, ok, err := s.cache.GetClosingPrice(ctx, ticker, date); err == nil && ok {
		return p, nil
	}

	p, err := s.next.ClosingPrice(ctx, ticker, date)
	if err != nil {
		return decimal.Zero, err
	}

	// A failed write only costs a refetch next run.
	_ = s.cache.PutClosingPrice(ctx, ticker, date, p)
	return p, nil
}

// Chain tries each source in order and returns the first price found.
type Chain []PriceSource

func (c Chain) ClosingPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error) {
	var errs []error
	for _, src := range c {
		p, err := src.ClosingPrice(ctx, ticker, date)
		if err == nil {
			return p, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, Key(ticker, date))
	}
	return decimal.Zero, errors.Join(errs...)
}
