// Package account owns every trade and the share ledger of one trading
// account, and builds the aggregate journal report.
package account

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/ledger"
	"github.com/tradejournal/journal-engine/internal/logger"
	"github.com/tradejournal/journal-engine/internal/marketdata"
	"github.com/tradejournal/journal-engine/internal/metrics"
	"github.com/tradejournal/journal-engine/internal/model"
	"github.com/tradejournal/journal-engine/internal/risk"
	"github.com/tradejournal/journal-engine/internal/trade"
)

// ErrDuplicateEvent is returned when an event ID has already been executed.
var ErrDuplicateEvent = errors.New("account: duplicate trade event")

// Option configures an Account.
type Option func(*Account)

// WithPrices sets the closing-price source used to detect exercise and
// assignment. Without one, expiring legs are treated as worthless.
func WithPrices(src marketdata.PriceSource) Option {
	return func(a *Account) { a.prices = src }
}

// WithCalendar sets the market calendar that places expiration cut-offs.
func WithCalendar(cal trade.Calendar) Option {
	return func(a *Account) { a.calendar = cal }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Account) { a.now = now }
}

// WithLimiter enables collateral limit checks.
func WithLimiter(l *risk.Limiter) Option {
	return func(a *Account) { a.limiter = l }
}

// Account is not safe for concurrent use; callers serialize access.
type Account struct {
	trades map[string]*trade.Trade
	seen   map[string]struct{}
	shares *ledger.Ledger

	prices   marketdata.PriceSource
	calendar trade.Calendar
	now      func() time.Time
	limiter  *risk.Limiter
}

// New creates an empty account.
func New(opts ...Option) *Account {
	a := &Account{
		trades:   make(map[string]*trade.Trade),
		seen:     make(map[string]struct{}),
		shares:   ledger.New(),
		calendar: trade.DefaultCalendar(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Now returns the account clock's current time.
func (a *Account) Now() time.Time {
	return a.now()
}

// CheckTradeEvent reports whether ExecuteTradeEvent would accept ev. The
// account is not changed.
func (a *Account) CheckTradeEvent(ev model.TradeEvent) error {
	ev = ev.Clone()
	ev.Normalize()
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("event %s: %w", ev.ID, err)
	}
	return a.checkUnseen(ev.ID)
}

// CheckShareFill reports whether AddShareFill would accept fill. The account
// is not changed.
func (a *Account) CheckShareFill(fill model.ShareFill) error {
	if err := fill.Validate(); err != nil {
		return err
	}
	return a.checkUnseen(fill.ID)
}

func (a *Account) checkUnseen(id string) error {
	if id == "" {
		return nil
	}
	if _, dup := a.seen[id]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, id)
	}
	return nil
}

// ExecuteTradeEvent validates ev and adds it to the trade for its ticker and
// expiration, creating the trade on first use.
func (a *Account) ExecuteTradeEvent(ctx context.Context, ev model.TradeEvent) (*trade.Trade, error) {
	if err := a.CheckTradeEvent(ev); err != nil {
		return nil, err
	}
	ev = ev.Clone()
	ev.Normalize()

	key := trade.Key(ev.Ticker, ev.Expiration)
	t, ok := a.trades[key]
	if !ok {
		t = trade.New(ev.Ticker, ev.Expiration, a.calendar)
	}
	if err := t.AddEvent(ev); err != nil {
		return nil, err
	}
	if !ok {
		a.trades[key] = t
	}
	if ev.ID != "" {
		a.seen[ev.ID] = struct{}{}
	}

	if s, ok := t.Strategy(); ok {
		logger.Debug(ctx, "trade event executed",
			"trade", key,
			"legs", len(ev.Legs),
			"strategy", s.Name,
		)
	}
	a.checkLimits(ctx, t.Ticker())
	return t, nil
}

func (a *Account) checkLimits(ctx context.Context, ticker string) {
	if a.limiter == nil {
		return
	}
	if err := a.limiter.Check(ticker, decimal.Zero, a.OpenCollateral()); err != nil {
		logger.Risk(ctx, ticker, "collateral_limit", "error", err)
	}
}

// AddShares applies one batch of share lots to the ledger.
func (a *Account) AddShares(lots []ledger.Lot) error {
	return a.shares.AddShares(lots)
}

// AddBatches applies exercise lots all or nothing. It satisfies
// trade.ShareSink.
func (a *Account) AddBatches(batches [][]ledger.Lot) error {
	return a.shares.AddBatches(batches)
}

// AddShareFill applies one underlying-share execution.
func (a *Account) AddShareFill(fill model.ShareFill) error {
	if err := a.checkUnseen(fill.ID); err != nil {
		return err
	}
	if err := a.shares.AddFill(fill); err != nil {
		return err
	}
	if fill.ID != "" {
		a.seen[fill.ID] = struct{}{}
	}
	metrics.ShareFills.Inc()
	return nil
}

// Trade returns the trade with the given key, e.g. "AAPL:2024-01-19".
func (a *Account) Trade(key string) (*trade.Trade, bool) {
	t, ok := a.trades[key]
	return t, ok
}

// Trades returns every trade, latest expiration first, then by ticker.
func (a *Account) Trades() []*trade.Trade {
	out := slices.Collect(maps.Values(a.trades))
	slices.SortFunc(out, func(x, y *trade.Trade) int {
		if c := y.Expiration().Compare(x.Expiration()); c != 0 {
			return c
		}
		return cmp.Compare(x.Ticker(), y.Ticker())
	})
	return out
}

// Ledger returns the share ledger.
func (a *Account) Ledger() *ledger.Ledger {
	return a.shares
}

// ResolveExpirations settles every expired trade that still has open legs.
// A failing trade is skipped; its error is joined into the result and the
// other trades still resolve.
func (a *Account) ResolveExpirations(ctx context.Context) error {
	ctx, span := logger.StartSpan(ctx, "account.ResolveExpirations")
	defer span.End()

	now := a.now()
	var errs []error
	for _, t := range a.Trades() {
		res, err := t.ResolveExpiration(ctx, now, a.prices, a)
		if err != nil {
			metrics.ExpirationsResolved.WithLabelValues("failed").Inc()
			logger.ErrorWithErr(ctx, "expiration resolution failed", err, "trade", t.ID())
			errs = append(errs, err)
			continue
		}
		if res == nil {
			continue
		}
		metrics.ExpirationsResolved.WithLabelValues("resolved").Inc()
		for _, ex := range res.Exercises {
			kind := "exercise"
			if ex.Assigned {
				kind = "assignment"
			}
			metrics.Exercises.WithLabelValues(kind).Inc()
			logger.Info(ctx, "option settled into shares",
				"trade", t.ID(),
				"kind", kind,
				"leg", ex.Leg.String(),
				"shares", ex.Shares,
				"value", ex.Value.StringFixed(2),
			)
		}
	}
	return errors.Join(errs...)
}

// OpenCollateral sums the current strategy collateral of every trade that
// is not closed, by ticker.
func (a *Account) OpenCollateral() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, t := range a.trades {
		if t.IsClosed() {
			continue
		}
		s, ok := t.Strategy()
		if !ok || !s.Collateral.IsPositive() {
			continue
		}
		out[t.Ticker()] = out[t.Ticker()].Add(s.Collateral)
	}
	return out
}

// RiskBreaches lists collateral limits currently exceeded.
func (a *Account) RiskBreaches() []risk.Breach {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Breaches(a.OpenCollateral())
}
