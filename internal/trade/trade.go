// Package trade tracks every event for one (ticker, expiration) pair and
// derives the position's strategy history, expiration settlement and
// closed-trade metrics.
//
// Events are stored as appended; strategies and end times are recomputed
// from scratch by Replay after every change and handed out as copies.
package trade

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
	"github.com/tradejournal/journal-engine/internal/position"
	"github.com/tradejournal/journal-engine/internal/strategy"
)

var (
	// ErrTradeOpen is returned by closed-trade metrics while legs remain open.
	ErrTradeOpen = errors.New("trade: trade is still open")

	// ErrNoCollateral is returned when no strategy on the trade committed
	// collateral, leaving return on collateral undefined.
	ErrNoCollateral = errors.New("trade: no collateral committed")

	// ErrZeroDuration is returned when a closed trade opened and closed at
	// the same instant.
	ErrZeroDuration = errors.New("trade: zero duration")

	// ErrEventMismatch is returned when an event belongs to another trade.
	ErrEventMismatch = errors.New("trade: event belongs to a different trade")
)

// States reported by State.
const (
	StateOpen    = "open"
	StateExpired = "expired"
	StateClosed  = "closed"
)

// Key returns the trade identifier for a ticker and expiration, e.g.
// "AAPL:2024-01-19".
func Key(ticker string, expiration time.Time) string {
	return model.NormalizeTicker(ticker) + ":" + model.CalendarDate(expiration).Format(model.DateLayout)
}

// Trade aggregates the events of one ticker and expiration. It is not safe
// for concurrent use.
type Trade struct {
	id         string
	ticker     string
	expiration time.Time
	calendar   Calendar

	events  []model.TradeEvent // as added, ordered by execution time
	derived []model.TradeEvent // Replay(events)

	exerciseValue decimal.Decimal
	settlement    *decimal.Decimal
	exercises     []Exercise
}

// New creates an empty trade.
func New(ticker string, expiration time.Time, cal Calendar) *Trade {
	return &Trade{
		id:            Key(ticker, expiration),
		ticker:        model.NormalizeTicker(ticker),
		expiration:    model.CalendarDate(expiration),
		calendar:      cal,
		exerciseValue: decimal.Zero,
	}
}

func (t *Trade) ID() string            { return t.id }
func (t *Trade) Ticker() string        { return t.ticker }
func (t *Trade) Expiration() time.Time { return t.expiration }

// ExpiresAt returns the market close on the expiration date.
func (t *Trade) ExpiresAt() time.Time {
	return t.calendar.ExpiresAt(t.expiration)
}

// AddEvent records an execution. An event at the same instant as an existing
// one is merged into it; otherwise it is inserted in time order. The strategy
// history is then replayed.
func (t *Trade) AddEvent(ev model.TradeEvent) error {
	ev = ev.Clone()
	ev.Normalize()
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.Ticker != t.ticker || !ev.Expiration.Equal(t.expiration) {
		return fmt.Errorf("%w: %s into %s", ErrEventMismatch, Key(ev.Ticker, ev.Expiration), t.id)
	}
	ev.TradeID = t.id
	ev.Strategy = nil

	t.insert(ev)
	return nil
}

func (t *Trade) insert(ev model.TradeEvent) {
	defer func() { t.derived = Replay(t.events) }()

	for i := range t.events {
		if t.events[i].Ticker == ev.Ticker && t.events[i].ExecutionTime.Equal(ev.ExecutionTime) {
			merged := slices.Clone(t.events[i].Legs)
			t.events[i].Legs = append(merged, ev.Legs...)
			return
		}
	}
	t.events = append(t.events, ev)
	slices.SortStableFunc(t.events, func(a, b model.TradeEvent) int {
		return a.ExecutionTime.Compare(b.ExecutionTime)
	})
}

// Replay derives each event's strategy and end time from an ordered event
// list. Every event's strategy describes the legs open after it; an event
// ends when the next one executes, and a fully closing event ends at its
// own execution time. The input is not modified.
func Replay(events []model.TradeEvent) []model.TradeEvent {
	out := make([]model.TradeEvent, len(events))
	var legs []model.Option

	for i, ev := range events {
		e := ev.Clone()
		legs = append(legs, e.Legs...)

		s := strategy.Evaluate(position.OpenLegs(legs))
		e.Strategy = &s

		if i > 0 {
			end := e.ExecutionTime
			out[i-1].EndTime = &end
		}
		if s.Name == strategy.ClosePosition {
			end := e.ExecutionTime
			e.EndTime = &end
		}
		out[i] = e
	}
	return out
}

// Events returns copies of the events with derived strategies and end times.
func (t *Trade) Events() []model.TradeEvent {
	out := make([]model.TradeEvent, len(t.derived))
	for i, ev := range t.derived {
		out[i] = ev.Clone()
	}
	return out
}

// Legs returns every leg executed so far in event order.
func (t *Trade) Legs() []model.Option {
	var legs []model.Option
	for _, ev := range t.events {
		legs = append(legs, ev.Legs...)
	}
	return legs
}

// OpenLegs returns the legs that remain open.
func (t *Trade) OpenLegs() []model.Option {
	return position.OpenLegs(t.Legs())
}

// Strategy returns the strategy after the latest event.
func (t *Trade) Strategy() (model.Strategy, bool) {
	if len(t.derived) == 0 {
		return model.Strategy{}, false
	}
	s := *t.derived[len(t.derived)-1].Strategy
	s.Legs = slices.Clone(s.Legs)
	return s, true
}

// IsExpired reports whether now is past the market close on the
// expiration date.
func (t *Trade) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt())
}

// IsClosed reports whether the trade has events and no open legs. An
// expired trade closes once ResolveExpiration has run.
func (t *Trade) IsClosed() bool {
	return len(t.events) > 0 && len(t.OpenLegs()) == 0
}

// State returns StateClosed, StateExpired (expired with legs still open) or
// StateOpen.
func (t *Trade) State(now time.Time) string {
	switch {
	case t.IsClosed():
		return StateClosed
	case t.IsExpired(now):
		return StateExpired
	default:
		return StateOpen
	}
}

// ExerciseValue is the intrinsic value realized by exercise and assignment
// at expiration.
func (t *Trade) ExerciseValue() decimal.Decimal {
	return t.exerciseValue
}

// Settlement returns the underlying closing price used at expiration.
func (t *Trade) Settlement() (decimal.Decimal, bool) {
	if t.settlement == nil {
		return decimal.Zero, false
	}
	return *t.settlement, true
}

// Exercises returns the exercises and assignments applied at expiration.
func (t *Trade) Exercises() []Exercise {
	return slices.Clone(t.exercises)
}
