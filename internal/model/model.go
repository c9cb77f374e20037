// Package model defines the journal's value types: option legs, trade
// events, derived strategies and share fills.
//
// All monetary values use shopspring/decimal. Strikes are compared with
// Decimal.Equal, never through float conversion.
package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ContractMultiplier is the number of underlying shares one contract controls.
// It is applied when computing payoff and profit, never stored on a leg.
const ContractMultiplier = 100

// DateLayout is the calendar date format used for expirations and keys.
const DateLayout = "2006-01-02"

var (
	ErrMissingTicker     = errors.New("model: ticker is required")
	ErrInvalidStrike     = errors.New("model: strike must be positive")
	ErrNegativePremium   = errors.New("model: premium must not be negative")
	ErrMissingExpiration = errors.New("model: expiration date is required")
	ErrNoLegs            = errors.New("model: trade event has no legs")
	ErrLegMismatch       = errors.New("model: leg does not match event ticker or expiration")
	ErrInvalidQuantity   = errors.New("model: quantity must be positive")
	ErrInvalidPrice      = errors.New("model: price must be positive")
	ErrMissingTime       = errors.New("model: execution time is required")
)

// Multiplier returns ContractMultiplier as a decimal.
func Multiplier() decimal.Decimal {
	return decimal.NewFromInt(ContractMultiplier)
}

// CalendarDate truncates t to midnight UTC of its calendar day as seen in
// t's own location.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Option is one contract leg. Quantity is always one: multi-contract fills
// are expanded into one Option per contract before they reach the engine.
type Option struct {
	Ticker     string          `json:"ticker"`
	Strike     decimal.Decimal `json:"strike"`
	Premium    decimal.Decimal `json:"premium"`
	IsCall     bool            `json:"is_call"`
	IsLong     bool            `json:"is_long"`
	Expiration time.Time       `json:"expiration_date"`
}

// NewOption builds a normalized, validated leg.
func NewOption(ticker string, strike, premium decimal.Decimal, isCall, isLong bool, expiration time.Time) (Option, error) {
	o := Option{
		Ticker:     NormalizeTicker(ticker),
		Strike:     strike,
		Premium:    premium,
		IsCall:     isCall,
		IsLong:     isLong,
		Expiration: CalendarDate(expiration),
	}
	if err := o.Validate(); err != nil {
		return Option{}, err
	}
	return o, nil
}

// Validate checks the leg invariants: strike > 0 and premium >= 0.
func (o Option) Validate() error {
	if o.Ticker == "" {
		return ErrMissingTicker
	}
	if !o.Strike.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidStrike, o.Strike)
	}
	if o.Premium.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativePremium, o.Premium)
	}
	if o.Expiration.IsZero() {
		return ErrMissingExpiration
	}
	return nil
}

// Flip returns the offsetting leg with zero premium, as used when an
// expiring position is closed out.
func (o Option) Flip() Option {
	o.IsLong = !o.IsLong
	o.Premium = decimal.Zero
	return o
}

// CashFlow is the premium paid (negative) or received (positive) for the
// leg, scaled by the contract multiplier.
func (o Option) CashFlow() decimal.Decimal {
	amount := o.Premium.Mul(Multiplier())
	if o.IsLong {
		return amount.Neg()
	}
	return amount
}

// Type returns "call" or "put".
func (o Option) Type() string {
	if o.IsCall {
		return "call"
	}
	return "put"
}

// Side returns "long" or "short".
func (o Option) Side() string {
	if o.IsLong {
		return "long"
	}
	return "short"
}

func (o Option) String() string {
	sign, kind := "-", "p"
	if o.IsLong {
		sign = "+"
	}
	if o.IsCall {
		kind = "c"
	}
	return fmt.Sprintf("%s %s%s%s %s", o.Ticker, sign, o.Strike, kind, o.Expiration.Format(DateLayout))
}

// TradeEvent is a batch of legs executed atomically for one ticker and
// expiration. EndTime and Strategy are derived when the owning trade
// replays its history; callers only ever see copies carrying them.
type TradeEvent struct {
	ID            string     `json:"id"`
	TradeID       string     `json:"trade_id,omitempty"`
	ExecutionTime time.Time  `json:"execution_time"`
	Ticker        string     `json:"ticker"`
	Expiration    time.Time  `json:"expiration_date"`
	Legs          []Option   `json:"legs"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Strategy      *Strategy  `json:"strategy,omitempty"`
	Synthetic     bool       `json:"synthetic,omitempty"`
}

// Normalize upper-cases tickers and truncates expirations to calendar dates.
func (e *TradeEvent) Normalize() {
	e.Ticker = NormalizeTicker(e.Ticker)
	e.Expiration = CalendarDate(e.Expiration)
	for i := range e.Legs {
		e.Legs[i].Ticker = NormalizeTicker(e.Legs[i].Ticker)
		e.Legs[i].Expiration = CalendarDate(e.Legs[i].Expiration)
	}
}

// Validate checks the event and every leg against it.
func (e TradeEvent) Validate() error {
	if e.Ticker == "" {
		return ErrMissingTicker
	}
	if e.ExecutionTime.IsZero() {
		return ErrMissingTime
	}
	if e.Expiration.IsZero() {
		return ErrMissingExpiration
	}
	if len(e.Legs) == 0 {
		return ErrNoLegs
	}
	for i, leg := range e.Legs {
		if err := leg.Validate(); err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
		if leg.Ticker != e.Ticker || !leg.Expiration.Equal(e.Expiration) {
			return fmt.Errorf("leg %d (%s): %w", i, leg, ErrLegMismatch)
		}
	}
	return nil
}

// Clone returns a deep copy; the legs slice and derived fields are not shared.
func (e TradeEvent) Clone() TradeEvent {
	c := e
	c.Legs = slices.Clone(e.Legs)
	if e.EndTime != nil {
		end := *e.EndTime
		c.EndTime = &end
	}
	if e.Strategy != nil {
		s := *e.Strategy
		s.Legs = slices.Clone(e.Strategy.Legs)
		c.Strategy = &s
	}
	return c
}

// ShareFill is one execution of the underlying stock.
type ShareFill struct {
	ID       string          `json:"id"`
	Ticker   string          `json:"ticker"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	IsLong   bool            `json:"is_long"`
	Time     time.Time       `json:"time"`
}

// Validate checks the fill fields.
func (f ShareFill) Validate() error {
	if f.Ticker == "" {
		return ErrMissingTicker
	}
	if f.Quantity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, f.Quantity)
	}
	if !f.Price.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, f.Price)
	}
	if f.Time.IsZero() {
		return ErrMissingTime
	}
	return nil
}
