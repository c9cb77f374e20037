package trade

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
	"github.com/tradejournal/journal-engine/internal/position"
)

// EventProfit is the profit realized by the legs an event closed.
type EventProfit struct {
	Label         string          `json:"label"`
	ExecutionTime time.Time       `json:"execution_time"`
	Strategy      string          `json:"strategy"`
	Profit        decimal.Decimal `json:"profit"`
}

func (t *Trade) requireClosed() error {
	if !t.IsClosed() {
		return fmt.Errorf("%w: %s", ErrTradeOpen, t.id)
	}
	return nil
}

// OptionProfit is the net premium cash flow of every leg plus the exercise
// value realized at expiration.
func (t *Trade) OptionProfit() (decimal.Decimal, error) {
	if err := t.requireClosed(); err != nil {
		return decimal.Zero, err
	}
	total := t.exerciseValue
	for _, leg := range t.Legs() {
		total = total.Add(leg.CashFlow())
	}
	return total.Round(2), nil
}

// TotalProfit is the option profit. Share profit is realized separately in
// the account ledger.
func (t *Trade) TotalProfit() (decimal.Decimal, error) {
	return t.OptionProfit()
}

// IsWin reports whether the closed trade broke even or made money.
func (t *Trade) IsWin() (bool, error) {
	p, err := t.TotalProfit()
	if err != nil {
		return false, err
	}
	return !p.IsNegative(), nil
}

// ProfitByEvent attributes realized profit to the event that closed each
// leg pair. Exercise value is credited to the final event.
func (t *Trade) ProfitByEvent() ([]EventProfit, error) {
	if err := t.requireClosed(); err != nil {
		return nil, err
	}

	out := make([]EventProfit, 0, len(t.derived))
	var pending []model.Option
	for n, ev := range t.derived {
		pending = append(pending, ev.Legs...)

		keep := make(map[int]bool)
		for _, i := range position.OpenIndexes(pending) {
			keep[i] = true
		}

		realized := decimal.Zero
		var remaining []model.Option
		for i, leg := range pending {
			if keep[i] {
				remaining = append(remaining, leg)
				continue
			}
			realized = realized.Add(leg.CashFlow())
		}
		pending = remaining

		if n == len(t.derived)-1 {
			realized = realized.Add(t.exerciseValue)
		}

		out = append(out, EventProfit{
			Label:         ev.Strategy.Name + " at " + ev.ExecutionTime.Format(time.RFC3339),
			ExecutionTime: ev.ExecutionTime,
			Strategy:      ev.Strategy.Name,
			Profit:        realized.Round(2),
		})
	}
	return out, nil
}

// Duration is the time from the first event to the closing one.
func (t *Trade) Duration() (time.Duration, error) {
	if err := t.requireClosed(); err != nil {
		return 0, err
	}
	first := t.derived[0].ExecutionTime
	last := t.derived[len(t.derived)-1].ExecutionTime
	return last.Sub(first), nil
}

// ReturnOnCollateral is profit as a percentage of the time-weighted average
// collateral. Each event holding collateral contributes collateral scaled by
// the share of the trade's duration it lasted.
func (t *Trade) ReturnOnCollateral() (decimal.Decimal, error) {
	dur, err := t.Duration()
	if err != nil {
		return decimal.Zero, err
	}
	if dur <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrZeroDuration, t.id)
	}

	total := decimal.NewFromInt(int64(dur))
	sum := decimal.Zero
	n := 0
	for _, ev := range t.derived {
		if ev.Strategy == nil || !ev.Strategy.Collateral.IsPositive() || ev.EndTime == nil {
			continue
		}
		held := decimal.NewFromInt(int64(ev.EndTime.Sub(ev.ExecutionTime)))
		sum = sum.Add(ev.Strategy.Collateral.Mul(held).Div(total))
		n++
	}
	if n == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoCollateral, t.id)
	}

	avg := sum.Div(decimal.NewFromInt(int64(n)))
	if avg.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoCollateral, t.id)
	}

	profit, err := t.OptionProfit()
	if err != nil {
		return decimal.Zero, err
	}
	return profit.Div(avg).Mul(decimal.NewFromInt(100)).Round(2), nil
}
