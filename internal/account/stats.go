package account

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/trade"
)

// ErrNoClosedTrades is returned by aggregate statistics over no trades.
var ErrNoClosedTrades = errors.New("account: no closed trades")

var hundred = decimal.NewFromInt(100)

// The helpers below take closed trades; an open trade surfaces
// trade.ErrTradeOpen.

// TotalOptionProfit sums option profit.
func TotalOptionProfit(trades []*trade.Trade) (decimal.Decimal, error) {
	if len(trades) == 0 {
		return decimal.Zero, ErrNoClosedTrades
	}
	total := decimal.Zero
	for _, t := range trades {
		p, err := t.TotalProfit()
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(p)
	}
	return total.Round(2), nil
}

// AverageProfit is the mean option profit per trade.
func AverageProfit(trades []*trade.Trade) (decimal.Decimal, error) {
	total, err := TotalOptionProfit(trades)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Div(decimal.NewFromInt(int64(len(trades)))).Round(2), nil
}

// WinPercent is the share of trades that broke even or better.
func WinPercent(trades []*trade.Trade) (decimal.Decimal, error) {
	if len(trades) == 0 {
		return decimal.Zero, ErrNoClosedTrades
	}
	wins := 0
	for _, t := range trades {
		win, err := t.IsWin()
		if err != nil {
			return decimal.Zero, err
		}
		if win {
			wins++
		}
	}
	return decimal.NewFromInt(int64(wins)).Mul(hundred).Div(decimal.NewFromInt(int64(len(trades)))).Round(2), nil
}

// AverageDuration is the mean time from first to closing event.
func AverageDuration(trades []*trade.Trade) (time.Duration, error) {
	if len(trades) == 0 {
		return 0, ErrNoClosedTrades
	}
	var total time.Duration
	for _, t := range trades {
		d, err := t.Duration()
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total / time.Duration(len(trades)), nil
}

// AverageReturnOnCollateral is the mean of each trade's time-weighted
// return on collateral. Trades that never held collateral, or opened and
// closed at one instant, are left out.
func AverageReturnOnCollateral(trades []*trade.Trade) (decimal.Decimal, error) {
	if len(trades) == 0 {
		return decimal.Zero, ErrNoClosedTrades
	}
	sum := decimal.Zero
	n := 0
	for _, t := range trades {
		roc, err := t.ReturnOnCollateral()
		switch {
		case errors.Is(err, trade.ErrNoCollateral), errors.Is(err, trade.ErrZeroDuration):
			continue
		case err != nil:
			return decimal.Zero, err
		}
		sum = sum.Add(roc)
		n++
	}
	if n == 0 {
		return decimal.Zero, trade.ErrNoCollateral
	}
	return sum.Div(decimal.NewFromInt(int64(n))).Round(2), nil
}

// ProfitByTicker sums option profit per ticker. Open trades are skipped.
func ProfitByTicker(trades []*trade.Trade) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, t := range trades {
		p, err := t.TotalProfit()
		if err != nil {
			continue
		}
		out[t.Ticker()] = out[t.Ticker()].Add(p)
	}
	return out
}

// TradeCountByTicker counts trades per ticker.
func TradeCountByTicker(trades []*trade.Trade) map[string]int {
	out := make(map[string]int)
	for _, t := range trades {
		out[t.Ticker()]++
	}
	return out
}
