// Package ledger keeps FIFO share lots per ticker and realizes profit when
// opposite-direction lots offset.
package ledger

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
)

var (
	ErrNoLots          = errors.New("ledger: no lots to add")
	ErrMixedTickers    = errors.New("ledger: lots must share one ticker")
	ErrMixedDirections = errors.New("ledger: lots must share one direction")
)

// Lot is a single share. It is open until CloseTime is set.
type Lot struct {
	Ticker     string          `json:"ticker"`
	OpenPrice  decimal.Decimal `json:"open_price"`
	OpenTime   time.Time       `json:"open_time"`
	IsLong     bool            `json:"is_long"`
	ClosePrice decimal.Decimal `json:"close_price"`
	CloseTime  *time.Time      `json:"close_time,omitempty"`
}

// NewLots returns n identical open lots.
func NewLots(ticker string, price decimal.Decimal, at time.Time, isLong bool, n int) []Lot {
	lots := make([]Lot, n)
	for i := range lots {
		lots[i] = Lot{
			Ticker:    model.NormalizeTicker(ticker),
			OpenPrice: price,
			OpenTime:  at,
			IsLong:    isLong,
		}
	}
	return lots
}

// IsClosed reports whether the lot has been offset.
func (l Lot) IsClosed() bool {
	return l.CloseTime != nil
}

// Profit is close-open for a long lot and open-close for a short one.
// Open lots have no realized profit.
func (l Lot) Profit() decimal.Decimal {
	if !l.IsClosed() {
		return decimal.Zero
	}
	if l.IsLong {
		return l.ClosePrice.Sub(l.OpenPrice)
	}
	return l.OpenPrice.Sub(l.ClosePrice)
}

// Ledger holds open lots in FIFO order and the closed lots they produced.
// It is not safe for concurrent use.
type Ledger struct {
	open   map[string][]Lot
	closed map[string][]Lot
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		open:   make(map[string][]Lot),
		closed: make(map[string][]Lot),
	}
}

// CheckLots reports whether lots form one batch AddShares accepts: non-empty,
// one ticker, one direction.
func CheckLots(lots []Lot) error {
	if len(lots) == 0 {
		return ErrNoLots
	}
	ticker := model.NormalizeTicker(lots[0].Ticker)
	for _, lot := range lots[1:] {
		if model.NormalizeTicker(lot.Ticker) != ticker {
			return fmt.Errorf("%w: %s and %s", ErrMixedTickers, ticker, lot.Ticker)
		}
		if lot.IsLong != lots[0].IsLong {
			return ErrMixedDirections
		}
	}
	return nil
}

// AddShares applies lots of one ticker and direction. Lots opposite to the
// ticker's open queue close the oldest open lots one for one; any remainder
// opens new lots, keeping the queue ordered by open time.
func (l *Ledger) AddShares(lots []Lot) error {
	if err := CheckLots(lots); err != nil {
		return err
	}
	ticker := model.NormalizeTicker(lots[0].Ticker)
	isLong := lots[0].IsLong

	queue := l.open[ticker]
	i := 0
	if len(queue) > 0 && queue[0].IsLong != isLong {
		for ; i < len(lots) && len(queue) > 0; i++ {
			closed := queue[0]
			closed.ClosePrice = lots[i].OpenPrice
			at := lots[i].OpenTime
			closed.CloseTime = &at
			l.closed[ticker] = append(l.closed[ticker], closed)
			queue = queue[1:]
		}
	}

	for _, lot := range lots[i:] {
		lot.Ticker = ticker
		queue = append(queue, lot)
	}
	slices.SortStableFunc(queue, func(a, b Lot) int {
		return a.OpenTime.Compare(b.OpenTime)
	})

	if len(queue) == 0 {
		delete(l.open, ticker)
	} else {
		l.open[ticker] = queue
	}
	return nil
}

// AddBatches applies several AddShares batches in order. Every batch is
// checked first, so either all of them are applied or none is.
func (l *Ledger) AddBatches(batches [][]Lot) error {
	for _, lots := range batches {
		if err := CheckLots(lots); err != nil {
			return err
		}
	}
	for _, lots := range batches {
		if err := l.AddShares(lots); err != nil {
			return err
		}
	}
	return nil
}

// AddFill expands a share fill into one lot per share and applies them.
func (l *Ledger) AddFill(f model.ShareFill) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return l.AddShares(NewLots(f.Ticker, f.Price, f.Time, f.IsLong, f.Quantity))
}

// ProfitByTicker returns realized profit per ticker with closed lots.
func (l *Ledger) ProfitByTicker() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(l.closed))
	for ticker, lots := range l.closed {
		total := decimal.Zero
		for _, lot := range lots {
			total = total.Add(lot.Profit())
		}
		out[ticker] = total
	}
	return out
}

// TotalProfit returns realized profit across all tickers.
func (l *Ledger) TotalProfit() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.ProfitByTicker() {
		total = total.Add(p)
	}
	return total
}

// OpenPosition returns the signed open share count for ticker.
func (l *Ledger) OpenPosition(ticker string) int {
	queue := l.open[model.NormalizeTicker(ticker)]
	if len(queue) == 0 {
		return 0
	}
	if queue[0].IsLong {
		return len(queue)
	}
	return -len(queue)
}

// OpenPositions returns the signed open share count of every ticker with
// open lots.
func (l *Ledger) OpenPositions() map[string]int {
	out := make(map[string]int, len(l.open))
	for ticker := range l.open {
		out[ticker] = l.OpenPosition(ticker)
	}
	return out
}

// OpenLots returns a copy of ticker's open queue, oldest first.
func (l *Ledger) OpenLots(ticker string) []Lot {
	return slices.Clone(l.open[model.NormalizeTicker(ticker)])
}

// ClosedLots returns a copy of ticker's closed lots in closing order.
func (l *Ledger) ClosedLots(ticker string) []Lot {
	return slices.Clone(l.closed[model.NormalizeTicker(ticker)])
}

// Tickers returns every ticker the ledger has seen, sorted.
func (l *Ledger) Tickers() []string {
	seen := maps.Clone(l.open)
	maps.Copy(seen, l.closed)
	return slices.Sorted(maps.Keys(seen))
}
