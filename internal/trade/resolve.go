package trade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/ledger"
	"github.com/tradejournal/journal-engine/internal/marketdata"
	"github.com/tradejournal/journal-engine/internal/model"
)

// ShareSink receives the share lots produced by exercise and assignment, one
// batch per exercised leg, in a single call. A failed call must apply none of
// them.
type ShareSink interface {
	AddBatches(batches [][]ledger.Lot) error
}

// Exercise is one in-the-money leg settled into shares at expiration.
type Exercise struct {
	Leg      model.Option    `json:"leg"`
	Assigned bool            `json:"assigned"` // short leg
	Shares   int             `json:"shares"`   // signed, +100 bought / -100 sold
	Value    decimal.Decimal `json:"value"`    // intrinsic value credited to the trade
}

// Resolution describes what ResolveExpiration did.
type Resolution struct {
	TradeID    string           `json:"trade_id"`
	Settlement *decimal.Decimal `json:"settlement,omitempty"`
	Exercises  []Exercise       `json:"exercises"`
	Closing    model.TradeEvent `json:"closing"`
}

// Exercises returns the exercises implied by settling legs at price. Only
// in-the-money legs exercise; a strike equal to price expires worthless.
func Exercises(legs []model.Option, price decimal.Decimal) []Exercise {
	var out []Exercise
	for _, leg := range legs {
		var diff decimal.Decimal // intrinsic value per share
		var buys bool            // the holder of this leg ends up buying shares
		switch {
		case leg.IsCall && leg.Strike.LessThan(price):
			diff, buys = price.Sub(leg.Strike), leg.IsLong
		case !leg.IsCall && leg.Strike.GreaterThan(price):
			diff, buys = leg.Strike.Sub(price), !leg.IsLong
		default:
			continue
		}

		value := diff.Mul(model.Multiplier())
		if !leg.IsLong {
			value = value.Neg()
		}
		shares := model.ContractMultiplier
		if !buys {
			shares = -shares
		}
		out = append(out, Exercise{
			Leg:      leg,
			Assigned: !leg.IsLong,
			Shares:   shares,
			Value:    value.Round(2),
		})
	}
	return out
}

// ResolveExpiration closes whatever is still open once the trade has
// expired. In-the-money legs are exercised or assigned at the underlying's
// closing price: the resulting share lots go to sink and their intrinsic
// value is credited to the trade. A flipped zero-premium event at the market
// close then marks every leg closed.
//
// It returns nil when the trade has not expired or has nothing open. With a
// nil prices source every leg expires worthless. A price lookup failure
// leaves the trade untouched, and so does a sink failure.
func (t *Trade) ResolveExpiration(ctx context.Context, now time.Time, prices marketdata.PriceSource, sink ShareSink) (*Resolution, error) {
	if !t.IsExpired(now) {
		return nil, nil
	}
	open := t.OpenLegs()
	if len(open) == 0 {
		return nil, nil
	}

	at := t.ExpiresAt()
	res := &Resolution{TradeID: t.id}

	if prices != nil {
		p, err := prices.ClosingPrice(ctx, t.ticker, t.expiration)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", t.id, err)
		}
		p = p.Round(2)
		res.Settlement = &p
		res.Exercises = Exercises(open, p)
	}

	if sink != nil {
		batches := make([][]ledger.Lot, 0, len(res.Exercises))
		for _, ex := range res.Exercises {
			n := ex.Shares
			if n < 0 {
				n = -n
			}
			batches = append(batches, ledger.NewLots(t.ticker, *res.Settlement, at, ex.Shares > 0, n))
		}
		if len(batches) > 0 {
			if err := sink.AddBatches(batches); err != nil {
				return nil, fmt.Errorf("resolve %s: add shares: %w", t.id, err)
			}
		}
	}

	legs := make([]model.Option, len(open))
	for i, leg := range open {
		legs[i] = leg.Flip()
	}
	end := at
	res.Closing = model.TradeEvent{
		ID:            t.id + ":expiration",
		TradeID:       t.id,
		ExecutionTime: at,
		Ticker:        t.ticker,
		Expiration:    t.expiration,
		Legs:          legs,
		EndTime:       &end,
		Synthetic:     true,
	}
	t.insert(res.Closing.Clone())

	for _, ex := range res.Exercises {
		t.exerciseValue = t.exerciseValue.Add(ex.Value)
	}
	t.exercises = append(t.exercises, res.Exercises...)
	t.settlement = res.Settlement

	slog.Info("trade expired",
		"trade", t.id,
		"open_legs", len(open),
		"exercises", len(res.Exercises),
		"exercise_value", t.exerciseValue.StringFixed(2),
	)
	return res, nil
}
