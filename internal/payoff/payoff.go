// Package payoff evaluates the expiration payoff of a set of option legs
// and derives its envelope: maximum profit, maximum loss and collateral.
//
// The aggregate payoff of vanilla options is piecewise linear with kinks
// only at strikes, so sampling the price axis at:
//   - one point left of the lowest strike: min(lowest-1, 0)
//   - every distinct strike
//   - one point right of the highest strike: highest+1
//
// is enough to find its extremes and the slope at both edges.
//
// All values are in currency per position, with the contract multiplier
// applied, rounded to cents.
package payoff

import (
	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
	"github.com/tradejournal/journal-engine/internal/position"
)

// CentScale is the rounding scale for sampled payoffs and collateral.
const CentScale int32 = 2

// Envelope is the theoretical risk profile of an open position.
type Envelope struct {
	MaxProfit  model.Bound
	MaxLoss    model.Bound
	Collateral decimal.Decimal
}

// LegPayoff returns one leg's payoff at expiration for an underlying price:
//
//	long call:  max(P-K, 0) - premium
//	short call: min(K-P, 0) + premium
//	long put:   max(K-P, 0) - premium
//	short put:  min(P-K, 0) + premium
//
// scaled by the contract multiplier.
func LegPayoff(leg model.Option, price decimal.Decimal) decimal.Decimal {
	var v decimal.Decimal
	switch {
	case leg.IsCall && leg.IsLong:
		v = decimal.Max(price.Sub(leg.Strike), decimal.Zero).Sub(leg.Premium)
	case leg.IsCall:
		v = decimal.Min(leg.Strike.Sub(price), decimal.Zero).Add(leg.Premium)
	case leg.IsLong:
		v = decimal.Max(leg.Strike.Sub(price), decimal.Zero).Sub(leg.Premium)
	default:
		v = decimal.Min(price.Sub(leg.Strike), decimal.Zero).Add(leg.Premium)
	}
	return v.Mul(model.Multiplier())
}

// ProfitAt sums every leg's payoff at price, rounded to cents.
func ProfitAt(legs []model.Option, price decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, leg := range legs {
		total = total.Add(LegPayoff(leg, price))
	}
	return total.Round(CentScale)
}

// SamplePrices returns the ascending price points used to evaluate legs.
// It returns nil for an empty position.
func SamplePrices(legs []model.Option) []decimal.Decimal {
	strikes := position.Strikes(legs)
	if len(strikes) == 0 {
		return nil
	}
	one := decimal.NewFromInt(1)
	left := decimal.Min(strikes[0].Sub(one), decimal.Zero)
	right := strikes[len(strikes)-1].Add(one)

	prices := make([]decimal.Decimal, 0, len(strikes)+2)
	prices = append(prices, left)
	prices = append(prices, strikes...)
	return append(prices, right)
}

// Curve evaluates ProfitAt at every sample price.
func Curve(legs []model.Option) []decimal.Decimal {
	prices := SamplePrices(legs)
	values := make([]decimal.Decimal, len(prices))
	for i, p := range prices {
		values[i] = ProfitAt(legs, p)
	}
	return values
}

// Analyze computes the payoff envelope of legs. An empty position has a
// zero envelope.
//
// Profit is unbounded when the curve still rises past the highest strike;
// otherwise it is the largest sampled value. Loss mirrors this with a falling
// right edge and the smallest value, reported as a positive amount. The left
// edge is the zero price floor, so an extreme reached there is the payoff at
// a price of zero.
func Analyze(legs []model.Option) Envelope {
	if len(legs) == 0 {
		return Envelope{
			MaxProfit:  model.Finite(decimal.Zero),
			MaxLoss:    model.Finite(decimal.Zero),
			Collateral: decimal.Zero,
		}
	}

	values := Curve(legs)
	first, second := values[0], values[1]
	last, prev := values[len(values)-1], values[len(values)-2]
	hi, lo := decimal.Max(values[0], values[1:]...), decimal.Min(values[0], values[1:]...)

	floor := ProfitAt(legs, decimal.Zero)

	env := Envelope{Collateral: Collateral(legs)}

	switch {
	case last.GreaterThan(prev):
		env.MaxProfit = model.Infinite()
	case hi.Equal(first) && first.GreaterThan(second):
		env.MaxProfit = model.Finite(floor)
	default:
		env.MaxProfit = model.Finite(hi)
	}

	switch {
	case last.LessThan(prev):
		env.MaxLoss = model.Infinite()
	case lo.Equal(first) && first.LessThan(second):
		env.MaxLoss = model.Finite(floor.Abs())
	default:
		env.MaxLoss = model.Finite(lo.Abs())
	}

	return env
}

// Collateral returns the capital committed by legs. Each side (calls, puts)
// nets strike notional: +strike*100 for long legs, -strike*100 for short
// legs. A side holding a short leg commits the absolute value of its net; a
// side holding only long legs commits nothing. The position's collateral is
// the larger side.
func Collateral(legs []model.Option) decimal.Decimal {
	var calls, puts side
	for _, leg := range legs {
		if leg.IsCall {
			calls.add(leg)
		} else {
			puts.add(leg)
		}
	}
	return decimal.Max(calls.committed(), puts.committed()).Round(CentScale)
}

type side struct {
	net   decimal.Decimal
	short bool
}

func (s *side) add(leg model.Option) {
	notional := leg.Strike.Mul(model.Multiplier())
	if leg.IsLong {
		s.net = s.net.Add(notional)
		return
	}
	s.net = s.net.Sub(notional)
	s.short = true
}

func (s side) committed() decimal.Decimal {
	if !s.short {
		return decimal.Zero
	}
	return s.net.Abs()
}
