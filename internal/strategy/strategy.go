// Package strategy names the open legs of a position after common
// multi-leg options strategies and attaches their payoff envelope.
//
// Classification is pattern matching over legs sorted by strike with puts
// before calls. Strikes compare exactly on their decimal value. Shapes that
// match no named pattern fall back to "{N}-Option Strategy".
package strategy

import (
	"fmt"

	"github.com/tradejournal/journal-engine/internal/model"
	"github.com/tradejournal/journal-engine/internal/payoff"
	"github.com/tradejournal/journal-engine/internal/position"
)

// Strategy names.
const (
	ClosePosition = "Close Position"

	LongCall  = "Long Call"
	ShortCall = "Short Call"
	LongPut   = "Long Put"
	ShortPut  = "Short Put"

	LongCallSpread   = "Long Call Spread"
	ShortCallSpread  = "Short Call Spread"
	LongPutSpread    = "Long Put Spread"
	ShortPutSpread   = "Short Put Spread"
	Collar           = "Collar"
	LongCombination  = "Long Combination"
	ShortCombination = "Short Combination"
	LongStraddle     = "Long Straddle"
	ShortStraddle    = "Short Straddle"
	LongStrangle     = "Long Strangle"
	ShortStrangle    = "Short Strangle"

	CallBackSpread  = "Call Back Spread"
	CallFrontSpread = "Call Front Spread"
	PutBackSpread   = "Put Back Spread"
	PutFrontSpread  = "Put Front Spread"
	LongBigLizard   = "Long Big Lizard"
	ShortBigLizard  = "Short Big Lizard"
	LongJadeLizard  = "Long Jade Lizard"
	ShortJadeLizard = "Short Jade Lizard"

	LongIronButterfly  = "Long Iron Butterfly"
	ShortIronButterfly = "Short Iron Butterfly"
	LongIronCondor     = "Long Iron Condor"
	ShortIronCondor    = "Short Iron Condor"
	LongCallButterfly  = "Long Call Butterfly"
	ShortCallButterfly = "Short Call Butterfly"
	LongCallCondor     = "Long Call Condor"
	ShortCallCondor    = "Short Call Condor"
	LongPutButterfly   = "Long Put Butterfly"
	ShortPutButterfly  = "Short Put Butterfly"
	LongPutCondor      = "Long Put Condor"
	ShortPutCondor     = "Short Put Condor"
)

// Generic returns the fallback name for an unrecognised n-leg shape.
func Generic(n int) string {
	return fmt.Sprintf("%d-Option Strategy", n)
}

// Evaluate sorts the open legs, names them and computes their payoff
// envelope.
func Evaluate(open []model.Option) model.Strategy {
	legs := position.SortLegs(open)
	env := payoff.Analyze(legs)
	return model.Strategy{
		Name:       Classify(legs),
		Legs:       legs,
		MaxProfit:  env.MaxProfit,
		MaxLoss:    env.MaxLoss,
		Collateral: env.Collateral,
	}
}

// Classify names legs, which must already be sorted with position.SortLegs.
func Classify(legs []model.Option) string {
	var name string
	switch len(legs) {
	case 0:
		return ClosePosition
	case 1:
		name = single(legs[0])
	case 2:
		name = pair(legs)
	case 3:
		name = triple(legs)
	case 4:
		name = quad(legs)
	}
	if name == "" {
		return Generic(len(legs))
	}
	return name
}

func single(o model.Option) string {
	switch {
	case o.IsLong && o.IsCall:
		return LongCall
	case o.IsLong:
		return LongPut
	case o.IsCall:
		return ShortCall
	default:
		return ShortPut
	}
}

func pair(legs []model.Option) string {
	a, b := legs[0], legs[1]

	switch {
	case a.IsCall && b.IsCall:
		if a.IsLong && !b.IsLong {
			return LongCallSpread
		}
		if !a.IsLong && b.IsLong {
			return ShortCallSpread
		}
		return ""
	case !a.IsCall && !b.IsCall:
		if a.IsLong && !b.IsLong {
			return ShortPutSpread
		}
		if !a.IsLong && b.IsLong {
			return LongPutSpread
		}
		return ""
	}

	// Mixed: the put sorts first.
	sameStrike := a.Strike.Equal(b.Strike)
	switch {
	case a.IsLong && !b.IsLong && b.Strike.GreaterThan(a.Strike):
		return Collar
	case !a.IsLong && b.IsLong && sameStrike:
		return LongCombination
	case a.IsLong && !b.IsLong && sameStrike:
		return ShortCombination
	}

	direction := "Long"
	if !a.IsLong && !b.IsLong {
		direction = "Short"
	}
	shape := "Strangle"
	if sameStrike {
		shape = "Straddle"
	}
	return direction + " " + shape
}

func triple(legs []model.Option) string {
	a, b, c := legs[0], legs[1], legs[2]

	switch {
	case allCalls(legs):
		if !a.IsLong && b.IsLong && c.IsLong && b.Strike.Equal(c.Strike) {
			return CallBackSpread
		}
		if a.IsLong && !b.IsLong && !c.IsLong && b.Strike.Equal(c.Strike) {
			return CallFrontSpread
		}
	case allPuts(legs):
		if a.IsLong && b.IsLong && !c.IsLong && a.Strike.Equal(b.Strike) {
			return PutBackSpread
		}
		if !a.IsLong && !b.IsLong && c.IsLong && a.Strike.Equal(b.Strike) {
			return PutFrontSpread
		}
	case !a.IsCall && b.IsCall && c.IsCall:
		big := a.Strike.Equal(b.Strike)
		if !a.IsLong && !b.IsLong && c.IsLong {
			if big {
				return ShortBigLizard
			}
			return ShortJadeLizard
		}
		if a.IsLong && b.IsLong && !c.IsLong {
			if big {
				return LongBigLizard
			}
			return LongJadeLizard
		}
	}
	return ""
}

func quad(legs []model.Option) string {
	lowWing := legs[1].Strike.Sub(legs[0].Strike)
	highWing := legs[3].Strike.Sub(legs[2].Strike)
	if !lowWing.Equal(highWing) {
		return ""
	}

	butterfly := legs[1].Strike.Equal(legs[2].Strike)
	outerLong := legs[0].IsLong && !legs[1].IsLong && !legs[2].IsLong && legs[3].IsLong
	innerLong := !legs[0].IsLong && legs[1].IsLong && legs[2].IsLong && !legs[3].IsLong

	switch {
	case !legs[0].IsCall && !legs[1].IsCall && legs[2].IsCall && legs[3].IsCall:
		shape := "Iron Condor"
		if butterfly {
			shape = "Iron Butterfly"
		}
		if outerLong {
			return "Short " + shape
		}
		if innerLong {
			return "Long " + shape
		}
	case allCalls(legs), allPuts(legs):
		kind := "Put"
		if legs[0].IsCall {
			kind = "Call"
		}
		shape := "Condor"
		if butterfly {
			shape = "Butterfly"
		}
		if outerLong {
			return "Long " + kind + " " + shape
		}
		if innerLong {
			return "Short " + kind + " " + shape
		}
	}
	return ""
}

func allCalls(legs []model.Option) bool {
	for _, o := range legs {
		if !o.IsCall {
			return false
		}
	}
	return true
}

func allPuts(legs []model.Option) bool {
	for _, o := range legs {
		if o.IsCall {
			return false
		}
	}
	return true
}
