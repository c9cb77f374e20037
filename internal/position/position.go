// Package position nets a chronological list of option legs into the legs
// that remain open.
//
// A leg cancels the first earlier leg of the same type and strike with the
// opposite direction; otherwise it stays open. Legs are units: multi-contract
// fills must already be expanded one leg per contract.
package position

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
)

// bucket holds the open leg indexes for one strike of one option type, in
// arrival order.
type bucket struct {
	strike decimal.Decimal
	open   []int
}

// OpenIndexes returns the indexes of legs that survive netting. Calls come
// before puts; within a type, strikes appear in first-seen order.
func OpenIndexes(legs []model.Option) []int {
	var calls, puts []*bucket

	for i, leg := range legs {
		group := &puts
		if leg.IsCall {
			group = &calls
		}

		b := find(*group, leg.Strike)
		if b == nil {
			b = &bucket{strike: leg.Strike}
			*group = append(*group, b)
		}

		if j := slices.IndexFunc(b.open, func(k int) bool {
			return legs[k].IsLong != leg.IsLong
		}); j >= 0 {
			b.open = slices.Delete(b.open, j, j+1)
			continue
		}
		b.open = append(b.open, i)
	}

	var open []int
	for _, group := range [][]*bucket{calls, puts} {
		for _, b := range group {
			open = append(open, b.open...)
		}
	}
	return open
}

// OpenLegs returns the legs that remain open after netting.
func OpenLegs(legs []model.Option) []model.Option {
	idx := OpenIndexes(legs)
	open := make([]model.Option, 0, len(idx))
	for _, i := range idx {
		open = append(open, legs[i])
	}
	return open
}

// SortLegs returns a copy ordered by strike ascending with puts before
// calls. The sort is stable, so equal legs keep their relative order.
func SortLegs(legs []model.Option) []model.Option {
	sorted := slices.Clone(legs)
	slices.SortStableFunc(sorted, func(a, b model.Option) int {
		if a.IsCall != b.IsCall {
			if a.IsCall {
				return 1
			}
			return -1
		}
		return a.Strike.Cmp(b.Strike)
	})
	return sorted
}

// Strikes returns the distinct strikes of legs in ascending order.
func Strikes(legs []model.Option) []decimal.Decimal {
	var strikes []decimal.Decimal
	for _, leg := range legs {
		if !slices.ContainsFunc(strikes, leg.Strike.Equal) {
			strikes = append(strikes, leg.Strike)
		}
	}
	slices.SortFunc(strikes, func(a, b decimal.Decimal) int {
		return a.Cmp(b)
	})
	return strikes
}

func find(group []*bucket, strike decimal.Decimal) *bucket {
	for _, b := range group {
		if b.strike.Equal(strike) {
			return b
		}
	}
	return nil
}
