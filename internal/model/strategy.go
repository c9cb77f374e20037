package model

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Bound is a payoff limit that may be unbounded.
type Bound struct {
	Value     decimal.Decimal
	Unbounded bool
}

// Finite returns a bounded limit of v.
func Finite(v decimal.Decimal) Bound {
	return Bound{Value: v}
}

// Infinite returns an unbounded limit.
func Infinite() Bound {
	return Bound{Unbounded: true}
}

// Equal reports whether both bounds are unbounded or hold equal values.
func (b Bound) Equal(other Bound) bool {
	if b.Unbounded || other.Unbounded {
		return b.Unbounded == other.Unbounded
	}
	return b.Value.Equal(other.Value)
}

func (b Bound) String() string {
	if b.Unbounded {
		return "inf"
	}
	return b.Value.StringFixed(2)
}

// MarshalJSON renders unbounded limits as "inf".
func (b Bound) MarshalJSON() ([]byte, error) {
	if b.Unbounded {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(b.Value)
}

func (b *Bound) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte(`"inf"`)) {
		*b = Infinite()
		return nil
	}
	var v decimal.Decimal
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = Finite(v)
	return nil
}

// Strategy is the classification and payoff envelope of the legs open
// after one trade event. It is always derived, never persisted on its own.
type Strategy struct {
	Name       string          `json:"name"`
	Legs       []Option        `json:"legs"`
	MaxProfit  Bound           `json:"max_profit"`
	MaxLoss    Bound           `json:"max_loss"`
	Collateral decimal.Decimal `json:"collateral"`
}

// MaxReturnOnCollateral returns max profit as a percentage of collateral.
// ok is false when profit is unbounded or no collateral is committed.
func (s Strategy) MaxReturnOnCollateral() (pct decimal.Decimal, ok bool) {
	if s.MaxProfit.Unbounded || !s.Collateral.IsPositive() {
		return decimal.Zero, false
	}
	return s.MaxProfit.Value.Div(s.Collateral).Mul(decimal.NewFromInt(100)).Round(2), true
}
