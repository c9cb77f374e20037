package account

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/logger"
	"github.com/tradejournal/journal-engine/internal/metrics"
	"github.com/tradejournal/journal-engine/internal/model"
	"github.com/tradejournal/journal-engine/internal/risk"
	"github.com/tradejournal/journal-engine/internal/trade"
)

// Report is the account-level journal. Statistics that are undefined, such
// as averages over no closed trades, are nil and render as null.
type Report struct {
	GeneratedAt               time.Time                  `json:"generated_at"`
	TotalRealizedProfit       decimal.Decimal            `json:"total_realized_profit"`
	TotalShareProfit          decimal.Decimal            `json:"total_share_profit"`
	ShareProfitByTicker       map[string]decimal.Decimal `json:"share_profit_by_ticker"`
	TotalOptionProfit         *decimal.Decimal           `json:"total_option_profit"`
	AverageOptionProfit       *decimal.Decimal           `json:"average_option_profit"`
	OptionProfitByTicker      map[string]decimal.Decimal `json:"option_profit_by_ticker"`
	TradeCountByTicker        map[string]int             `json:"trade_count_by_ticker"`
	WinPercent                *decimal.Decimal           `json:"win_percent"`
	AverageTradeDuration      *string                    `json:"average_trade_duration"`
	AverageReturnOnCollateral *decimal.Decimal           `json:"average_return_on_collateral_percent"`
	OpenShares                map[string]int             `json:"open_shares"`
	OpenCollateralByTicker    map[string]decimal.Decimal `json:"open_collateral_by_ticker"`
	RiskBreaches              []risk.Breach              `json:"risk_breaches,omitempty"`
	ResolutionErrors          []string                   `json:"resolution_errors,omitempty"`
	ClosedTrades              []TradeReport              `json:"closed_trades"`
	OpenTrades                []TradeReport              `json:"open_trades"`
}

// TradeReport describes one trade. Profit fields are set once it closes.
type TradeReport struct {
	ID                          string              `json:"id"`
	Ticker                      string              `json:"ticker"`
	ExpirationDate              string              `json:"expiration_date"`
	State                       string              `json:"state"`
	UnderlyingPriceAtExpiration *decimal.Decimal    `json:"underlying_price_at_expiration"`
	Strategy                    *StrategyReport     `json:"strategy,omitempty"`
	TradeEvents                 []EventReport       `json:"trade_events"`
	ExerciseValue               *decimal.Decimal    `json:"exercise_value,omitempty"`
	Exercises                   []trade.Exercise    `json:"exercises,omitempty"`
	Profit                      *decimal.Decimal    `json:"profit,omitempty"`
	ProfitByTradeEvent          []trade.EventProfit `json:"realized_option_profit_by_trade_event,omitempty"`
	Win                         *bool               `json:"win,omitempty"`
	ReturnOnCollateral          *decimal.Decimal    `json:"return_on_collateral_percent,omitempty"`
	Duration                    string              `json:"duration,omitempty"`
}

// EventReport is one trade event with the strategy left open after it.
type EventReport struct {
	ID            string         `json:"id"`
	ExecutionTime time.Time      `json:"execution_time"`
	EndTime       *time.Time     `json:"end_time"`
	Synthetic     bool           `json:"synthetic,omitempty"`
	Legs          []OptionReport `json:"legs"`
	Strategy      StrategyReport `json:"strategy"`
}

// StrategyReport renders a strategy and its payoff envelope.
type StrategyReport struct {
	Name                  string           `json:"name"`
	Legs                  []OptionReport   `json:"legs"`
	MaxProfit             model.Bound      `json:"max_profit"`
	MaxLoss               model.Bound      `json:"max_loss"`
	Collateral            decimal.Decimal  `json:"collateral"`
	MaxReturnOnCollateral *decimal.Decimal `json:"max_return_on_collateral_percent"`
}

// OptionReport renders one leg.
type OptionReport struct {
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Side        string          `json:"side"`
	Strike      decimal.Decimal `json:"strike"`
	Premium     decimal.Decimal `json:"premium"`
}

// Report resolves expirations and builds the journal. Resolution failures
// are listed on the report rather than returned; the affected trades stay
// open.
func (a *Account) Report(ctx context.Context) *Report {
	start := time.Now()
	op := logger.StartOperation(ctx, "account.Report", "trades", len(a.trades))
	ctx = op.Context()

	var resolutionErrors []string
	if err := a.ResolveExpirations(ctx); err != nil {
		resolutionErrors = splitJoined(err)
	}

	now := a.now()
	all := a.Trades()
	var closed, open []*trade.Trade
	for _, t := range all {
		if t.IsClosed() {
			closed = append(closed, t)
		} else {
			open = append(open, t)
		}
	}

	shareProfit := a.shares.TotalProfit()
	r := &Report{
		GeneratedAt:            now,
		TotalShareProfit:       shareProfit.Round(2),
		ShareProfitByTicker:    roundAll(a.shares.ProfitByTicker()),
		OptionProfitByTicker:   roundAll(ProfitByTicker(closed)),
		TradeCountByTicker:     TradeCountByTicker(all),
		OpenShares:             a.shares.OpenPositions(),
		OpenCollateralByTicker: roundAll(a.OpenCollateral()),
		RiskBreaches:           a.RiskBreaches(),
		ResolutionErrors:       resolutionErrors,
		ClosedTrades:           make([]TradeReport, 0, len(closed)),
		OpenTrades:             make([]TradeReport, 0, len(open)),
	}

	realized := shareProfit
	if v, err := TotalOptionProfit(closed); err == nil {
		r.TotalOptionProfit = &v
		realized = realized.Add(v)
	}
	r.TotalRealizedProfit = realized.Round(2)
	if v, err := AverageProfit(closed); err == nil {
		r.AverageOptionProfit = &v
	}
	if v, err := WinPercent(closed); err == nil {
		r.WinPercent = &v
	}
	if v, err := AverageDuration(closed); err == nil {
		s := v.String()
		r.AverageTradeDuration = &s
	}
	if v, err := AverageReturnOnCollateral(closed); err == nil {
		r.AverageReturnOnCollateral = &v
	}

	for _, t := range closed {
		r.ClosedTrades = append(r.ClosedTrades, BuildTradeReport(t, now))
	}
	for _, t := range open {
		r.OpenTrades = append(r.OpenTrades, BuildTradeReport(t, now))
	}
	for _, b := range r.RiskBreaches {
		logger.Risk(ctx, b.Ticker, b.Scope, "breach", b.String())
	}

	metrics.Trades.WithLabelValues(trade.StateClosed).Set(float64(len(closed)))
	metrics.Trades.WithLabelValues(trade.StateOpen).Set(float64(len(open)))
	metrics.ReportDuration.Observe(time.Since(start).Seconds())
	op.End("closed", len(closed), "open", len(open))
	return r
}

// BuildTradeReport renders t as of now.
func BuildTradeReport(t *trade.Trade, now time.Time) TradeReport {
	tr := TradeReport{
		ID:             t.ID(),
		Ticker:         t.Ticker(),
		ExpirationDate: t.Expiration().Format(model.DateLayout),
		State:          t.State(now),
	}
	if p, ok := t.Settlement(); ok {
		tr.UnderlyingPriceAtExpiration = &p
	}
	if s, ok := t.Strategy(); ok {
		sr := buildStrategyReport(s)
		tr.Strategy = &sr
	}
	for _, ev := range t.Events() {
		tr.TradeEvents = append(tr.TradeEvents, EventReport{
			ID:            ev.ID,
			ExecutionTime: ev.ExecutionTime,
			EndTime:       ev.EndTime,
			Synthetic:     ev.Synthetic,
			Legs:          buildOptionReports(ev.Legs),
			Strategy:      buildStrategyReport(*ev.Strategy),
		})
	}

	if !t.IsClosed() {
		return tr
	}
	ev := t.ExerciseValue().Round(2)
	tr.ExerciseValue = &ev
	tr.Exercises = t.Exercises()
	if p, err := t.TotalProfit(); err == nil {
		tr.Profit = &p
	}
	if byEvent, err := t.ProfitByEvent(); err == nil {
		tr.ProfitByTradeEvent = byEvent
	}
	if win, err := t.IsWin(); err == nil {
		tr.Win = &win
	}
	if roc, err := t.ReturnOnCollateral(); err == nil {
		tr.ReturnOnCollateral = &roc
	}
	if d, err := t.Duration(); err == nil {
		tr.Duration = d.String()
	}
	return tr
}

// TradeSummary is the one-line view of a trade.
type TradeSummary struct {
	ID             string `json:"id"`
	Ticker         string `json:"ticker"`
	ExpirationDate string `json:"expiration_date"`
	State          string `json:"state"`
	Strategy       string `json:"strategy"`
	EventCount     int    `json:"event_count"`
	OpenLegs       int    `json:"open_legs"`
}

// Summarize returns t's summary as of now.
func Summarize(t *trade.Trade, now time.Time) TradeSummary {
	s := TradeSummary{
		ID:             t.ID(),
		Ticker:         t.Ticker(),
		ExpirationDate: t.Expiration().Format(model.DateLayout),
		State:          t.State(now),
		EventCount:     len(t.Events()),
		OpenLegs:       len(t.OpenLegs()),
	}
	if st, ok := t.Strategy(); ok {
		s.Strategy = st.Name
	}
	return s
}

func buildStrategyReport(s model.Strategy) StrategyReport {
	sr := StrategyReport{
		Name:       s.Name,
		Legs:       buildOptionReports(s.Legs),
		MaxProfit:  s.MaxProfit,
		MaxLoss:    s.MaxLoss,
		Collateral: s.Collateral,
	}
	if pct, ok := s.MaxReturnOnCollateral(); ok {
		sr.MaxReturnOnCollateral = &pct
	}
	return sr
}

func buildOptionReports(legs []model.Option) []OptionReport {
	out := make([]OptionReport, len(legs))
	for i, leg := range legs {
		out[i] = OptionReport{
			Description: leg.String(),
			Type:        leg.Type(),
			Side:        leg.Side(),
			Strike:      leg.Strike,
			Premium:     leg.Premium,
		}
	}
	return out
}

func roundAll(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	for k, v := range m {
		m[k] = v.Round(2)
	}
	return m
}

// splitJoined flattens an errors.Join result into messages.
func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
