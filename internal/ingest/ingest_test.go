package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/account"
	"github.com/tradejournal/journal-engine/internal/contract"
	"github.com/tradejournal/journal-engine/internal/model"
	"github.com/tradejournal/journal-engine/internal/store"
	"github.com/tradejournal/journal-engine/internal/strategy"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

const camelDoc = `{
  "tradeEvents": [
    {
      "executionTime": "2024-01-02T10:30:00-05:00",
      "ticker": "aapl",
      "expirationDate": "2024-01-19",
      "legs": [
        {"strike": "190", "type": "call", "side": "buy", "premium": "2.35", "quantity": 2},
        {"symbol": "AAPL  240119C00200000", "side": "sell", "price": 0.80, "quantity": "2.00000"}
      ]
    }
  ],
  "shareOrders": [
    {"ticker": "AAPL", "side": "sell", "averagePrice": "186.00", "quantity": 100, "time": "2024-01-04T10:00:00Z"},
    {"ticker": "AAPL", "side": "buy", "averagePrice": "185.10", "quantity": 100, "time": "2024-01-03T09:45:00Z"}
  ]
}`

const snakeDoc = `[
  {
    "execution_time": "2024-01-02T15:30:00Z",
    "ticker": "AAPL",
    "expiration_date": "2024-01-19",
    "options": [
      {"strike": 190, "is_call": true, "is_long": true, "premium": 2.35, "quantity": 2},
      {"strike": 200, "is_call": true, "is_long": false, "premium": 0.8, "quantity": 2}
    ]
  }
]`

func load(t *testing.T, l *Loader, doc string) *Batch {
	t.Helper()
	b, err := l.Load(context.Background(), strings.NewReader(doc), "test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return b
}

func TestLoadCamelCaseDocument(t *testing.T) {
	b := load(t, NewLoader(nil, nil), camelDoc)

	if len(b.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(b.Events))
	}
	ev := b.Events[0]
	if ev.Ticker != "AAPL" {
		t.Errorf("expected ticker AAPL, got %s", ev.Ticker)
	}
	if len(ev.Legs) != 4 {
		t.Fatalf("expected quantity expanded to 4 legs, got %d", len(ev.Legs))
	}
	if !ev.Legs[2].Strike.Equal(d(200)) || ev.Legs[2].IsLong || !ev.Legs[2].IsCall {
		t.Errorf("symbol leg resolved wrong: %s", ev.Legs[2])
	}
	if !ev.Legs[3].Premium.Equal(d(0.8)) {
		t.Errorf("expected premium 0.8, got %s", ev.Legs[3].Premium)
	}
	if !ev.ExecutionTime.Equal(time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected execution time %v", ev.ExecutionTime)
	}
	if ev.ID == "" {
		t.Error("expected a generated event ID")
	}

	if len(b.Fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(b.Fills))
	}
	if !b.Fills[0].IsLong || !b.Fills[0].Price.Equal(d(185.1)) {
		t.Errorf("expected fills sorted by time, first is %+v", b.Fills[0])
	}
}

func TestCamelAndSnakeDocumentsAgree(t *testing.T) {
	l := NewLoader(nil, nil)
	camel := load(t, l, camelDoc)
	snake := load(t, l, snakeDoc)

	if len(snake.Events) != 1 || len(snake.Fills) != 0 {
		t.Fatalf("unexpected snake batch: %d events, %d fills", len(snake.Events), len(snake.Fills))
	}
	if camel.Events[0].ID != snake.Events[0].ID {
		t.Errorf("same execution got different IDs: %s vs %s", camel.Events[0].ID, snake.Events[0].ID)
	}
}

func TestGeneratedIDsAreStable(t *testing.T) {
	doc := `[
	  {"executionTime": "2024-01-02T15:30:00Z", "ticker": "SPY", "expirationDate": "2024-02-16",
	   "legs": [{"strike": 450, "type": "put", "side": "sell", "premium": 3}]},
	  {"executionTime": "2024-01-02T15:30:00Z", "ticker": "SPY", "expirationDate": "2024-02-16",
	   "legs": [{"strike": 450, "type": "put", "side": "sell", "premium": 3}]}
	]`
	l := NewLoader(nil, nil)
	first := load(t, l, doc)
	second := load(t, l, doc)

	if first.Events[0].ID == first.Events[1].ID {
		t.Error("identical executions in one document must get distinct IDs")
	}
	for i := range first.Events {
		if first.Events[i].ID != second.Events[i].ID {
			t.Errorf("event %d: ID changed between loads", i)
		}
	}
}

func TestExplicitIDKept(t *testing.T) {
	doc := `[{"id": "fill-1", "executionTime": "2024-01-02T15:30:00Z", "ticker": "SPY",
	  "expirationDate": "2024-02-16", "legs": [{"strike": 450, "isCall": false, "isLong": false, "premium": 3}]}]`
	b := load(t, NewLoader(nil, nil), doc)
	if b.Events[0].ID != "fill-1" {
		t.Errorf("expected explicit ID, got %s", b.Events[0].ID)
	}
}

func TestLocalTimesUseLoaderLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	doc := `[{"executionTime": "2024-01-02 10:30:00", "ticker": "SPY", "expirationDate": "2024-02-16",
	  "legs": [{"strike": 450, "type": "P", "side": "short", "premium": 3}]}]`
	b := load(t, NewLoader(nil, ny), doc)

	want := time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC)
	if !b.Events[0].ExecutionTime.Equal(want) {
		t.Errorf("expected %v, got %v", want, b.Events[0].ExecutionTime.UTC())
	}
}

func TestLoadErrors(t *testing.T) {
	leg := func(body string) string {
		return `[{"executionTime": "2024-01-02T15:30:00Z", "ticker": "SPY", "expirationDate": "2024-02-16", "legs": [` + body + `]}]`
	}
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"empty object", `{}`, ErrEmptyDocument},
		{"missing premium", leg(`{"strike": 450, "type": "put", "side": "buy"}`), ErrInvalidLeg},
		{"unknown side", leg(`{"strike": 450, "type": "put", "side": "hold", "premium": 1}`), ErrInvalidLeg},
		{"missing type", leg(`{"strike": 450, "side": "buy", "premium": 1}`), ErrInvalidLeg},
		{"missing strike", leg(`{"type": "put", "side": "buy", "premium": 1}`), ErrInvalidLeg},
		{"fractional quantity", leg(`{"strike": 450, "type": "put", "side": "buy", "premium": 1, "quantity": 1.5}`), model.ErrInvalidQuantity},
		{"zero quantity", leg(`{"strike": 450, "type": "put", "side": "buy", "premium": 1, "quantity": 0}`), model.ErrInvalidQuantity},
		{"negative premium", leg(`{"strike": 450, "type": "put", "side": "buy", "premium": -1}`), model.ErrNegativePremium},
		{"bad symbol", leg(`{"symbol": "NOT A SYMBOL", "side": "buy", "premium": 1}`), contract.ErrInvalidSymbol},
		{"symbol for other ticker", leg(`{"symbol": "QQQ   240216P00400000", "side": "buy", "premium": 1}`), model.ErrLegMismatch},
		{"no legs", `[{"executionTime": "2024-01-02T15:30:00Z", "ticker": "SPY", "expirationDate": "2024-02-16", "legs": []}]`, model.ErrNoLegs},
		{"bad time", `[{"executionTime": "yesterday", "ticker": "SPY", "expirationDate": "2024-02-16", "legs": []}]`, ErrInvalidTime},
		{"bad share price", `{"shareOrders": [{"ticker": "SPY", "side": "buy", "quantity": 10, "time": "2024-01-02T15:30:00Z"}]}`, ErrInvalidOrder},
	}
	l := NewLoader(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Load(context.Background(), strings.NewReader(tt.doc), "test")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLegTakesTickerFromSymbol(t *testing.T) {
	doc := `[{"executionTime": "2024-01-02T15:30:00Z",
	  "legs": [{"symbol": "QQQ   240216P00400000", "side": "sell", "premium": 4.1}]}]`
	b := load(t, NewLoader(contract.NewCachingResolver(contract.SymbolResolver{}), nil), doc)

	ev := b.Events[0]
	if ev.Ticker != "QQQ" || ev.Expiration.Format(model.DateLayout) != "2024-02-16" {
		t.Errorf("event fields not filled from symbol: %s %v", ev.Ticker, ev.Expiration)
	}
}

func TestParseEventAndShareFill(t *testing.T) {
	l := NewLoader(nil, nil)
	ev, err := l.ParseEvent(context.Background(), []byte(`{"executionTime": "2024-01-02T15:30:00Z",
	  "ticker": "SPY", "expirationDate": "2024-02-16",
	  "legs": [{"strike": 450, "type": "put", "side": "sell", "premium": 3}]}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.ID == "" || len(ev.Legs) != 1 {
		t.Errorf("unexpected event %+v", ev)
	}

	f, err := l.ParseShareFill([]byte(`{"ticker": "spy", "side": "buy", "price": "470.5", "quantity": 5, "time": "2024-01-02T15:30:00Z"}`))
	if err != nil {
		t.Fatalf("ParseShareFill: %v", err)
	}
	if f.Ticker != "SPY" || f.Quantity != 5 || !f.IsLong || f.ID == "" {
		t.Errorf("unexpected fill %+v", f)
	}
}

func TestApplyPersistRestore(t *testing.T) {
	ctx := context.Background()
	clock := func() time.Time { return time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC) }
	l := NewLoader(nil, nil)
	b := load(t, l, snakeDoc)
	shares := load(t, l, `{"shareOrders": [
	  {"ticker": "AAPL", "side": "buy", "price": 5, "quantity": 10, "time": "2024-01-03T15:00:00Z"},
	  {"ticker": "AAPL", "side": "sell", "price": 7, "quantity": 4, "time": "2024-01-04T15:00:00Z"}
	]}`)
	b.Fills = shares.Fills

	st := store.NewMemoryStore()
	if err := Persist(ctx, st, b); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if err := Persist(ctx, st, b); err != nil {
		t.Fatalf("second Persist: %v", err)
	}

	acct := account.New(account.WithClock(clock))
	res, err := Restore(ctx, st, acct)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Events != 1 || res.Fills != 2 || res.Skipped != 0 {
		t.Errorf("unexpected restore result %+v", res)
	}

	tr, ok := acct.Trade("AAPL:2024-01-19")
	if !ok {
		t.Fatal("expected trade AAPL:2024-01-19")
	}
	if len(tr.OpenLegs()) != 4 {
		t.Errorf("expected 4 open legs, got %d", len(tr.OpenLegs()))
	}
	if got := acct.Ledger().OpenPosition("AAPL"); got != 6 {
		t.Errorf("expected 6 open shares, got %d", got)
	}

	again, err := Apply(ctx, acct, b, "file")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if again.Events != 0 || again.Skipped != 3 {
		t.Errorf("expected everything skipped, got %+v", again)
	}
}

func TestApplyClassifiesSpread(t *testing.T) {
	doc := `[{"executionTime": "2024-01-02T15:30:00Z", "ticker": "AAPL", "expirationDate": "2024-01-19",
	  "legs": [
	    {"strike": 190, "type": "call", "side": "buy", "premium": 2.35},
	    {"strike": 200, "type": "call", "side": "sell", "premium": 0.8}
	  ]}]`
	b := load(t, NewLoader(nil, nil), doc)
	acct := account.New(account.WithClock(func() time.Time { return time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC) }))
	if _, err := Apply(context.Background(), acct, b, "file"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	tr, _ := acct.Trade("AAPL:2024-01-19")
	s, ok := tr.Strategy()
	if !ok || s.Name != strategy.LongCallSpread {
		t.Errorf("expected %s, got %q", strategy.LongCallSpread, s.Name)
	}
}
