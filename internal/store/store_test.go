package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var (
	jan19 = time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)
	t0    = time.Date(2024, 1, 2, 15, 4, 5, 123000000, time.UTC)
)

func sampleEvent(id string, at time.Time) model.TradeEvent {
	end := at.Add(time.Hour)
	return model.TradeEvent{
		ID:            id,
		TradeID:       "AAPL:2024-01-19",
		ExecutionTime: at,
		Ticker:        "aapl",
		Expiration:    jan19,
		Legs: []model.Option{{
			Ticker: "aapl", Strike: d(150.5), Premium: d(2.35),
			IsCall: true, IsLong: true, Expiration: jan19,
		}},
		EndTime:  &end,
		Strategy: &model.Strategy{Name: "Long Call"},
	}
}

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	// Appended out of order, listed by execution time.
	if err := s.AppendEvent(ctx, sampleEvent("b", t0.Add(time.Hour))); err != nil {
		t.Fatalf("append b: %v", err)
	}
	if err := s.AppendEvent(ctx, sampleEvent("a", t0)); err != nil {
		t.Fatalf("append a: %v", err)
	}
	// Duplicate IDs are ignored.
	if err := s.AppendEvent(ctx, sampleEvent("a", t0.Add(5*time.Hour))); err != nil {
		t.Fatalf("append duplicate: %v", err)
	}
	if err := s.AppendEvent(ctx, sampleEvent("", t0)); !errors.Is(err, ErrMissingID) {
		t.Errorf("expected ErrMissingID, got %v", err)
	}

	events, err := s.ListEvents(ctx)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[0].ID != "a" || events[1].ID != "b" {
		t.Fatalf("unexpected events %+v", events)
	}
	ev := events[0]
	if ev.Ticker != "AAPL" || !ev.ExecutionTime.Equal(t0) || !ev.Expiration.Equal(jan19) {
		t.Errorf("event fields did not round-trip: %+v", ev)
	}
	if ev.Strategy != nil || ev.EndTime != nil || ev.TradeID != "" {
		t.Errorf("derived fields must not be persisted: %+v", ev)
	}
	if len(ev.Legs) != 1 || !ev.Legs[0].Strike.Equal(d(150.5)) || !ev.Legs[0].Premium.Equal(d(2.35)) || !ev.Legs[0].IsCall {
		t.Errorf("legs did not round-trip: %+v", ev.Legs)
	}

	// Share fills.
	fill := model.ShareFill{ID: "f1", Ticker: "xyz", Price: d(12.3456), Quantity: 7, IsLong: false, Time: t0}
	if err := s.AppendShareFill(ctx, fill); err != nil {
		t.Fatalf("append fill: %v", err)
	}
	if err := s.AppendShareFill(ctx, fill); err != nil {
		t.Fatalf("append duplicate fill: %v", err)
	}
	fills, err := s.ListShareFills(ctx)
	if err != nil {
		t.Fatalf("list fills: %v", err)
	}
	if len(fills) != 1 || fills[0].Ticker != "XYZ" || !fills[0].Price.Equal(d(12.3456)) || fills[0].Quantity != 7 || fills[0].IsLong {
		t.Errorf("unexpected fills %+v", fills)
	}

	// Closing prices.
	if _, ok, err := s.GetClosingPrice(ctx, "AAPL", jan19); ok || err != nil {
		t.Errorf("expected a miss, got ok=%v err=%v", ok, err)
	}
	if err := s.PutClosingPrice(ctx, "aapl", jan19.Add(20*time.Hour), d(191.56)); err != nil {
		t.Fatalf("put price: %v", err)
	}
	if err := s.PutClosingPrice(ctx, "AAPL", jan19, d(191.57)); err != nil {
		t.Fatalf("replace price: %v", err)
	}
	p, ok, err := s.GetClosingPrice(ctx, "AAPL", jan19)
	if err != nil || !ok || !p.Equal(d(191.57)) {
		t.Errorf("expected 191.57, got %s ok=%v err=%v", p, ok, err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.AppendEvent(ctx, sampleEvent("a", t0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	events, err := s.ListEvents(ctx)
	if err != nil || len(events) != 1 {
		t.Fatalf("expected the event to persist, got %d %v", len(events), err)
	}
}

func TestMemoryStore_ListReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.AppendEvent(ctx, sampleEvent("a", t0))

	events, _ := s.ListEvents(ctx)
	events[0].Legs[0].Strike = d(1)

	again, _ := s.ListEvents(ctx)
	if !again[0].Legs[0].Strike.Equal(d(150.5)) {
		t.Error("caller mutation leaked into the store")
	}
}

// fakeRows feeds canned rows to the pgx scanners.
type fakeRows struct {
	rows [][]any
	i    int
}

func (r *fakeRows) Next() bool {
	r.i++
	return r.i <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.i-1]
	for i, v := range row {
		switch p := dest[i].(type) {
		case *string:
			*p = v.(string)
		case *bool:
			*p = v.(bool)
		case *int:
			*p = v.(int)
		case *time.Time:
			*p = v.(time.Time)
		}
	}
	return nil
}

func (r *fakeRows) Err() error { return nil }

func TestScanEvents(t *testing.T) {
	rows := &fakeRows{rows: [][]any{
		{"a", "AAPL", "2024-01-19", t0, `[{"ticker":"AAPL","strike":"150","premium":"2","is_call":true,"is_long":false,"expiration_date":"2024-01-19T00:00:00Z"}]`, false},
	}}
	events, err := scanEvents(rows)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(events) != 1 || !events[0].Expiration.Equal(jan19) || !events[0].Legs[0].Strike.Equal(d(150)) || events[0].Legs[0].IsLong {
		t.Errorf("unexpected events %+v", events)
	}

	bad := &fakeRows{rows: [][]any{{"b", "AAPL", "2024-01-19", t0, `not json`, false}}}
	if _, err := scanEvents(bad); err == nil {
		t.Error("expected a legs decode error")
	}
}

func TestScanShareFills(t *testing.T) {
	rows := &fakeRows{rows: [][]any{{"f1", "XYZ", "12.50", 3, true, t0}}}
	fills, err := scanShareFills(rows)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(fills) != 1 || !fills[0].Price.Equal(d(12.5)) || fills[0].Quantity != 3 || !fills[0].IsLong {
		t.Errorf("unexpected fills %+v", fills)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := closingPriceKey("aapl", jan19.Add(3*time.Hour)); got != "journal:close:AAPL:2024-01-19" {
		t.Errorf("unexpected key %s", got)
	}
}
