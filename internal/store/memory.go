package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]model.TradeEvent
	fills  map[string]model.ShareFill
	prices map[string]decimal.Decimal
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string]model.TradeEvent),
		fills:  make(map[string]model.ShareFill),
		prices: make(map[string]decimal.Decimal),
	}
}

func (s *MemoryStore) AppendEvent(_ context.Context, ev model.TradeEvent) error {
	stored, err := stripDerived(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[stored.ID]; !ok {
		s.events[stored.ID] = stored
	}
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context) ([]model.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]model.TradeEvent, 0, len(s.events))
	for _, ev := range s.events {
		events = append(events, ev.Clone())
	}
	slices.SortFunc(events, func(a, b model.TradeEvent) int {
		if c := a.ExecutionTime.Compare(b.ExecutionTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return events, nil
}

func (s *MemoryStore) AppendShareFill(_ context.Context, f model.ShareFill) error {
	if f.ID == "" {
		return ErrMissingID
	}
	f.Ticker = model.NormalizeTicker(f.Ticker)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fills[f.ID]; !ok {
		s.fills[f.ID] = f
	}
	return nil
}

func (s *MemoryStore) ListShareFills(_ context.Context) ([]model.ShareFill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fills := make([]model.ShareFill, 0, len(s.fills))
	for _, f := range s.fills {
		fills = append(fills, f)
	}
	slices.SortFunc(fills, func(a, b model.ShareFill) int {
		if c := a.Time.Compare(b.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return fills, nil
}

func (s *MemoryStore) GetClosingPrice(_ context.Context, ticker string, date time.Time) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[priceKey(ticker, date)]
	return p, ok, nil
}

func (s *MemoryStore) PutClosingPrice(_ context.Context, ticker string, date time.Time, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[priceKey(ticker, date)] = price
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func priceKey(ticker string, date time.Time) string {
	return model.NormalizeTicker(ticker) + ":" + priceDate(date)
}
