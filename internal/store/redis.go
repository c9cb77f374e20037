package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary store and invalidate the cache; reads check
// Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) AppendEvent(ctx context.Context, ev model.TradeEvent) error {
	if err := s.primary.AppendEvent(ctx, ev); err != nil {
		return err
	}
	s.rdb.Del(ctx, eventsKey())
	return nil
}

func (s *CachedStore) AppendShareFill(ctx context.Context, f model.ShareFill) error {
	if err := s.primary.AppendShareFill(ctx, f); err != nil {
		return err
	}
	s.rdb.Del(ctx, fillsKey())
	return nil
}

func (s *CachedStore) PutClosingPrice(ctx context.Context, ticker string, date time.Time, price decimal.Decimal) error {
	if err := s.primary.PutClosingPrice(ctx, ticker, date, price); err != nil {
		return err
	}
	// Closes never change once published, so cache without expiry.
	s.rdb.Set(ctx, closingPriceKey(ticker, date), price.String(), 0)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListEvents(ctx context.Context) ([]model.TradeEvent, error) {
	data, err := s.rdb.Get(ctx, eventsKey()).Bytes()
	if err == nil {
		var events []model.TradeEvent
		if json.Unmarshal(data, &events) == nil {
			return events, nil
		}
	}

	events, err := s.primary.ListEvents(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(events); err == nil {
		s.rdb.Set(ctx, eventsKey(), data, s.ttl)
	}
	return events, nil
}

func (s *CachedStore) ListShareFills(ctx context.Context) ([]model.ShareFill, error) {
	data, err := s.rdb.Get(ctx, fillsKey()).Bytes()
	if err == nil {
		var fills []model.ShareFill
		if json.Unmarshal(data, &fills) == nil {
			return fills, nil
		}
	}

	fills, err := s.primary.ListShareFills(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(fills); err == nil {
		s.rdb.Set(ctx, fillsKey(), data, s.ttl)
	}
	return fills, nil
}

func (s *CachedStore) GetClosingPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, bool, error) {
	if cached, err := s.rdb.Get(ctx, closingPriceKey(ticker, date)).Result(); err == nil {
		if p, err := decimal.NewFromString(cached); err == nil {
			return p, true, nil
		}
	}

	p, ok, err := s.primary.GetClosingPrice(ctx, ticker, date)
	if err != nil || !ok {
		return p, ok, err
	}
	s.rdb.Set(ctx, closingPriceKey(ticker, date), p.String(), 0)
	return p, true, nil
}

// Close closes the primary store. The Redis client belongs to the caller.
func (s *CachedStore) Close() error {
	return s.primary.Close()
}

// --- Cache helpers ---

func eventsKey() string { return "journal:events" }
func fillsKey() string  { return "journal:share_fills" }
func closingPriceKey(ticker string, date time.Time) string {
	return fmt.Sprintf("journal:close:%s", priceKey(ticker, date))
}
