// Package store defines the persistence interface for the journal engine.
// Implementations include SQLite (local default), PostgreSQL (shared
// deployments), Redis (read-through cache), and in-memory (for testing).
//
// Only executions and closing prices are persisted. Strategies, end times
// and trade state are derived again by replaying the events.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
)

// ErrMissingID is returned when a record without an ID is appended.
var ErrMissingID = errors.New("store: record has no id")

// Store is the persistence interface. Appends are idempotent on ID so
// re-ingesting a document never duplicates executions.
type Store interface {
	// --- Execution log ---

	// AppendEvent persists a trade event. An event whose ID is already
	// stored is ignored.
	AppendEvent(ctx context.Context, ev model.TradeEvent) error

	// ListEvents returns every event ordered by execution time.
	ListEvents(ctx context.Context) ([]model.TradeEvent, error)

	// AppendShareFill persists a share fill, ignoring known IDs.
	AppendShareFill(ctx context.Context, f model.ShareFill) error

	// ListShareFills returns every share fill ordered by time.
	ListShareFills(ctx context.Context) ([]model.ShareFill, error)

	// --- Closing-price cache ---

	// GetClosingPrice returns a cached close; ok is false on a miss.
	GetClosingPrice(ctx context.Context, ticker string, date time.Time) (price decimal.Decimal, ok bool, err error)

	// PutClosingPrice records a close, replacing any previous value.
	PutClosingPrice(ctx context.Context, ticker string, date time.Time, price decimal.Decimal) error

	// Close releases the store's resources.
	Close() error
}

// stripDerived returns the persisted form of ev: normalized, without the
// fields replay recomputes.
func stripDerived(ev model.TradeEvent) (model.TradeEvent, error) {
	if ev.ID == "" {
		return model.TradeEvent{}, ErrMissingID
	}
	c := ev.Clone()
	c.Normalize()
	c.TradeID = ""
	c.EndTime = nil
	c.Strategy = nil
	return c, nil
}

func encodeLegs(legs []model.Option) (string, error) {
	data, err := json.Marshal(legs)
	if err != nil {
		return "", fmt.Errorf("encode legs: %w", err)
	}
	return string(data), nil
}

func decodeLegs(data string) ([]model.Option, error) {
	var legs []model.Option
	if err := json.Unmarshal([]byte(data), &legs); err != nil {
		return nil, fmt.Errorf("decode legs: %w", err)
	}
	return legs, nil
}

func priceDate(date time.Time) string {
	return model.CalendarDate(date).Format(model.DateLayout)
}
