package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/model"
)

// PostgresSchema creates the journal tables. Monetary values are NUMERIC
// for exact decimal precision.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS trade_events (
	id             TEXT PRIMARY KEY,
	ticker         TEXT NOT NULL,
	expiration     DATE NOT NULL,
	execution_time TIMESTAMPTZ NOT NULL,
	legs           JSONB NOT NULL,
	synthetic      BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_trade_events_time ON trade_events (execution_time);

CREATE TABLE IF NOT EXISTS share_fills (
	id        TEXT PRIMARY KEY,
	ticker    TEXT NOT NULL,
	price     NUMERIC NOT NULL,
	quantity  INTEGER NOT NULL CHECK (quantity > 0),
	is_long   BOOLEAN NOT NULL,
	fill_time TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS closing_prices (
	ticker     TEXT NOT NULL,
	date       DATE NOT NULL,
	price      NUMERIC NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (ticker, date)
);
`

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies PostgresSchema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("schema migration: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, ev model.TradeEvent) error {
	stored, err := stripDerived(ev)
	if err != nil {
		return err
	}
	legs, err := encodeLegs(stored.Legs)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO trade_events (id, ticker, expiration, execution_time, legs, synthetic)
		 VALUES ($1, $2, $3::DATE, $4, $5::JSONB, $6)
		 ON CONFLICT (id) DO NOTHING`,
		stored.ID, stored.Ticker, stored.Expiration.Format(model.DateLayout),
		stored.ExecutionTime, legs, stored.Synthetic,
	)
	if err != nil {
		return fmt.Errorf("append event %s: %w", stored.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]model.TradeEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ticker, expiration::TEXT, execution_time, legs::TEXT, synthetic
		 FROM trade_events ORDER BY execution_time, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *PostgresStore) AppendShareFill(ctx context.Context, f model.ShareFill) error {
	if f.ID == "" {
		return ErrMissingID
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO share_fills (id, ticker, price, quantity, is_long, fill_time)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		f.ID, model.NormalizeTicker(f.Ticker), f.Price.String(), f.Quantity, f.IsLong, f.Time,
	)
	if err != nil {
		return fmt.Errorf("append share fill %s: %w", f.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListShareFills(ctx context.Context) ([]model.ShareFill, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ticker, price::TEXT, quantity, is_long, fill_time
		 FROM share_fills ORDER BY fill_time, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanShareFills(rows)
}

func (s *PostgresStore) GetClosingPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, bool, error) {
	var price string
	err := s.pool.QueryRow(ctx,
		`SELECT price::TEXT FROM closing_prices WHERE ticker = $1 AND date = $2::DATE`,
		model.NormalizeTicker(ticker), priceDate(date),
	).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get closing price: %w", err)
	}

	p, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("closing price %q: %w", price, err)
	}
	return p, true, nil
}

func (s *PostgresStore) PutClosingPrice(ctx context.Context, ticker string, date time.Time, price decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO closing_prices (ticker, date, price)
		 VALUES ($1, $2::DATE, $3::NUMERIC)
		 ON CONFLICT (ticker, date) DO UPDATE
		 SET price = EXCLUDED.price, fetched_at = now()`,
		model.NormalizeTicker(ticker), priceDate(date), price.String(),
	)
	return err
}

// pgxRows is the subset of pgx.Rows the scanners read.
type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows pgxRows) ([]model.TradeEvent, error) {
	var events []model.TradeEvent
	for rows.Next() {
		var ev model.TradeEvent
		var expiration, legs string

		if err := rows.Scan(&ev.ID, &ev.Ticker, &expiration, &ev.ExecutionTime, &legs, &ev.Synthetic); err != nil {
			return nil, err
		}

		exp, err := time.Parse(model.DateLayout, expiration)
		if err != nil {
			return nil, fmt.Errorf("event %s: expiration: %w", ev.ID, err)
		}
		ev.Expiration = exp
		if ev.Legs, err = decodeLegs(legs); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanShareFills(rows pgxRows) ([]model.ShareFill, error) {
	var fills []model.ShareFill
	for rows.Next() {
		var f model.ShareFill
		var price string

		if err := rows.Scan(&f.ID, &f.Ticker, &price, &f.Quantity, &f.IsLong, &f.Time); err != nil {
			return nil, err
		}

		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("share fill %s: price: %w", f.ID, err)
		}
		f.Price = p
		fills = append(fills, f)
	}
	return fills, rows.Err()
}
