package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/tradejournal/journal-engine/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trade_events (
	id             TEXT PRIMARY KEY,
	ticker         TEXT NOT NULL,
	expiration     TEXT NOT NULL,
	execution_time TEXT NOT NULL,
	execution_ns   INTEGER NOT NULL,
	legs           TEXT NOT NULL,
	synthetic      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_trade_events_time ON trade_events (execution_ns);

CREATE TABLE IF NOT EXISTS share_fills (
	id        TEXT PRIMARY KEY,
	ticker    TEXT NOT NULL,
	price     TEXT NOT NULL,
	quantity  INTEGER NOT NULL,
	is_long   INTEGER NOT NULL,
	fill_time TEXT NOT NULL,
	fill_ns   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS closing_prices (
	ticker     TEXT NOT NULL,
	date       TEXT NOT NULL,
	price      TEXT NOT NULL,
	fetched_at TEXT NOT NULL,
	PRIMARY KEY (ticker, date)
);
`

// SQLiteStore implements Store on a local SQLite file. Decimals are stored
// as TEXT so values round-trip exactly.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	// WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev model.TradeEvent) error {
	stored, err := stripDerived(ev)
	if err != nil {
		return err
	}
	legs, err := encodeLegs(stored.Legs)
	if err != nil {
		return err
	}

	exec := stored.ExecutionTime.UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO trade_events (id, ticker, expiration, execution_time, execution_ns, legs, synthetic)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.Ticker, stored.Expiration.Format(model.DateLayout),
		exec.Format(time.RFC3339Nano), exec.UnixNano(), legs, stored.Synthetic,
	)
	if err != nil {
		return fmt.Errorf("append event %s: %w", stored.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context) ([]model.TradeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticker, expiration, execution_time, legs, synthetic
		FROM trade_events ORDER BY execution_ns, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.TradeEvent
	for rows.Next() {
		var ev model.TradeEvent
		var expiration, execTime, legs string
		if err := rows.Scan(&ev.ID, &ev.Ticker, &expiration, &execTime, &legs, &ev.Synthetic); err != nil {
			return nil, err
		}
		if ev.Expiration, err = time.Parse(model.DateLayout, expiration); err != nil {
			return nil, fmt.Errorf("event %s: expiration: %w", ev.ID, err)
		}
		if ev.ExecutionTime, err = time.Parse(time.RFC3339Nano, execTime); err != nil {
			return nil, fmt.Errorf("event %s: execution time: %w", ev.ID, err)
		}
		if ev.Legs, err = decodeLegs(legs); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) AppendShareFill(ctx context.Context, f model.ShareFill) error {
	if f.ID == "" {
		return ErrMissingID
	}
	at := f.Time.UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO share_fills (id, ticker, price, quantity, is_long, fill_time, fill_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, model.NormalizeTicker(f.Ticker), f.Price.String(), f.Quantity, f.IsLong,
		at.Format(time.RFC3339Nano), at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("append share fill %s: %w", f.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListShareFills(ctx context.Context) ([]model.ShareFill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticker, price, quantity, is_long, fill_time
		FROM share_fills ORDER BY fill_ns, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fills []model.ShareFill
	for rows.Next() {
		var f model.ShareFill
		var price, at string
		if err := rows.Scan(&f.ID, &f.Ticker, &price, &f.Quantity, &f.IsLong, &at); err != nil {
			return nil, err
		}
		if f.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("share fill %s: price: %w", f.ID, err)
		}
		if f.Time, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("share fill %s: time: %w", f.ID, err)
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

func (s *SQLiteStore) GetClosingPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, bool, error) {
	var price string
	err := s.db.QueryRowContext(ctx,
		`SELECT price FROM closing_prices WHERE ticker = ? AND date = ?`,
		model.NormalizeTicker(ticker), priceDate(date),
	).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *SQLiteStore) PutClosingPrice(ctx context.Context, ticker string, date time.Time, price decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO closing_prices (ticker, date, price, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET
			price = excluded.price,
			fetched_at = excluded.fetched_at`,
		model.NormalizeTicker(ticker), priceDate(date), price.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}
