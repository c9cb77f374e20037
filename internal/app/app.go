// Package app wires configuration into a ready account: store, market
// data, calendar and risk limits, with the persisted history replayed.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tradejournal/journal-engine/internal/account"
	"github.com/tradejournal/journal-engine/internal/config"
	"github.com/tradejournal/journal-engine/internal/contract"
	"github.com/tradejournal/journal-engine/internal/ingest"
	"github.com/tradejournal/journal-engine/internal/logger"
	"github.com/tradejournal/journal-engine/internal/marketdata"
	"github.com/tradejournal/journal-engine/internal/store"
)

// App holds the long-lived components built from one configuration.
type App struct {
	Config  *config.Config
	Store   store.Store
	Prices  marketdata.PriceSource
	Loader  *ingest.Loader
	Account *account.Account

	cleanup []func()
}

// Option adjusts how New builds the account.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the account clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New opens the configured store, restores its history into a fresh
// account and returns the wired App. Close releases it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg}
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	prices, err := a.priceSource()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Prices = prices

	cal, err := cfg.Calendar()
	if err != nil {
		a.Close()
		return nil, err
	}
	limiter, err := cfg.Limiter()
	if err != nil {
		a.Close()
		return nil, err
	}

	acctOpts := []account.Option{account.WithCalendar(cal)}
	if prices != nil {
		acctOpts = append(acctOpts, account.WithPrices(prices))
	}
	if limiter != nil {
		acctOpts = append(acctOpts, account.WithLimiter(limiter))
	}
	if o.now != nil {
		acctOpts = append(acctOpts, account.WithClock(o.now))
	}
	a.Account = account.New(acctOpts...)
	a.Loader = ingest.NewLoader(contract.NewCachingResolver(contract.SymbolResolver{}), cal.Location)

	res, err := ingest.Restore(ctx, a.Store, a.Account)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("restore journal: %w", err)
	}
	logger.Info(ctx, "journal restored",
		"driver", cfg.Store.Driver,
		"events", res.Events,
		"fills", res.Fills,
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	var st store.Store

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return err
		}
		st = pg
		logger.Info(ctx, "connected to PostgreSQL")
	case config.DriverSQLite:
		sq, err := store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		st = sq
		logger.Info(ctx, "opened SQLite journal", "path", cfg.Store.SQLitePath)
	default:
		logger.Warn(ctx, "using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}
	a.cleanup = append(a.cleanup, func() { st.Close() })

	if cfg.Store.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		a.cleanup = append(a.cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, cfg.Store.CacheTTL)
		logger.Info(ctx, "Redis cache enabled")
	}

	a.Store = st
	return nil
}

// priceSource puts configured overrides ahead of the provider. Provider
// answers are cached in the store and every lookup is traced. It is nil
// for provider "none".
func (a *App) priceSource() (marketdata.PriceSource, error) {
	cfg := a.Config
	overrides, err := cfg.StaticPrices()
	if err != nil {
		return nil, err
	}
	static := marketdata.NewStaticSource(overrides)

	var src marketdata.PriceSource
	switch cfg.MarketData.Provider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderStatic:
		src = static
	default:
		chart := marketdata.NewChartClient(cfg.MarketData.BaseURL, cfg.MarketData.Timeout)
		src = marketdata.Chain{static, marketdata.NewCachedSource(chart, a.Store)}
	}
	return marketdata.NewTraced(cfg.MarketData.Provider, src), nil
}

// Close releases the store and cache connections, newest first.
func (a *App) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}
