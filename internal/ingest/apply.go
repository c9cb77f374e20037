package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradejournal/journal-engine/internal/account"
	"github.com/tradejournal/journal-engine/internal/logger"
	"github.com/tradejournal/journal-engine/internal/metrics"
	"github.com/tradejournal/journal-engine/internal/store"
)

// Result counts what Apply did.
type Result struct {
	Events  int `json:"events"`
	Fills   int `json:"fills"`
	Skipped int `json:"skipped"`
}

// Apply executes a batch against acct, events first, then fills. Records
// whose IDs the account already holds are skipped; any other failure stops
// the batch.
func Apply(ctx context.Context, acct *account.Account, b *Batch, source string) (Result, error) {
	var res Result
	for _, ev := range b.Events {
		_, err := acct.ExecuteTradeEvent(ctx, ev)
		switch {
		case errors.Is(err, account.ErrDuplicateEvent):
			res.Skipped++
			continue
		case err != nil:
			return res, fmt.Errorf("execute event %s: %w", ev.ID, err)
		}
		res.Events++
	}
	for _, f := range b.Fills {
		err := acct.AddShareFill(f)
		switch {
		case errors.Is(err, account.ErrDuplicateEvent):
			res.Skipped++
			continue
		case err != nil:
			return res, fmt.Errorf("apply share fill %s: %w", f.ID, err)
		}
		res.Fills++
	}

	metrics.EventsIngested.WithLabelValues(source).Add(float64(res.Events))
	logger.Info(ctx, "batch applied",
		"source", source,
		"events", res.Events,
		"fills", res.Fills,
		"skipped", res.Skipped,
	)
	return res, nil
}

// Persist appends a batch to st. Stores ignore IDs they already hold.
func Persist(ctx context.Context, st store.Store, b *Batch) error {
	for _, ev := range b.Events {
		if err := st.AppendEvent(ctx, ev); err != nil {
			return fmt.Errorf("persist event %s: %w", ev.ID, err)
		}
	}
	for _, f := range b.Fills {
		if err := st.AppendShareFill(ctx, f); err != nil {
			return fmt.Errorf("persist share fill %s: %w", f.ID, err)
		}
	}
	return nil
}

// Restore replays everything in st into acct.
func Restore(ctx context.Context, st store.Store, acct *account.Account) (Result, error) {
	ctx, span := logger.StartSpan(ctx, "ingest.Restore")
	defer span.End()

	events, err := st.ListEvents(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list events: %w", err)
	}
	fills, err := st.ListShareFills(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list share fills: %w", err)
	}
	return Apply(ctx, acct, &Batch{Source: "store", Events: events, Fills: fills}, "store")
}
