package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/logger"
	"github.com/tradejournal/journal-engine/internal/metrics"
)

// Traced wraps a PriceSource with a span, a lookup counter and logging.
type Traced struct {
	name string
	next PriceSource
}

// NewTraced wraps next; name labels its metrics and spans.
func NewTraced(name string, next PriceSource) *Traced {
	return &Traced{name: name, next: next}
}

func (t *Traced) ClosingPrice(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, error) {
	op := logger.StartOperation(ctx, "marketdata.ClosingPrice", "source", t.name, "key", Key(ticker, date))

	p, err := t.next.ClosingPrice(op.Context(), ticker, date)
	if err != nil {
		metrics.PriceLookups.WithLabelValues(t.name, "error").Inc()
		op.EndWithError(err)
		return decimal.Zero, err
	}

	metrics.PriceLookups.WithLabelValues(t.name, "ok").Inc()
	op.End("price", p.StringFixed(2))
	return p, nil
}
