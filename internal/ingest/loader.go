// Package ingest turns JSON trade-event documents into model values.
//
// A document is either an array of trade events or an object with
// "tradeEvents" and "shareOrders" arrays. Keys may be camelCase or
// snake_case. A leg with quantity N becomes N one-contract legs. Legs may
// name their contract with an OCC symbol instead of strike and type.
//
//	{
//	  "tradeEvents": [{
//	    "executionTime": "2024-01-02T10:30:00-05:00",
//	    "ticker": "AAPL",
//	    "expirationDate": "2024-01-19",
//	    "legs": [
//	      {"strike": "190", "type": "call", "side": "buy", "premium": "2.35", "quantity": 2},
//	      {"symbol": "AAPL  240119C00200000", "side": "sell", "price": "0.80", "quantity": 2}
//	    ]
//	  }],
//	  "shareOrders": [
//	    {"ticker": "AAPL", "side": "buy", "averagePrice": "185.10", "quantity": 100, "time": "2024-01-03T09:45:00-05:00"}
//	  ]
//	}
package ingest

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradejournal/journal-engine/internal/contract"
	"github.com/tradejournal/journal-engine/internal/keycase"
	"github.com/tradejournal/journal-engine/internal/model"
)

var (
	ErrEmptyDocument = errors.New("ingest: document has no trade events or share orders")
	ErrInvalidLeg    = errors.New("ingest: invalid leg")
	ErrInvalidTime   = errors.New("ingest: invalid time")
	ErrInvalidOrder  = errors.New("ingest: invalid share order")
)

// idNamespace seeds the name-based UUIDs given to events without an ID, so
// re-reading a document yields the same IDs.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("journal-engine/executions"))

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

type document struct {
	TradeEvents []eventDoc `json:"trade_events"`
	ShareOrders []shareDoc `json:"share_orders"`
}

type eventDoc struct {
	ID             string   `json:"id"`
	ExecutionTime  string   `json:"execution_time"`
	Ticker         string   `json:"ticker"`
	ExpirationDate string   `json:"expiration_date"`
	Legs           []legDoc `json:"legs"`
	Options        []legDoc `json:"options"`
}

type legDoc struct {
	Symbol         string              `json:"symbol"`
	Ticker         string              `json:"ticker"`
	ExpirationDate string              `json:"expiration_date"`
	Strike         decimal.NullDecimal `json:"strike"`
	Premium        decimal.NullDecimal `json:"premium"`
	Price          decimal.NullDecimal `json:"price"`
	IsCall         *bool               `json:"is_call"`
	Type           string              `json:"type"`
	IsLong         *bool               `json:"is_long"`
	Side           string              `json:"side"`
	Quantity       decimal.NullDecimal `json:"quantity"`
}

type shareDoc struct {
	ID            string              `json:"id"`
	Ticker        string              `json:"ticker"`
	Price         decimal.NullDecimal `json:"price"`
	AveragePrice  decimal.NullDecimal `json:"average_price"`
	Quantity      decimal.NullDecimal `json:"quantity"`
	IsLong        *bool               `json:"is_long"`
	Side          string              `json:"side"`
	Time          string              `json:"time"`
	ExecutionTime string              `json:"execution_time"`
}

// Batch is the parsed content of one document.
type Batch struct {
	Source string
	Events []model.TradeEvent
	Fills  []model.ShareFill
}

// Loader parses documents. Times without a zone are read in its location.
type Loader struct {
	resolver contract.Resolver
	location *time.Location
}

// NewLoader creates a loader. A nil resolver parses OCC symbols directly;
// a nil location means UTC.
func NewLoader(resolver contract.Resolver, loc *time.Location) *Loader {
	if resolver == nil {
		resolver = contract.SymbolResolver{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Loader{resolver: resolver, location: loc}
}

// LoadFile parses the document at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	b, err := l.Load(ctx, f, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Load parses one document. Events keep document order; fills are sorted
// by time.
func (l *Loader) Load(ctx context.Context, r io.Reader, source string) (*Batch, error) {
	raw, err := decodeRaw(r)
	if err != nil {
		return nil, err
	}
	if arr, ok := raw.([]any); ok {
		raw = map[string]any{"trade_events": arr}
	}

	var doc document
	if err := remarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if len(doc.TradeEvents) == 0 && len(doc.ShareOrders) == 0 {
		return nil, ErrEmptyDocument
	}

	b := &Batch{Source: source}
	seen := make(map[string]int)
	for i, ed := range doc.TradeEvents {
		ev, err := l.buildEvent(ctx, ed)
		if err != nil {
			return nil, fmt.Errorf("trade event %d: %w", i, err)
		}
		if ev.ID == "" {
			canon := canonicalEvent(ev)
			ev.ID = nameID(canon, seen[canon])
			seen[canon]++
		}
		b.Events = append(b.Events, ev)
	}
	for i, sd := range doc.ShareOrders {
		f, err := l.buildFill(sd)
		if err != nil {
			return nil, fmt.Errorf("share order %d: %w", i, err)
		}
		if f.ID == "" {
			canon := canonicalFill(f)
			f.ID = nameID(canon, seen[canon])
			seen[canon]++
		}
		b.Fills = append(b.Fills, f)
	}
	slices.SortStableFunc(b.Fills, func(x, y model.ShareFill) int {
		return x.Time.Compare(y.Time)
	})
	return b, nil
}

// ParseEvent parses a single trade-event object.
func (l *Loader) ParseEvent(ctx context.Context, data []byte) (model.TradeEvent, error) {
	raw, err := decodeRaw(bytes.NewReader(data))
	if err != nil {
		return model.TradeEvent{}, err
	}
	var ed eventDoc
	if err := remarshal(raw, &ed); err != nil {
		return model.TradeEvent{}, fmt.Errorf("decode trade event: %w", err)
	}
	ev, err := l.buildEvent(ctx, ed)
	if err != nil {
		return model.TradeEvent{}, err
	}
	if ev.ID == "" {
		ev.ID = nameID(canonicalEvent(ev), 0)
	}
	return ev, nil
}

// ParseShareFill parses a single share-order object.
func (l *Loader) ParseShareFill(data []byte) (model.ShareFill, error) {
	raw, err := decodeRaw(bytes.NewReader(data))
	if err != nil {
		return model.ShareFill{}, err
	}
	var sd shareDoc
	if err := remarshal(raw, &sd); err != nil {
		return model.ShareFill{}, fmt.Errorf("decode share order: %w", err)
	}
	f, err := l.buildFill(sd)
	if err != nil {
		return model.ShareFill{}, err
	}
	if f.ID == "" {
		f.ID = nameID(canonicalFill(f), 0)
	}
	return f, nil
}

func (l *Loader) buildEvent(ctx context.Context, ed eventDoc) (model.TradeEvent, error) {
	at, err := l.parseTime(ed.ExecutionTime)
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("execution time: %w", err)
	}
	ev := model.TradeEvent{
		ID:            strings.TrimSpace(ed.ID),
		ExecutionTime: at,
		Ticker:        model.NormalizeTicker(ed.Ticker),
	}
	if ed.ExpirationDate != "" {
		if ev.Expiration, err = parseDate(ed.ExpirationDate); err != nil {
			return model.TradeEvent{}, fmt.Errorf("expiration date: %w", err)
		}
	}

	docs := ed.Legs
	if len(docs) == 0 {
		docs = ed.Options
	}
	for i, ld := range docs {
		opt, n, err := l.buildLeg(ctx, ld, ev.Ticker, ev.Expiration)
		if err != nil {
			return model.TradeEvent{}, fmt.Errorf("leg %d: %w", i, err)
		}
		if ev.Ticker == "" {
			ev.Ticker = opt.Ticker
		}
		if ev.Expiration.IsZero() {
			ev.Expiration = opt.Expiration
		}
		for range n {
			ev.Legs = append(ev.Legs, opt)
		}
	}

	ev.Normalize()
	if err := ev.Validate(); err != nil {
		return model.TradeEvent{}, err
	}
	return ev, nil
}

// buildLeg returns the one-contract leg and how many contracts it stands for.
func (l *Loader) buildLeg(ctx context.Context, ld legDoc, ticker string, exp time.Time) (model.Option, int, error) {
	premium := ld.Premium
	if !premium.Valid {
		premium = ld.Price
	}
	if !premium.Valid {
		return model.Option{}, 0, fmt.Errorf("%w: premium is required", ErrInvalidLeg)
	}
	isLong, err := parseSide(ld.IsLong, ld.Side)
	if err != nil {
		return model.Option{}, 0, err
	}
	n, err := parseQuantity(ld.Quantity)
	if err != nil {
		return model.Option{}, 0, fmt.Errorf("%w: %w", ErrInvalidLeg, err)
	}

	if ld.Symbol != "" {
		inst, err := l.resolver.Resolve(ctx, ld.Symbol)
		if err != nil {
			return model.Option{}, 0, err
		}
		opt, err := inst.Option(premium.Decimal, isLong)
		return opt, n, err
	}

	if ld.Ticker != "" {
		ticker = ld.Ticker
	}
	if ld.ExpirationDate != "" {
		if exp, err = parseDate(ld.ExpirationDate); err != nil {
			return model.Option{}, 0, fmt.Errorf("expiration date: %w", err)
		}
	}
	if !ld.Strike.Valid {
		return model.Option{}, 0, fmt.Errorf("%w: strike or symbol is required", ErrInvalidLeg)
	}
	isCall, err := parseType(ld.IsCall, ld.Type)
	if err != nil {
		return model.Option{}, 0, err
	}
	opt, err := model.NewOption(ticker, ld.Strike.Decimal, premium.Decimal, isCall, isLong, exp)
	return opt, n, err
}

func (l *Loader) buildFill(sd shareDoc) (model.ShareFill, error) {
	price := sd.Price
	if !price.Valid {
		price = sd.AveragePrice
	}
	if !price.Valid {
		return model.ShareFill{}, fmt.Errorf("%w: price is required", ErrInvalidOrder)
	}
	isLong, err := parseSide(sd.IsLong, sd.Side)
	if err != nil {
		return model.ShareFill{}, err
	}
	qty, err := parseQuantity(sd.Quantity)
	if err != nil {
		return model.ShareFill{}, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	ts := sd.Time
	if ts == "" {
		ts = sd.ExecutionTime
	}
	at, err := l.parseTime(ts)
	if err != nil {
		return model.ShareFill{}, fmt.Errorf("time: %w", err)
	}

	f := model.ShareFill{
		ID:       strings.TrimSpace(sd.ID),
		Ticker:   model.NormalizeTicker(sd.Ticker),
		Price:    price.Decimal,
		Quantity: qty,
		IsLong:   isLong,
		Time:     at,
	}
	if err := f.Validate(); err != nil {
		return model.ShareFill{}, err
	}
	return f, nil
}

func (l *Loader) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTime)
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, l.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(model.DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return model.CalendarDate(t), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

func parseSide(isLong *bool, side string) (bool, error) {
	if isLong != nil {
		return *isLong, nil
	}
	switch strings.ToLower(strings.TrimSpace(side)) {
	case "buy", "long":
		return true, nil
	case "sell", "short":
		return false, nil
	case "":
		return false, fmt.Errorf("%w: side is required", ErrInvalidLeg)
	default:
		return false, fmt.Errorf("%w: unknown side %q", ErrInvalidLeg, side)
	}
}

func parseType(isCall *bool, kind string) (bool, error) {
	if isCall != nil {
		return *isCall, nil
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "call", "c":
		return true, nil
	case "put", "p":
		return false, nil
	case "":
		return false, fmt.Errorf("%w: option type is required", ErrInvalidLeg)
	default:
		return false, fmt.Errorf("%w: unknown option type %q", ErrInvalidLeg, kind)
	}
}

// parseQuantity defaults to one and rejects fractional or non-positive
// amounts. Broker exports write quantities like "2.00000".
func parseQuantity(q decimal.NullDecimal) (int, error) {
	if !q.Valid {
		return 1, nil
	}
	if !q.Decimal.IsPositive() || !q.Decimal.Equal(q.Decimal.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s", model.ErrInvalidQuantity, q.Decimal)
	}
	return int(q.Decimal.IntPart()), nil
}

// decodeRaw reads one JSON value with snake_case keys. Numbers stay
// json.Number so decimals keep their digits.
func decodeRaw(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return keycase.ConvertKeys(raw, keycase.ToSnake), nil
}

func remarshal(raw any, dst any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func canonicalEvent(ev model.TradeEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "event|%s|%s|%s", ev.Ticker, ev.Expiration.Format(model.DateLayout),
		ev.ExecutionTime.UTC().Format(time.RFC3339Nano))
	legs := make([]string, len(ev.Legs))
	for i, leg := range ev.Legs {
		legs[i] = leg.String() + "@" + leg.Premium.String()
	}
	slices.SortFunc(legs, cmp.Compare[string])
	for _, s := range legs {
		b.WriteString("|")
		b.WriteString(s)
	}
	return b.String()
}

func canonicalFill(f model.ShareFill) string {
	return fmt.Sprintf("fill|%s|%s|%d|%t|%s", f.Ticker, f.Price, f.Quantity, f.IsLong,
		f.Time.UTC().Format(time.RFC3339Nano))
}

// nameID derives the ID of the n-th identical record in a document.
func nameID(canonical string, n int) string {
	return uuid.NewSHA1(idNamespace, fmt.Appendf(nil, "%s#%d", canonical, n)).String()
}
