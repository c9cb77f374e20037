// Package api provides the HTTP handlers for recording executions and
// querying trades and the account report.
//
// All monetary values use shopspring/decimal; never float64 for money.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradejournal/journal-engine/internal/account"
	"github.com/tradejournal/journal-engine/internal/ingest"
	"github.com/tradejournal/journal-engine/internal/metrics"
	"github.com/tradejournal/journal-engine/internal/model"
	"github.com/tradejournal/journal-engine/internal/store"
	"github.com/tradejournal/journal-engine/internal/trade"
)

const maxBodyBytes = 1 << 20

// Service serves one account. A mutex serializes every access to it
// (single-instance).
type Service struct {
	account *account.Account
	store   store.Store
	loader  *ingest.Loader
	mu      sync.Mutex
	wsHub   *WSHub // optional WebSocket hub for strategy broadcasts
}

// NewService creates a service over acct. Accepted executions are appended
// to st. Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(acct *account.Account, st store.Store, loader *ingest.Loader, hub *WSHub) *Service {
	return &Service{
		account: acct,
		store:   st,
		loader:  loader,
		wsHub:   hub,
	}
}

// Routes mounts the handlers on r, normally the /api/v1 sub-router.
func (s *Service) Routes(r chi.Router) {
	if s.wsHub != nil {
		r.Get("/ws", s.wsHub.HandleWS)
	}
	r.Post("/events", s.PostEvent)
	r.Post("/shares", s.PostShareFill)
	r.Get("/trades", s.ListTrades)
	r.Get("/trades/{ticker}/{expiration}", s.GetTrade)
	r.Get("/report", s.GetReport)
}

// ShareFillResponse is the JSON body returned from POST /shares.
type ShareFillResponse struct {
	Fill       model.ShareFill `json:"fill"`
	OpenShares int             `json:"open_shares"`
}

// PostEvent handles POST /api/v1/events
// The body is one trade-event document entry, camelCase or snake_case.
func (s *Service) PostEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	ev, err := s.loader.ParseEvent(ctx, body)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var previous string
	if t, ok := s.account.Trade(trade.Key(ev.Ticker, ev.Expiration)); ok {
		if st, ok := t.Strategy(); ok {
			previous = st.Name
		}
	}

	if err := s.account.CheckTradeEvent(ev); err != nil {
		writeCheckError(w, err)
		return
	}

	// Persist before executing: a failed write leaves the account unchanged,
	// so the client can retry.
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		slog.Error("failed to persist trade event", "event", ev.ID, "err", err)
		writeError(w, "failed to record trade event", http.StatusInternalServerError)
		return
	}

	t, err := s.account.ExecuteTradeEvent(ctx, ev)
	if err != nil {
		slog.Error("stored trade event rejected", "event", ev.ID, "err", err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.EventsIngested.WithLabelValues("api").Inc()

	summary := account.Summarize(t, s.account.Now())
	slog.Info("trade event recorded",
		"event_id", ev.ID,
		"trade", t.ID(),
		"legs", len(ev.Legs),
		"strategy", summary.Strategy,
	)

	if s.wsHub != nil && summary.Strategy != previous {
		s.wsHub.Broadcast(WSMessage{
			Type:             "strategy_changed",
			TradeID:          t.ID(),
			Ticker:           t.Ticker(),
			ExpirationDate:   summary.ExpirationDate,
			EventID:          ev.ID,
			Strategy:         summary.Strategy,
			PreviousStrategy: previous,
			State:            summary.State,
		})
	}

	writeJSON(w, http.StatusCreated, summary)
}

// PostShareFill handles POST /api/v1/shares
func (s *Service) PostShareFill(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	fill, err := s.loader.ParseShareFill(body)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.account.CheckShareFill(fill); err != nil {
		writeCheckError(w, err)
		return
	}
	if err := s.store.AppendShareFill(ctx, fill); err != nil {
		slog.Error("failed to persist share fill", "fill", fill.ID, "err", err)
		writeError(w, "failed to record share fill", http.StatusInternalServerError)
		return
	}
	if err := s.account.AddShareFill(fill); err != nil {
		slog.Error("stored share fill rejected", "fill", fill.ID, "err", err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("share fill recorded",
		"fill_id", fill.ID,
		"ticker", fill.Ticker,
		"qty", fill.Quantity,
		"price", fill.Price.String(),
	)
	writeJSON(w, http.StatusCreated, ShareFillResponse{
		Fill:       fill,
		OpenShares: s.account.Ledger().OpenPosition(fill.Ticker),
	})
}

// ListTrades handles GET /api/v1/trades
// Optional filters: ?ticker=<symbol>&state=<open|expired|closed>.
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	ticker := model.NormalizeTicker(r.URL.Query().Get("ticker"))
	state := strings.ToLower(r.URL.Query().Get("state"))

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.account.Now()
	summaries := []account.TradeSummary{}
	for _, t := range s.account.Trades() {
		if ticker != "" && t.Ticker() != ticker {
			continue
		}
		sum := account.Summarize(t, now)
		if state != "" && sum.State != state {
			continue
		}
		summaries = append(summaries, sum)
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetTrade handles GET /api/v1/trades/{ticker}/{expiration}
func (s *Service) GetTrade(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	exp, err := time.Parse(model.DateLayout, chi.URLParam(r, "expiration"))
	if err != nil {
		writeError(w, "expiration must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.account.Trade(trade.Key(ticker, exp))
	if !ok {
		writeError(w, "trade not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, account.BuildTradeReport(t, s.account.Now()))
}

// GetReport handles GET /api/v1/report
// Expired trades are resolved before the report is built.
func (s *Service) GetReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, s.account.Report(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeCheckError maps a rejected execution to 409 for a known ID and 400
// otherwise.
func writeCheckError(w http.ResponseWriter, err error) {
	if errors.Is(err, account.ErrDuplicateEvent) {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeError(w, err.Error(), http.StatusBadRequest)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
