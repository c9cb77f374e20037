// Package metrics provides Prometheus instrumentation for the journal engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsIngested counts trade events accepted, partitioned by source
	// (api, file, store).
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_events_ingested_total",
		Help: "Total number of trade events ingested",
	}, []string{"source"})

	// ShareFills counts share fills applied to the ledger.
	ShareFills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journal_share_fills_total",
		Help: "Total number of share fills applied",
	})

	// Trades tracks the number of trades by state.
	Trades = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "journal_trades",
		Help: "Number of trades by state",
	}, []string{"state"})

	// ExpirationsResolved counts expiration resolutions by outcome
	// (resolved, failed).
	ExpirationsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_expirations_resolved_total",
		Help: "Expiration resolutions by outcome",
	}, []string{"outcome"})

	// Exercises counts in-the-money legs settled at expiration, by kind
	// (exercise, assignment).
	Exercises = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_exercises_total",
		Help: "Options exercised or assigned at expiration",
	}, []string{"kind"})

	// ReportDuration tracks how long building an account report takes.
	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "journal_report_duration_seconds",
		Help:    "Account report build duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "journal_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// PriceLookups counts closing-price lookups by source and result.
	PriceLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_price_lookups_total",
		Help: "Closing price lookups",
	}, []string{"source", "result"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "journal_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern prefers the matched chi pattern so trade paths don't create
// one series per ticker.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
