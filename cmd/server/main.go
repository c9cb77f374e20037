package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tradejournal/journal-engine/internal/api"
	"github.com/tradejournal/journal-engine/internal/app"
	"github.com/tradejournal/journal-engine/internal/config"
	"github.com/tradejournal/journal-engine/internal/logger"
	"github.com/tradejournal/journal-engine/internal/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("JOURNAL_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.InitWithConfig(cfg.LogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Store, market data, account ---
	journal, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer journal.Close()

	// --- WebSocket hub ---
	wsHub := api.NewWSHub()
	go wsHub.Run(ctx)

	svc := api.NewService(journal.Account, journal.Store, journal.Loader, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	r.Use(metrics.Middleware)

	// CORS middleware for browser dashboards.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"journal-engine"}`))
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.Routes)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("journal-engine listening", "port", cfg.Server.Port, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down journal-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	stop()
	if err := logger.Shutdown(shutdownCtx); err != nil {
		slog.Error("tracer shutdown error", "err", err)
	}
	fmt.Println("journal-engine stopped")
}
