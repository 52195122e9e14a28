package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lurewatch/lurewatch/internal/classify"
	"github.com/lurewatch/lurewatch/internal/config"
	"github.com/lurewatch/lurewatch/internal/db"
	"github.com/lurewatch/lurewatch/internal/handlers"
	"github.com/lurewatch/lurewatch/internal/ratelimit"
	"github.com/lurewatch/lurewatch/internal/server"
	"github.com/lurewatch/lurewatch/internal/sse"
	lwtls "github.com/lurewatch/lurewatch/internal/tls"
	"github.com/lurewatch/lurewatch/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := server.SetupLogger(cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Scan history is optional; without it the live feed is fed directly.
	var (
		database *db.DB
		store    handlers.Store
		history  ws.History
	)
	if cfg.DatabaseURL != "" {
		database, err = db.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer database.Close()
		store, history = database, database
	} else {
		logger.Warn("DATABASE_URL not set, scan history disabled")
	}

	// Classification pipeline
	var model classify.Model
	if cfg.Model.URL != "" {
		model = classify.NewRemoteModel(ctx, cfg.Model)
		logger.Info("statistical model enabled", "url", cfg.Model.URL, "oauth", cfg.Model.ClientID != "")
	}
	var reviewer classify.Reviewer
	if cfg.Review.Enabled {
		reviewer = classify.NewClaudeReviewer(cfg.Review)
		logger.Info("deep review enabled", "model", cfg.Review.Model, "region", cfg.Review.Region)
	}
	pipeline := classify.NewPipeline(model, reviewer, logger)

	sseHub := sse.NewHub(logger)
	wsManager := ws.NewManager(sseHub, history, logger)
	limiter := ratelimit.New(map[string]ratelimit.Bucket{
		"check": {MaxRequests: cfg.CheckPerMinute, Window: time.Minute},
	})

	// HTTP handlers
	checkHandler := handlers.NewCheckHandler(pipeline, store, sseHub, logger)
	historyHandler := handlers.NewHistoryHandler(store, logger)
	streamHandler := handlers.NewStreamHandler(sseHub, store)

	// Build router
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware)

	// Health check
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("pong"))
	})

	r.Get("/ws", wsManager.HandleWS)

	r.Route("/api", func(api chi.Router) {
		api.With(limiter.Middleware("check")).Post("/check-url", checkHandler.CheckURL)
		api.With(limiter.Middleware("api")).Post("/features", checkHandler.Features)
		api.With(limiter.Middleware("predict")).Post("/predict", checkHandler.Predict)

		api.Get("/stats", historyHandler.Stats)
		api.Get("/history", historyHandler.History)
		api.Get("/scans/{id}", historyHandler.GetScan)

		// SSE stream
		api.Get("/stream/events", streamHandler.HandleSSE)
	})

	// Start background goroutines
	go server.RunWithRecovery(ctx, logger, "ws-relay", wsManager.Run)
	go server.RunWithRecovery(ctx, logger, "ratelimit-sweep", limiter.SweepLoop)
	if database != nil {
		pgListener := sse.NewPGListener(database.Pool, sseHub, logger)
		go server.RunWithRecovery(ctx, logger, "pg-listener", pgListener.Listen)

		if cfg.HistoryRetention > 0 {
			go server.RunWithRecovery(ctx, logger, "scan-retention", func(ctx context.Context) {
				server.Every(ctx, logger, "scan-retention", time.Hour, func(ctx context.Context) error {
					n, err := database.PruneScans(ctx, time.Now().Add(-cfg.HistoryRetention))
					if err == nil && n > 0 {
						logger.Info("pruned old scans", "count", n)
					}
					return err
				})
			})
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE + WebSocket need unlimited write time
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel() // stop background goroutines

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "err", err)
		}
	}()

	if len(cfg.TLS.Domains) > 0 {
		certs := lwtls.NewCertManager(cfg.TLS, cfg.Production, logger)
		err = certs.Serve(ctx, srv)
	} else {
		logger.Info("server starting", "port", cfg.Port)
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// corsMiddleware lets browser front ends call the API from any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
