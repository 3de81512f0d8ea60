package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/msomdec/course-market/internal/config"
	"github.com/msomdec/course-market/internal/handler"
	"github.com/msomdec/course-market/internal/metrics"
	"github.com/msomdec/course-market/internal/repository/sqlite"
	"github.com/msomdec/course-market/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logOpts := &slog.HandlerOptions{Level: level}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied")

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authService := service.NewAuthService(db.Users(), cfg.JWTSecret, cfg.BcryptCost)
	progressService := service.NewProgressService(db.Progress(), db.Courses(), db.Enrollments(), service.CompletionPolicy{
		Strict:    cfg.StrictCompletion,
		Threshold: cfg.CompletionThreshold,
	})
	enrollmentService := service.NewEnrollmentService(db.Enrollments(), db.Courses(), cfg.AccessTTL())
	dashboardService := service.NewDashboardService(db.Enrollments(), db.Courses(), db.Progress())
	catalogService := service.NewCatalogService(db.Courses())

	prometheus.MustRegister(metrics.NewEnrollmentCollector(db.Enrollments()))

	if !cfg.WebhookEnabled() {
		slog.Warn("PAYMENT_WEBHOOK_SECRET not set; payment webhook disabled")
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Dependencies{
		DB:              db,
		Auth:            authService,
		Catalog:         catalogService,
		Progress:        progressService,
		Enrollments:     enrollmentService,
		Dashboard:       dashboardService,
		ProgressLimiter: service.NewTokenBucket(ctx, cfg.ProgressRate, cfg.ProgressBurst),
		WebhookSecret:   cfg.PaymentWebhookSecret,
		CookieSecure:    cfg.CookieSecure,
		Metrics:         promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.RequestLogger(handler.SecurityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
