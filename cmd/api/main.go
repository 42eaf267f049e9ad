// Package main is the entry point for the cash-up API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
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
	_ "time/tzdata" // DISPLAY_TZ must resolve in minimal containers

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/GideonLangenhoven/CKACashups/api"
	"github.com/GideonLangenhoven/CKACashups/internal/config"
	"github.com/GideonLangenhoven/CKACashups/internal/earnings"
	"github.com/GideonLangenhoven/CKACashups/internal/handler"
	"github.com/GideonLangenhoven/CKACashups/internal/middleware"
	"github.com/GideonLangenhoven/CKACashups/internal/notify"
	"github.com/GideonLangenhoven/CKACashups/internal/repo"
	"github.com/GideonLangenhoven/CKACashups/internal/service"
	"github.com/GideonLangenhoven/CKACashups/migrations"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Mail & alerts ----------------------------------------------------
	mailer := notify.NewMailer(cfg.SMTP)
	alerter := notify.NewAlerter(mailer, cfg.AlertEmails, logger)
	defer alerter.Wait()
	if !cfg.SMTP.Enabled {
		logger.Warn("email disabled; reports, invoices and alerts will not be delivered")
	}

	// --- Database ---------------------------------------------------------
	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		logger.Error("failed to connect to database", "error", err)
		alerter.DatabaseError("startup ping", err)
		alerter.Wait()
		os.Exit(1)
	}
	logger.Info("database connection established")

	if cfg.RunMigrations {
		if err := migrate(context.Background(), pool); err != nil {
			logger.Error("failed to run migrations", "error", err)
			alerter.DatabaseError("migrations", err)
			alerter.Wait()
			os.Exit(1)
		}
	}

	// --- Services ---------------------------------------------------------
	tx := repo.NewTxRunner(pool)
	store := repo.NewStore(pool)
	calc := earnings.NewCalculator(earnings.DefaultRateTable())

	srv := handler.NewServer(handler.Services{
		DB:     pool,
		Guides: service.NewGuideService(tx, store.Guides, logger),
		Trips:  service.NewTripService(tx, store.Trips, calc, logger),
		Reports: service.NewReportService(store.Trips, mailer, alerter,
			service.ReportOptions{Admins: cfg.AdminEmails, Timeout: cfg.ReportTimeout}, logger),
		Earnings: service.NewEarningsService(store.Guides, store.Trips, mailer, alerter,
			cfg.AdminEmails, cfg.DisplayLocation, logger),
		Export: service.NewExportService(store.Trips),
	}, api.OpenAPI, logger)

	// --- Router -----------------------------------------------------------
	// RequestID → RealIP → SlogLogger → Recoverer → CORS → body limit.
	// Authentication is applied by Routes to /api/v1 only.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	r.Mount("/", srv.Routes(middleware.NewAuthHandler([]byte(cfg.JWTSecret))))

	// --- HTTP Server ------------------------------------------------------
	// The write timeout leaves room for the slowest report plus encoding.
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ReportTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

// migrate applies the embedded goose migrations over the pool.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "migrations applied", "count", len(results))
	return nil
}
