package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"

	"github.com/grokvideo/backend/internal/admin"
	"github.com/grokvideo/backend/internal/config"
	"github.com/grokvideo/backend/internal/license"
	"github.com/grokvideo/backend/internal/middleware"
	"github.com/grokvideo/backend/internal/observability"
	"github.com/grokvideo/backend/internal/router"
	"github.com/grokvideo/backend/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running.", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// Migrations run exactly once, before the listener binds.
	if err := store.Migrate(ctx, pool); err != nil {
		slog.Error("Migrations failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Migrations applied")

	metrics := observability.NewMetrics()
	accounts := store.NewPostgres(pool)

	licSvc := license.NewService(accounts)
	licHandler := license.NewHandler(licSvc, metrics, logger)

	tokens := admin.NewTokenService(cfg.JWTSecret)
	admHandler := admin.NewHandler(accounts, tokens, cfg.AdminKey, metrics, logger)

	adminAuth := middleware.AdminAuth(cfg.AdminKey, tokens)
	mux := router.New(licHandler, admHandler, adminAuth, metrics)

	// The desktop client calls from file:// and arbitrary machines, so the
	// API is CORS-open.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Admin-Key", "Authorization"},
	}).Handler(mux)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      corsHandler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting HTTP server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
