/**
 * @description
 * This is the main entry point for the user-manager service. It wires the
 * request ledger, the directory client, the notification producer and the
 * identity verifier into the workflow service, starts the HTTP API and the
 * cron scheduler for the lifecycle sweeps, and handles graceful shutdown.
 *
 * @dependencies
 * - The service's internal packages for config, app logic, storage, API and
 *   external clients.
 * - pgxpool for the database connection, godotenv for local config, and
 *   rabbitmq for the notification events.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/19pdh/user-manager/internal/api"
	"github.com/19pdh/user-manager/internal/app"
	"github.com/19pdh/user-manager/internal/auth"
	"github.com/19pdh/user-manager/internal/config"
	"github.com/19pdh/user-manager/internal/notify"
	"github.com/19pdh/user-manager/internal/store"
	"github.com/19pdh/user-manager/pkg/directoryclient"
	"github.com/19pdh/user-manager/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	dbConfig.MaxConns = 10
	dbConfig.MinConns = 2
	dbConfig.MaxConnLifetime = 30 * time.Minute
	dbConfig.MaxConnIdleTime = 5 * time.Minute
	// Disable prepared statement caching to prevent conflicts behind poolers.
	dbConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	// The notifier degrades to a logging no-op when the broker is down so
	// the API and sweeps keep working.
	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.AMQPURL)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ, notifications disabled", "error", err)
		producer = &rabbitmq.FallbackProducer{Logger: logger}
	} else {
		producer = eventProducer
		defer eventProducer.Close()
		logger.Info("rabbitmq producer initialized")
	}
	notifier := notify.NewAMQPNotifier(producer)

	ledger := store.NewPostgresLedger(dbpool)
	directory := directoryclient.NewClient(cfg.DirectoryBaseURL, cfg.DirectoryAPIKey)
	verifier := auth.NewVerifier(cfg.JWKSEndpoint, cfg.OAuthClientID)

	service := app.NewService(ledger, directory, notifier, verifier, logger, *cfg)
	sweep := app.NewSweep(ledger, directory, notifier, logger, *cfg)
	reconciler := app.NewReconciler(directory, logger, *cfg)

	scheduler := app.NewScheduler(sweep, logger, *cfg)
	scheduler.Start()

	handler := api.NewHandler(service, reconciler, notifier, logger, *cfg)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: api.NewRouter(handler),
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("could not start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("scheduler stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server gracefully stopped")
}
