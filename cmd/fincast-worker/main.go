package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fincast/internal/cli"
	"fincast/internal/config"
	"fincast/internal/log"
	"fincast/internal/services"
	"fincast/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	batchTimeout    = 30 * time.Minute
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, os.Stdout)

	logger.Info("Starting fincast-worker", log.FieldOperation, log.OpStartup)

	app, err := cli.Bootstrap(cfg, logger)
	if err != nil {
		logger.Error("Failed to start", "error", err)
		os.Exit(1)
	}
	app.Caches.StartCleanup(cfg.CacheCleanupInterval)

	exporter, err := app.Exporter(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", "error", err)
		app.Close()
		os.Exit(1)
	}
	if exporter != nil {
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := app.AMQP()
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		app.Close()
		os.Exit(1)
	}

	batch := services.BatchConfig{Store: app.Repo, Exporter: exporter}
	if amqpClient != nil {
		batch.Publisher = amqpClient
	}
	recomputer := services.NewBatchRecomputer(app.Analysis, app.Repo, batch, logger)

	scheduler, err := worker.NewScheduler(cfg.BatchSchedule, recomputer, batchTimeout, logger)
	if err != nil {
		logger.Error("Failed to create batch scheduler", "error", err)
		app.Close()
		os.Exit(1)
	}

	apiServer, err := app.HTTPServer()
	if err != nil {
		logger.Error("Failed to create HTTP server", "error", err)
		app.Close()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func() {
		if apiServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := apiServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown failed", "error", err)
			}
			cancel()
		}
		scheduler.Stop()
		if amqpClient != nil {
			amqpClient.Close()
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	})

	scheduler.Start(ctx)

	if amqpClient != nil {
		ingest := worker.NewIngestWorker(app.Analysis, app.Repo, amqpClient, worker.IngestConfig{
			Recompute: cfg.RecomputeOnIngest,
		}, logger)

		go func() {
			err := amqpClient.ConsumeTransactionsIngested(ctx, ingest.HandleIngested)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
		logger.Info("Consuming transactions.ingested events",
			"queue", cfg.AMQPIngestQueue,
			"recompute", cfg.RecomputeOnIngest,
		)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided, running batch schedule only")
	}

	if apiServer != nil {
		go func() {
			logger.Info("Query API listening", "addr", apiServer.Addr)
			if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed", "error", err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
}
