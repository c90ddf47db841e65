// Package cli provides the process bootstrap shared by cmd/fincast and
// cmd/fincast-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fincast/internal/amqp"
	"fincast/internal/cache"
	"fincast/internal/config"
	apihttp "fincast/internal/http"
	"fincast/internal/log"
	"fincast/internal/services"
	"fincast/internal/sheets"
	gsheet "fincast/internal/sheets/google"
	"fincast/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, out io.Writer) *log.Logger {
	lc := log.DefaultConfig()
	if out != nil {
		lc.Output = out
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		lc.Level = level
	}
	lc.Format = cfg.LogFormat

	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// App is a bootstrapped engine: configuration, storage and the analysis
// service over a process-wide forecast cache.
type App struct {
	Config   *config.Config
	Engine   config.EngineConfig
	Logger   *log.Logger
	Repo     *storage.SQLiteRepository
	Analysis *services.AnalysisService
	Caches   *cache.Manager
}

// EngineOverride adjusts the engine configuration after the tuning file is
// loaded, e.g. from command-line flags.
type EngineOverride func(*config.EngineConfig)

// Bootstrap validates cfg, loads the engine tuning file, opens the database
// and wires the analysis service.
func Bootstrap(cfg *config.Config, logger *log.Logger, overrides ...EngineOverride) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine, err := config.LoadEngineFile(cfg.EngineConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load engine config: %w", err)
	}
	for _, override := range overrides {
		override(&engine)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository at %s: %w", cfg.SQLiteDBPath, err)
	}

	pipeline, err := services.NewPipeline(engine)
	if err != nil {
		repo.Close()
		return nil, err
	}

	forecasts := cache.NewForecastCache(cfg.CacheMaxEntries, engine.CacheTTL())
	caches := cache.NewManager(logger)
	caches.Register(forecasts)

	return &App{
		Config:   cfg,
		Engine:   engine,
		Logger:   logger,
		Repo:     repo,
		Analysis: services.NewAnalysisService(repo, pipeline, forecasts, logger),
		Caches:   caches,
	}, nil
}

// Exporter returns the Google Sheets exporter, or nil when no spreadsheet
// is configured.
func (a *App) Exporter(ctx context.Context) (sheets.ReportExporter, error) {
	if !a.Config.SheetsEnabled() {
		return nil, nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   a.Config.GoogleSpreadsheetID,
		SheetName:       a.Config.GoogleSheetName,
		CredentialsJSON: a.Config.GoogleServiceAccountJSON,
		CredentialsFile: a.Config.GoogleServiceAccountFile,
	}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets exporter: %w", err)
	}
	return client, nil
}

// AMQP dials the broker, or returns nil when AMQP_URL is unset.
func (a *App) AMQP() (*amqp.Client, error) {
	if !a.Config.AMQPEnabled() {
		return nil, nil
	}
	client, err := amqp.NewClient(amqp.Config{
		URL:               a.Config.AMQPURL,
		Exchange:          a.Config.AMQPExchange,
		IngestQueue:       a.Config.AMQPIngestQueue,
		ResultsRoutingKey: a.Config.AMQPResultsRoutingKey,
	}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("initialize AMQP client: %w", err)
	}
	return client, nil
}

// HTTPServer builds the query API server, or returns nil when HTTP_ADDR is
// unset.
func (a *App) HTTPServer() (*apihttp.Server, error) {
	if !a.Config.HTTPEnabled() {
		return nil, nil
	}
	srv, err := apihttp.NewServer(apihttp.Config{
		Addr:              a.Config.HTTPAddr,
		RequestsPerMinute: a.Config.HTTPRateLimit,
		RequestTimeout:    a.Config.HTTPRequestTimeout,
		TrustedProxies:    a.Config.HTTPTrustedProxies,
		Strategies:        a.Analysis.Pipeline().Optimizer().Strategies(),
	}, a.Analysis, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("initialize HTTP server: %w", err)
	}
	return srv, nil
}

// Close stops cache cleanup and closes the database.
func (a *App) Close() error {
	a.Caches.Stop()
	return a.Repo.Close()
}

// GracefulShutdown returns a context that is cancelled on SIGINT or SIGTERM,
// after cleanup has run or the timeout has passed, whichever comes first.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and shutdown has
// finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
