package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"kopilka/internal/amqp"
	"kopilka/internal/config"
	applog "kopilka/internal/log"
	"kopilka/internal/remote"
	"kopilka/internal/remote/rest"
	"kopilka/internal/remote/sheets"
	"kopilka/internal/services"
	"kopilka/internal/storage"
	"kopilka/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	slog.Info("Starting kopilka-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.RemoteBaseURL == "" {
		slog.Error("REMOTE_BASE_URL is required: the worker pushes local changes to the remote store")
		os.Exit(1)
	}

	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	target, err := rest.New(cfg.RemoteBaseURL, cfg.RemoteToken)
	if err != nil {
		slog.Error("Failed to initialize remote client", "error", err, "base_url", cfg.RemoteBaseURL)
		os.Exit(1)
	}

	// Spreadsheet export is optional; creates are mirrored when configured.
	var exporter remote.OperationExporter
	if cfg.GoogleSpreadsheetID != "" {
		sheetsExporter, err := sheets.NewFromEnv(context.Background())
		if err != nil {
			slog.Error("Failed to initialize Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = sheetsExporter
		slog.Info("Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		slog.Info("Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		slog.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	syncWorker := worker.NewSyncWorker(sqliteRepo, target, exporter)

	// The poll-based processor drains whatever the message path missed, so a
	// broker outage only delays sync instead of losing it.
	processorCfg := services.DefaultSyncProcessorConfig()
	processorCfg.PollInterval = cfg.SyncInterval
	processorCfg.BatchSize = cfg.SyncBatchSize
	processor := services.NewSyncProcessor(sqliteRepo, target, exporter, processorCfg)

	if err := processor.Start(ctx); err != nil {
		slog.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeOperationSync(gctx, func(msg *amqp.OperationSyncMessage) error {
			return syncWorker.HandleMessage(gctx, msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Message consumption failed", "error", err)
	}

	slog.Info("Shutting down worker...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := processor.Stop(shutdownCtx); err != nil {
		slog.Warn("Sync processor shutdown timed out", "error", err)
	}
	slog.Info("Worker shutdown complete")
}
