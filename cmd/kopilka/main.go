package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kopilka/internal/backend"
	"kopilka/internal/clock"
	"kopilka/internal/config"
	"kopilka/internal/core"
	"kopilka/internal/format"
	apphttp "kopilka/internal/http"
	applog "kopilka/internal/log"
	"kopilka/internal/prefs"
	"kopilka/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		slog.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(nil).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		slog.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				slog.Error("Backend cleanup failed", "error", err)
			}
		}
	}()
	slog.Info("Backend initialized", "backend", cfg.DataBackend)

	formatter := format.New(cfg.Locale, cfg.Currency)
	feed := services.NewFeedService(
		result.Backend, result.Backend, result.Backend,
		core.NewAggregator(formatter), clock.System{},
		services.FeedConfig{PageSize: cfg.PageSize, LoadMoreDelay: cfg.LoadMoreDelay})
	goals := services.NewGoalService(result.Backend, result.Backend, clock.System{})
	preferences := prefs.NewService(result.Prefs)

	// Warm the feed snapshot; a failure here is not fatal, the first read
	// retries the fetch.
	if err := feed.Refresh(context.Background()); err != nil {
		slog.Warn("Initial feed refresh failed", "error", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Backend: result.Backend,
		Feed:    feed,
		Goals:   goals,
		Prefs:   preferences,
		Format:  formatter,
	})

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	slog.Info("Starting kopilka server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("Server stopped gracefully")
}
