// Package cli provides the initialization shared by cmd/ecomstudio,
// cmd/stats-worker and cmd/statsctl.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ecomstudio/internal/backend"
	"ecomstudio/internal/config"
	"ecomstudio/internal/log"
	"ecomstudio/internal/metrics"
	"ecomstudio/internal/stats"
)

// SetupLogger builds the process logger from the configured format and level
// and installs it as the slog default.
func SetupLogger(format, level string) *slog.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Format:    format,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger.Logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration, sets up logging from it and
// validates it. The process exits on any failure.
func LoadAndValidateConfig() (*config.Config, *slog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		logger := SetupLogger(os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"))
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := SetupLogger(cfg.LogFormat, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitBackend creates the configured ledger backend. The process exits on
// failure.
func InitBackend(ctx context.Context, logger *slog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return result
}

// NewStatsEngine builds the stats engine over reader with the configured
// location, timeout and concurrency cap.
func NewStatsEngine(cfg *config.Config, reader stats.LedgerQuery, logger *slog.Logger) *stats.Engine {
	return stats.NewEngine(reader,
		stats.WithLocation(cfg.Location()),
		stats.WithQueryTimeout(cfg.StatsQueryTimeout),
		stats.WithMaxConcurrency(cfg.StatsMaxConcurrency),
		stats.WithRecorder(metrics.StatsRecorder{}),
		stats.WithLogger(logger),
	)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM and a
// channel closed once cleanup has finished or timed out.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
