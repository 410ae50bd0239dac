package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ecomstudio/internal/cli"
	apphttp "ecomstudio/internal/http"
	"ecomstudio/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	ctx := context.Background()
	be := cli.InitBackend(ctx, logger, cfg)
	engine := cli.NewStatsEngine(cfg, be.Reader, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Engine:     engine,
		Ledger:     be.Ledger,
		Ready:      be.Ready,
		AdminToken: cfg.AdminToken,
		Logger:     log.New(log.Config{Handler: logger.Handler(), Component: log.ComponentHTTP}),
	})
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting ecomstudio server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", cfg.BusinessTimezone,
		"amqp", be.AMQP != nil,
		"admin_token", cfg.AdminToken != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
