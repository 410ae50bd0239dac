package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ecomstudio/internal/backend"
	"ecomstudio/internal/cli"
	"ecomstudio/internal/config"
	"ecomstudio/internal/log"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "statsctl",
		Short:         "ECOM Studio ledger and statistics tool",
		Long:          `statsctl computes the admin credit statistics, records ledger transactions and manages the SQLite schema.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (overrides CONFIG_FILE)")

	rootCmd.AddCommand(
		newComputeCommand(),
		newRecordCommand(),
		newMigrateCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initEnv loads configuration and logs to stderr so stdout stays clean for
// command output.
func initEnv() (*config.Config, *slog.Logger, error) {
	cli.LoadEnvFile()
	if configPath != "" {
		if err := os.Setenv("CONFIG_FILE", configPath); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)
	return cfg, logger.Logger, nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
}
