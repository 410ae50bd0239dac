package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ecomstudio/internal/cli"
	"ecomstudio/internal/scheduler"
	"ecomstudio/internal/sheets"
	gsheet "ecomstudio/internal/sheets/google"
	"ecomstudio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting stats-worker")

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()
	engine := cli.NewStatsEngine(cfg, be.Reader, logger)

	var writer sheets.ReportWriter
	if cfg.SheetsEnabled() {
		rw, err := gsheet.NewReportWriter(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleReportSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets report writer", "error", err)
			os.Exit(1)
		}
		writer = rw
		logger.Info("Google Sheets export enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleReportSheetName)
	} else {
		logger.Info("Google Sheets disabled - snapshots go to the log")
	}

	snapshots := worker.NewSnapshotWorker(engine, writer, cfg.SnapshotDebounce)

	if _, err := snapshots.Export(ctx, worker.TriggerStartup); err != nil {
		// Keep running; the schedule retries.
		logger.Error("Startup snapshot export failed", "error", err)
	}

	sched := scheduler.New(ctx, cfg.Location())
	if err := sched.Register("stats-snapshot", cfg.SnapshotSchedule, snapshots.ScheduledExport); err != nil {
		logger.Error("Failed to register snapshot schedule", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return snapshots.Run(gctx) })
	if be.AMQP != nil {
		g.Go(func() error { return be.AMQP.ConsumeLedgerRecorded(gctx, snapshots.HandleLedgerRecorded) })
	} else {
		logger.Info("Skipping AMQP consumption - snapshots follow the schedule only")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		sched.Stop()
		_ = be.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
