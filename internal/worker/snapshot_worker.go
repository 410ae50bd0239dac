package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"ecomstudio/internal/amqp"
	"ecomstudio/internal/core"
	"ecomstudio/internal/log"
	"ecomstudio/internal/metrics"
	"ecomstudio/internal/sheets"
)

const (
	TriggerSchedule = "schedule"
	TriggerLedger   = "ledger"
	TriggerStartup  = "startup"
	TriggerManual   = "manual"
)

// StatsComputer is satisfied by *stats.Engine.
type StatsComputer interface {
	ComputeAll(ctx context.Context, now time.Time) (core.StatsReport, error)
}

// SnapshotWorker computes the stats report and exports it through a
// ReportWriter. Ledger notifications are coalesced: a burst of messages
// produces one export once the debounce window has passed.
type SnapshotWorker struct {
	engine   StatsComputer
	writer   sheets.ReportWriter
	debounce time.Duration
	now      func() time.Time
	notify   chan struct{}
}

func NewSnapshotWorker(engine StatsComputer, writer sheets.ReportWriter, debounce time.Duration) *SnapshotWorker {
	if writer == nil {
		writer = LogWriter{}
	}
	return &SnapshotWorker{
		engine:   engine,
		writer:   writer,
		debounce: debounce,
		now:      time.Now,
		notify:   make(chan struct{}, 1),
	}
}

// Export computes a report for the current instant and writes it.
func (w *SnapshotWorker) Export(ctx context.Context, trigger string) (string, error) {
	report, err := w.engine.ComputeAll(ctx, w.now())
	if err != nil {
		metrics.SnapshotExports.WithLabelValues(trigger, "error").Inc()
		return "", fmt.Errorf("compute stats: %w", err)
	}

	ref, err := w.writer.AppendSnapshot(ctx, report)
	if err != nil {
		metrics.SnapshotExports.WithLabelValues(trigger, "error").Inc()
		return "", fmt.Errorf("append snapshot: %w", err)
	}

	result := "ok"
	if !report.Complete() {
		result = "partial"
	}
	metrics.SnapshotExports.WithLabelValues(trigger, result).Inc()

	slog.InfoContext(ctx, "Stats snapshot exported",
		log.FieldComponent, log.ComponentWorker,
		log.FieldOperation, log.OpExport,
		log.FieldTrigger, trigger,
		log.FieldSheetsRef, ref,
		"defaulted", len(report.Failed))
	return ref, nil
}

// ScheduledExport adapts Export to the scheduler's task signature.
func (w *SnapshotWorker) ScheduledExport(ctx context.Context) error {
	_, err := w.Export(ctx, TriggerSchedule)
	return err
}

// HandleLedgerRecorded marks the snapshot stale. It never blocks and never
// fails, so the message is always acknowledged.
func (w *SnapshotWorker) HandleLedgerRecorded(ctx context.Context, msg *amqp.LedgerRecordedMessage) error {
	slog.DebugContext(ctx, "Ledger change received",
		log.FieldComponent, log.ComponentWorker,
		log.FieldTransaction, msg.TransactionID,
		log.FieldDirection, string(msg.Direction))
	select {
	case w.notify <- struct{}{}:
	default:
	}
	return nil
}

// Run performs debounced exports for ledger notifications until ctx is done.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.notify:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			}
		case <-fire:
			timer, fire = nil, nil
			if _, err := w.Export(ctx, TriggerLedger); err != nil {
				slog.ErrorContext(ctx, "Debounced snapshot export failed",
					log.FieldComponent, log.ComponentWorker,
					log.FieldError, err)
			}
		}
	}
}

// LogWriter writes snapshots to the process log. It is used when no
// spreadsheet is configured.
type LogWriter struct{}

func (LogWriter) AppendSnapshot(ctx context.Context, r core.StatsReport) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	slog.InfoContext(ctx, "Stats snapshot",
		log.FieldComponent, log.ComponentWorker,
		"report", json.RawMessage(b))
	return "log", nil
}
