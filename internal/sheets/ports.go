package sheets

import (
	"context"
	"time"

	"ecomstudio/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter persists a single credit transaction and returns its ID.
	LedgerWriter interface {
		Insert(ctx context.Context, e core.LedgerEvent) (id string, err error)
	}

	// LedgerReader returns transactions with start <= occurredAt <= end.
	LedgerReader interface {
		QueryLedger(ctx context.Context, start, end time.Time) ([]core.LedgerEvent, error)
	}

	// ReportWriter exports a computed stats report somewhere humans read it.
	// Reports are never read back.
	ReportWriter interface {
		AppendSnapshot(ctx context.Context, r core.StatsReport) (ref string, err error)
	}
)
