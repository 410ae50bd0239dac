package adapters

import (
	"context"
	"log/slog"
	"time"

	"ecomstudio/internal/core"
	"ecomstudio/internal/log"
	"ecomstudio/internal/metrics"
	"ecomstudio/internal/sheets"
)

const slowQueryThreshold = 500 * time.Millisecond

// InstrumentedReader wraps a LedgerReader so every range query the stats
// engine issues is timed and slow ones are logged.
type InstrumentedReader struct {
	next    sheets.LedgerReader
	backend string
}

func NewInstrumentedReader(next sheets.LedgerReader, backend string) *InstrumentedReader {
	return &InstrumentedReader{next: next, backend: backend}
}

// QueryLedger implements sheets.LedgerReader
func (r *InstrumentedReader) QueryLedger(ctx context.Context, start, end time.Time) ([]core.LedgerEvent, error) {
	began := time.Now()
	events, err := r.next.QueryLedger(ctx, start, end)
	elapsed := time.Since(began)

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.LedgerQueryDuration.WithLabelValues(r.backend, result).Observe(elapsed.Seconds())

	if elapsed > slowQueryThreshold {
		slog.WarnContext(ctx, "Slow ledger query",
			log.FieldComponent, log.ComponentLedger,
			"backend", r.backend,
			"start", start,
			"end", end,
			log.FieldDuration, elapsed.Milliseconds())
	}
	return events, err
}
