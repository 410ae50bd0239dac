// Package stats computes the admin dashboard's comparative credit statistics.
//
// The Engine reads a ledger through an injected LedgerQuery and produces one
// core.PeriodStat per period kind and direction. Every combination issues its
// own pair of range queries; all of them run concurrently and are joined
// before ComputeAll returns.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"ecomstudio/internal/core"
	"ecomstudio/internal/log"
)

// LedgerQuery returns the ledger events with start <= occurredAt <= end, in
// any order.
type LedgerQuery interface {
	QueryLedger(ctx context.Context, start, end time.Time) ([]core.LedgerEvent, error)
}

// LedgerQueryFunc adapts a plain function to LedgerQuery.
type LedgerQueryFunc func(ctx context.Context, start, end time.Time) ([]core.LedgerEvent, error)

func (f LedgerQueryFunc) QueryLedger(ctx context.Context, start, end time.Time) ([]core.LedgerEvent, error) {
	return f(ctx, start, end)
}

// Recorder receives engine telemetry. A nil Recorder is allowed.
type Recorder interface {
	ObserveCompute(elapsed time.Duration, defaulted int)
	CombinationDefaulted(key core.StatKey)
}

// Engine computes period statistics. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	ledger         LedgerQuery
	location       *time.Location
	queryTimeout   time.Duration
	maxConcurrency int
	recorder       Recorder
	logger         *slog.Logger
}

type Option func(*Engine)

// WithLocation sets the business location used for calendar-day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithQueryTimeout bounds each individual ledger query.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) { e.queryTimeout = d }
}

// WithMaxConcurrency caps how many combinations run at once. Zero or less
// means no cap.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) { e.maxConcurrency = n }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(ledger LedgerQuery, opts ...Option) *Engine {
	e := &Engine{
		ledger:   ledger,
		location: time.UTC,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeAll returns a stat for every period × direction combination at now.
//
// A combination whose ledger query fails, panics or is cancelled resolves to
// core.ZeroStat and is listed in the report's Failed keys; the failure is
// logged and never returned. The only error is for an invalid now.
func (e *Engine) ComputeAll(ctx context.Context, now time.Time) (core.StatsReport, error) {
	started := time.Now()
	now = now.In(e.location)

	windows := make(map[core.PeriodKind]core.Window, len(core.PeriodKinds()))
	for _, p := range core.PeriodKinds() {
		w, err := core.ComputeWindow(p, now)
		if err != nil {
			return core.StatsReport{}, fmt.Errorf("compute %s window: %w", p, err)
		}
		windows[p] = w
	}

	keys := core.AllStatKeys()
	results := make([]core.PeriodStat, len(keys))
	errs := make([]error, len(keys))

	var g errgroup.Group
	if e.maxConcurrency > 0 {
		g.SetLimit(e.maxConcurrency)
	}
	for i, key := range keys {
		g.Go(func() error {
			results[i], errs[i] = e.compute(ctx, key, windows[key.Period])
			return nil
		})
	}
	_ = g.Wait()

	report := core.StatsReport{
		GeneratedAt: now,
		Stats:       make(map[core.StatKey]core.PeriodStat, len(keys)),
	}
	for i, key := range keys {
		if errs[i] != nil {
			e.logger.ErrorContext(ctx, "Stat combination fell back to zero",
				log.FieldComponent, log.ComponentStats,
				log.FieldOperation, log.OpCompute,
				log.FieldPeriod, string(key.Period),
				log.FieldDirection, string(key.Direction),
				log.FieldError, errs[i])
			if e.recorder != nil {
				e.recorder.CombinationDefaulted(key)
			}
			report.Stats[key] = core.ZeroStat
			report.Failed = append(report.Failed, key)
			continue
		}
		report.Stats[key] = results[i]
	}

	if e.recorder != nil {
		e.recorder.ObserveCompute(time.Since(started), len(report.Failed))
	}
	e.logger.DebugContext(ctx, "Period stats computed",
		log.FieldComponent, log.ComponentStats,
		"now", now.Format(time.RFC3339),
		"defaulted", len(report.Failed),
		log.FieldDuration, time.Since(started).Milliseconds())

	return report, nil
}

func (e *Engine) compute(ctx context.Context, key core.StatKey, w core.Window) (core.PeriodStat, error) {
	if err := ctx.Err(); err != nil {
		return core.ZeroStat, err
	}

	var current, previous []core.LedgerEvent
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events, err := e.query(gctx, w.CurrentStart, w.CurrentEnd)
		if err != nil {
			return fmt.Errorf("query current %s window: %w", key.Period, err)
		}
		current = events
		return nil
	})
	g.Go(func() error {
		events, err := e.query(gctx, w.PreviousStart, w.PreviousEnd)
		if err != nil {
			return fmt.Errorf("query previous %s window: %w", key.Period, err)
		}
		previous = events
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.ZeroStat, err
	}

	return core.DerivePeriodStat(
		core.SumMagnitude(current, w.CurrentStart, w.CurrentEnd, key.Direction),
		core.SumMagnitude(previous, w.PreviousStart, w.PreviousEnd, key.Direction),
	), nil
}

// query runs one range query. A panic inside the ledger becomes an error so
// that one broken combination cannot take the others down.
func (e *Engine) query(ctx context.Context, start, end time.Time) (events []core.LedgerEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "Ledger query panicked",
				log.FieldComponent, log.ComponentStats,
				"start", start.Format(time.RFC3339),
				"end", end.Format(time.RFC3339),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()))
			events, err = nil, fmt.Errorf("ledger query panicked: %v", r)
		}
	}()

	if e.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.queryTimeout)
		defer cancel()
	}
	return e.ledger.QueryLedger(ctx, start, end)
}
