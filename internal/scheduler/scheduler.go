// Package scheduler runs named periodic tasks on six-field cron specs
// (seconds first).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"ecomstudio/internal/log"
)

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether spec parses as a seconds-first cron spec or a
// descriptor such as "@every 15m".
func ValidateSpec(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return nil
}

type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

// New creates a scheduler whose tasks receive ctx. Overlapping runs of the
// same task are skipped and panics are recovered.
func New(ctx context.Context, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn))
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx: ctx,
	}
}

// Register adds task under name.
func (s *Scheduler) Register(name, spec string, task func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		started := time.Now()
		if err := task(s.ctx); err != nil {
			slog.ErrorContext(s.ctx, "Scheduled task failed",
				log.FieldComponent, log.ComponentScheduler,
				"task", name,
				log.FieldError, err,
				log.FieldDuration, time.Since(started).Milliseconds())
			return
		}
		slog.DebugContext(s.ctx, "Scheduled task finished",
			log.FieldComponent, log.ComponentScheduler,
			"task", name,
			log.FieldDuration, time.Since(started).Milliseconds())
	})
	if err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}
	slog.InfoContext(s.ctx, "Scheduled task registered",
		log.FieldComponent, log.ComponentScheduler,
		"task", name,
		"spec", spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.InfoContext(s.ctx, "Scheduler started", log.FieldComponent, log.ComponentScheduler)
}

// Stop stops scheduling and waits for running tasks to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.InfoContext(s.ctx, "Scheduler stopped", log.FieldComponent, log.ComponentScheduler)
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
