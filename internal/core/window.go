// Package core holds the ledger domain types and the period statistics math.
//
// This file implements the window strategy for each period kind. Daily uses
// calendar-day boundaries while every other kind is a rolling N-day window
// ending at the reference instant. Keep the two shapes separate.
package core

import (
	"fmt"
	"time"
)

// Window holds the current and previous comparison ranges. Both ranges are
// inclusive on each end.
type Window struct {
	CurrentStart  time.Time
	CurrentEnd    time.Time
	PreviousStart time.Time
	PreviousEnd   time.Time
}

// windowStrategy computes the comparison window for a reference instant.
type windowStrategy interface {
	window(now time.Time) Window
}

// calendarDayWindow covers midnight to 23:59:59 of the reference day, in the
// reference instant's location, and the same clock span one day earlier.
// Around a DST transition the previous bounds can sit 23h or 25h before the
// current ones because they are one calendar day back, not a 24h shift.
type calendarDayWindow struct{}

func (calendarDayWindow) window(now time.Time) Window {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := time.Date(y, m, d, 23, 59, 59, 0, now.Location())
	return Window{
		CurrentStart:  start,
		CurrentEnd:    end,
		PreviousStart: start.AddDate(0, 0, -1),
		PreviousEnd:   end.AddDate(0, 0, -1),
	}
}

// rollingWindow covers [now-N days, now] and the N days that precede it.
// The two ranges abut exactly at CurrentStart.
type rollingWindow struct {
	days int
}

func (r rollingWindow) window(now time.Time) Window {
	start := now.AddDate(0, 0, -r.days)
	return Window{
		CurrentStart:  start,
		CurrentEnd:    now,
		PreviousStart: start.AddDate(0, 0, -r.days),
		PreviousEnd:   start,
	}
}

var windowStrategies = map[PeriodKind]windowStrategy{
	Daily:     calendarDayWindow{},
	Weekly:    rollingWindow{days: Weekly.Days()},
	Monthly:   rollingWindow{days: Monthly.Days()},
	Quarterly: rollingWindow{days: Quarterly.Days()},
	Yearly:    rollingWindow{days: Yearly.Days()},
}

// ComputeWindow returns the current and previous ranges for kind relative to
// now. It fails for unknown kinds and for a zero or pre-epoch instant.
func ComputeWindow(kind PeriodKind, now time.Time) (Window, error) {
	if now.IsZero() || now.Before(time.Unix(0, 0)) {
		return Window{}, fmt.Errorf("%w: %s", ErrInvalidInstant, now.Format(time.RFC3339))
	}
	strategy, ok := windowStrategies[kind]
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, kind)
	}
	return strategy.window(now), nil
}
