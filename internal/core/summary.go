package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PeriodStat is the comparison result for one period and direction.
type PeriodStat struct {
	Amount        int64 `json:"amount"`
	ChangePercent int64 `json:"changePercent"`
	Trend         Trend `json:"trend"`
}

// ZeroStat is substituted for a combination whose ledger query failed.
var ZeroStat = PeriodStat{Amount: 0, ChangePercent: 0, Trend: TrendNeutral}

// StatKey identifies one of the period × direction combinations.
type StatKey struct {
	Period    PeriodKind
	Direction Direction
}

func (k StatKey) String() string {
	return string(k.Period) + "/" + string(k.Direction)
}

// AllStatKeys returns every combination, spend keys first.
func AllStatKeys() []StatKey {
	keys := make([]StatKey, 0, len(PeriodKinds())*len(Directions()))
	for _, d := range Directions() {
		for _, p := range PeriodKinds() {
			keys = append(keys, StatKey{Period: p, Direction: d})
		}
	}
	return keys
}

// StatsReport maps every combination to its stat. Failed lists the keys that
// hold ZeroStat because their ledger query did not complete.
type StatsReport struct {
	GeneratedAt time.Time
	Stats       map[StatKey]PeriodStat
	Failed      []StatKey
}

// Get returns the stat for a combination, or ZeroStat when absent.
func (r StatsReport) Get(p PeriodKind, d Direction) PeriodStat {
	if s, ok := r.Stats[StatKey{Period: p, Direction: d}]; ok {
		return s
	}
	return ZeroStat
}

// Complete reports whether every combination was computed from ledger data.
func (r StatsReport) Complete() bool {
	return len(r.Failed) == 0
}

// MarshalJSON renders {"spend": {"daily": ...}, "topup": {...}} plus metadata.
func (r StatsReport) MarshalJSON() ([]byte, error) {
	byDirection := func(d Direction) map[PeriodKind]PeriodStat {
		out := make(map[PeriodKind]PeriodStat, len(PeriodKinds()))
		for _, p := range PeriodKinds() {
			out[p] = r.Get(p, d)
		}
		return out
	}
	failed := make([]string, 0, len(r.Failed))
	for _, k := range r.Failed {
		failed = append(failed, k.String())
	}
	return json.Marshal(struct {
		GeneratedAt time.Time                 `json:"generatedAt"`
		Spend       map[PeriodKind]PeriodStat `json:"spend"`
		TopUp       map[PeriodKind]PeriodStat `json:"topup"`
		Failed      []string                  `json:"failed"`
	}{
		GeneratedAt: r.GeneratedAt,
		Spend:       byDirection(Spend),
		TopUp:       byDirection(TopUp),
		Failed:      failed,
	})
}

// SumMagnitude sums the magnitude of events inside [start, end] that match
// direction. Spend counts only negative amounts (by absolute value), top-up
// counts only positive amounts. The result is never negative.
func SumMagnitude(events []LedgerEvent, start, end time.Time, direction Direction) decimal.Decimal {
	total := decimal.Zero
	for _, e := range events {
		if e.OccurredAt.Before(start) || e.OccurredAt.After(end) {
			continue
		}
		switch direction {
		case Spend:
			if e.Amount.IsNegative() {
				total = total.Add(e.Amount.Abs())
			}
		case TopUp:
			if e.Amount.IsPositive() {
				total = total.Add(e.Amount)
			}
		}
	}
	return total
}

// DerivePeriodStat compares the current window sum against the previous one.
//
// When the previous sum is zero the true change is undefined: any growth is
// clamped to a fixed 100% and no growth is reported as 0%. A spend going from
// 0 to 1 and one going from 0 to 1,000,000 therefore read the same.
// Rounding is half away from zero and happens once, on output.
func DerivePeriodStat(current, previous decimal.Decimal) PeriodStat {
	if current.IsNegative() {
		current = decimal.Zero
	}
	if previous.IsNegative() {
		previous = decimal.Zero
	}

	stat := PeriodStat{Amount: current.Round(0).IntPart()}

	if previous.IsZero() {
		if current.IsPositive() {
			stat.ChangePercent = 100
			stat.Trend = TrendPositive
			return stat
		}
		stat.Trend = TrendNeutral
		return stat
	}

	stat.ChangePercent = current.Sub(previous).Mul(hundred).Div(previous).Round(0).IntPart()
	stat.Trend = TrendOf(stat.ChangePercent)
	return stat
}

// TrendOf classifies a percentage change by its sign.
func TrendOf(changePercent int64) Trend {
	switch {
	case changePercent > 0:
		return TrendPositive
	case changePercent < 0:
		return TrendNegative
	default:
		return TrendNeutral
	}
}
