package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily     PeriodKind = "daily"
	Weekly    PeriodKind = "weekly"
	Monthly   PeriodKind = "monthly"
	Quarterly PeriodKind = "quarterly"
	Yearly    PeriodKind = "yearly"
)

const (
	Spend Direction = "spend"
	TopUp Direction = "topup"
)

const (
	TrendPositive Trend = "positive"
	TrendNegative Trend = "negative"
	TrendNeutral  Trend = "neutral"
)

type (
	// PeriodKind names one of the fixed comparison windows.
	PeriodKind string

	// Direction selects which sign of a ledger amount is aggregated.
	Direction string

	// Trend is the sign classification of a percentage change.
	Trend string

	// LedgerEvent is a single signed credit transaction.
	// Negative amounts are spends, positive amounts are top-ups.
	LedgerEvent struct {
		ID          string
		UserID      string
		OccurredAt  time.Time
		Amount      decimal.Decimal
		Description string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyUser        = errors.New("empty user id")
	ErrInvalidPeriod    = errors.New("invalid period kind")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidInstant   = errors.New("invalid reference instant")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
)

// PeriodKinds returns every period kind in display order.
func PeriodKinds() []PeriodKind {
	return []PeriodKind{Daily, Weekly, Monthly, Quarterly, Yearly}
}

// Directions returns both aggregation directions, spend first.
func Directions() []Direction {
	return []Direction{Spend, TopUp}
}

// Days returns the window length in calendar days, or 0 for an unknown kind.
func (k PeriodKind) Days() int {
	switch k {
	case Daily:
		return 1
	case Weekly:
		return 7
	case Monthly:
		return 30
	case Quarterly:
		return 90
	case Yearly:
		return 365
	}
	return 0
}

func (k PeriodKind) Validate() error {
	if k.Days() == 0 {
		return ErrInvalidPeriod
	}
	return nil
}

// ParsePeriodKind maps a case-insensitive name to a PeriodKind.
func ParsePeriodKind(s string) (PeriodKind, error) {
	k := PeriodKind(strings.ToLower(strings.TrimSpace(s)))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

func (d Direction) Validate() error {
	switch d {
	case Spend, TopUp:
		return nil
	}
	return ErrInvalidDirection
}

// Direction reports whether the event is a spend or a top-up.
// Zero amounts are reported as top-ups but never counted by SumMagnitude.
func (e LedgerEvent) Direction() Direction {
	if e.Amount.IsNegative() {
		return Spend
	}
	return TopUp
}

func (e LedgerEvent) Validate() error {
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: occurred at cannot be zero", ErrInvalidInstant)
	}
	if strings.TrimSpace(e.UserID) == "" {
		return ErrEmptyUser
	}
	if e.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if len(e.Description) > 200 {
		return ErrDescriptionLong
	}
	return nil
}
