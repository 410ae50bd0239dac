// Package core provides credit amount parsing.
//
// This file contains functions for parsing signed credit amounts typed by an
// operator or received from a form.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseCredits converts a decimal string to a signed credit amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. The value is rounded half away from zero to two
// decimal places. Zero, exponents and anything that is not a plain decimal
// are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseCredits("12.34")  -> 12.34, nil
//	ParseCredits("-12,5")  -> -12.5, nil
//	ParseCredits("1.005")  -> 1.01, nil
//	ParseCredits("0")      -> 0, ErrInvalidAmount
func ParseCredits(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 || body == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	parts := strings.Split(body, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	digits := 0
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
			digits++
		}
	}
	if digits == 0 || digits > 18 {
		return decimal.Zero, ErrInvalidAmount
	}

	v, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	v = v.Round(2)
	if v.IsZero() {
		return decimal.Zero, ErrInvalidAmount
	}
	return v, nil
}

// FormatCredits renders an amount with two decimals, e.g. "-12.50".
func FormatCredits(v decimal.Decimal) string {
	return v.StringFixed(2)
}
