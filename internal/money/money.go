// Package money provides the exact decimal arithmetic used for all monetary
// values. Amounts are never touched by binary floating point; they travel as
// decimal strings between the store and the arithmetic here.
package money

import (
	"github.com/shopspring/decimal"

	apperrors "github.com/heywood8/money-tracker-sub005/internal/errors"
)

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Add returns a + b exactly.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return a.Add(b)
}

// Subtract returns a - b exactly.
func Subtract(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b)
}

// Parse converts a decimal string into an amount. An empty string is treated
// as zero so optional columns scan cleanly.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid decimal amount: "+s)
	}
	return d, nil
}

// MustParse converts a decimal string literal and panics on malformed input.
// Intended for constants and test fixtures only.
func MustParse(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
