package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/heywood8/money-tracker-sub005/internal/money"
)

func mustDecimal(s string) decimal.Decimal {
	return money.MustParse(s)
}

// utcDate builds a UTC timestamp at midnight, the granularity the snapshot
// store keys on.
func utcDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
