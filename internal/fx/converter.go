// Package fx defines the currency conversion collaborator consumed by the
// ledger for cross-currency transfers. Rate fetching lives outside the core;
// the engine only sees a pure conversion function.
package fx

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Converter converts an amount between two ISO 4217 currencies. It returns
// the converted amount and the rate that was applied.
type Converter interface {
	Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, decimal.Decimal, error)
}

// RateTable is a Converter backed by a fixed map of "FROM/TO" rates. The
// mobile shell feeds it whatever rates it last fetched; tests seed it
// directly.
type RateTable struct {
	rates map[string]decimal.Decimal
}

// NewRateTable creates an empty rate table.
func NewRateTable() *RateTable {
	return &RateTable{rates: make(map[string]decimal.Decimal)}
}

// Set stores the rate for converting one unit of from into to.
func (r *RateTable) Set(from, to string, rate decimal.Decimal) {
	r.rates[from+"/"+to] = rate
}

// Convert applies the stored rate. Same-currency conversion is the identity
// with rate 1.
func (r *RateTable) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, decimal.Decimal, error) {
	if from == to {
		return amount, decimal.NewFromInt(1), nil
	}
	rate, ok := r.rates[from+"/"+to]
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("no exchange rate for %s/%s", from, to)
	}
	return amount.Mul(rate), rate, nil
}
