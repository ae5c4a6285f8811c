// Package core holds the rate/ledger domain: types, pricing arithmetic,
// input parsing and the calendar policies shared by every component.
//
// This file parses the two textual inputs the workflow accepts: a unit
// rate and a produced quantity.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseRate parses a unit rate from user text. Both dot (3.5) and comma
// (3,5) decimal separators are accepted. Negative values are rejected;
// zero is a valid rate.
//
// Examples:
//
//	ParseRate("3.5")  -> 3.5, nil
//	ParseRate("3,5")  -> 3.5, nil
//	ParseRate("0")    -> 0, nil
//	ParseRate("-1")   -> ErrInvalidRate
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidRate
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidRate
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidRate
	}
	return d, nil
}

// ParseQuantity parses a produced quantity: a plain non-negative integer
// literal, nothing else. Signs, decimals and grouping are all rejected so
// the workflow re-prompts instead of guessing.
func ParseQuantity(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidQuantity
	}
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidQuantity
		}
		if n > (1<<63-1-int64(r-'0'))/10 {
			return 0, ErrInvalidQuantity
		}
		n = n*10 + int64(r-'0')
	}
	return n, nil
}
