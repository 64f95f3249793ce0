/*
Package generic provides the domain-agnostic primitives of the settlement engine.

PURPOSE:
  This package contains the small building blocks every other package leans on:
  exact decimal arithmetic for money and areas, identifier types, lenient date
  parsing, the 30/360 day-count convention, billing periods and the error
  taxonomy. It knows nothing about tenants or cost items.

KEY CONCEPTS IN THIS FILE (types.go):
  - Decimal helpers: parsing, safe division, clamping
  - Identifiers: type-safe IDs for houses, apartments, tenants, settlements

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing tenant/settlement IDs
  3. Total functions: helpers default instead of failing on malformed input

USAGE:
  price := generic.SafeDiv(total, area)   // zero when area <= 0
  share := price.Mul(unitSize)

SEE ALSO:
  - time.go: TimePoint and the 30/360 day count
  - period.go: Billing periods and month ranges
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type HouseID string
type ApartmentID string
type TenantID string
type SettlementID string

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

var (
	Hundred = decimal.NewFromInt(100)
)

// ParseDecimal parses a decimal from user or storage input. German decimal
// commas are accepted ("1234,56"). Returns false for empty or invalid input.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// MustParseDecimal parses s or returns zero.
func MustParseDecimal(s string) decimal.Decimal {
	d, _ := ParseDecimal(s)
	return d
}

// SafeDiv returns a/b, or zero when b is not strictly positive.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if !b.IsPositive() {
		return decimal.Zero
	}
	return a.Div(b)
}

// Clamp limits d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
