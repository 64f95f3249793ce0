package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/mietevo/settlement-engine/generic"
)

// Occupancy is the part of a billing year a tenant lived in the unit.
type Occupancy struct {
	// Fraction is a percentage in [0, 100].
	Fraction     decimal.Decimal
	OccupiedDays int
	TotalDays    int
}

// Factor returns Fraction as a multiplier in [0, 1].
func (o Occupancy) Factor() decimal.Decimal {
	return o.Fraction.Div(generic.Hundred)
}

// ComputeOccupancy measures a lease against a billing year using the 30/360
// convention: every month has 30 days, the year 360, and both the first and
// the last occupied day count.
func ComputeOccupancy(moveIn, moveOut string, year int) Occupancy {
	none := Occupancy{Fraction: decimal.Zero, TotalDays: generic.DaysPerYear360}

	window, ok := occupiedWindow(moveIn, moveOut, year)
	if !ok {
		return none
	}

	days := window.Days360()
	if days < 0 {
		days = 0
	}
	if days > generic.DaysPerYear360 {
		days = generic.DaysPerYear360
	}

	fraction := decimal.NewFromInt(int64(days) * 100).Div(decimal.NewFromInt(generic.DaysPerYear360))
	return Occupancy{
		Fraction:     generic.Clamp(fraction, decimal.Zero, generic.Hundred),
		OccupiedDays: days,
		TotalDays:    generic.DaysPerYear360,
	}
}

// occupiedWindow clamps the lease to the billing year. It returns false when
// the lease has no usable move-in date or does not overlap the year.
func occupiedWindow(moveIn, moveOut string, year int) (generic.Period, bool) {
	billing := generic.BillingYear(year)

	in, ok := generic.ParseTimePoint(moveIn)
	if !ok || in.After(billing.End) {
		return generic.Period{}, false
	}

	end := billing.End
	if out, ok := generic.ParseTimePoint(moveOut); ok {
		if out.Before(billing.Start) {
			return generic.Period{}, false
		}
		end = out
	}

	window := generic.Period{Start: in, End: end}.Intersect(billing)
	if window.IsEmpty() {
		return generic.Period{}, false
	}
	return window, true
}
