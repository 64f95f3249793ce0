package generic

import "time"

// =============================================================================
// PERIOD - Billing window
// =============================================================================

// Period is an inclusive date range [Start, End].
//
// Examples:
//   - Billing year 2024: Jan 1 - Dec 31
//   - Month March 2024: Mar 1 - Mar 31
//   - Tenancy inside a billing year: move-in (or Jan 1) - move-out (or Dec 31)
type Period struct {
	Start TimePoint
	End   TimePoint
}

// BillingYear returns the calendar-year billing window.
func BillingYear(year int) Period {
	return Period{Start: StartOfYear(year), End: EndOfYear(year)}
}

// MonthPeriod returns the period covering one calendar month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// Contains returns true if the time point is within the period [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// IsEmpty reports whether the period ends before it starts.
func (p Period) IsEmpty() bool {
	return p.End.Before(p.Start)
}

// Intersect clamps p to other. The result may be empty.
func (p Period) Intersect(other Period) Period {
	return Period{Start: Latest(p.Start, other.Start), End: Earliest(p.End, other.End)}
}

// Days360 returns the inclusive length of the period under the 30/360
// convention, or 0 for an empty period.
func (p Period) Days360() int {
	if p.IsEmpty() {
		return 0
	}
	return Days360(p.Start, p.End) + 1
}

// String returns a German representation of the period.
func (p Period) String() string {
	return p.Start.German() + " - " + p.End.German()
}

// Months returns the twelve month periods of a year, January first.
func Months(year int) [12]Period {
	var months [12]Period
	for i := range months {
		months[i] = MonthPeriod(year, time.Month(i+1))
	}
	return months
}
