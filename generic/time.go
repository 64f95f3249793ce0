package generic

import (
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Calendar day in UTC
// =============================================================================

// TimePoint is a calendar day. Settlements never care about time of day, so
// every TimePoint is normalized to midnight UTC.
type TimePoint struct {
	Time time.Time
}

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func FromTime(t time.Time) TimePoint {
	t = t.UTC()
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// Layouts accepted by ParseTimePoint, tried in order. Storage delivers ISO
// dates or timestamps; manual entry and CSV imports often use German dates.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02.01.2006",
}

// ParseTimePoint parses a date string. Empty or unparseable input returns false.
func ParseTimePoint(s string) (TimePoint, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimePoint{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), true
		}
	}
	return TimePoint{}, false
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func Earliest(a, b TimePoint) TimePoint {
	if a.Before(b) {
		return a
	}
	return b
}

func Latest(a, b TimePoint) TimePoint {
	if a.After(b) {
		return a
	}
	return b
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return FromTime(tp.Time.AddDate(0, 0, n)) }
func (tp TimePoint) AddMonths(n int) TimePoint { return FromTime(tp.Time.AddDate(0, n, 0)) }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

func (tp TimePoint) String() string { return tp.Time.Format("2006-01-02") }

// German returns the date as DD.MM.YYYY.
func (tp TimePoint) German() string { return tp.Time.Format("02.01.2006") }

// =============================================================================
// 30/360 DAY COUNT
// =============================================================================

// DaysPerYear360 is the length of a year under the 30/360 convention.
const DaysPerYear360 = 360

// Days360 returns the day difference between from and to under the 30/360
// convention: every month has 30 days and a day-of-month of 31 counts as 30.
// The result is to-from, exclusive of the end day; it is negative when to is
// before from.
func Days360(from, to TimePoint) int {
	d1 := from.Day()
	if d1 == 31 {
		d1 = 30
	}
	d2 := to.Day()
	if d2 == 31 {
		d2 = 30
	}
	return (to.Year()-from.Year())*360 + (int(to.Month())-int(from.Month()))*30 + (d2 - d1)
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func StartOfYear(year int) TimePoint                    { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint                      { return NewTimePoint(year, time.December, 31) }
func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	return FromTime(time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}
