package generic

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimePoint_Layouts(t *testing.T) {
	want := NewTimePoint(2024, time.March, 5)

	for _, s := range []string{
		"2024-03-05",
		"2024-03-05T00:00:00Z",
		"2024-03-05T12:30:00",
		"2024-03-05 23:59:59",
		"05.03.2024",
		"  2024-03-05 ",
	} {
		got, ok := ParseTimePoint(s)
		require.True(t, ok, s)
		assert.True(t, want.Equal(got), "%q parsed as %s", s, got)
	}
}

func TestParseTimePoint_Invalid(t *testing.T) {
	for _, s := range []string{"", "   ", "morgen", "2024-13-01", "31.02.2024"} {
		_, ok := ParseTimePoint(s)
		assert.False(t, ok, s)
	}
}

func TestDays360(t *testing.T) {
	tests := []struct {
		name     string
		from, to TimePoint
		want     int
	}{
		{"same day", NewTimePoint(2024, 1, 1), NewTimePoint(2024, 1, 1), 0},
		{"full year", NewTimePoint(2024, 1, 1), NewTimePoint(2024, 12, 31), 359},
		{"one month", NewTimePoint(2024, 3, 1), NewTimePoint(2024, 4, 1), 30},
		{"31st counts as 30th", NewTimePoint(2024, 1, 31), NewTimePoint(2024, 2, 1), 1},
		{"february end", NewTimePoint(2024, 2, 1), NewTimePoint(2024, 2, 29), 28},
		{"across years", NewTimePoint(2023, 12, 1), NewTimePoint(2024, 1, 1), 30},
		{"reversed", NewTimePoint(2024, 2, 1), NewTimePoint(2024, 1, 1), -30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Days360(tt.from, tt.to))
		})
	}
}

func TestPeriod_Days360(t *testing.T) {
	assert.Equal(t, 360, BillingYear(2024).Days360())
	assert.Equal(t, 360, BillingYear(2023).Days360())
	assert.Equal(t, 30, MonthPeriod(2024, time.January).Days360())

	empty := Period{Start: NewTimePoint(2024, 6, 1), End: NewTimePoint(2024, 5, 1)}
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, 0, empty.Days360())
}

func TestPeriod_Intersect(t *testing.T) {
	lease := Period{Start: NewTimePoint(2023, 10, 1), End: NewTimePoint(2024, 3, 15)}

	got := lease.Intersect(BillingYear(2024))

	assert.Equal(t, "01.01.2024 - 15.03.2024", got.String())
	assert.True(t, got.Contains(NewTimePoint(2024, 2, 29)))
	assert.False(t, got.Contains(NewTimePoint(2024, 3, 16)))
}

func TestMonths(t *testing.T) {
	months := Months(2024)

	assert.Equal(t, "2024-01-01", months[0].Start.String())
	assert.Equal(t, "2024-02-29", months[1].End.String())
	assert.Equal(t, "2024-12-31", months[11].End.String())
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1234.56", "1234.56", true},
		{"1234,56", "1234.56", true},
		{"1.234,56", "1234.56", true},
		{" 42 ", "42", true},
		{"", "0", false},
		{"zwölf", "0", false},
	}
	for _, tt := range tests {
		got, ok := ParseDecimal(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "%q -> %s", tt.in, got)
	}
}

func TestSafeDiv(t *testing.T) {
	assert.True(t, SafeDiv(decimal.NewFromInt(10), decimal.Zero).IsZero())
	assert.True(t, SafeDiv(decimal.NewFromInt(10), decimal.NewFromInt(-2)).IsZero())
	assert.True(t, decimal.NewFromInt(5).Equal(SafeDiv(decimal.NewFromInt(10), decimal.NewFromInt(2))))
}
