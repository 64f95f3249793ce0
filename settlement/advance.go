package settlement

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mietevo/settlement-engine/generic"
)

var monthLabels = [12]string{
	"Januar", "Februar", "März", "April", "Mai", "Juni",
	"Juli", "August", "September", "Oktober", "November", "Dezember",
}

// MonthLabel returns the German name of a month.
func MonthLabel(m time.Month) string {
	return monthLabels[m-1]
}

type datedAdvance struct {
	at     generic.TimePoint
	amount decimal.Decimal
}

// MonthlySchedule reconstructs the advance payment in effect for each month
// of the billing year and sums the active months.
//
// A month is active when the tenant moved in on or before its last day and
// had not moved out before its first day. The amount for an active month is
// taken from the latest schedule entry effective on or before the month's
// first day; a change dated mid-month therefore takes effect the following
// month. Entries with unparseable dates are ignored.
func MonthlySchedule(entries []AdvancePayment, moveIn, moveOut string, year int) ([12]MonthlyAdvancePayment, decimal.Decimal) {
	schedule := sortedAdvances(entries)
	in, hasIn := generic.ParseTimePoint(moveIn)
	out, hasOut := generic.ParseTimePoint(moveOut)

	var months [12]MonthlyAdvancePayment
	total := decimal.Zero
	for i, month := range generic.Months(year) {
		active := hasIn && in.BeforeOrEqual(month.End) && (!hasOut || out.AfterOrEqual(month.Start))

		amount := decimal.Zero
		if active {
			amount = amountAt(schedule, month.Start)
		}
		months[i] = MonthlyAdvancePayment{
			Month:         time.Month(i + 1),
			MonthLabel:    monthLabels[i],
			Amount:        amount,
			IsActiveMonth: active,
		}
		total = total.Add(amount)
	}
	return months, total
}

func sortedAdvances(entries []AdvancePayment) []datedAdvance {
	schedule := make([]datedAdvance, 0, len(entries))
	for _, e := range entries {
		at, ok := generic.ParseTimePoint(e.EffectiveDate)
		if !ok {
			continue
		}
		schedule = append(schedule, datedAdvance{at: at, amount: e.Amount})
	}
	sort.SliceStable(schedule, func(i, j int) bool {
		return schedule[i].at.Before(schedule[j].at)
	})
	return schedule
}

// amountAt returns the amount of the latest entry effective on or before at.
func amountAt(schedule []datedAdvance, at generic.TimePoint) decimal.Decimal {
	i := sort.Search(len(schedule), func(i int) bool {
		return schedule[i].at.After(at)
	})
	if i == 0 {
		return decimal.Zero
	}
	return schedule[i-1].amount
}
