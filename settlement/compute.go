package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/mietevo/settlement-engine/generic"
)

// =============================================================================
// SETTLEMENT AGGREGATOR
// =============================================================================

// Mode selects which tenants Compute settles.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeAll    Mode = "all"
)

// ParseMode validates a mode string. Empty input means ModeAll.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSingle:
		return ModeSingle, nil
	case ModeAll, "":
		return ModeAll, nil
	default:
		return "", generic.ErrInvalidMode
	}
}

// Compute settles the tenants of a house for one billing year.
//
// In ModeAll every lease is settled, in input order. In ModeSingle only the
// lease with the selected ID is settled; an unknown ID yields no results.
// A nil settlement or an empty lease list yields no results.
//
// All leases take part in the total-area fallback, regardless of mode, so a
// tenant's share does not depend on which tenants are displayed.
func Compute(
	s *CostSettlement,
	leases []Lease,
	invoices []Invoice,
	readings []WaterMeterReading,
	mode Mode,
	selected generic.TenantID,
) []TenantSettlementResult {
	if s == nil || len(leases) == 0 {
		return []TenantSettlementResult{}
	}

	totalArea := EffectiveTotalArea(s.TotalArea, leases)
	invoiceIdx := NewInvoiceIndex(invoices)
	readingIdx := NewReadingIndex(readings)

	results := make([]TenantSettlementResult, 0, len(leases))
	for _, lease := range leases {
		if mode == ModeSingle && lease.ID != selected {
			continue
		}
		results = append(results, settleTenant(s, lease, totalArea, invoiceIdx, readingIdx))
	}
	return results
}

// settleTenant runs occupancy, advances, cost and water allocation for one
// lease and nets the costs against the advances.
func settleTenant(
	s *CostSettlement,
	lease Lease,
	totalArea decimal.Decimal,
	invoices InvoiceIndex,
	readings ReadingIndex,
) TenantSettlementResult {
	occ := ComputeOccupancy(lease.MoveIn, lease.MoveOut, s.Year)
	factor := occ.Factor()

	allocations := AllocateCosts(s.CostItems, lease, totalArea, invoices)
	costTotal := decimal.Zero
	for i := range allocations {
		allocations[i].TenantShare = allocations[i].RawShare.Mul(factor)
		costTotal = costTotal.Add(allocations[i].TenantShare)
	}

	// Water follows metered consumption and is not prorated by occupancy.
	consumption := readings.Consumption(lease.ID, s.ID)
	water := ComputeWaterShare(s.WaterCostTotal, s.WaterConsumptionTotal, consumption)

	months, advanceTotal := MonthlySchedule(lease.AdvancePayments, lease.MoveIn, lease.MoveOut, s.Year)

	due := costTotal.Add(water.TenantShare)
	return TenantSettlementResult{
		TenantID:          lease.ID,
		TenantName:        lease.Name,
		UnitID:            lease.UnitID,
		UnitName:          lease.UnitName,
		UnitSize:          lease.UnitSize,
		OccupancyFraction: occ.Fraction,
		OccupiedDays:      occ.OccupiedDays,
		TotalBillingDays:  occ.TotalDays,
		CostAllocations:   allocations,
		Water: WaterAllocation{
			TotalBuildingCost:        s.WaterCostTotal,
			TotalBuildingConsumption: s.WaterConsumptionTotal,
			Method:                   WaterMethodLabel,
			UnitPrice:                water.UnitPrice,
			Consumption:              consumption,
			TenantShare:              water.TenantShare,
		},
		MonthlyAdvancePayments: months,
		TotalAdvancePaid:       advanceTotal,
		TotalCostItems:         costTotal,
		TotalCostDue:           due,
		FinalBalance:           due.Sub(advanceTotal),
	}
}
