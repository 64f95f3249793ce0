package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/mietevo/settlement-engine/generic"
)

// WaterShare is the result of the consumption-based water allocation.
type WaterShare struct {
	UnitPrice   decimal.Decimal
	TenantShare decimal.Decimal
}

// ComputeWaterShare prices the tenant's consumption at the building's average
// price per cubic meter. A building consumption of zero yields a zero price.
func ComputeWaterShare(totalCost, totalConsumption, tenantConsumption decimal.Decimal) WaterShare {
	price := generic.SafeDiv(totalCost, totalConsumption)
	return WaterShare{
		UnitPrice:   price,
		TenantShare: price.Mul(tenantConsumption),
	}
}

type readingKey struct {
	tenant     generic.TenantID
	settlement generic.SettlementID
}

// ReadingIndex looks up a tenant's consumption for a settlement.
type ReadingIndex map[readingKey]decimal.Decimal

// NewReadingIndex indexes readings by tenant and settlement; the first reading
// per pair wins.
func NewReadingIndex(readings []WaterMeterReading) ReadingIndex {
	idx := make(ReadingIndex, len(readings))
	for _, r := range readings {
		k := readingKey{tenant: r.TenantID, settlement: r.SettlementID}
		if _, ok := idx[k]; ok {
			continue
		}
		idx[k] = r.Consumption
	}
	return idx
}

// Consumption returns the tenant's consumption, or zero without a reading.
func (idx ReadingIndex) Consumption(tenant generic.TenantID, settlement generic.SettlementID) decimal.Decimal {
	if c, ok := idx[readingKey{tenant: tenant, settlement: settlement}]; ok {
		return c
	}
	return decimal.Zero
}
