// Package settlement implements the annual operating-cost settlement
// (Betriebskostenabrechnung). It allocates a house's yearly costs to its
// tenants, prorates them by occupancy, adds metered water costs and nets the
// result against the monthly advance payments.
//
// Everything in this package except Service is pure: the same inputs always
// produce the same results, nothing is mutated, nothing returns an error.
package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mietevo/settlement-engine/generic"
)

// =============================================================================
// INPUTS
// =============================================================================

// CostSettlement is one house's settlement for one billing year.
type CostSettlement struct {
	ID        generic.SettlementID
	HouseID   generic.HouseID
	HouseName string
	Year      int

	// TotalArea is the declared living area of the house. Zero means absent;
	// the sum of the tenants' unit sizes is used instead.
	TotalArea decimal.Decimal

	WaterCostTotal        decimal.Decimal
	WaterConsumptionTotal decimal.Decimal

	CostItems []CostItem
}

// Period returns the billing window of the settlement.
func (s CostSettlement) Period() generic.Period {
	return generic.BillingYear(s.Year)
}

// CostItem is one cost category of a settlement (e.g. "Grundsteuer").
type CostItem struct {
	Name        string
	TotalAmount decimal.Decimal
	Method      AllocationMethod

	// RawMethod keeps the free-text method as entered, for display.
	RawMethod string
}

// Lease is one tenancy: a tenant living in a unit of the house.
type Lease struct {
	ID       generic.TenantID
	Name     string
	UnitID   generic.ApartmentID
	UnitName string
	UnitSize decimal.Decimal

	// MoveIn and MoveOut are stored dates. An empty or unparseable MoveIn
	// means the lease takes no part in the settlement; an empty or
	// unparseable MoveOut means the tenant still lives there.
	MoveIn  string
	MoveOut string

	// AdvancePayments is the history of monthly advance amounts, unsorted.
	AdvancePayments []AdvancePayment
}

// AdvancePayment is a monthly advance (Vorauszahlung) effective from a date.
type AdvancePayment struct {
	Amount        decimal.Decimal
	EffectiveDate string
}

// Invoice is a tenant-specific bill for a cost item allocated by invoice.
type Invoice struct {
	TenantID     generic.TenantID
	CostItemName string
	Amount       decimal.Decimal
}

// WaterMeterReading is a tenant's metered water consumption for a settlement,
// in cubic meters.
type WaterMeterReading struct {
	TenantID     generic.TenantID
	SettlementID generic.SettlementID
	Consumption  decimal.Decimal
}

// =============================================================================
// OUTPUTS
// =============================================================================

// CostAllocation is a tenant's part of one cost item.
type CostAllocation struct {
	Name        string
	TotalAmount decimal.Decimal
	Method      AllocationMethod

	// UnitPrice is the price per square meter; set only for MethodByArea.
	UnitPrice *decimal.Decimal

	// RawShare is the share before occupancy proration.
	RawShare decimal.Decimal

	// TenantShare is RawShare prorated by the tenant's occupancy.
	TenantShare decimal.Decimal
}

// WaterAllocation is a tenant's water cost.
type WaterAllocation struct {
	TotalBuildingCost        decimal.Decimal
	TotalBuildingConsumption decimal.Decimal
	Method                   string
	UnitPrice                decimal.Decimal
	Consumption              decimal.Decimal
	TenantShare              decimal.Decimal
}

// MonthlyAdvancePayment is the advance in effect for one month of the year.
type MonthlyAdvancePayment struct {
	Month         time.Month
	MonthLabel    string
	Amount        decimal.Decimal
	IsActiveMonth bool
}

// TenantSettlementResult is the complete settlement of one tenant.
type TenantSettlementResult struct {
	TenantID   generic.TenantID
	TenantName string
	UnitID     generic.ApartmentID
	UnitName   string
	UnitSize   decimal.Decimal

	// OccupancyFraction is a percentage in [0, 100].
	OccupancyFraction decimal.Decimal
	OccupiedDays      int
	TotalBillingDays  int

	CostAllocations        []CostAllocation
	Water                  WaterAllocation
	MonthlyAdvancePayments [12]MonthlyAdvancePayment

	TotalAdvancePaid decimal.Decimal
	TotalCostItems   decimal.Decimal
	TotalCostDue     decimal.Decimal

	// FinalBalance = TotalCostDue - TotalAdvancePaid. Positive: the tenant
	// pays the difference. Negative: the tenant gets a refund.
	FinalBalance decimal.Decimal
}

const (
	LabelSurcharge = "Nachzahlung"
	LabelCredit    = "Guthaben"
)

// IsRefund reports whether the tenant is owed money.
func (r TenantSettlementResult) IsRefund() bool {
	return r.FinalBalance.IsNegative()
}

// BalanceLabel returns "Nachzahlung" or "Guthaben".
func (r TenantSettlementResult) BalanceLabel() string {
	if r.IsRefund() {
		return LabelCredit
	}
	return LabelSurcharge
}
