/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  settlement types from the external contract. Amounts are decimals and
  encode as JSON strings ("250.5") so no precision is lost in transit.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Houses:       HouseDTO, CreateHouseRequest, ApartmentDTO, CreateApartmentRequest
  Tenants:      factory.LeaseJSON (request and response)
  Settlements:  SettlementResponse, InvoiceDTO, WaterReadingDTO
  Meters:       MeterDTO, ImportResponse
  Results:      ResultsResponse, TenantResultDTO
  Scenarios:    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry validator tags, checked by Handler.decode.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/settlement.go: SettlementJSON and LeaseJSON
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/mietevo/settlement-engine/factory"
	"github.com/mietevo/settlement-engine/meters"
	"github.com/mietevo/settlement-engine/settlement"
	"github.com/mietevo/settlement-engine/store/sqlite"
)

// =============================================================================
// HOUSES
// =============================================================================

// HouseDTO represents a house in API responses.
type HouseDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Street    string          `json:"street,omitempty"`
	City      string          `json:"city,omitempty"`
	TotalArea decimal.Decimal `json:"total_area"`
}

// CreateHouseRequest is the body for creating a house. ID is generated when
// empty.
type CreateHouseRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name" validate:"required"`
	Street    string          `json:"street"`
	City      string          `json:"city"`
	TotalArea decimal.Decimal `json:"total_area"`
}

// ApartmentDTO represents an apartment in API responses.
type ApartmentDTO struct {
	ID      string          `json:"id"`
	HouseID string          `json:"house_id"`
	Name    string          `json:"name"`
	Size    decimal.Decimal `json:"size"`
}

// CreateApartmentRequest is the body for creating an apartment.
type CreateApartmentRequest struct {
	ID   string          `json:"id"`
	Name string          `json:"name" validate:"required"`
	Size decimal.Decimal `json:"size"`
}

func toHouseDTO(h sqlite.House) HouseDTO {
	return HouseDTO{ID: h.ID, Name: h.Name, Street: h.Street, City: h.City, TotalArea: h.TotalArea}
}

func toApartmentDTO(a sqlite.Apartment) ApartmentDTO {
	return ApartmentDTO{ID: a.ID, HouseID: a.HouseID, Name: a.Name, Size: a.Size}
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

// SettlementResponse is a settlement record plus the findings of zipping its
// parallel arrays.
type SettlementResponse struct {
	factory.SettlementJSON
	Warnings []factory.Warning `json:"warnings,omitempty"`
}

// InvoiceDTO is a tenant-specific bill for a by-invoice cost item.
type InvoiceDTO struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id" validate:"required"`
	CostItemName string          `json:"cost_item_name" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
}

// WaterReadingDTO is a tenant's consumption in cubic meters.
type WaterReadingDTO struct {
	TenantID    string          `json:"tenant_id" validate:"required"`
	Consumption decimal.Decimal `json:"consumption"`
}

// =============================================================================
// METERS
// =============================================================================

// MeterDTO is a registered water meter.
type MeterDTO struct {
	ID          string `json:"id"`
	CustomID    string `json:"custom_id" validate:"required"`
	ApartmentID string `json:"apartment_id" validate:"required"`
}

// ImportResponse summarizes a meter reading upload.
type ImportResponse struct {
	Parsed        int                        `json:"parsed"`
	Stored        int                        `json:"stored"`
	Rejected      []meters.RowError          `json:"rejected"`
	UnknownMeters []string                   `json:"unknown_meters"`
	Consumption   map[string]decimal.Decimal `json:"consumption"`
}

// =============================================================================
// RESULTS
// =============================================================================

// ResultsResponse wraps the computed results of a settlement.
type ResultsResponse struct {
	SettlementID string            `json:"settlement_id"`
	HouseName    string            `json:"house_name"`
	Year         int               `json:"year"`
	Mode         settlement.Mode   `json:"mode"`
	Results      []TenantResultDTO `json:"results"`
}

// TenantResultDTO is one tenant's settlement.
type TenantResultDTO struct {
	TenantID          string          `json:"tenant_id"`
	TenantName        string          `json:"tenant_name"`
	UnitID            string          `json:"unit_id"`
	UnitName          string          `json:"unit_name"`
	UnitSize          decimal.Decimal `json:"unit_size"`
	OccupancyFraction decimal.Decimal `json:"occupancy_fraction"`
	OccupiedDays      int             `json:"occupied_days"`
	TotalBillingDays  int             `json:"total_billing_days"`

	CostAllocations        []CostAllocationDTO `json:"cost_allocations"`
	Water                  WaterAllocationDTO  `json:"water"`
	MonthlyAdvancePayments []MonthlyAdvanceDTO `json:"monthly_advance_payments"`

	TotalAdvancePaid decimal.Decimal `json:"total_advance_paid"`
	TotalCostItems   decimal.Decimal `json:"total_cost_items"`
	TotalCostDue     decimal.Decimal `json:"total_cost_due"`
	FinalBalance     decimal.Decimal `json:"final_balance"`
	BalanceLabel     string          `json:"balance_label"`
}

// CostAllocationDTO is a tenant's part of one cost item.
type CostAllocationDTO struct {
	Name        string           `json:"name"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Method      string           `json:"method"`
	MethodLabel string           `json:"method_label"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	RawShare    decimal.Decimal  `json:"raw_share"`
	TenantShare decimal.Decimal  `json:"tenant_share"`
}

// WaterAllocationDTO is a tenant's water cost.
type WaterAllocationDTO struct {
	TotalBuildingCost        decimal.Decimal `json:"total_building_cost"`
	TotalBuildingConsumption decimal.Decimal `json:"total_building_consumption"`
	Method                   string          `json:"method"`
	UnitPrice                decimal.Decimal `json:"unit_price"`
	Consumption              decimal.Decimal `json:"consumption"`
	TenantShare              decimal.Decimal `json:"tenant_share"`
}

// MonthlyAdvanceDTO is the advance in effect for one month.
type MonthlyAdvanceDTO struct {
	Month         int             `json:"month"`
	MonthLabel    string          `json:"month_label"`
	Amount        decimal.Decimal `json:"amount"`
	IsActiveMonth bool            `json:"is_active_month"`
}

func toTenantResultDTO(r settlement.TenantSettlementResult) TenantResultDTO {
	dto := TenantResultDTO{
		TenantID:          string(r.TenantID),
		TenantName:        r.TenantName,
		UnitID:            string(r.UnitID),
		UnitName:          r.UnitName,
		UnitSize:          r.UnitSize,
		OccupancyFraction: r.OccupancyFraction,
		OccupiedDays:      r.OccupiedDays,
		TotalBillingDays:  r.TotalBillingDays,
		CostAllocations:   make([]CostAllocationDTO, len(r.CostAllocations)),
		Water: WaterAllocationDTO{
			TotalBuildingCost:        r.Water.TotalBuildingCost,
			TotalBuildingConsumption: r.Water.TotalBuildingConsumption,
			Method:                   r.Water.Method,
			UnitPrice:                r.Water.UnitPrice,
			Consumption:              r.Water.Consumption,
			TenantShare:              r.Water.TenantShare,
		},
		MonthlyAdvancePayments: make([]MonthlyAdvanceDTO, len(r.MonthlyAdvancePayments)),
		TotalAdvancePaid:       r.TotalAdvancePaid,
		TotalCostItems:         r.TotalCostItems,
		TotalCostDue:           r.TotalCostDue,
		FinalBalance:           r.FinalBalance,
		BalanceLabel:           r.BalanceLabel(),
	}
	for i, a := range r.CostAllocations {
		dto.CostAllocations[i] = CostAllocationDTO{
			Name:        a.Name,
			TotalAmount: a.TotalAmount,
			Method:      string(a.Method),
			MethodLabel: a.Method.Label(),
			UnitPrice:   a.UnitPrice,
			RawShare:    a.RawShare,
			TenantShare: a.TenantShare,
		}
	}
	for i, m := range r.MonthlyAdvancePayments {
		dto.MonthlyAdvancePayments[i] = MonthlyAdvanceDTO{
			Month:         int(m.Month),
			MonthLabel:    m.MonthLabel,
			Amount:        m.Amount,
			IsActiveMonth: m.IsActiveMonth,
		}
	}
	return dto
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// SettlementID is the settlement the scenario creates.
	SettlementID string `json:"settlement_id"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
