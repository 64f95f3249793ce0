/*
Package factory converts stored and submitted records into settlement inputs.

PURPOSE:
  The web app stores a settlement's cost items and a tenant's advance payments
  as parallel arrays (names[i], amounts[i], methods[i]). This package zips them
  into structured settlement types at the boundary, so the calculation core
  never sees index-aligned arrays or free-text allocation methods.

JSON SCHEMA (settlement):
  {
    "id": "nk-2024-1",
    "house_id": "haus-1",
    "year": 2024,
    "total_area": 200,
    "water_cost": 600,
    "water_consumption": 150,
    "cost_item_names":   ["Grundsteuer", "Hauswart"],
    "cost_item_amounts": [1000, "240,00"],
    "cost_item_methods": ["pro qm", "pauschal"]
  }

JSON SCHEMA (lease):
  {
    "id": "mieter-1",
    "name": "Anna Muster",
    "apartment_id": "w-1",
    "move_in": "2024-01-01",
    "advance_amounts": [100, 150],
    "advance_dates":   ["2024-01-01", "2024-06-01"]
  }

BOUNDARY RULES:
  - Parallel arrays of unequal length are zipped to the shortest one
  - A null or unparseable cost amount counts as 0
  - An empty cost item name becomes "Kostenart N"
  - An unparseable or null advance amount drops the (amount, date) pair
  - An unknown allocation method becomes "fixed" and yields a Warning

USAGE:
  f := factory.NewSettlementFactory()
  s, warnings, err := f.ParseSettlement(body)

SEE ALSO:
  - settlement/method.go: allocation method mapping table
  - api/handlers.go: uses the factory for POST bodies
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mietevo/settlement-engine/generic"
	"github.com/mietevo/settlement-engine/settlement"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SettlementJSON is the record form of a cost settlement.
type SettlementJSON struct {
	ID               string        `json:"id"`
	HouseID          string        `json:"house_id" validate:"required"`
	HouseName        string        `json:"house_name,omitempty"`
	Year             int           `json:"year" validate:"gte=1900,lte=2999"`
	TotalArea        *FlexDecimal  `json:"total_area,omitempty"`
	WaterCost        *FlexDecimal  `json:"water_cost,omitempty"`
	WaterConsumption *FlexDecimal  `json:"water_consumption,omitempty"`
	CostItemNames    []string      `json:"cost_item_names"`
	CostItemAmounts  []FlexDecimal `json:"cost_item_amounts"`
	CostItemMethods  []string      `json:"cost_item_methods"`
}

// LeaseJSON is the record form of a tenant.
type LeaseJSON struct {
	ID             string        `json:"id"`
	Name           string        `json:"name" validate:"required"`
	ApartmentID    string        `json:"apartment_id" validate:"required"`
	ApartmentName  string        `json:"apartment_name,omitempty"`
	ApartmentSize  *FlexDecimal  `json:"apartment_size,omitempty"`
	MoveIn         string        `json:"move_in"`
	MoveOut        string        `json:"move_out,omitempty"`
	AdvanceAmounts []FlexDecimal `json:"advance_amounts"`
	AdvanceDates   []string      `json:"advance_dates"`
}

// FlexDecimal accepts a JSON number, a numeric string (German decimal commas
// allowed) or null. Valid is false for null and unparseable input.
type FlexDecimal struct {
	Value decimal.Decimal
	Valid bool
}

// NewFlexDecimal wraps a valid value.
func NewFlexDecimal(d decimal.Decimal) FlexDecimal {
	return FlexDecimal{Value: d, Valid: true}
}

// UnmarshalJSON never fails on malformed values; they decode as invalid.
func (f *FlexDecimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = FlexDecimal{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return nil
		}
		s = str
	}
	if d, ok := generic.ParseDecimal(s); ok {
		*f = FlexDecimal{Value: d, Valid: true}
	}
	return nil
}

func (f FlexDecimal) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(f.Value.String()), nil
}

// OrZero returns the value, or zero when invalid.
func (f *FlexDecimal) OrZero() decimal.Decimal {
	if f == nil || !f.Valid {
		return decimal.Zero
	}
	return f.Value
}

// Warning is a non-fatal ingestion finding, surfaced to the user.
type Warning struct {
	Field   string `json:"field"`
	Index   int    `json:"index"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s[%d]: %s", w.Field, w.Index, w.Message)
}

// =============================================================================
// SETTLEMENT FACTORY
// =============================================================================

// SettlementFactory converts records to settlement inputs.
type SettlementFactory struct{}

// NewSettlementFactory creates a new settlement factory.
func NewSettlementFactory() *SettlementFactory {
	return &SettlementFactory{}
}

// ParseSettlement parses a JSON settlement record.
func (f *SettlementFactory) ParseSettlement(data []byte) (*settlement.CostSettlement, []Warning, error) {
	var sj SettlementJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return nil, nil, fmt.Errorf("failed to parse settlement JSON: %w", err)
	}
	return f.SettlementFromJSON(sj)
}

// SettlementFromJSON zips the cost item arrays and maps allocation methods.
func (f *SettlementFactory) SettlementFromJSON(sj SettlementJSON) (*settlement.CostSettlement, []Warning, error) {
	if sj.Year < 1900 || sj.Year > 2999 {
		return nil, nil, fmt.Errorf("%w: %d", generic.ErrInvalidYear, sj.Year)
	}
	if strings.TrimSpace(sj.HouseID) == "" {
		return nil, nil, &generic.FieldError{Field: "house_id", Message: "required"}
	}

	items, warnings := ZipCostItems(sj.CostItemNames, sj.CostItemAmounts, sj.CostItemMethods)
	s := &settlement.CostSettlement{
		ID:                    generic.SettlementID(sj.ID),
		HouseID:               generic.HouseID(sj.HouseID),
		HouseName:             sj.HouseName,
		Year:                  sj.Year,
		TotalArea:             sj.TotalArea.OrZero(),
		WaterCostTotal:        sj.WaterCost.OrZero(),
		WaterConsumptionTotal: sj.WaterConsumption.OrZero(),
		CostItems:             items,
	}
	return s, warnings, nil
}

// SettlementToJSON converts a settlement back to its record form.
func (f *SettlementFactory) SettlementToJSON(s *settlement.CostSettlement) SettlementJSON {
	area := NewFlexDecimal(s.TotalArea)
	cost := NewFlexDecimal(s.WaterCostTotal)
	consumption := NewFlexDecimal(s.WaterConsumptionTotal)
	sj := SettlementJSON{
		ID:               string(s.ID),
		HouseID:          string(s.HouseID),
		HouseName:        s.HouseName,
		Year:             s.Year,
		TotalArea:        &area,
		WaterCost:        &cost,
		WaterConsumption: &consumption,
		CostItemNames:    make([]string, 0, len(s.CostItems)),
		CostItemAmounts:  make([]FlexDecimal, 0, len(s.CostItems)),
		CostItemMethods:  make([]string, 0, len(s.CostItems)),
	}
	for _, item := range s.CostItems {
		method := item.RawMethod
		if method == "" {
			method = string(item.Method)
		}
		sj.CostItemNames = append(sj.CostItemNames, item.Name)
		sj.CostItemAmounts = append(sj.CostItemAmounts, NewFlexDecimal(item.TotalAmount))
		sj.CostItemMethods = append(sj.CostItemMethods, method)
	}
	return sj
}

// ParseLease parses a JSON lease record. Apartment name and size are taken
// from the record; stores usually overwrite them from the apartment.
func (f *SettlementFactory) ParseLease(data []byte) (settlement.Lease, error) {
	var lj LeaseJSON
	if err := json.Unmarshal(data, &lj); err != nil {
		return settlement.Lease{}, fmt.Errorf("failed to parse lease JSON: %w", err)
	}
	return f.LeaseFromJSON(lj), nil
}

// LeaseFromJSON zips the advance payment arrays.
func (f *SettlementFactory) LeaseFromJSON(lj LeaseJSON) settlement.Lease {
	return settlement.Lease{
		ID:              generic.TenantID(lj.ID),
		Name:            lj.Name,
		UnitID:          generic.ApartmentID(lj.ApartmentID),
		UnitName:        lj.ApartmentName,
		UnitSize:        lj.ApartmentSize.OrZero(),
		MoveIn:          lj.MoveIn,
		MoveOut:         lj.MoveOut,
		AdvancePayments: ZipAdvancePayments(lj.AdvanceAmounts, lj.AdvanceDates),
	}
}

// LeaseToJSON converts a lease back to its record form.
func (f *SettlementFactory) LeaseToJSON(l settlement.Lease) LeaseJSON {
	size := NewFlexDecimal(l.UnitSize)
	lj := LeaseJSON{
		ID:             string(l.ID),
		Name:           l.Name,
		ApartmentID:    string(l.UnitID),
		ApartmentName:  l.UnitName,
		ApartmentSize:  &size,
		MoveIn:         l.MoveIn,
		MoveOut:        l.MoveOut,
		AdvanceAmounts: make([]FlexDecimal, 0, len(l.AdvancePayments)),
		AdvanceDates:   make([]string, 0, len(l.AdvancePayments)),
	}
	for _, ap := range l.AdvancePayments {
		lj.AdvanceAmounts = append(lj.AdvanceAmounts, NewFlexDecimal(ap.Amount))
		lj.AdvanceDates = append(lj.AdvanceDates, ap.EffectiveDate)
	}
	return lj
}

// =============================================================================
// ZIPPING HELPERS
// =============================================================================

// ZipCostItems builds cost items from parallel arrays, truncating to the
// shortest array.
func ZipCostItems(names []string, amounts []FlexDecimal, methods []string) ([]settlement.CostItem, []Warning) {
	n := minLen(len(names), len(amounts), len(methods))
	var warnings []Warning
	if len(names) != n || len(amounts) != n || len(methods) != n {
		warnings = append(warnings, Warning{
			Field: "cost_items",
			Index: n,
			Message: fmt.Sprintf("array lengths differ (names=%d, amounts=%d, methods=%d); using the first %d entries",
				len(names), len(amounts), len(methods), n),
		})
	}

	items := make([]settlement.CostItem, 0, n)
	for i := 0; i < n; i++ {
		method, ok := settlement.ParseAllocationMethod(methods[i])
		if !ok {
			warnings = append(warnings, Warning{
				Field:   "cost_item_methods",
				Index:   i,
				Message: fmt.Sprintf("unknown allocation method %q, charging as fixed", methods[i]),
			})
		}
		items = append(items, settlement.CostItem{
			Name:        settlement.CostItemName(strings.TrimSpace(names[i]), i),
			TotalAmount: amounts[i].OrZero(),
			Method:      method,
			RawMethod:   methods[i],
		})
	}
	return items, warnings
}

// ZipAdvancePayments builds the advance payment history from parallel arrays,
// truncating to the shorter one. Pairs without a valid amount are dropped;
// unparseable dates are kept and ignored later by the scheduler.
func ZipAdvancePayments(amounts []FlexDecimal, dates []string) []settlement.AdvancePayment {
	n := minLen(len(amounts), len(dates))
	payments := make([]settlement.AdvancePayment, 0, n)
	for i := 0; i < n; i++ {
		if !amounts[i].Valid {
			continue
		}
		payments = append(payments, settlement.AdvancePayment{
			Amount:        amounts[i].Value,
			EffectiveDate: dates[i],
		})
	}
	return payments
}

func minLen(lengths ...int) int {
	n := lengths[0]
	for _, l := range lengths[1:] {
		if l < n {
			n = l
		}
	}
	return n
}
