/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built houses with tenants and a 2024 settlement, entered the
	same way the web app enters them: as records with parallel arrays that go
	through the settlement factory.

AVAILABLE SCENARIOS:

	grundsteuer:    Two full-year tenants, property tax by area
	mieterwechsel:  Tenant change mid-year, advance changes, invoices, water
	guthaben:       Undeclared total area, refunds, messy input arrays and
	                water consumption imported from meter readings

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create house and apartments
 3. Create tenants from LeaseJSON records
 4. Create the settlement from a SettlementJSON record
 5. Add invoices, water readings or meter readings

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "mieterwechsel"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase handler
  - factory/settlement.go: record formats
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mietevo/settlement-engine/factory"
	"github.com/mietevo/settlement-engine/generic"
	"github.com/mietevo/settlement-engine/meters"
	"github.com/mietevo/settlement-engine/settlement"
	"github.com/mietevo/settlement-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:           "grundsteuer",
		Name:         "Grundsteuer nach Fläche",
		Description:  "200 m² house, two full-year tenants, property tax split by area",
		SettlementID: "nk-grundsteuer-2024",
	},
	{
		ID:           "mieterwechsel",
		Name:         "Mieterwechsel",
		Description:  "Tenant change on 1 July, advance changes, heating invoices and metered water",
		SettlementID: "nk-mieterwechsel-2024",
	},
	{
		ID:           "guthaben",
		Name:         "Guthaben",
		Description:  "No declared area, high advances, mismatched cost arrays and imported meter readings",
		SettlementID: "nk-guthaben-2024",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.getCurrentScenario()
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, "Invalid request body", err)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		h.handleError(w, r, "Failed to load scenario", err)
		return
	}

	for _, s := range scenarios {
		if s.ID == req.ScenarioID {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	var load func(context.Context) error
	switch id {
	case "grundsteuer":
		load = h.loadGrundsteuerScenario
	case "mieterwechsel":
		load = h.loadMieterwechselScenario
	case "guthaben":
		load = h.loadGuthabenScenario
	default:
		return &generic.FieldError{Field: "scenario_id", Message: fmt.Sprintf("unknown scenario %q", id)}
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := load(ctx); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	h.setCurrentScenario(id)
	h.Logger.Info("scenario loaded", zap.String("scenario_id", id))
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// grundsteuer: 1000 EUR property tax over 200 m². The 50 m² tenant owes 250,
// the 150 m² tenant owes 750 against 720 in advances.
func (h *Handler) loadGrundsteuerScenario(ctx context.Context) error {
	if err := h.seedHouse(ctx,
		sqlite.House{ID: "haus-linden", Name: "Lindenstraße 4", Street: "Lindenstraße 4", City: "10115 Berlin", TotalArea: amount("200")},
		sqlite.Apartment{ID: "w-eg", Name: "Erdgeschoss", Size: amount("50")},
		sqlite.Apartment{ID: "w-og", Name: "Obergeschoss", Size: amount("150")},
	); err != nil {
		return err
	}

	if err := h.seedTenants(ctx,
		factory.LeaseJSON{ID: "m-anna", Name: "Anna Muster", ApartmentID: "w-eg", MoveIn: "2022-04-01"},
		factory.LeaseJSON{
			ID: "m-bernd", Name: "Bernd Beispiel", ApartmentID: "w-og", MoveIn: "2020-01-01",
			AdvanceAmounts: flexAmounts("60"), AdvanceDates: []string{"2020-01-01"},
		},
	); err != nil {
		return err
	}

	_, err := h.seedSettlement(ctx, factory.SettlementJSON{
		ID: "nk-grundsteuer-2024", HouseID: "haus-linden", Year: 2024,
		CostItemNames:   []string{"Grundsteuer"},
		CostItemAmounts: flexAmounts("1000"),
		CostItemMethods: []string{"pro qm"},
	})
	return err
}

// mieterwechsel: the left apartment changes hands on 1 July. Each of its
// tenants bears half a year of area costs; heating is billed per invoice and
// water per cubic meter.
func (h *Handler) loadMieterwechselScenario(ctx context.Context) error {
	if err := h.seedHouse(ctx,
		sqlite.House{ID: "haus-garten", Name: "Gartenweg 12", Street: "Gartenweg 12", City: "50667 Köln", TotalArea: amount("120")},
		sqlite.Apartment{ID: "w-links", Name: "Links", Size: amount("60")},
		sqlite.Apartment{ID: "w-rechts", Name: "Rechts", Size: amount("60")},
	); err != nil {
		return err
	}

	if err := h.seedTenants(ctx,
		factory.LeaseJSON{
			ID: "m-clara", Name: "Clara Alt", ApartmentID: "w-links",
			MoveIn: "2019-03-01", MoveOut: "2024-06-30",
			AdvanceAmounts: flexAmounts("80"), AdvanceDates: []string{"2019-03-01"},
		},
		factory.LeaseJSON{
			ID: "m-david", Name: "David Neu", ApartmentID: "w-links", MoveIn: "2024-07-01",
			AdvanceAmounts: flexAmounts("90", "110"),
			AdvanceDates:   []string{"2024-07-01", "2024-10-15"},
		},
		factory.LeaseJSON{
			ID: "m-eva", Name: "Eva Lang", ApartmentID: "w-rechts", MoveIn: "2021-01-01",
			AdvanceAmounts: flexAmounts("150"), AdvanceDates: []string{"2021-01-01"},
		},
	); err != nil {
		return err
	}

	st, err := h.seedSettlement(ctx, factory.SettlementJSON{
		ID: "nk-mieterwechsel-2024", HouseID: "haus-garten", Year: 2024,
		WaterCost:        flexPtr("900"),
		WaterConsumption: flexPtr("180"),
		CostItemNames:    []string{"Grundsteuer", "Gebäudeversicherung", "Heizung", "Kabelanschluss"},
		CostItemAmounts:  flexAmounts("1200", "480", "3600", "96"),
		CostItemMethods:  []string{"pro qm", "nach Fläche", "nach Rechnung", "pro Wohnung"},
	})
	if err != nil {
		return err
	}

	invoices := []settlement.Invoice{
		{TenantID: "m-clara", CostItemName: "Heizung", Amount: amount("820")},
		{TenantID: "m-david", CostItemName: "Heizung", Amount: amount("640")},
		{TenantID: "m-eva", CostItemName: "Heizung", Amount: amount("1540")},
	}
	for i, inv := range invoices {
		rec := sqlite.InvoiceRecord{ID: fmt.Sprintf("r-%d", i+1), SettlementID: st.ID, Invoice: inv}
		if err := h.Store.SaveInvoice(ctx, rec); err != nil {
			return err
		}
	}

	for tenantID, consumption := range map[generic.TenantID]string{"m-clara": "20", "m-david": "25", "m-eva": "60"} {
		if err := h.Store.SaveWaterReading(ctx, settlement.WaterMeterReading{
			TenantID: tenantID, SettlementID: st.ID, Consumption: amount(consumption),
		}); err != nil {
			return err
		}
	}
	return nil
}

// guthaben: no declared area, so the unit sizes add up to the total. Both
// tenants paid more than they owe. The cost arrays disagree in length and
// one method is unknown, which the factory reports as warnings.
func (h *Handler) loadGuthabenScenario(ctx context.Context) error {
	if err := h.seedHouse(ctx,
		sqlite.House{ID: "haus-markt", Name: "Am Markt 3", Street: "Am Markt 3", City: "04109 Leipzig"},
		sqlite.Apartment{ID: "w-1", Name: "Wohnung 1", Size: amount("45,5")},
		sqlite.Apartment{ID: "w-2", Name: "Wohnung 2", Size: amount("84,5")},
	); err != nil {
		return err
	}

	if err := h.seedTenants(ctx,
		factory.LeaseJSON{
			ID: "m-frieda", Name: "Frieda Fuchs", ApartmentID: "w-1", MoveIn: "2023-05-01",
			AdvanceAmounts: flexAmounts("120"), AdvanceDates: []string{"2023-05-01"},
		},
		factory.LeaseJSON{
			ID: "m-gustav", Name: "Gustav Graf", ApartmentID: "w-2", MoveIn: "2024-04-01",
			AdvanceAmounts: flexAmounts("200"), AdvanceDates: []string{"2024-04-01"},
		},
	); err != nil {
		return err
	}

	st, err := h.seedSettlement(ctx, factory.SettlementJSON{
		ID: "nk-guthaben-2024", HouseID: "haus-markt", Year: 2024,
		WaterCost:        flexPtr("520"),
		WaterConsumption: flexPtr("130"),
		CostItemNames:    []string{"Grundsteuer", "Müllabfuhr", "", "Treppenhausreinigung"},
		CostItemAmounts:  flexAmounts("650", "360", "130"),
		CostItemMethods:  []string{"Fläche", "nach Köpfen", "by_area", "pauschal"},
	})
	if err != nil {
		return err
	}

	for _, m := range []sqlite.Meter{
		{ID: "z-1", CustomID: "WZ-1001", ApartmentID: "w-1"},
		{ID: "z-2", CustomID: "WZ-1002", ApartmentID: "w-2"},
	} {
		if err := h.Store.SaveMeter(ctx, m); err != nil {
			return err
		}
	}
	readings := []meters.Reading{
		meterReading("WZ-1001", "2023-12-31", "310"),
		meterReading("WZ-1001", "2024-12-31", "352"),
		meterReading("WZ-1002", "2024-01-02", "1200"),
		meterReading("WZ-1002", "2024-12-30", "1288"),
	}
	_, err = h.Store.ImportMeterReadings(ctx, st.ID, readings)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) seedHouse(ctx context.Context, house sqlite.House, apartments ...sqlite.Apartment) error {
	if err := h.Store.SaveHouse(ctx, house); err != nil {
		return err
	}
	for _, a := range apartments {
		a.HouseID = house.ID
		if err := h.Store.SaveApartment(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedTenants(ctx context.Context, records ...factory.LeaseJSON) error {
	for _, rec := range records {
		if err := h.Store.SaveTenant(ctx, h.Factory.LeaseFromJSON(rec)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedSettlement(ctx context.Context, rec factory.SettlementJSON) (*settlement.CostSettlement, error) {
	house, err := h.Store.GetHouse(ctx, rec.HouseID)
	if err != nil {
		return nil, err
	}
	if rec.TotalArea == nil && house.TotalArea.IsPositive() {
		area := factory.NewFlexDecimal(house.TotalArea)
		rec.TotalArea = &area
	}

	st, warnings, err := h.Factory.SettlementFromJSON(rec)
	if err != nil {
		return nil, err
	}
	st.HouseName = house.Name
	for _, w := range warnings {
		h.Logger.Info("scenario input warning",
			zap.String("settlement_id", string(st.ID)),
			zap.String("warning", w.String()),
		)
	}
	return st, h.Store.SaveSettlement(ctx, st)
}

func amount(s string) decimal.Decimal {
	return generic.MustParseDecimal(s)
}

func flexAmounts(values ...string) []factory.FlexDecimal {
	out := make([]factory.FlexDecimal, len(values))
	for i, v := range values {
		out[i] = factory.NewFlexDecimal(amount(v))
	}
	return out
}

func flexPtr(s string) *factory.FlexDecimal {
	f := factory.NewFlexDecimal(amount(s))
	return &f
}

func meterReading(meterID, date, value string) meters.Reading {
	at, _ := generic.ParseTimePoint(date)
	return meters.Reading{MeterID: meterID, ReadAt: at, Value: amount(value)}
}
