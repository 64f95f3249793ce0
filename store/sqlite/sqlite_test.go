package sqlite

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mietevo/settlement-engine/generic"
	"github.com/mietevo/settlement-engine/meters"
	"github.com/mietevo/settlement-engine/settlement"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedHouse creates a house with two apartments, two tenants and a settlement.
func seedHouse(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SaveHouse(ctx, House{ID: "h-1", Name: "Lindenstraße 4", TotalArea: decimal.NewFromInt(200)}))
	require.NoError(t, store.SaveApartment(ctx, Apartment{ID: "w-1", HouseID: "h-1", Name: "EG", Size: decimal.NewFromInt(50)}))
	require.NoError(t, store.SaveApartment(ctx, Apartment{ID: "w-2", HouseID: "h-1", Name: "OG", Size: decimal.NewFromInt(150)}))
	require.NoError(t, store.SaveTenant(ctx, settlement.Lease{
		ID: "t-1", Name: "Anna", UnitID: "w-1", MoveIn: "2024-01-01",
		AdvancePayments: []settlement.AdvancePayment{
			{Amount: decimal.NewFromInt(100), EffectiveDate: "2024-09-01"},
		},
	}))
	require.NoError(t, store.SaveTenant(ctx, settlement.Lease{ID: "t-2", Name: "Bernd", UnitID: "w-2", MoveIn: "2020-05-01"}))
	require.NoError(t, store.SaveSettlement(ctx, &settlement.CostSettlement{
		ID: "s-1", HouseID: "h-1", Year: 2024, TotalArea: decimal.NewFromInt(200),
		WaterCostTotal: decimal.NewFromInt(600), WaterConsumptionTotal: decimal.NewFromInt(150),
		CostItems: []settlement.CostItem{
			{Name: "Grundsteuer", TotalAmount: decimal.NewFromInt(1000), Method: settlement.MethodByArea, RawMethod: "pro qm"},
			{Name: "Heizung", TotalAmount: decimal.NewFromInt(3000), Method: settlement.MethodByInvoice},
		},
	}))
}

func TestStore_SettlementRoundTrip(t *testing.T) {
	store := newTestStore(t)
	seedHouse(t, store)
	ctx := context.Background()

	st, err := store.GetSettlement(ctx, "s-1")

	require.NoError(t, err)
	assert.Equal(t, "Lindenstraße 4", st.HouseName)
	assert.Equal(t, 2024, st.Year)
	require.Len(t, st.CostItems, 2)
	assert.Equal(t, settlement.MethodByArea, st.CostItems[0].Method)
	assert.Equal(t, "pro qm", st.CostItems[0].RawMethod)
	assert.True(t, decimal.NewFromInt(3000).Equal(st.CostItems[1].TotalAmount))
}

func TestStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetSettlement(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrSettlementNotFound)

	_, err = store.GetTenant(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrTenantNotFound)

	_, err = store.GetHouse(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrHouseNotFound)

	err = store.SaveApartment(ctx, Apartment{ID: "w", HouseID: "missing", Name: "x", Size: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, generic.ErrHouseNotFound)
}

func TestStore_ListLeasesJoinsApartment(t *testing.T) {
	store := newTestStore(t)
	seedHouse(t, store)

	leases, err := store.ListLeases(context.Background(), "h-1")

	require.NoError(t, err)
	require.Len(t, leases, 2)
	assert.Equal(t, generic.TenantID("t-1"), leases[0].ID)
	assert.Equal(t, "EG", leases[0].UnitName)
	assert.True(t, decimal.NewFromInt(50).Equal(leases[0].UnitSize))
	require.Len(t, leases[0].AdvancePayments, 1)
	assert.Equal(t, "2024-09-01", leases[0].AdvancePayments[0].EffectiveDate)
	assert.Empty(t, leases[1].MoveOut)
}

func TestStore_ServiceComputesFromStore(t *testing.T) {
	// GIVEN: The end-to-end example persisted in SQLite
	store := newTestStore(t)
	seedHouse(t, store)
	ctx := context.Background()
	require.NoError(t, store.SaveInvoice(ctx, InvoiceRecord{
		ID: "i-1", SettlementID: "s-1",
		Invoice: settlement.Invoice{TenantID: "t-1", CostItemName: "Heizung", Amount: decimal.NewFromInt(300)},
	}))
	require.NoError(t, store.SaveWaterReading(ctx, settlement.WaterMeterReading{
		TenantID: "t-1", SettlementID: "s-1", Consumption: decimal.NewFromInt(20),
	}))

	// WHEN
	comp, err := settlement.NewService(store, nil).Compute(ctx, "s-1", settlement.ModeSingle, "t-1")

	// THEN: 250 Grundsteuer + 300 Heizung + 80 Wasser - 400 advances
	require.NoError(t, err)
	require.Len(t, comp.Results, 1)
	r := comp.Results[0]
	assert.True(t, decimal.NewFromInt(630).Equal(r.TotalCostDue), r.TotalCostDue.String())
	assert.True(t, decimal.NewFromInt(230).Equal(r.FinalBalance), r.FinalBalance.String())
}

func TestStore_WaterReadingUpsert(t *testing.T) {
	store := newTestStore(t)
	seedHouse(t, store)
	ctx := context.Background()

	for _, c := range []int64{10, 12} {
		require.NoError(t, store.SaveWaterReading(ctx, settlement.WaterMeterReading{
			TenantID: "t-2", SettlementID: "s-1", Consumption: decimal.NewFromInt(c),
		}))
	}

	readings, err := store.ListWaterReadings(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.True(t, decimal.NewFromInt(12).Equal(readings[0].Consumption))
}

func TestStore_ImportMeterReadings(t *testing.T) {
	// GIVEN: One registered meter per apartment
	store := newTestStore(t)
	seedHouse(t, store)
	ctx := context.Background()
	require.NoError(t, store.SaveMeter(ctx, Meter{ID: "m-1", CustomID: "WZ-1", ApartmentID: "w-1"}))
	require.NoError(t, store.SaveMeter(ctx, Meter{ID: "m-2", CustomID: "WZ-2", ApartmentID: "w-2"}))
	assert.ErrorIs(t, store.SaveMeter(ctx, Meter{ID: "m-3", CustomID: "WZ-1", ApartmentID: "w-2"}), generic.ErrDuplicate)

	at := func(s string) generic.TimePoint {
		tp, ok := generic.ParseTimePoint(s)
		require.True(t, ok)
		return tp
	}
	readings := []meters.Reading{
		{MeterID: "WZ-1", ReadAt: at("2023-12-31"), Value: decimal.NewFromInt(100)},
		{MeterID: "WZ-1", ReadAt: at("2024-12-31"), Value: decimal.NewFromInt(125)},
		{MeterID: "WZ-2", ReadAt: at("2024-12-31"), Value: decimal.NewFromInt(80)},
		{MeterID: "WZ-9", ReadAt: at("2024-12-31"), Value: decimal.NewFromInt(1)},
	}

	// WHEN
	result, err := store.ImportMeterReadings(ctx, "s-1", readings)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 3, result.Stored)
	assert.Equal(t, []string{"WZ-9"}, result.UnknownMeters)
	assert.True(t, decimal.NewFromInt(25).Equal(result.Consumption["t-1"]))
	// Single reading in the year: baseline equals end value
	assert.True(t, result.Consumption["t-2"].IsZero())

	water, err := store.ListWaterReadings(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, water, 2)
}

func TestStore_ImportMeterReadings_PartialReimportKeepsOtherMeters(t *testing.T) {
	// GIVEN: Two meters in one apartment, both imported
	store := newTestStore(t)
	seedHouse(t, store)
	ctx := context.Background()
	require.NoError(t, store.SaveMeter(ctx, Meter{ID: "m-a", CustomID: "WZ-A", ApartmentID: "w-1"}))
	require.NoError(t, store.SaveMeter(ctx, Meter{ID: "m-b", CustomID: "WZ-B", ApartmentID: "w-1"}))

	at := func(s string) generic.TimePoint {
		tp, ok := generic.ParseTimePoint(s)
		require.True(t, ok)
		return tp
	}
	_, err := store.ImportMeterReadings(ctx, "s-1", []meters.Reading{
		{MeterID: "WZ-A", ReadAt: at("2023-12-31"), Value: decimal.Zero},
		{MeterID: "WZ-A", ReadAt: at("2024-12-31"), Value: decimal.NewFromInt(10)},
		{MeterID: "WZ-B", ReadAt: at("2023-12-31"), Value: decimal.Zero},
		{MeterID: "WZ-B", ReadAt: at("2024-12-31"), Value: decimal.NewFromInt(20)},
	})
	require.NoError(t, err)

	// WHEN: Only meter A's year-end value is corrected
	result, err := store.ImportMeterReadings(ctx, "s-1", []meters.Reading{
		{MeterID: "WZ-A", ReadAt: at("2024-12-31"), Value: decimal.NewFromInt(12)},
	})

	// THEN: Meter B still counts towards the tenant's total
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(32).Equal(result.Consumption["t-1"]), result.Consumption["t-1"].String())

	water, err := store.ListWaterReadings(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, water, 1)
	assert.True(t, decimal.NewFromInt(32).Equal(water[0].Consumption), water[0].Consumption.String())
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	seedHouse(t, store)
	ctx := context.Background()

	require.NoError(t, store.Reset(ctx))

	houses, err := store.ListHouses(ctx)
	require.NoError(t, err)
	assert.Empty(t, houses)
	list, err := store.ListSettlements(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}
