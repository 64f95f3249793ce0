package factory

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mietevo/settlement-engine/generic"
	"github.com/mietevo/settlement-engine/settlement"
)

func TestParseSettlement_ZipsCostItems(t *testing.T) {
	// GIVEN: A record with a German amount, a null amount and an empty name
	body := `{
		"id": "nk-1",
		"house_id": "haus-1",
		"year": 2024,
		"total_area": "200,5",
		"water_cost": 600,
		"cost_item_names":   ["Grundsteuer", "", "Heizung"],
		"cost_item_amounts": [1000, "240,50", null],
		"cost_item_methods": ["pro qm", "pauschal", "nach Rechnung"]
	}`

	// WHEN
	s, warnings, err := NewSettlementFactory().ParseSettlement([]byte(body))

	// THEN
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, generic.SettlementID("nk-1"), s.ID)
	assert.True(t, decimal.RequireFromString("200.5").Equal(s.TotalArea))
	assert.True(t, s.WaterConsumptionTotal.IsZero())
	require.Len(t, s.CostItems, 3)
	assert.Equal(t, settlement.MethodByArea, s.CostItems[0].Method)
	assert.Equal(t, "Kostenart 2", s.CostItems[1].Name)
	assert.True(t, decimal.RequireFromString("240.5").Equal(s.CostItems[1].TotalAmount))
	assert.Equal(t, settlement.MethodByInvoice, s.CostItems[2].Method)
	assert.True(t, s.CostItems[2].TotalAmount.IsZero())
}

func TestParseSettlement_MismatchedArrays_ZipToShortest(t *testing.T) {
	body := `{
		"house_id": "haus-1",
		"year": 2024,
		"cost_item_names":   ["A", "B", "C"],
		"cost_item_amounts": [1, 2],
		"cost_item_methods": ["fix", "fix", "fix", "fix"]
	}`

	s, warnings, err := NewSettlementFactory().ParseSettlement([]byte(body))

	require.NoError(t, err)
	require.Len(t, s.CostItems, 2)
	require.Len(t, warnings, 1)
	assert.Equal(t, "cost_items", warnings[0].Field)
}

func TestParseSettlement_UnknownMethodWarns(t *testing.T) {
	items, warnings := ZipCostItems(
		[]string{"Garten"},
		[]FlexDecimal{NewFlexDecimal(decimal.NewFromInt(300))},
		[]string{"nach Gefühl"},
	)

	require.Len(t, items, 1)
	assert.Equal(t, settlement.MethodFixed, items[0].Method)
	assert.Equal(t, "nach Gefühl", items[0].RawMethod)
	require.Len(t, warnings, 1)
	assert.Equal(t, "cost_item_methods", warnings[0].Field)
	assert.Equal(t, 0, warnings[0].Index)
}

func TestParseSettlement_Invalid(t *testing.T) {
	f := NewSettlementFactory()

	_, _, err := f.ParseSettlement([]byte(`{"house_id": "h", "year": 12}`))
	assert.ErrorIs(t, err, generic.ErrInvalidYear)

	_, _, err = f.ParseSettlement([]byte(`{"year": 2024}`))
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, _, err = f.ParseSettlement([]byte(`{not json`))
	assert.Error(t, err)
}

func TestParseLease_DropsInvalidAdvancePairs(t *testing.T) {
	body := `{
		"id": "m-1",
		"name": "Anna Muster",
		"apartment_id": "w-1",
		"move_in": "2024-01-01",
		"advance_amounts": [100, "abc", null, "150,00", 999],
		"advance_dates":   ["2024-01-01", "2024-03-01", "2024-04-01", "2024-06-01"]
	}`

	lease, err := NewSettlementFactory().ParseLease([]byte(body))

	require.NoError(t, err)
	require.Len(t, lease.AdvancePayments, 2)
	assert.Equal(t, "2024-01-01", lease.AdvancePayments[0].EffectiveDate)
	assert.Equal(t, "2024-06-01", lease.AdvancePayments[1].EffectiveDate)
	assert.True(t, decimal.NewFromInt(150).Equal(lease.AdvancePayments[1].Amount))
}

func TestSettlementToJSON_KeepsRawMethod(t *testing.T) {
	f := NewSettlementFactory()
	s, _, err := f.ParseSettlement([]byte(`{
		"id": "nk-1", "house_id": "h", "year": 2024,
		"cost_item_names": ["Grundsteuer"], "cost_item_amounts": [10], "cost_item_methods": ["pro qm"]
	}`))
	require.NoError(t, err)

	data, err := json.Marshal(f.SettlementToJSON(s))
	require.NoError(t, err)

	var back SettlementJSON
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"pro qm"}, back.CostItemMethods)
	assert.True(t, decimal.NewFromInt(10).Equal(back.CostItemAmounts[0].Value))
}
