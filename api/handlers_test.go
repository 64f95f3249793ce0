/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- House, apartment, tenant and meter CRUD with validation
- Settlement creation with zipping warnings and area fallback
- Results and export endpoints
- Meter reading upload
- Error status mapping
*/
package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mietevo/settlement-engine/export"
	"github.com/mietevo/settlement-engine/store/sqlite"
)

func setupTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, export.Owner{Name: "Hausverwaltung Beispiel"}, nil)
	return h, NewRouter(h, nil)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seedEndToEnd creates a 200 m² house with one 50 m² full-year tenant and a
// settlement of 1000 EUR property tax by area.
func seedEndToEnd(t *testing.T, router http.Handler) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/houses", map[string]any{"id": "h-1", "name": "Lindenstraße 4", "total_area": 200})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = doJSON(t, router, http.MethodPost, "/api/houses/h-1/apartments", map[string]any{"id": "w-1", "name": "EG", "size": "50"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = doJSON(t, router, http.MethodPost, "/api/tenants", map[string]any{
		"id": "t-1", "name": "Anna Muster", "apartment_id": "w-1", "move_in": "2024-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = doJSON(t, router, http.MethodPost, "/api/settlements", map[string]any{
		"id": "s-1", "house_id": "h-1", "year": 2024,
		"cost_item_names":   []string{"Grundsteuer"},
		"cost_item_amounts": []any{1000},
		"cost_item_methods": []string{"pro qm"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// HOUSES AND TENANTS
// =============================================================================

func TestCreateHouse_GeneratesID(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := doJSON(t, router, http.MethodPost, "/api/houses", map[string]any{"name": "Gartenweg 12", "total_area": 120.5})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	house := decodeBody[HouseDTO](t, rec)
	_, err := uuid.Parse(house.ID)
	assert.NoError(t, err)
	assert.True(t, decimal.RequireFromString("120.5").Equal(house.TotalArea))

	list := decodeBody[[]HouseDTO](t, doJSON(t, router, http.MethodGet, "/api/houses", nil))
	assert.Len(t, list, 1)
}

func TestCreateHouse_MissingName(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := doJSON(t, router, http.MethodPost, "/api/houses", map[string]any{"street": "Nirgendwo 1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Contains(t, body.Details, "name")
}

func TestGetHouse_NotFound(t *testing.T) {
	_, router := setupTestHandler(t)

	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/houses/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/houses/missing/apartments", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/tenants/missing", nil).Code)
}

func TestCreateApartment_UnknownHouse(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := doJSON(t, router, http.MethodPost, "/api/houses/missing/apartments", map[string]any{"name": "EG", "size": 50})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTenant_ZipsAdvanceArrays(t *testing.T) {
	// GIVEN: A tenant record with a null amount and an extra date
	_, router := setupTestHandler(t)
	doJSON(t, router, http.MethodPost, "/api/houses", map[string]any{"id": "h-1", "name": "Haus"})
	doJSON(t, router, http.MethodPost, "/api/houses/h-1/apartments", map[string]any{"id": "w-1", "name": "EG", "size": 50})

	// WHEN
	rec := doJSON(t, router, http.MethodPost, "/api/tenants", map[string]any{
		"name": "Anna", "apartment_id": "w-1", "move_in": "2024-01-01",
		"advance_amounts": []any{100, nil},
		"advance_dates":   []string{"2024-01-01", "2024-06-01", "2024-09-01"},
	})

	// THEN: Only the valid pair survives; unit size comes from the apartment
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, `"advance_dates":["2024-01-01"]`)
	assert.Contains(t, body, `"apartment_size":50`)

	tenants := decodeBody[[]map[string]any](t, doJSON(t, router, http.MethodGet, "/api/houses/h-1/tenants", nil))
	assert.Len(t, tenants, 1)
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

func TestCreateSettlement_WarningsAndAreaFallback(t *testing.T) {
	// GIVEN: A house with declared area and a settlement without total_area
	_, router := setupTestHandler(t)
	doJSON(t, router, http.MethodPost, "/api/houses", map[string]any{"id": "h-1", "name": "Haus", "total_area": 200})

	// WHEN: Arrays disagree in length and one method is unknown
	rec := doJSON(t, router, http.MethodPost, "/api/settlements", map[string]any{
		"house_id": "h-1", "year": 2024,
		"cost_item_names":   []string{"Grundsteuer", "Müll", "Extra"},
		"cost_item_amounts": []any{"1.000,00", 360},
		"cost_item_methods": []string{"pro qm", "nach Köpfen", "pauschal"},
	})

	// THEN
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[SettlementResponse](t, rec)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "Haus", resp.HouseName)
	assert.True(t, decimal.NewFromInt(200).Equal(resp.TotalArea.OrZero()))
	assert.Equal(t, []string{"Grundsteuer", "Müll"}, resp.CostItemNames)
	assert.Equal(t, []string{"pro qm", "nach Köpfen"}, resp.CostItemMethods)
	require.Len(t, resp.Warnings, 2)
	assert.Equal(t, "cost_items", resp.Warnings[0].Field)
	assert.Equal(t, "cost_item_methods", resp.Warnings[1].Field)
	assert.Equal(t, 1, resp.Warnings[1].Index)

	got := decodeBody[SettlementResponse](t, doJSON(t, router, http.MethodGet, "/api/settlements/"+resp.ID, nil))
	assert.Empty(t, got.Warnings)
	assert.Len(t, got.CostItemNames, 2)
}

func TestCreateSettlement_Errors(t *testing.T) {
	_, router := setupTestHandler(t)
	doJSON(t, router, http.MethodPost, "/api/houses", map[string]any{"id": "h-1", "name": "Haus"})

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"year out of range", map[string]any{"house_id": "h-1", "year": 1800}, http.StatusBadRequest},
		{"missing house", map[string]any{"year": 2024}, http.StatusBadRequest},
		{"unknown house", map[string]any{"house_id": "h-9", "year": 2024}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/settlements", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/settlements", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvoicesAndWaterReadings(t *testing.T) {
	_, router := setupTestHandler(t)
	seedEndToEnd(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/settlements/s-1/invoices", map[string]any{
		"tenant_id": "t-1", "cost_item_name": "Heizung", "amount": "300",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/settlements/s-1/water-readings", map[string]any{"tenant_id": "t-1", "consumption": 20})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = doJSON(t, router, http.MethodPost, "/api/settlements/s-1/water-readings", map[string]any{"tenant_id": "t-1", "consumption": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/api/settlements/s-1/water-readings", map[string]any{"tenant_id": "t-9", "consumption": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	invoices := decodeBody[[]InvoiceDTO](t, doJSON(t, router, http.MethodGet, "/api/settlements/s-1/invoices", nil))
	require.Len(t, invoices, 1)
	assert.True(t, decimal.NewFromInt(300).Equal(invoices[0].Amount))

	readings := decodeBody[[]WaterReadingDTO](t, doJSON(t, router, http.MethodGet, "/api/settlements/s-1/water-readings", nil))
	require.Len(t, readings, 1)
	assert.True(t, decimal.NewFromInt(20).Equal(readings[0].Consumption))

	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/settlements/s-9/invoices", nil).Code)
}

func TestInvoicesAndWaterReadings_TenantOfOtherHouse(t *testing.T) {
	// GIVEN: A second house with its own tenant
	_, router := setupTestHandler(t)
	seedEndToEnd(t, router)
	doJSON(t, router, http.MethodPost, "/api/houses", map[string]any{"id": "h-2", "name": "Gartenweg 12"})
	doJSON(t, router, http.MethodPost, "/api/houses/h-2/apartments", map[string]any{"id": "w-9", "name": "DG", "size": 40})
	rec := doJSON(t, router, http.MethodPost, "/api/tenants", map[string]any{
		"id": "t-x", "name": "Xaver", "apartment_id": "w-9", "move_in": "2024-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: Records for that tenant are posted to the first house's settlement
	invoice := doJSON(t, router, http.MethodPost, "/api/settlements/s-1/invoices", map[string]any{
		"tenant_id": "t-x", "cost_item_name": "Heizung", "amount": "300",
	})
	reading := doJSON(t, router, http.MethodPost, "/api/settlements/s-1/water-readings", map[string]any{"tenant_id": "t-x", "consumption": 5})

	// THEN: Both are rejected and nothing is stored
	assert.Equal(t, http.StatusBadRequest, invoice.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, invoice).Details, "tenant_id")
	assert.Equal(t, http.StatusBadRequest, reading.Code)
	assert.Empty(t, decodeBody[[]InvoiceDTO](t, doJSON(t, router, http.MethodGet, "/api/settlements/s-1/invoices", nil)))
	assert.Empty(t, decodeBody[[]WaterReadingDTO](t, doJSON(t, router, http.MethodGet, "/api/settlements/s-1/water-readings", nil)))
}

// =============================================================================
// RESULTS AND EXPORT
// =============================================================================

func TestGetResults_EndToEnd(t *testing.T) {
	// GIVEN: 1000 EUR property tax over 200 m², 50 m² tenant, no advances
	_, router := setupTestHandler(t)
	seedEndToEnd(t, router)

	// WHEN
	rec := doJSON(t, router, http.MethodGet, "/api/settlements/s-1/results", nil)

	// THEN: 250 surcharge
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[ResultsResponse](t, rec)
	assert.Equal(t, "all", string(resp.Mode))
	assert.Equal(t, 2024, resp.Year)
	require.Len(t, resp.Results, 1)
	r := resp.Results[0]
	assert.True(t, decimal.NewFromInt(250).Equal(r.FinalBalance), r.FinalBalance.String())
	assert.Equal(t, "Nachzahlung", r.BalanceLabel)
	assert.Equal(t, 360, r.OccupiedDays)
	require.Len(t, r.CostAllocations, 1)
	assert.Equal(t, "nach Fläche", r.CostAllocations[0].MethodLabel)
	require.NotNil(t, r.CostAllocations[0].UnitPrice)
	assert.True(t, decimal.NewFromInt(5).Equal(*r.CostAllocations[0].UnitPrice))
	assert.Len(t, r.MonthlyAdvancePayments, 12)
}

func TestGetResults_ModeSelection(t *testing.T) {
	_, router := setupTestHandler(t)
	seedEndToEnd(t, router)

	single := decodeBody[ResultsResponse](t, doJSON(t, router, http.MethodGet, "/api/settlements/s-1/results?tenant_id=t-1", nil))
	assert.Equal(t, "single", string(single.Mode))
	assert.Len(t, single.Results, 1)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodGet, "/api/settlements/s-1/results?mode=some", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/settlements/s-1/results?tenant_id=t-9", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/settlements/s-9/results", nil).Code)
}

func TestExportDocument_PDF(t *testing.T) {
	_, router := setupTestHandler(t)
	seedEndToEnd(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/settlements/s-1/export?tenant_id=t-1", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Abrechnung_2024_Anna_Muster.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestExportDocument_XLSXAndUnsupported(t *testing.T) {
	_, router := setupTestHandler(t)
	seedEndToEnd(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/settlements/s-1/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.FormatXLSX.ContentType(), rec.Header().Get("Content-Type"))
	// One lease, but no tenant selected
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Abrechnung_2024_Alle_Mieter.xlsx")
	// XLSX files are zip archives
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = doJSON(t, router, http.MethodGet, "/api/settlements/s-1/export?format=docx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// METERS
// =============================================================================

func TestCreateMeter_Duplicate(t *testing.T) {
	_, router := setupTestHandler(t)
	seedEndToEnd(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/meters", map[string]any{"custom_id": "WZ-1", "apartment_id": "w-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/meters", map[string]any{"custom_id": "WZ-1", "apartment_id": "w-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/meters", map[string]any{"custom_id": "WZ-2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	meters := decodeBody[[]MeterDTO](t, doJSON(t, router, http.MethodGet, "/api/meters", nil))
	assert.Len(t, meters, 1)
}

func TestImportWaterReadings_CSV(t *testing.T) {
	// GIVEN: A registered meter and a semicolon CSV with one bad row
	_, router := setupTestHandler(t)
	seedEndToEnd(t, router)
	doJSON(t, router, http.MethodPost, "/api/meters", map[string]any{"id": "m-1", "custom_id": "WZ-1", "apartment_id": "w-1"})

	csv := "Zähler-ID;Ablesedatum;Zählerstand\n" +
		"WZ-1;31.12.2023;100,5\n" +
		"WZ-1;31.12.2024;130,5\n" +
		"WZ-1;gestern;1\n" +
		"WZ-7;31.12.2024;5\n"

	// WHEN
	rec := uploadFile(t, router, "/api/settlements/s-1/water-readings/import", "ablesung.csv", csv, nil)

	// THEN
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[ImportResponse](t, rec)
	assert.Equal(t, 3, resp.Parsed)
	assert.Equal(t, 2, resp.Stored)
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, 4, resp.Rejected[0].Line)
	assert.Equal(t, []string{"WZ-7"}, resp.UnknownMeters)
	assert.True(t, decimal.NewFromInt(30).Equal(resp.Consumption["t-1"]))

	readings := decodeBody[[]WaterReadingDTO](t, doJSON(t, router, http.MethodGet, "/api/settlements/s-1/water-readings", nil))
	require.Len(t, readings, 1)
	assert.True(t, decimal.NewFromInt(30).Equal(readings[0].Consumption))
}

func TestImportWaterReadings_Errors(t *testing.T) {
	_, router := setupTestHandler(t)
	seedEndToEnd(t, router)

	rec := uploadFile(t, router, "/api/settlements/s-1/water-readings/import", "ablesung.csv",
		"Meter;Datum;Stand\nWZ-1;31.12.2024;1\n", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = uploadFile(t, router, "/api/settlements/s-1/water-readings/import", "ablesung.txt",
		"Meter;Datum;Stand\n", map[string]string{"meter_id_column": "Meter", "read_at_column": "Datum", "value_column": "Stand"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = uploadFile(t, router, "/api/settlements/s-9/water-readings/import", "ablesung.csv",
		"Meter;Datum;Stand\n", map[string]string{"meter_id_column": "Meter", "read_at_column": "Datum", "value_column": "Stand"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func uploadFile(t *testing.T, router http.Handler, path, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// ADMIN
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	_, router := setupTestHandler(t)

	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/metrics", nil).Code)
}

func TestResetDatabase(t *testing.T) {
	_, router := setupTestHandler(t)
	seedEndToEnd(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/reset", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]HouseDTO](t, doJSON(t, router, http.MethodGet, "/api/houses", nil))
	assert.Empty(t, list)
}
