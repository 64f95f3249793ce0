/*
handlers.go - HTTP API handlers for the settlement engine

PURPOSE:
  Exposes settlement inputs, computed results and documents via REST. Handles
  HTTP request/response and JSON, and delegates to the store, the settlement
  service and the exporters.

ENDPOINTS:
  Houses:
    GET    /api/houses                       List houses
    POST   /api/houses                       Create house
    GET    /api/houses/{id}                  House detail
    GET    /api/houses/{id}/apartments       Apartments of a house
    POST   /api/houses/{id}/apartments       Create apartment
    GET    /api/houses/{id}/tenants          Tenants of a house

  Tenants:
    POST   /api/tenants                      Create tenant (advance arrays)
    GET    /api/tenants/{id}                 Tenant detail

  Settlements:
    GET    /api/settlements?house_id=        List settlements
    POST   /api/settlements                  Create settlement (cost item arrays)
    GET    /api/settlements/{id}             Settlement detail
    GET    /api/settlements/{id}/invoices    Invoices of by-invoice items
    POST   /api/settlements/{id}/invoices    Add invoice
    GET    /api/settlements/{id}/water-readings         Consumption per tenant
    POST   /api/settlements/{id}/water-readings         Set consumption
    POST   /api/settlements/{id}/water-readings/import  Meter CSV/XLSX upload
    GET    /api/settlements/{id}/results?tenant_id=     Computed results
    GET    /api/settlements/{id}/export?format=&tenant_id=  PDF or XLSX

  Meters:
    GET    /api/meters                       List meters
    POST   /api/meters                       Register meter

REQUEST FLOW:
  1. Decode and validate the body (validator tags on DTOs)
  2. Call the store or the settlement service
  3. Serialize response
  4. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON {"error", "details"}:
  - 400: Validation errors, invalid mode or format, unreadable uploads
  - 404: House, apartment, tenant or settlement not found
  - 409: Duplicate meter number
  - 500: Internal errors (logged)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mietevo/settlement-engine/export"
	"github.com/mietevo/settlement-engine/factory"
	"github.com/mietevo/settlement-engine/generic"
	"github.com/mietevo/settlement-engine/meters"
	"github.com/mietevo/settlement-engine/observability/metrics"
	"github.com/mietevo/settlement-engine/settlement"
	"github.com/mietevo/settlement-engine/store/sqlite"
)

// DefaultMaxUploadBytes limits meter reading uploads when the handler is
// built without a configured limit.
const DefaultMaxUploadBytes = 10 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *settlement.Service
	Factory *factory.SettlementFactory
	Logger  *zap.Logger

	// Owner is printed as the letterhead of exported documents.
	Owner export.Owner

	MaxUploadBytes int64

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler with the given store. A nil logger
// disables logging.
func NewHandler(store *sqlite.Store, owner export.Owner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:          store,
		Service:        settlement.NewService(store, logger),
		Factory:        factory.NewSettlementFactory(),
		Logger:         logger,
		Owner:          owner,
		MaxUploadBytes: DefaultMaxUploadBytes,
		validate:       newValidator(),
	}
}

// newValidator reports JSON field names in validation errors.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Health pings the database.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HOUSE HANDLERS
// =============================================================================

// ListHouses returns all houses.
func (h *Handler) ListHouses(w http.ResponseWriter, r *http.Request) {
	houses, err := h.Store.ListHouses(r.Context())
	if err != nil {
		h.handleError(w, r, "Failed to list houses", err)
		return
	}

	dtos := make([]HouseDTO, len(houses))
	for i, house := range houses {
		dtos[i] = toHouseDTO(house)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHouse creates or updates a house.
func (h *Handler) CreateHouse(w http.ResponseWriter, r *http.Request) {
	var req CreateHouseRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, "Invalid request body", err)
		return
	}
	if req.TotalArea.IsNegative() {
		h.handleError(w, r, "Invalid request body", &generic.FieldError{Field: "total_area", Message: "must not be negative"})
		return
	}

	house := sqlite.House{
		ID:        orNewID(req.ID),
		Name:      req.Name,
		Street:    req.Street,
		City:      req.City,
		TotalArea: req.TotalArea,
	}
	if err := h.Store.SaveHouse(r.Context(), house); err != nil {
		h.handleError(w, r, "Failed to save house", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHouseDTO(house))
}

// GetHouse returns one house.
func (h *Handler) GetHouse(w http.ResponseWriter, r *http.Request) {
	house, err := h.Store.GetHouse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, "House not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toHouseDTO(*house))
}

// ListApartments returns the apartments of a house.
func (h *Handler) ListApartments(w http.ResponseWriter, r *http.Request) {
	houseID := chi.URLParam(r, "id")
	if _, err := h.Store.GetHouse(r.Context(), houseID); err != nil {
		h.handleError(w, r, "House not found", err)
		return
	}

	apartments, err := h.Store.ListApartments(r.Context(), houseID)
	if err != nil {
		h.handleError(w, r, "Failed to list apartments", err)
		return
	}
	dtos := make([]ApartmentDTO, len(apartments))
	for i, a := range apartments {
		dtos[i] = toApartmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateApartment adds an apartment to a house.
func (h *Handler) CreateApartment(w http.ResponseWriter, r *http.Request) {
	var req CreateApartmentRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, "Invalid request body", err)
		return
	}
	if req.Size.IsNegative() {
		h.handleError(w, r, "Invalid request body", &generic.FieldError{Field: "size", Message: "must not be negative"})
		return
	}

	apartment := sqlite.Apartment{
		ID:      orNewID(req.ID),
		HouseID: chi.URLParam(r, "id"),
		Name:    req.Name,
		Size:    req.Size,
	}
	if err := h.Store.SaveApartment(r.Context(), apartment); err != nil {
		h.handleError(w, r, "Failed to save apartment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toApartmentDTO(apartment))
}

// ListHouseTenants returns the leases of a house's apartments.
func (h *Handler) ListHouseTenants(w http.ResponseWriter, r *http.Request) {
	houseID := chi.URLParam(r, "id")
	if _, err := h.Store.GetHouse(r.Context(), houseID); err != nil {
		h.handleError(w, r, "House not found", err)
		return
	}

	leases, err := h.Store.ListLeases(r.Context(), generic.HouseID(houseID))
	if err != nil {
		h.handleError(w, r, "Failed to list tenants", err)
		return
	}
	dtos := make([]factory.LeaseJSON, len(leases))
	for i, l := range leases {
		dtos[i] = h.Factory.LeaseToJSON(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TENANT HANDLERS
// =============================================================================

// CreateTenant creates or updates a tenant from its record form.
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req factory.LeaseJSON
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, "Invalid request body", err)
		return
	}
	req.ID = orNewID(req.ID)

	lease := h.Factory.LeaseFromJSON(req)
	if err := h.Store.SaveTenant(r.Context(), lease); err != nil {
		h.handleError(w, r, "Failed to save tenant", err)
		return
	}

	saved, err := h.Store.GetTenant(r.Context(), lease.ID)
	if err != nil {
		h.handleError(w, r, "Failed to load tenant", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Factory.LeaseToJSON(*saved))
}

// GetTenant returns one tenant.
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	lease, err := h.Store.GetTenant(r.Context(), generic.TenantID(chi.URLParam(r, "id")))
	if err != nil {
		h.handleError(w, r, "Tenant not found", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.LeaseToJSON(*lease))
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// ListSettlements returns all settlements, optionally filtered by house_id.
func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListSettlements(r.Context(), generic.HouseID(r.URL.Query().Get("house_id")))
	if err != nil {
		h.handleError(w, r, "Failed to list settlements", err)
		return
	}

	dtos := make([]factory.SettlementJSON, len(list))
	for i := range list {
		dtos[i] = h.Factory.SettlementToJSON(&list[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSettlement creates or updates a settlement from parallel cost item
// arrays. Zipping findings are returned as warnings; they never fail the
// request. A missing total_area falls back to the house's declared area.
func (h *Handler) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	var req factory.SettlementJSON
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, "Invalid request body", err)
		return
	}
	req.ID = orNewID(req.ID)

	house, err := h.Store.GetHouse(r.Context(), req.HouseID)
	if err != nil {
		h.handleError(w, r, "House not found", err)
		return
	}
	if req.TotalArea == nil || !req.TotalArea.Valid {
		area := factory.NewFlexDecimal(house.TotalArea)
		req.TotalArea = &area
	}

	st, warnings, err := h.Factory.SettlementFromJSON(req)
	if err != nil {
		h.handleError(w, r, "Invalid settlement", err)
		return
	}
	st.HouseName = house.Name

	if err := h.Store.SaveSettlement(r.Context(), st); err != nil {
		h.handleError(w, r, "Failed to save settlement", err)
		return
	}
	for _, warning := range warnings {
		h.Logger.Info("settlement input warning",
			zap.String("settlement_id", string(st.ID)),
			zap.String("warning", warning.String()),
		)
	}

	writeJSON(w, http.StatusCreated, SettlementResponse{
		SettlementJSON: h.Factory.SettlementToJSON(st),
		Warnings:       warnings,
	})
}

// GetSettlement returns one settlement.
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.GetSettlement(r.Context(), settlementID(r))
	if err != nil {
		h.handleError(w, r, "Settlement not found", err)
		return
	}
	writeJSON(w, http.StatusOK, SettlementResponse{SettlementJSON: h.Factory.SettlementToJSON(st)})
}

// ListInvoices returns the invoices of a settlement.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	id := settlementID(r)
	if _, err := h.Store.GetSettlement(r.Context(), id); err != nil {
		h.handleError(w, r, "Settlement not found", err)
		return
	}

	records, err := h.Store.ListInvoiceRecords(r.Context(), id)
	if err != nil {
		h.handleError(w, r, "Failed to list invoices", err)
		return
	}
	dtos := make([]InvoiceDTO, len(records))
	for i, rec := range records {
		dtos[i] = InvoiceDTO{
			ID:           rec.ID,
			TenantID:     string(rec.TenantID),
			CostItemName: rec.CostItemName,
			Amount:       rec.Amount,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateInvoice records a tenant's bill for a by-invoice cost item.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req InvoiceDTO
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, "Invalid request body", err)
		return
	}
	if err := h.checkTenantInSettlement(r.Context(), settlementID(r), generic.TenantID(req.TenantID)); err != nil {
		h.handleError(w, r, "Invalid tenant", err)
		return
	}

	req.ID = orNewID(req.ID)
	rec := sqlite.InvoiceRecord{
		ID:           req.ID,
		SettlementID: settlementID(r),
		Invoice: settlement.Invoice{
			TenantID:     generic.TenantID(req.TenantID),
			CostItemName: req.CostItemName,
			Amount:       req.Amount,
		},
	}
	if err := h.Store.SaveInvoice(r.Context(), rec); err != nil {
		h.handleError(w, r, "Failed to save invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// checkTenantInSettlement rejects tenants whose apartment is not in the
// settlement's house; the calculation would never pick up their records.
func (h *Handler) checkTenantInSettlement(ctx context.Context, id generic.SettlementID, tenantID generic.TenantID) error {
	st, err := h.Store.GetSettlement(ctx, id)
	if err != nil {
		return err
	}
	lease, err := h.Store.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	apt, err := h.Store.GetApartment(ctx, string(lease.UnitID))
	if err != nil {
		return err
	}
	if generic.HouseID(apt.HouseID) != st.HouseID {
		return &generic.FieldError{Field: "tenant_id", Message: fmt.Sprintf("tenant %s does not live in house %s", tenantID, st.HouseID)}
	}
	return nil
}

// ListWaterReadings returns the per-tenant consumption of a settlement.
func (h *Handler) ListWaterReadings(w http.ResponseWriter, r *http.Request) {
	id := settlementID(r)
	if _, err := h.Store.GetSettlement(r.Context(), id); err != nil {
		h.handleError(w, r, "Settlement not found", err)
		return
	}

	readings, err := h.Store.ListWaterReadings(r.Context(), id)
	if err != nil {
		h.handleError(w, r, "Failed to list water readings", err)
		return
	}
	dtos := make([]WaterReadingDTO, len(readings))
	for i, wr := range readings {
		dtos[i] = WaterReadingDTO{TenantID: string(wr.TenantID), Consumption: wr.Consumption}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveWaterReading sets a tenant's consumption, replacing any earlier value.
func (h *Handler) SaveWaterReading(w http.ResponseWriter, r *http.Request) {
	var req WaterReadingDTO
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, "Invalid request body", err)
		return
	}
	if req.Consumption.IsNegative() {
		h.handleError(w, r, "Invalid request body", &generic.FieldError{Field: "consumption", Message: "must not be negative"})
		return
	}
	if err := h.checkTenantInSettlement(r.Context(), settlementID(r), generic.TenantID(req.TenantID)); err != nil {
		h.handleError(w, r, "Invalid tenant", err)
		return
	}

	reading := settlement.WaterMeterReading{
		TenantID:     generic.TenantID(req.TenantID),
		SettlementID: settlementID(r),
		Consumption:  req.Consumption,
	}
	if err := h.Store.SaveWaterReading(r.Context(), reading); err != nil {
		h.handleError(w, r, "Failed to save water reading", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ImportWaterReadings accepts a multipart upload of meter readings.
//
// Form fields:
//
//	file             CSV or XLSX file (required)
//	format           "csv" or "xlsx"; derived from the file name when empty
//	sheet            XLSX sheet name; first sheet when empty
//	meter_id_column, read_at_column, value_column
//	                 header names; German defaults when empty
//
// Malformed rows are reported, not fatal. Readings of unregistered meters
// are skipped and listed in unknown_meters.
func (h *Handler) ImportWaterReadings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file", err)
		return
	}
	defer file.Close()

	mapping := meters.ColumnMapping{
		MeterID: formValueDefault(r, "meter_id_column", meters.DefaultColumnMapping.MeterID),
		ReadAt:  formValueDefault(r, "read_at_column", meters.DefaultColumnMapping.ReadAt),
		Value:   formValueDefault(r, "value_column", meters.DefaultColumnMapping.Value),
	}
	if err := h.validate.Struct(mapping); err != nil {
		h.handleError(w, r, "Invalid column mapping", validationError(err))
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.FormValue("format")))
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	}

	var (
		readings []meters.Reading
		rejected []meters.RowError
	)
	switch format {
	case "csv":
		readings, rejected, err = meters.ParseCSV(file, mapping)
	case "xlsx":
		readings, rejected, err = meters.ParseXLSX(file, r.FormValue("sheet"), mapping)
	default:
		err = fmt.Errorf("%w: %q", generic.ErrUnsupportedFormat, format)
	}
	if errors.Is(err, meters.ErrColumnNotFound) {
		writeError(w, http.StatusBadRequest, "Column not found", err)
		return
	}
	if err != nil {
		h.handleError(w, r, "Failed to read meter readings", err)
		return
	}
	metrics.ObserveImport(len(readings), len(rejected))

	result, err := h.Store.ImportMeterReadings(r.Context(), settlementID(r), readings)
	if err != nil {
		h.handleError(w, r, "Failed to import meter readings", err)
		return
	}

	resp := ImportResponse{
		Parsed:        len(readings),
		Stored:        result.Stored,
		Rejected:      rejected,
		UnknownMeters: result.UnknownMeters,
		Consumption:   make(map[string]decimal.Decimal, len(result.Consumption)),
	}
	if resp.Rejected == nil {
		resp.Rejected = []meters.RowError{}
	}
	if resp.UnknownMeters == nil {
		resp.UnknownMeters = []string{}
	}
	for tenantID, c := range result.Consumption {
		resp.Consumption[string(tenantID)] = c
	}
	h.Logger.Info("meter readings imported",
		zap.String("settlement_id", chi.URLParam(r, "id")),
		zap.Int("parsed", resp.Parsed),
		zap.Int("stored", resp.Stored),
		zap.Int("rejected", len(rejected)),
		zap.Strings("unknown_meters", resp.UnknownMeters),
	)
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// RESULT HANDLERS
// =============================================================================

// GetResults computes a settlement. With tenant_id it settles that tenant
// only; an explicit mode=all|single overrides the default.
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	comp, mode, err := h.compute(r)
	if err != nil {
		h.handleError(w, r, "Failed to compute settlement", err)
		return
	}

	resp := ResultsResponse{
		SettlementID: string(comp.Settlement.ID),
		HouseName:    comp.Settlement.HouseName,
		Year:         comp.Settlement.Year,
		Mode:         mode,
		Results:      make([]TenantResultDTO, len(comp.Results)),
	}
	for i, res := range comp.Results {
		resp.Results[i] = toTenantResultDTO(res)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportDocument renders the settlement as a PDF or XLSX download.
func (h *Handler) ExportDocument(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.handleError(w, r, "Invalid format", err)
		return
	}
	comp, mode, err := h.compute(r)
	if err != nil {
		h.handleError(w, r, "Failed to compute settlement", err)
		return
	}

	doc := export.BuildDocument(h.Owner, comp.Settlement, mode, comp.Results)
	data, err := export.Render(doc, format)
	if err != nil {
		h.handleError(w, r, "Failed to render document", err)
		return
	}

	filename := export.Filename(comp.Settlement.Year, doc.TenantName, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) compute(r *http.Request) (*settlement.Computation, settlement.Mode, error) {
	q := r.URL.Query()
	tenantID := q.Get("tenant_id")
	rawMode := q.Get("mode")
	if rawMode == "" && tenantID != "" {
		rawMode = string(settlement.ModeSingle)
	}
	mode, err := settlement.ParseMode(rawMode)
	if err != nil {
		return nil, "", err
	}
	comp, err := h.Service.Compute(r.Context(), settlementID(r), mode, generic.TenantID(tenantID))
	return comp, mode, err
}

// =============================================================================
// METER HANDLERS
// =============================================================================

// ListMeters returns the meter registry.
func (h *Handler) ListMeters(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListMeters(r.Context())
	if err != nil {
		h.handleError(w, r, "Failed to list meters", err)
		return
	}
	dtos := make([]MeterDTO, len(list))
	for i, m := range list {
		dtos[i] = MeterDTO{ID: m.ID, CustomID: m.CustomID, ApartmentID: m.ApartmentID}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMeter registers a meter in an apartment.
func (h *Handler) CreateMeter(w http.ResponseWriter, r *http.Request) {
	var req MeterDTO
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, "Invalid request body", err)
		return
	}
	req.ID = orNewID(req.ID)
	req.CustomID = strings.TrimSpace(req.CustomID)

	m := sqlite.Meter{ID: req.ID, CustomID: req.CustomID, ApartmentID: req.ApartmentID}
	if err := h.Store.SaveMeter(r.Context(), m); err != nil {
		h.handleError(w, r, "Failed to save meter", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetDatabase wipes all records.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.handleError(w, r, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &generic.FieldError{Field: "body", Message: err.Error()}
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError reports the first failed field as a FieldError.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &generic.FieldError{Field: fe.Field(), Message: fmt.Sprintf("failed %q check", fe.Tag())}
	}
	return &generic.FieldError{Field: "body", Message: err.Error()}
}

// handleError maps domain errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, generic.ErrDuplicate):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error(message,
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func settlementID(r *http.Request) generic.SettlementID {
	return generic.SettlementID(chi.URLParam(r, "id"))
}

func orNewID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

func formValueDefault(r *http.Request, key, fallback string) string {
	if v := strings.TrimSpace(r.FormValue(key)); v != "" {
		return v
	}
	return fallback
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

func (h *Handler) getCurrentScenario() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentScenario
}
