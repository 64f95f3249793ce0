/*
Package sqlite provides the SQLite-backed store of the settlement server.

PURPOSE:
  Persists the inputs of operating-cost settlements (houses, apartments,
  tenants, settlements, invoices, water meters and their readings) and
  serves them to the calculation through the settlement.Source interface.
  Results are never stored; they are recomputed on every request.

INTERFACES IMPLEMENTED:
  settlement.Source: GetSettlement, ListLeases, ListInvoices, ListWaterReadings

KEY TABLES:
  houses:          Buildings with their declared living area
  apartments:      Units of a house with their size
  tenants:         Leases; advance payment history stored as JSON
  settlements:     One house and year; cost items stored as JSON
  invoices:        Tenant-specific amounts for by-invoice cost items
  meters:          Water meters of apartments, addressed by custom ID
  meter_readings:  Cumulative meter values as imported
  water_readings:  Consumption per (settlement, tenant)

STORAGE CONVENTIONS:
  - Decimals are stored as TEXT to keep them exact
  - Dates are stored as entered (TEXT); the calculation parses them leniently
  - Deleting a house cascades to its apartments, tenants and settlements

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's WAL mode.

USAGE:
  store, err := sqlite.New("./data/mietevo.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := settlement.NewService(store, logger)

SEE ALSO:
  - settlement/service.go: Source interface
  - store/memory: In-memory implementation for tests
  - store/postgres: Read-only source for the hosted database
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/mietevo/settlement-engine/generic"
	"github.com/mietevo/settlement-engine/meters"
	"github.com/mietevo/settlement-engine/settlement"
)

// Store implements settlement.Source and the CRUD operations of the API.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ settlement.Source = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS houses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		street TEXT,
		city TEXT,
		total_area TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS apartments (
		id TEXT PRIMARY KEY,
		house_id TEXT NOT NULL REFERENCES houses(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		size TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_apartments_house
		ON apartments(house_id);

	-- Tenants (leases). Advance payments: [{"amount": "100", "date": "2024-01-01"}]
	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		apartment_id TEXT NOT NULL REFERENCES apartments(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		move_in TEXT,
		move_out TEXT,
		advances_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tenants_apartment
		ON tenants(apartment_id);

	-- Settlements. Cost items: [{"name": "...", "amount": "...", "method": "by_area", "raw_method": "pro qm"}]
	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		house_id TEXT NOT NULL REFERENCES houses(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		total_area TEXT,
		water_cost TEXT,
		water_consumption TEXT,
		items_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_settlements_house_year
		ON settlements(house_id, year);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		settlement_id TEXT NOT NULL REFERENCES settlements(id) ON DELETE CASCADE,
		tenant_id TEXT NOT NULL,
		cost_item_name TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_settlement
		ON invoices(settlement_id, created_at);

	CREATE TABLE IF NOT EXISTS meters (
		id TEXT PRIMARY KEY,
		custom_id TEXT NOT NULL UNIQUE,
		apartment_id TEXT NOT NULL REFERENCES apartments(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meter_readings (
		meter_id TEXT NOT NULL REFERENCES meters(id) ON DELETE CASCADE,
		read_at TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (meter_id, read_at)
	);

	CREATE TABLE IF NOT EXISTS water_readings (
		settlement_id TEXT NOT NULL REFERENCES settlements(id) ON DELETE CASCADE,
		tenant_id TEXT NOT NULL,
		consumption TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (settlement_id, tenant_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HOUSES
// =============================================================================

// House is a building with its landlord-declared living area.
type House struct {
	ID        string
	Name      string
	Street    string
	City      string
	TotalArea decimal.Decimal
	CreatedAt time.Time
}

// SaveHouse inserts or updates a house.
func (s *Store) SaveHouse(ctx context.Context, h House) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO houses (id, name, street, city, total_area, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			street = excluded.street,
			city = excluded.city,
			total_area = excluded.total_area
	`
	_, err := s.db.ExecContext(ctx, query,
		h.ID, h.Name, nullString(h.Street), nullString(h.City), h.TotalArea.String(), now(),
	)
	return err
}

// GetHouse returns generic.ErrHouseNotFound when missing.
func (s *Store) GetHouse(ctx context.Context, id string) (*House, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	houses, err := s.queryHouses(ctx, "WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(houses) == 0 {
		return nil, fmt.Errorf("%w: %s", generic.ErrHouseNotFound, id)
	}
	return &houses[0], nil
}

// ListHouses returns all houses ordered by name.
func (s *Store) ListHouses(ctx context.Context) ([]House, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryHouses(ctx, "ORDER BY name")
}

func (s *Store) queryHouses(ctx context.Context, clause string, args ...any) ([]House, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, street, city, total_area, created_at FROM houses "+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var houses []House
	for rows.Next() {
		var h House
		var street, city, area sql.NullString
		var createdAt string
		if err := rows.Scan(&h.ID, &h.Name, &street, &city, &area, &createdAt); err != nil {
			return nil, err
		}
		h.Street, h.City = street.String, city.String
		h.TotalArea = generic.MustParseDecimal(area.String)
		h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		houses = append(houses, h)
	}
	return houses, rows.Err()
}

// DeleteHouse removes a house and everything that belongs to it.
func (s *Store) DeleteHouse(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM houses WHERE id = ?", id)
	return err
}

// =============================================================================
// APARTMENTS
// =============================================================================

// Apartment is a unit of a house.
type Apartment struct {
	ID      string
	HouseID string
	Name    string
	Size    decimal.Decimal
}

// SaveApartment inserts or updates an apartment. The house must exist.
func (s *Store) SaveApartment(ctx context.Context, a Apartment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO apartments (id, house_id, name, size, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			house_id = excluded.house_id,
			name = excluded.name,
			size = excluded.size
	`
	_, err := s.db.ExecContext(ctx, query, a.ID, a.HouseID, a.Name, a.Size.String(), now())
	if isForeignKeyError(err) {
		return fmt.Errorf("%w: %s", generic.ErrHouseNotFound, a.HouseID)
	}
	return err
}

// GetApartment returns generic.ErrApartmentNotFound when missing.
func (s *Store) GetApartment(ctx context.Context, id string) (*Apartment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a Apartment
	var size string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, house_id, name, size FROM apartments WHERE id = ?", id,
	).Scan(&a.ID, &a.HouseID, &a.Name, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrApartmentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	a.Size = generic.MustParseDecimal(size)
	return &a, nil
}

// ListApartments returns the apartments of a house ordered by name.
func (s *Store) ListApartments(ctx context.Context, houseID string) ([]Apartment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, house_id, name, size FROM apartments WHERE house_id = ? ORDER BY name", houseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apartments []Apartment
	for rows.Next() {
		var a Apartment
		var size string
		if err := rows.Scan(&a.ID, &a.HouseID, &a.Name, &size); err != nil {
			return nil, err
		}
		a.Size = generic.MustParseDecimal(size)
		apartments = append(apartments, a)
	}
	return apartments, rows.Err()
}

// =============================================================================
// TENANTS
// =============================================================================

// advanceRecord is the JSON form of one advance payment entry.
type advanceRecord struct {
	Amount string `json:"amount"`
	Date   string `json:"date"`
}

// SaveTenant inserts or updates a lease. UnitID must name an existing
// apartment; UnitName and UnitSize are ignored and read from the apartment.
func (s *Store) SaveTenant(ctx context.Context, l settlement.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	advances := make([]advanceRecord, 0, len(l.AdvancePayments))
	for _, ap := range l.AdvancePayments {
		advances = append(advances, advanceRecord{Amount: ap.Amount.String(), Date: ap.EffectiveDate})
	}
	advancesJSON, err := json.Marshal(advances)
	if err != nil {
		return fmt.Errorf("failed to encode advance payments: %w", err)
	}

	query := `
		INSERT INTO tenants (id, apartment_id, name, move_in, move_out, advances_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			apartment_id = excluded.apartment_id,
			name = excluded.name,
			move_in = excluded.move_in,
			move_out = excluded.move_out,
			advances_json = excluded.advances_json
	`
	_, err = s.db.ExecContext(ctx, query,
		string(l.ID), string(l.UnitID), l.Name,
		nullString(l.MoveIn), nullString(l.MoveOut), string(advancesJSON), now(),
	)
	if isForeignKeyError(err) {
		return fmt.Errorf("%w: %s", generic.ErrApartmentNotFound, l.UnitID)
	}
	return err
}

// GetTenant returns generic.ErrTenantNotFound when missing.
func (s *Store) GetTenant(ctx context.Context, id generic.TenantID) (*settlement.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leases, err := s.queryLeases(ctx, "WHERE t.id = ?", string(id))
	if err != nil {
		return nil, err
	}
	if len(leases) == 0 {
		return nil, fmt.Errorf("%w: %s", generic.ErrTenantNotFound, id)
	}
	return &leases[0], nil
}

// DeleteTenant removes a tenant.
func (s *Store) DeleteTenant(ctx context.Context, id generic.TenantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM tenants WHERE id = ?", string(id))
	return err
}

// ListLeases returns every tenant of the house's apartments, ordered by
// apartment name, then move-in date.
func (s *Store) ListLeases(ctx context.Context, houseID generic.HouseID) ([]settlement.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLeases(ctx, "WHERE a.house_id = ? ORDER BY a.name, t.move_in, t.id", string(houseID))
}

func (s *Store) queryLeases(ctx context.Context, clause string, args ...any) ([]settlement.Lease, error) {
	query := `
		SELECT t.id, t.name, t.apartment_id, a.name, a.size, t.move_in, t.move_out, t.advances_json
		FROM tenants t
		JOIN apartments a ON a.id = t.apartment_id
	` + clause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leases []settlement.Lease
	for rows.Next() {
		var l settlement.Lease
		var id, unitID, size, advancesJSON string
		var moveIn, moveOut sql.NullString
		if err := rows.Scan(&id, &l.Name, &unitID, &l.UnitName, &size, &moveIn, &moveOut, &advancesJSON); err != nil {
			return nil, err
		}
		l.ID = generic.TenantID(id)
		l.UnitID = generic.ApartmentID(unitID)
		l.UnitSize = generic.MustParseDecimal(size)
		l.MoveIn, l.MoveOut = moveIn.String, moveOut.String

		var advances []advanceRecord
		if err := json.Unmarshal([]byte(advancesJSON), &advances); err != nil {
			return nil, fmt.Errorf("tenant %s: corrupt advance payments: %w", id, err)
		}
		for _, a := range advances {
			amount, ok := generic.ParseDecimal(a.Amount)
			if !ok {
				continue
			}
			l.AdvancePayments = append(l.AdvancePayments, settlement.AdvancePayment{Amount: amount, EffectiveDate: a.Date})
		}
		leases = append(leases, l)
	}
	return leases, rows.Err()
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

type costItemRecord struct {
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	RawMethod string `json:"raw_method,omitempty"`
}

// SaveSettlement inserts or updates a settlement. The house must exist.
func (s *Store) SaveSettlement(ctx context.Context, st *settlement.CostSettlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]costItemRecord, 0, len(st.CostItems))
	for _, item := range st.CostItems {
		items = append(items, costItemRecord{
			Name:      item.Name,
			Amount:    item.TotalAmount.String(),
			Method:    string(item.Method),
			RawMethod: item.RawMethod,
		})
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode cost items: %w", err)
	}

	query := `
		INSERT INTO settlements (id, house_id, year, total_area, water_cost, water_consumption, items_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			house_id = excluded.house_id,
			year = excluded.year,
			total_area = excluded.total_area,
			water_cost = excluded.water_cost,
			water_consumption = excluded.water_consumption,
			items_json = excluded.items_json,
			updated_at = excluded.updated_at
	`
	ts := now()
	_, err = s.db.ExecContext(ctx, query,
		string(st.ID), string(st.HouseID), st.Year,
		st.TotalArea.String(), st.WaterCostTotal.String(), st.WaterConsumptionTotal.String(),
		string(itemsJSON), ts, ts,
	)
	if isForeignKeyError(err) {
		return fmt.Errorf("%w: %s", generic.ErrHouseNotFound, st.HouseID)
	}
	return err
}

// GetSettlement returns generic.ErrSettlementNotFound when missing.
func (s *Store) GetSettlement(ctx context.Context, id generic.SettlementID) (*settlement.CostSettlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.querySettlements(ctx, "WHERE s.id = ?", string(id))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", generic.ErrSettlementNotFound, id)
	}
	return &list[0], nil
}

// ListSettlements returns all settlements, newest year first. An empty
// houseID lists the settlements of every house.
func (s *Store) ListSettlements(ctx context.Context, houseID generic.HouseID) ([]settlement.CostSettlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if houseID == "" {
		return s.querySettlements(ctx, "ORDER BY s.year DESC, h.name")
	}
	return s.querySettlements(ctx, "WHERE s.house_id = ? ORDER BY s.year DESC", string(houseID))
}

// DeleteSettlement removes a settlement with its invoices and water readings.
func (s *Store) DeleteSettlement(ctx context.Context, id generic.SettlementID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM settlements WHERE id = ?", string(id))
	return err
}

func (s *Store) querySettlements(ctx context.Context, clause string, args ...any) ([]settlement.CostSettlement, error) {
	query := `
		SELECT s.id, s.house_id, h.name, s.year, s.total_area, s.water_cost, s.water_consumption, s.items_json
		FROM settlements s
		JOIN houses h ON h.id = s.house_id
	` + clause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []settlement.CostSettlement
	for rows.Next() {
		var st settlement.CostSettlement
		var id, houseID, itemsJSON string
		var area, waterCost, waterConsumption sql.NullString
		if err := rows.Scan(&id, &houseID, &st.HouseName, &st.Year, &area, &waterCost, &waterConsumption, &itemsJSON); err != nil {
			return nil, err
		}
		st.ID = generic.SettlementID(id)
		st.HouseID = generic.HouseID(houseID)
		st.TotalArea = generic.MustParseDecimal(area.String)
		st.WaterCostTotal = generic.MustParseDecimal(waterCost.String)
		st.WaterConsumptionTotal = generic.MustParseDecimal(waterConsumption.String)

		var items []costItemRecord
		if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
			return nil, fmt.Errorf("settlement %s: corrupt cost items: %w", id, err)
		}
		for _, item := range items {
			method := settlement.AllocationMethod(item.Method)
			if method != settlement.MethodByArea && method != settlement.MethodByInvoice {
				method = settlement.MethodFixed
			}
			st.CostItems = append(st.CostItems, settlement.CostItem{
				Name:        item.Name,
				TotalAmount: generic.MustParseDecimal(item.Amount),
				Method:      method,
				RawMethod:   item.RawMethod,
			})
		}
		list = append(list, st)
	}
	return list, rows.Err()
}

// =============================================================================
// INVOICES
// =============================================================================

// InvoiceRecord is a stored invoice.
// InvoiceRecord is a stored invoice with its identity.
type InvoiceRecord struct {
	ID           string
	SettlementID generic.SettlementID
	settlement.Invoice
}

// SaveInvoice inserts or updates an invoice. The settlement must exist.
func (s *Store) SaveInvoice(ctx context.Context, inv InvoiceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO invoices (id, settlement_id, tenant_id, cost_item_name, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			cost_item_name = excluded.cost_item_name,
			amount = excluded.amount
	`
	_, err := s.db.ExecContext(ctx, query,
		inv.ID, string(inv.SettlementID), string(inv.TenantID), inv.CostItemName, inv.Amount.String(), now(),
	)
	if isForeignKeyError(err) {
		return fmt.Errorf("%w: %s", generic.ErrSettlementNotFound, inv.SettlementID)
	}
	return err
}

// ListInvoiceRecords returns the settlement's invoices in insertion order.
func (s *Store) ListInvoiceRecords(ctx context.Context, settlementID generic.SettlementID) ([]InvoiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, settlement_id, tenant_id, cost_item_name, amount
		FROM invoices WHERE settlement_id = ?
		ORDER BY created_at, rowid
	`, string(settlementID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []InvoiceRecord
	for rows.Next() {
		var r InvoiceRecord
		var sid, tid, amount string
		if err := rows.Scan(&r.ID, &sid, &tid, &r.CostItemName, &amount); err != nil {
			return nil, err
		}
		r.SettlementID = generic.SettlementID(sid)
		r.TenantID = generic.TenantID(tid)
		r.Amount = generic.MustParseDecimal(amount)
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListInvoices implements settlement.Source.
func (s *Store) ListInvoices(ctx context.Context, settlementID generic.SettlementID) ([]settlement.Invoice, error) {
	records, err := s.ListInvoiceRecords(ctx, settlementID)
	if err != nil {
		return nil, err
	}
	invoices := make([]settlement.Invoice, 0, len(records))
	for _, r := range records {
		invoices = append(invoices, r.Invoice)
	}
	return invoices, nil
}

// =============================================================================
// WATER READINGS
// =============================================================================

// SaveWaterReading inserts or replaces the tenant's consumption for a settlement.
func (s *Store) SaveWaterReading(ctx context.Context, r settlement.WaterMeterReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveWaterReading(ctx, s.db, r)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveWaterReading(ctx context.Context, db execer, r settlement.WaterMeterReading) error {
	query := `
		INSERT INTO water_readings (settlement_id, tenant_id, consumption, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(settlement_id, tenant_id) DO UPDATE SET
			consumption = excluded.consumption,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query, string(r.SettlementID), string(r.TenantID), r.Consumption.String(), now())
	if isForeignKeyError(err) {
		return fmt.Errorf("%w: %s", generic.ErrSettlementNotFound, r.SettlementID)
	}
	return err
}

// ListWaterReadings implements settlement.Source.
func (s *Store) ListWaterReadings(ctx context.Context, settlementID generic.SettlementID) ([]settlement.WaterMeterReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT settlement_id, tenant_id, consumption FROM water_readings WHERE settlement_id = ? ORDER BY tenant_id",
		string(settlementID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []settlement.WaterMeterReading
	for rows.Next() {
		var sid, tid, consumption string
		if err := rows.Scan(&sid, &tid, &consumption); err != nil {
			return nil, err
		}
		readings = append(readings, settlement.WaterMeterReading{
			SettlementID: generic.SettlementID(sid),
			TenantID:     generic.TenantID(tid),
			Consumption:  generic.MustParseDecimal(consumption),
		})
	}
	return readings, rows.Err()
}

// =============================================================================
// METERS
// =============================================================================

// Meter is a water meter installed in an apartment. CustomID is the number
// printed on the meter, as used in reading spreadsheets.
type Meter struct {
	ID          string
	CustomID    string
	ApartmentID string
}

// SaveMeter inserts or updates a meter. CustomID must be unique.
func (s *Store) SaveMeter(ctx context.Context, m Meter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO meters (id, custom_id, apartment_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			custom_id = excluded.custom_id,
			apartment_id = excluded.apartment_id
	`
	_, err := s.db.ExecContext(ctx, query, m.ID, m.CustomID, m.ApartmentID, now())
	switch {
	case isUniqueConstraintError(err):
		return fmt.Errorf("%w: meter %s", generic.ErrDuplicate, m.CustomID)
	case isForeignKeyError(err):
		return fmt.Errorf("%w: %s", generic.ErrApartmentNotFound, m.ApartmentID)
	}
	return err
}

// ListMeters returns all meters ordered by custom ID.
func (s *Store) ListMeters(ctx context.Context) ([]Meter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, custom_id, apartment_id FROM meters ORDER BY custom_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Meter
	for rows.Next() {
		var m Meter
		if err := rows.Scan(&m.ID, &m.CustomID, &m.ApartmentID); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// ImportResult summarizes a meter reading import.
type ImportResult struct {
	// Stored counts readings written to meter_readings.
	Stored int
	// UnknownMeters lists custom IDs without a registered meter.
	UnknownMeters []string
	// Consumption is the derived consumption per tenant.
	Consumption map[generic.TenantID]decimal.Decimal
}

// ImportMeterReadings stores raw readings, derives the settlement year's
// consumption per meter from all stored readings and writes it as the water
// readings of the tenants living in the meters' apartments. It runs in one
// transaction.
//
// A meter's consumption goes to the tenant with the most occupied days in the
// year; on a tie the later move-in wins. Several meters of one tenant add up.
func (s *Store) ImportMeterReadings(ctx context.Context, settlementID generic.SettlementID, readings []meters.Reading) (*ImportResult, error) {
	st, err := s.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, err
	}
	leases, err := s.ListLeases(ctx, st.HouseID)
	if err != nil {
		return nil, err
	}
	registry, err := s.ListMeters(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byCustomID := make(map[string]Meter, len(registry))
	for _, m := range registry {
		byCustomID[m.CustomID] = m
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result := &ImportResult{Consumption: map[generic.TenantID]decimal.Decimal{}}
	unknown := map[string]bool{}
	touched := map[string]Meter{}
	for _, r := range readings {
		m, ok := byCustomID[r.MeterID]
		if !ok {
			if !unknown[r.MeterID] {
				unknown[r.MeterID] = true
				result.UnknownMeters = append(result.UnknownMeters, r.MeterID)
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO meter_readings (meter_id, read_at, value) VALUES (?, ?, ?)
			ON CONFLICT(meter_id, read_at) DO UPDATE SET value = excluded.value
		`, m.ID, r.ReadAt.String(), r.Value.String())
		if err != nil {
			return nil, fmt.Errorf("failed to store reading: %w", err)
		}
		touched[m.ID] = m
		result.Stored++
	}

	// A tenant's total covers every meter attributed to them, not only the
	// meters in this upload.
	affected := map[generic.TenantID]bool{}
	for _, m := range touched {
		if tenant, ok := mainTenant(leases, m.ApartmentID, st.Year); ok {
			affected[tenant] = true
		}
	}
	for _, m := range registry {
		tenant, ok := mainTenant(leases, m.ApartmentID, st.Year)
		if !ok || !affected[tenant] {
			continue
		}
		history, err := meterHistory(ctx, tx, m)
		if err != nil {
			return nil, err
		}
		consumption, ok := meters.YearlyConsumption(history, st.Year)[m.CustomID]
		if !ok {
			continue
		}
		result.Consumption[tenant] = result.Consumption[tenant].Add(consumption)
	}

	for tenant, consumption := range result.Consumption {
		err := saveWaterReading(ctx, tx, settlement.WaterMeterReading{
			TenantID:     tenant,
			SettlementID: settlementID,
			Consumption:  consumption,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return result, nil
}

func meterHistory(ctx context.Context, tx *sql.Tx, m Meter) ([]meters.Reading, error) {
	rows, err := tx.QueryContext(ctx, "SELECT read_at, value FROM meter_readings WHERE meter_id = ? ORDER BY read_at", m.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []meters.Reading
	for rows.Next() {
		var readAt, value string
		if err := rows.Scan(&readAt, &value); err != nil {
			return nil, err
		}
		at, ok := generic.ParseTimePoint(readAt)
		if !ok {
			continue
		}
		history = append(history, meters.Reading{MeterID: m.CustomID, ReadAt: at, Value: generic.MustParseDecimal(value)})
	}
	return history, rows.Err()
}

func mainTenant(leases []settlement.Lease, apartmentID string, year int) (generic.TenantID, bool) {
	var best generic.TenantID
	bestDays := 0
	var bestIn generic.TimePoint
	for _, l := range leases {
		if string(l.UnitID) != apartmentID {
			continue
		}
		occ := settlement.ComputeOccupancy(l.MoveIn, l.MoveOut, year)
		if occ.OccupiedDays == 0 {
			continue
		}
		in, _ := generic.ParseTimePoint(l.MoveIn)
		if occ.OccupiedDays > bestDays || (occ.OccupiedDays == bestDays && in.After(bestIn)) {
			best, bestDays, bestIn = l.ID, occ.OccupiedDays, in
		}
	}
	return best, bestDays > 0
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes all data.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"water_readings", "meter_readings", "meters", "invoices",
		"settlements", "tenants", "apartments", "houses",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
