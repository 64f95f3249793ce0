/*
Package postgres reads settlement inputs from the web app's hosted database.

PURPOSE:
  The web app keeps its records in Postgres, with cost items and advance
  payments stored as parallel array columns. This package is a read-only
  settlement.Source over that schema, so settlements can be computed and
  exported (cmd/abrechnung) without copying data into the local store.

TABLES READ:
  "Haeuser":       id, name, groesse
  "Wohnungen":     id, haus_id, name, groesse
  "Mieter":        id, wohnung_id, name, einzug, auszug,
                   nebenkosten (numeric[]), nebenkosten_datum (text[])
  "Nebenkosten":   id, haeuser_id, jahr, gesamtflaeche, wasserkosten,
                   wasserverbrauch, nebenkostenart (text[]),
                   betrag (numeric[]), berechnungsart (text[])
  "Rechnungen":    nebenkosten_id, mieter_id, name, betrag
  "Wasserzaehler": nebenkosten_id, mieter_id, verbrauch

ARRAY COLUMNS:
  Arrays are selected as JSON text (array_to_json) and zipped by the
  factory package, which applies the boundary rules for mismatched lengths,
  nulls and unknown allocation methods.

SEE ALSO:
  - factory/settlement.go: parallel array zipping
  - store/sqlite: the server's own read-write store
*/
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/mietevo/settlement-engine/factory"
	"github.com/mietevo/settlement-engine/generic"
	"github.com/mietevo/settlement-engine/settlement"
)

// Source implements settlement.Source on the hosted schema.
type Source struct {
	db      *sql.DB
	factory *factory.SettlementFactory
	logger  *zap.Logger
}

var _ settlement.Source = (*Source)(nil)

// Open connects with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Source, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an open database handle.
func New(db *sql.DB, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{db: db, factory: factory.NewSettlementFactory(), logger: logger}
}

func (s *Source) Close() error {
	return s.db.Close()
}

// GetSettlement loads a settlement and zips its cost item arrays. Unknown
// allocation methods are logged as warnings.
func (s *Source) GetSettlement(ctx context.Context, id generic.SettlementID) (*settlement.CostSettlement, error) {
	const query = `
		SELECT n.id::text, n.haeuser_id::text, COALESCE(h.name, ''), n.jahr::int,
		       COALESCE(n.gesamtflaeche, h.groesse)::text,
		       n.wasserkosten::text, n.wasserverbrauch::text,
		       COALESCE(array_to_json(n.nebenkostenart)::text, '[]'),
		       COALESCE(array_to_json(n.betrag)::text, '[]'),
		       COALESCE(array_to_json(n.berechnungsart)::text, '[]')
		FROM "Nebenkosten" n
		LEFT JOIN "Haeuser" h ON h.id = n.haeuser_id
		WHERE n.id::text = $1
	`
	var (
		sj                        factory.SettlementJSON
		area, waterCost, waterUse sql.NullString
		names, amounts, methods   string
	)
	err := s.db.QueryRowContext(ctx, query, string(id)).Scan(
		&sj.ID, &sj.HouseID, &sj.HouseName, &sj.Year,
		&area, &waterCost, &waterUse,
		&names, &amounts, &methods,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrSettlementNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query settlement: %w", err)
	}

	sj.TotalArea = flex(area)
	sj.WaterCost = flex(waterCost)
	sj.WaterConsumption = flex(waterUse)
	if err := decodeArrays(
		arrayField{names, &sj.CostItemNames},
		arrayField{amounts, &sj.CostItemAmounts},
		arrayField{methods, &sj.CostItemMethods},
	); err != nil {
		return nil, fmt.Errorf("settlement %s: %w", id, err)
	}

	st, warnings, err := s.factory.SettlementFromJSON(sj)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		s.logger.Warn("settlement record", zap.String("settlement_id", sj.ID), zap.Stringer("warning", w))
	}
	return st, nil
}

// ListLeases loads the tenants of every apartment of the house.
func (s *Source) ListLeases(ctx context.Context, houseID generic.HouseID) ([]settlement.Lease, error) {
	const query = `
		SELECT m.id::text, m.name, w.id::text, w.name, w.groesse::text,
		       COALESCE(m.einzug::text, ''), COALESCE(m.auszug::text, ''),
		       COALESCE(array_to_json(m.nebenkosten)::text, '[]'),
		       COALESCE(array_to_json(m.nebenkosten_datum)::text, '[]')
		FROM "Mieter" m
		JOIN "Wohnungen" w ON w.id = m.wohnung_id
		WHERE w.haus_id::text = $1
		ORDER BY w.name, m.einzug, m.id
	`
	rows, err := s.db.QueryContext(ctx, query, string(houseID))
	if err != nil {
		return nil, fmt.Errorf("query leases: %w", err)
	}
	defer rows.Close()

	var leases []settlement.Lease
	for rows.Next() {
		var (
			lj             factory.LeaseJSON
			size           sql.NullString
			amounts, dates string
		)
		if err := rows.Scan(&lj.ID, &lj.Name, &lj.ApartmentID, &lj.ApartmentName, &size,
			&lj.MoveIn, &lj.MoveOut, &amounts, &dates); err != nil {
			return nil, fmt.Errorf("scan lease: %w", err)
		}
		lj.ApartmentSize = flex(size)
		if err := decodeArrays(
			arrayField{amounts, &lj.AdvanceAmounts},
			arrayField{dates, &lj.AdvanceDates},
		); err != nil {
			return nil, fmt.Errorf("tenant %s: %w", lj.ID, err)
		}
		leases = append(leases, s.factory.LeaseFromJSON(lj))
	}
	return leases, rows.Err()
}

// ListInvoices loads the invoices of a settlement in insertion order.
func (s *Source) ListInvoices(ctx context.Context, id generic.SettlementID) ([]settlement.Invoice, error) {
	const query = `
		SELECT mieter_id::text, name, COALESCE(betrag, 0)::text
		FROM "Rechnungen"
		WHERE nebenkosten_id::text = $1 AND mieter_id IS NOT NULL
		ORDER BY ctid
	`
	rows, err := s.db.QueryContext(ctx, query, string(id))
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []settlement.Invoice
	for rows.Next() {
		var tenant, name, amount string
		if err := rows.Scan(&tenant, &name, &amount); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, settlement.Invoice{
			TenantID:     generic.TenantID(tenant),
			CostItemName: name,
			Amount:       generic.MustParseDecimal(amount),
		})
	}
	return invoices, rows.Err()
}

// ListWaterReadings loads the per-tenant consumption of a settlement.
func (s *Source) ListWaterReadings(ctx context.Context, id generic.SettlementID) ([]settlement.WaterMeterReading, error) {
	const query = `
		SELECT mieter_id::text, COALESCE(verbrauch, 0)::text
		FROM "Wasserzaehler"
		WHERE nebenkosten_id::text = $1
		ORDER BY ctid
	`
	rows, err := s.db.QueryContext(ctx, query, string(id))
	if err != nil {
		return nil, fmt.Errorf("query water readings: %w", err)
	}
	defer rows.Close()

	var readings []settlement.WaterMeterReading
	for rows.Next() {
		var tenant, consumption string
		if err := rows.Scan(&tenant, &consumption); err != nil {
			return nil, fmt.Errorf("scan water reading: %w", err)
		}
		readings = append(readings, settlement.WaterMeterReading{
			TenantID:     generic.TenantID(tenant),
			SettlementID: id,
			Consumption:  generic.MustParseDecimal(consumption),
		})
	}
	return readings, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

type arrayField struct {
	raw  string
	dest any
}

// decodeArrays unmarshals JSON arrays; a JSON null element decodes to the
// element type's zero value (strings) or an invalid FlexDecimal.
func decodeArrays(fields ...arrayField) error {
	for _, f := range fields {
		if err := json.Unmarshal([]byte(f.raw), f.dest); err != nil {
			return fmt.Errorf("decode array column: %w", err)
		}
	}
	return nil
}

func flex(ns sql.NullString) *factory.FlexDecimal {
	if !ns.Valid {
		return nil
	}
	d, ok := generic.ParseDecimal(ns.String)
	if !ok {
		return nil
	}
	f := factory.NewFlexDecimal(d)
	return &f
}
