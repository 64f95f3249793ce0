/*
Package meters imports water meter readings and derives yearly consumption.

PURPOSE:
  Landlords read the water meters of their apartments once or several times a
  year and collect the readings in a spreadsheet. This package parses such
  files (CSV or XLSX) with a user-chosen column mapping and turns cumulative
  meter values into the per-meter consumption of a billing year, which the
  settlement then prices at the building's average water price.

IMPORT RULES:
  - The mapping names the header of each required column; headers match
    case-insensitively and ignoring surrounding spaces
  - A missing mapped header aborts the import (ErrColumnNotFound)
  - A row with an empty meter ID, unparseable date or unparseable value is
    reported as a RowError and skipped; the import continues

SEE ALSO:
  - api/handlers.go: POST /api/settlements/{id}/water-readings/import
*/
package meters

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mietevo/settlement-engine/generic"
)

// ErrColumnNotFound is returned when a mapped header is missing from the file.
var ErrColumnNotFound = errors.New("column not found")

// ColumnMapping maps the file's header names to reading fields.
type ColumnMapping struct {
	MeterID string `json:"meter_id" validate:"required"`
	ReadAt  string `json:"read_at" validate:"required"`
	Value   string `json:"value" validate:"required"`
}

// DefaultColumnMapping matches the template spreadsheet handed out to landlords.
var DefaultColumnMapping = ColumnMapping{
	MeterID: "Zähler-ID",
	ReadAt:  "Ablesedatum",
	Value:   "Zählerstand",
}

// Reading is one cumulative meter value on a date.
type Reading struct {
	MeterID string
	ReadAt  generic.TimePoint
	Value   decimal.Decimal
}

// RowError describes a skipped row. Line is 1-based and counts the header.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// columnIndex resolves the mapping against a header row.
type columnIndex struct {
	meterID, readAt, value int
}

func resolveColumns(header []string, m ColumnMapping) (columnIndex, error) {
	find := func(name string) (int, error) {
		want := normalizeHeader(name)
		for i, h := range header {
			if normalizeHeader(h) == want {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}

	var idx columnIndex
	var err error
	if idx.meterID, err = find(m.MeterID); err != nil {
		return idx, err
	}
	if idx.readAt, err = find(m.ReadAt); err != nil {
		return idx, err
	}
	if idx.value, err = find(m.Value); err != nil {
		return idx, err
	}
	return idx, nil
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
}

// parseRows converts data rows (header excluded) into readings. firstLine is
// the file line of rows[0].
func parseRows(rows [][]string, idx columnIndex, firstLine int) ([]Reading, []RowError) {
	var readings []Reading
	var rowErrs []RowError
	for i, row := range rows {
		line := firstLine + i
		if isBlank(row) {
			continue
		}

		meterID := strings.TrimSpace(cell(row, idx.meterID))
		if meterID == "" {
			rowErrs = append(rowErrs, RowError{Line: line, Reason: "missing meter id"})
			continue
		}
		readAt, ok := generic.ParseTimePoint(cell(row, idx.readAt))
		if !ok {
			rowErrs = append(rowErrs, RowError{Line: line, Reason: fmt.Sprintf("invalid date %q", cell(row, idx.readAt))})
			continue
		}
		value, ok := generic.ParseDecimal(cell(row, idx.value))
		if !ok {
			rowErrs = append(rowErrs, RowError{Line: line, Reason: fmt.Sprintf("invalid value %q", cell(row, idx.value))})
			continue
		}

		readings = append(readings, Reading{MeterID: meterID, ReadAt: readAt, Value: value})
	}
	return readings, rowErrs
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// YEARLY CONSUMPTION
// =============================================================================

// YearlyConsumption derives each meter's consumption in a billing year from
// cumulative readings.
//
// The baseline is the latest reading before January 1st; without one, the
// first reading inside the year. The end value is the last reading inside the
// year. Meters without a reading inside the year are omitted. A negative
// difference (meter replaced mid-year) counts as zero.
func YearlyConsumption(readings []Reading, year int) map[string]decimal.Decimal {
	billing := generic.BillingYear(year)

	byMeter := make(map[string][]Reading)
	for _, r := range readings {
		byMeter[r.MeterID] = append(byMeter[r.MeterID], r)
	}

	result := make(map[string]decimal.Decimal, len(byMeter))
	for meterID, rs := range byMeter {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].ReadAt.Before(rs[j].ReadAt) })

		var baseline, last *Reading
		for i := range rs {
			r := &rs[i]
			switch {
			case r.ReadAt.Before(billing.Start):
				baseline = r
			case billing.Contains(r.ReadAt):
				if baseline == nil {
					baseline = r
				}
				last = r
			}
		}
		if last == nil {
			continue
		}

		delta := last.Value.Sub(baseline.Value)
		if delta.IsNegative() {
			delta = decimal.Zero
		}
		result[meterID] = delta
	}
	return result
}
