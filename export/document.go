/*
Package export renders computed settlements as documents.

PURPOSE:
  A settlement result is handed to the tenant as a printable statement
  (Betriebskostenabrechnung). This package lays the results out once, as a
  format-independent Document, and renders that document as PDF or XLSX.

LAYOUT (one section per tenant):
  - Letterhead: the landlord's name and address
  - Title "Betriebskostenabrechnung {year}" and the billing period
  - Identification: house, unit, tenant, living area, occupancy
  - Cost table: name, total, method, unit price, tenant share, then a total row
  - Water block: building cost and consumption, price per m³, tenant share
  - Summary: total costs, advance payments, balance ("Nachzahlung"/"Guthaben")

SEE ALSO:
  - pdf.go: gofpdf renderer, one page per section
  - xlsx.go: excelize renderer, one sheet per section
  - format.go: German number and currency formatting
*/
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mietevo/settlement-engine/generic"
	"github.com/mietevo/settlement-engine/observability/metrics"
	"github.com/mietevo/settlement-engine/settlement"
)

// =============================================================================
// FORMAT
// =============================================================================

// Format is a document output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format string. Empty input means PDF.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPDF, "":
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", generic.ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/pdf"
}

// =============================================================================
// DOCUMENT MODEL
// =============================================================================

// Owner is the landlord shown in the letterhead.
type Owner struct {
	Name   string `yaml:"name"`
	Street string `yaml:"street"`
	City   string `yaml:"city"`
}

// Lines returns the non-empty letterhead lines.
func (o Owner) Lines() []string {
	var lines []string
	for _, l := range []string{o.Name, o.Street, o.City} {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Document is a rendered-format-independent settlement statement.
type Document struct {
	Owner Owner
	Year  int

	// TenantName is set when the document was built for a selected tenant.
	TenantName string

	Sections []Section
}

// Field is a labelled value in the identification block.
type Field struct {
	Label string
	Value string
}

// CostRow is one line of the cost table.
type CostRow struct {
	Name        string
	TotalAmount decimal.Decimal
	Method      string
	// UnitPrice is nil for methods without a price per unit.
	UnitPrice   *decimal.Decimal
	TenantShare decimal.Decimal
}

// WaterBlock is the consumption-based water allocation.
type WaterBlock struct {
	TotalCost        decimal.Decimal
	TotalConsumption decimal.Decimal
	Method           string
	UnitPrice        decimal.Decimal
	Consumption      decimal.Decimal
	TenantShare      decimal.Decimal
}

// Section is the statement of one tenant.
type Section struct {
	Title         string
	BillingPeriod string
	TenantName    string
	Info          []Field
	Costs         []CostRow
	CostTotal     decimal.Decimal
	Water         WaterBlock
	TotalCostDue  decimal.Decimal
	AdvancePaid   decimal.Decimal
	Balance       decimal.Decimal
	BalanceLabel  string
}

// BuildDocument lays out one section per result, in result order. The
// document is named after its tenant only in ModeSingle.
func BuildDocument(owner Owner, s *settlement.CostSettlement, mode settlement.Mode, results []settlement.TenantSettlementResult) Document {
	doc := Document{Owner: owner, Year: s.Year}
	if mode == settlement.ModeSingle && len(results) == 1 {
		doc.TenantName = results[0].TenantName
	}
	for _, r := range results {
		doc.Sections = append(doc.Sections, buildSection(s, r))
	}
	return doc
}

func buildSection(s *settlement.CostSettlement, r settlement.TenantSettlementResult) Section {
	sec := Section{
		Title:         fmt.Sprintf("Betriebskostenabrechnung %d", s.Year),
		BillingPeriod: s.Period().String(),
		TenantName:    r.TenantName,
		Info: []Field{
			{Label: "Haus", Value: s.HouseName},
			{Label: "Wohnung", Value: r.UnitName},
			{Label: "Mieter", Value: r.TenantName},
			{Label: "Wohnfläche", Value: FormatNumber(r.UnitSize, 2) + " m²"},
			{Label: "Nutzungszeitraum", Value: fmt.Sprintf("%d von %d Tagen (%s %%)",
				r.OccupiedDays, r.TotalBillingDays, FormatNumber(r.OccupancyFraction, 2))},
		},
		CostTotal: r.TotalCostItems,
		Water: WaterBlock{
			TotalCost:        r.Water.TotalBuildingCost,
			TotalConsumption: r.Water.TotalBuildingConsumption,
			Method:           r.Water.Method,
			UnitPrice:        r.Water.UnitPrice,
			Consumption:      r.Water.Consumption,
			TenantShare:      r.Water.TenantShare,
		},
		TotalCostDue: r.TotalCostDue,
		AdvancePaid:  r.TotalAdvancePaid,
		Balance:      r.FinalBalance,
		BalanceLabel: r.BalanceLabel(),
	}
	for _, a := range r.CostAllocations {
		sec.Costs = append(sec.Costs, CostRow{
			Name:        a.Name,
			TotalAmount: a.TotalAmount,
			Method:      a.Method.Label(),
			UnitPrice:   a.UnitPrice,
			TenantShare: a.TenantShare,
		})
	}
	return sec
}

// =============================================================================
// RENDERING
// =============================================================================

// Filename returns the download name of a document:
// Abrechnung_{year}_{tenant}.{ext}, or Abrechnung_{year}_Alle_Mieter.{ext}
// when no single tenant is named.
func Filename(year int, tenantName string, format Format) string {
	name := sanitizeFilename(tenantName)
	if name == "" {
		name = "Alle_Mieter"
	}
	return fmt.Sprintf("Abrechnung_%d_%s.%s", year, name, format)
}

func sanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), "_")
}

// Render renders the document in the given format.
func Render(doc Document, format Format) ([]byte, error) {
	start := time.Now()
	var (
		out []byte
		err error
	)
	switch format {
	case FormatPDF:
		out, err = RenderPDF(doc)
	case FormatXLSX:
		out, err = RenderXLSX(doc)
	default:
		err = fmt.Errorf("%w: %q", generic.ErrUnsupportedFormat, format)
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveExport(string(format), result, time.Since(start))
	return out, err
}
