package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfMargin = 15.0
	pdfWidth  = 180.0
	pdfFont   = "Arial"
)

var costColumns = []struct {
	title string
	width float64
	align string
}{
	{"Kostenart", 55, "L"},
	{"Gesamtkosten", 30, "R"},
	{"Umlage", 30, "L"},
	{"Preis/Einheit", 30, "R"},
	{"Ihr Anteil", 35, "R"},
}

// RenderPDF renders every section on its own A4 page.
func RenderPDF(doc Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(Filename(doc.Year, doc.TenantName, FormatPDF), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if len(doc.Sections) == 0 {
		pdf.AddPage()
		pdf.SetFont(pdfFont, "", 10)
		pdf.Cell(0, 6, tr(fmt.Sprintf("Keine Mieter für %d abzurechnen.", doc.Year)))
	}
	for _, sec := range doc.Sections {
		pdf.AddPage()
		writePDFSection(pdf, tr, doc.Owner, sec)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writePDFSection(pdf *gofpdf.Fpdf, tr func(string) string, owner Owner, sec Section) {
	// Letterhead
	pdf.SetFont(pdfFont, "", 9)
	for _, line := range owner.Lines() {
		pdf.CellFormat(0, 4.5, tr(line), "", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont(pdfFont, "B", 14)
	pdf.CellFormat(0, 8, tr(sec.Title), "", 1, "L", false, 0, "")
	pdf.SetFont(pdfFont, "", 10)
	pdf.CellFormat(0, 6, tr("Abrechnungszeitraum: "+sec.BillingPeriod), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	for _, f := range sec.Info {
		pdf.SetFont(pdfFont, "B", 10)
		pdf.CellFormat(40, 5.5, tr(f.Label+":"), "", 0, "L", false, 0, "")
		pdf.SetFont(pdfFont, "", 10)
		pdf.CellFormat(0, 5.5, tr(f.Value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)

	// Cost table
	pdf.SetFont(pdfFont, "B", 9)
	pdf.SetFillColor(235, 235, 235)
	for _, c := range costColumns {
		pdf.CellFormat(c.width, 7, tr(c.title), "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(pdfFont, "", 9)
	for _, row := range sec.Costs {
		price := "-"
		if row.UnitPrice != nil {
			price = FormatNumber(*row.UnitPrice, 4)
		}
		cells := []string{row.Name, FormatEUR(row.TotalAmount), row.Method, price, FormatEUR(row.TenantShare)}
		for i, c := range costColumns {
			pdf.CellFormat(c.width, 6, tr(cells[i]), "LR", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	// Total row beneath the body, separated by a drawn line
	y := pdf.GetY()
	pdf.Line(pdfMargin, y, pdfMargin+pdfWidth, y)
	pdf.SetFont(pdfFont, "B", 9)
	pdf.CellFormat(pdfWidth-costColumns[len(costColumns)-1].width, 7, tr("Summe Betriebskosten"), "", 0, "L", false, 0, "")
	pdf.CellFormat(costColumns[len(costColumns)-1].width, 7, tr(FormatEUR(sec.CostTotal)), "", 1, "R", false, 0, "")
	pdf.Ln(5)

	// Water
	pdf.SetFont(pdfFont, "B", 10)
	pdf.CellFormat(0, 6, tr("Wasserkosten ("+sec.Water.Method+")"), "", 1, "L", false, 0, "")
	pdf.SetFont(pdfFont, "", 9)
	water := []Field{
		{Label: "Gesamtkosten Haus", Value: FormatEUR(sec.Water.TotalCost)},
		{Label: "Gesamtverbrauch Haus", Value: FormatNumber(sec.Water.TotalConsumption, 2) + " m³"},
		{Label: "Preis pro m³", Value: FormatNumber(sec.Water.UnitPrice, 4) + " €"},
		{Label: "Ihr Verbrauch", Value: FormatNumber(sec.Water.Consumption, 2) + " m³"},
		{Label: "Ihr Anteil", Value: FormatEUR(sec.Water.TenantShare)},
	}
	for _, f := range water {
		pdf.CellFormat(60, 5.5, tr(f.Label), "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 5.5, tr(f.Value), "", 1, "R", false, 0, "")
	}
	pdf.Ln(5)

	// Summary
	summary := []Field{
		{Label: "Gesamtkosten", Value: FormatEUR(sec.TotalCostDue)},
		{Label: "Geleistete Vorauszahlungen", Value: FormatEUR(sec.AdvancePaid)},
	}
	pdf.SetFont(pdfFont, "", 10)
	for _, f := range summary {
		pdf.CellFormat(100, 6, tr(f.Label), "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, tr(f.Value), "", 1, "R", false, 0, "")
	}
	y = pdf.GetY()
	pdf.Line(pdfMargin, y, pdfMargin+140, y)
	pdf.SetFont(pdfFont, "B", 11)
	pdf.CellFormat(100, 8, tr(sec.BalanceLabel), "", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, tr(FormatEUR(sec.Balance)), "", 1, "R", false, 0, "")
}
