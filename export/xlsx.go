package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Excel limits sheet names to 31 characters and forbids some punctuation.
const maxSheetName = 31

// RenderXLSX renders one worksheet per section.
func RenderXLSX(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}

	first := f.GetSheetName(0)
	used := map[string]bool{}
	for i, sec := range doc.Sections {
		name := uniqueSheetName(sec.TenantName, i, used)
		if i == 0 {
			if err := f.SetSheetName(first, name); err != nil {
				return nil, fmt.Errorf("render xlsx: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("render xlsx: %w", err)
		}
		w := &sheetWriter{f: f, sheet: name, money: moneyStyle, bold: boldStyle}
		w.section(doc.Owner, sec)
		if w.err != nil {
			return nil, fmt.Errorf("render xlsx: %w", w.err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func uniqueSheetName(tenant string, index int, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, strings.TrimSpace(tenant))
	if name == "" {
		name = fmt.Sprintf("Mieter %d", index+1)
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	base := name
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		r := []rune(base)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		name = string(r) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

// sheetWriter writes rows top-down and keeps the first error.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
	money int
	bold  int
	err   error
}

func (w *sheetWriter) cell(col int, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func (w *sheetWriter) line(values ...any) {
	w.row++
	if w.err != nil {
		return
	}
	for i, v := range values {
		if d, ok := v.(decimal.Decimal); ok {
			v = d.InexactFloat64()
			w.style(i+1, w.money)
		}
		if err := w.f.SetCellValue(w.sheet, w.cell(i+1, w.row), v); err != nil {
			w.err = err
			return
		}
	}
}

func (w *sheetWriter) style(col, style int) {
	if w.err != nil {
		return
	}
	c := w.cell(col, w.row)
	w.err = w.f.SetCellStyle(w.sheet, c, c, style)
}

func (w *sheetWriter) boldRow(cols int) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellStyle(w.sheet, w.cell(1, w.row), w.cell(cols, w.row), w.bold)
}

func (w *sheetWriter) section(owner Owner, sec Section) {
	for _, l := range owner.Lines() {
		w.line(l)
	}
	w.row++

	w.line(sec.Title)
	w.boldRow(1)
	w.line("Abrechnungszeitraum", sec.BillingPeriod)
	for _, f := range sec.Info {
		w.line(f.Label, f.Value)
	}
	w.row++

	header := make([]any, len(costColumns))
	for i, c := range costColumns {
		header[i] = c.title
	}
	w.line(header...)
	w.boldRow(len(costColumns))
	for _, c := range sec.Costs {
		var price any = "-"
		if c.UnitPrice != nil {
			price = c.UnitPrice.InexactFloat64()
		}
		w.line(c.Name, c.TotalAmount, c.Method, price, c.TenantShare)
	}
	w.line("Summe Betriebskosten", "", "", "", sec.CostTotal)
	w.boldRow(len(costColumns))
	w.row++

	w.line("Wasserkosten", sec.Water.Method)
	w.boldRow(1)
	w.line("Gesamtkosten Haus", sec.Water.TotalCost)
	w.line("Gesamtverbrauch Haus (m³)", sec.Water.TotalConsumption.InexactFloat64())
	w.line("Preis pro m³", sec.Water.UnitPrice.InexactFloat64())
	w.line("Ihr Verbrauch (m³)", sec.Water.Consumption.InexactFloat64())
	w.line("Ihr Anteil", sec.Water.TenantShare)
	w.row++

	w.line("Gesamtkosten", sec.TotalCostDue)
	w.line("Geleistete Vorauszahlungen", sec.AdvancePaid)
	w.line(sec.BalanceLabel, sec.Balance)
	w.boldRow(2)

	if w.err == nil {
		w.err = w.f.SetColWidth(w.sheet, "A", "A", 32)
	}
	if w.err == nil {
		w.err = w.f.SetColWidth(w.sheet, "B", "E", 18)
	}
}
