package export

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.German)

// FormatNumber formats d with German grouping and a fixed number of decimals,
// e.g. 1234.5 -> "1.234,50".
func FormatNumber(d decimal.Decimal, decimals int) string {
	f, _ := d.Round(int32(decimals)).Float64()
	return printer.Sprint(number.Decimal(f, number.Scale(decimals)))
}

// FormatEUR formats an amount as German currency, e.g. "1.234,56 €".
func FormatEUR(d decimal.Decimal) string {
	return FormatNumber(d, 2) + " €"
}
