package utils

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders a money value the way users read it, e.g. "R$ 1.234,50".
func FormatBRL(v decimal.Decimal) string {
	return brPrinter.Sprintf("R$ %.2f", v.Round(2).InexactFloat64())
}
