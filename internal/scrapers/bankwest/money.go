package bankwest

import (
	"fmt"
	"strings"

	"bankwest-session/pkg/htmlutil"

	"github.com/shopspring/decimal"
)

var moneyReplacer = strings.NewReplacer("$", "", ",", "", " ", "")

// parseMoney reads amounts like "$1,234.56", "-$12.00", "(12.00)",
// "1,234.56 CR" or "80.00 DR". Blank and "-" cells are zero.
func parseMoney(s string) (decimal.Decimal, error) {
	cleaned := htmlutil.CleanText(s)
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, nil
	}

	negative := false
	upper := strings.ToUpper(cleaned)
	switch {
	case strings.HasSuffix(upper, "DR"):
		negative = true
		cleaned = cleaned[:len(cleaned)-2]
	case strings.HasSuffix(upper, "CR"):
		cleaned = cleaned[:len(cleaned)-2]
	}
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	cleaned = moneyReplacer.Replace(cleaned)
	if strings.HasPrefix(cleaned, "-") {
		negative = !negative
		cleaned = cleaned[1:]
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount '%s': %w", s, err)
	}
	if negative {
		value = value.Neg()
	}
	return value, nil
}
