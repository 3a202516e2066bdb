package innertube

import (
	"strconv"
	"strings"
)

// The paid renderers only expose a locale-formatted purchase string
// ("€5.00", "$2,000.00", "¥1,000"). The symbol table maps the common
// currency marks to ISO codes; unknown symbols fall back to USD so the
// amount is never silently dropped.
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₩", "KRW"},
	{"₹", "INR"},
	{"R$", "BRL"},
	{"CA$", "CAD"},
	{"A$", "AUD"},
	{"MX$", "MXN"},
	{"$", "USD"},
}

func currencyFromDisplay(display string) string {
	if display == "" {
		return ""
	}
	for _, entry := range currencySymbols {
		if strings.Contains(display, entry.symbol) {
			return entry.code
		}
	}
	// Some locales render a trailing ISO code instead of a symbol.
	fields := strings.Fields(display)
	if len(fields) > 0 {
		last := fields[len(fields)-1]
		if len(last) == 3 && strings.ToUpper(last) == last && !strings.ContainsAny(last, "0123456789") {
			return last
		}
	}
	return "USD"
}

// parseAmountMicros converts a display amount to micro-units. Grouping
// separators are dropped; the last separator within two decimals of the
// end is treated as the decimal mark ("1.000,50" and "1,000.50" both
// parse to 1000500000).
func parseAmountMicros(display string) int64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			return r
		}
		return -1
	}, display)
	if cleaned == "" {
		return 0
	}

	lastDot := strings.LastIndexByte(cleaned, '.')
	lastComma := strings.LastIndexByte(cleaned, ',')
	sep := lastDot
	if lastComma > sep {
		sep = lastComma
	}

	normalized := cleaned
	if sep != -1 {
		digitsAfter := len(cleaned) - sep - 1
		if digitsAfter > 0 && digitsAfter <= 2 {
			intPart := strings.Map(keepDigits, cleaned[:sep])
			fracPart := strings.Map(keepDigits, cleaned[sep+1:])
			normalized = intPart + "." + fracPart
		} else {
			normalized = strings.Map(keepDigits, cleaned)
		}
	}

	amount, err := strconv.ParseFloat(normalized, 64)
	if err != nil || amount < 0 {
		return 0
	}
	return int64(amount*1_000_000 + 0.5)
}

func keepDigits(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}
