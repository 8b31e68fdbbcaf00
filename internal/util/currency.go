package util

import "strings"

// knownCurrencies is the small set the channel and the web page know how
// to render. Anything else collapses to the empty string and is hidden.
var knownCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "CAD": true,
	"RUB": true, "UAH": true, "KZT": true, "KGS": true,
	"TRY": true, "BRL": true, "PLN": true, "JPY": true, "CNY": true,
}

func NormalizeCurrency(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if knownCurrencies[c] {
		return c
	}
	return ""
}
