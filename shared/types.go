package shared

import "strings"

type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	RUB Currency = "RUB"
)

// NormalizeCurrency upper-cases and trims a user supplied currency code.
func NormalizeCurrency(code string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(code)))
}

// CurrencyInfo is a currency catalog entry.
type CurrencyInfo struct {
	Code Currency `json:"code"`
	Name string   `json:"name"`
}
