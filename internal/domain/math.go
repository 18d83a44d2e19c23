package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// nativePrecision is the number of decimal places of the native currency (1 XRP = 1e6 drops).
const nativePrecision = 6

// DropsToNative converts an integer drops string into native currency units.
func DropsToNative(drops string) (decimal.Decimal, error) {
	if strings.ContainsAny(drops, ".eE") {
		return decimal.Zero, fmt.Errorf("%w: drops must be an integer, got %q", ErrInvalidAmount, drops)
	}
	d, err := decimal.NewFromString(drops)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, drops)
	}
	return d.Shift(-nativePrecision), nil
}

// FormatNative rounds to native precision and strips trailing zeros.
func FormatNative(d decimal.Decimal) string {
	s := d.Round(nativePrecision).StringFixed(nativePrecision)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
