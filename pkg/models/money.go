package models

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact fixed-point decimal amount. All reconciliation, dedup
// hashing and scoring arithmetic goes through this type; float64 is never
// used for monetary values.
type Money = decimal.Decimal

// BalanceTolerance is the maximum absolute difference accepted when
// reconciling balances and declared totals (±0.02 covers bank-side rounding).
var BalanceTolerance = decimal.RequireFromString("0.02")

var amountCleanRe = regexp.MustCompile(`[^0-9,.\-+]`)

// ParseAmount parses a Polish-formatted amount string into Money quantized
// to two decimal places. Accepts "1 234,56", "1.234,56", "-150.00",
// "+5 000,00 PLN" and similar bank renderings.
func ParseAmount(s string) (Money, error) {
	cleaned := amountCleanRe.ReplaceAllString(strings.TrimSpace(s), "")
	if cleaned == "" || cleaned == "-" || cleaned == "+" {
		return decimal.Zero, fmt.Errorf("empty amount %q", s)
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma > lastDot:
		// Comma is the decimal separator, dots are thousands separators.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case lastDot > lastComma:
		// Dot is the decimal separator, commas are thousands separators.
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q: %v", s, err)
	}
	return Quantize(d), nil
}

// Quantize rounds to exactly two fractional digits (banker-free half-up,
// matching statement rendering).
func Quantize(d Money) Money {
	return d.Round(2)
}

// WithinTolerance reports whether |a-b| <= BalanceTolerance.
func WithinTolerance(a, b Money) bool {
	return a.Sub(b).Abs().Cmp(BalanceTolerance) <= 0
}

// AmountString renders a Money with a fixed two-decimal format. Used in
// dedup hashes so the representation is stable regardless of trailing zeros.
func AmountString(d Money) string {
	return d.StringFixed(2)
}
