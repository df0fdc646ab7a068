// Package normalize holds the pure validation and canonicalization rules
// applied to receptor identifiers and monetary amounts before a request
// is submitted to the tax authority.
package normalize

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnparsableAmount is returned when no numeric value can be extracted
// from an amount field.
var ErrUnparsableAmount = errors.New("unparsable amount")

// ParseAmount parses a locale-formatted amount into a decimal.
//
// Separator disambiguation: when both '.' and ',' appear, the rightmost
// one is the decimal separator and the other marks thousands; a lone ','
// is always a decimal separator; otherwise every character except digits
// and '.' is stripped.
func ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")

	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	s = stripExceptDigitsAndDot(s)
	if n := strings.Count(s, "."); n > 1 {
		// stray thousands dots, keep only the last as decimal
		last := strings.LastIndex(s, ".")
		s = strings.ReplaceAll(s[:last], ".", "") + s[last:]
	}
	if s == "" || s == "." {
		return decimal.Zero, ErrUnparsableAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrUnparsableAmount
	}
	return d, nil
}

func stripExceptDigitsAndDot(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Round2 rounds half-up to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
