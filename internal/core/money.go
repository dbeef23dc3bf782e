// Package core holds the domain types of the household finance tracker:
// bills, loans, savings withdrawals, their payment records, and the money
// and month-token primitives they share.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in integer cents. HUF amounts are stored in cents too
// even though forints are displayed without decimals.
type Money struct {
	Cents int64
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Units returns the whole-unit value as a float64 for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// ParseDecimalToCents converts a decimal string to cents with half-up
// rounding on the third decimal place. It accepts both dot (12.34) and
// comma (12,34) separators and rejects non-positive amounts.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// Symbol returns the display symbol for a currency.
func (c Currency) Symbol() string {
	if c == HUF {
		return "Ft"
	}
	return "€"
}

// Format renders an amount the way the household sees it: euros as
// "€1,234.50", forints as "15 000 Ft" (whole units, space-grouped,
// half-up rounded to the nearest forint).
func (m Money) Format(c Currency) string {
	neg := m.Cents < 0
	cents := m.Cents
	if neg {
		cents = -cents
	}

	var s string
	if c == HUF {
		units := (cents + 50) / 100
		s = groupDigits(strconv.FormatInt(units, 10), ' ') + " Ft"
	} else {
		units := cents / 100
		rem := cents % 100
		s = "€" + groupDigits(strconv.FormatInt(units, 10), ',') + "." + twoDigits(rem)
	}
	if neg {
		return "-" + s
	}
	return s
}

func groupDigits(digits string, sep rune) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteRune(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func twoDigits(v int64) string {
	if v < 10 {
		return "0" + strconv.FormatInt(v, 10)
	}
	return strconv.FormatInt(v, 10)
}
