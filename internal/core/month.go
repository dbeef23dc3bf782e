package core

import (
	"fmt"
	"strconv"
	"time"
)

// MonthKey identifies a calendar month for settlement purposes, formatted
// "YYYY-MM" with a zero-padded month.
type MonthKey string

// CurrentMonth derives the month token from the given wall-clock time in
// its location. Household members in different timezones may disagree near
// month boundaries; no normalization is attempted.
func CurrentMonth(now time.Time) MonthKey {
	return NewMonthKey(now.Year(), int(now.Month()))
}

func NewMonthKey(year, month int) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, month))
}

// ParseMonthKey validates and normalizes a "YYYY-MM" string.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return "", ErrInvalidMonth
	}
	return NewMonthKey(t.Year(), int(t.Month())), nil
}

func (m MonthKey) String() string { return string(m) }

func (m MonthKey) Validate() error {
	_, err := ParseMonthKey(string(m))
	return err
}

// Year returns the token's year, or 0 for a malformed token.
func (m MonthKey) Year() int {
	if len(m) < 4 {
		return 0
	}
	y, _ := strconv.Atoi(string(m)[:4])
	return y
}

// Month returns the token's month 1-12, or 0 for a malformed token.
func (m MonthKey) Month() int {
	if len(m) < 7 {
		return 0
	}
	v, _ := strconv.Atoi(string(m)[5:7])
	return v
}

// Name returns a human-readable label such as "March 2024".
func (m MonthKey) Name() string {
	t, err := time.Parse("2006-01", string(m))
	if err != nil {
		return string(m)
	}
	return t.Format("January 2006")
}

// LastDay returns the number of days in the month.
func (m MonthKey) LastDay() int {
	return time.Date(m.Year(), time.Month(m.Month())+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay resolves a nominal day-of-month (1-31) against the month's real
// length: day 31 in February resolves to the 28th or 29th. Stored bills keep
// the nominal day; clamping happens only when a concrete date is needed.
func (m MonthKey) ClampDay(day int) int {
	if last := m.LastDay(); day > last {
		return last
	}
	if day < 1 {
		return 1
	}
	return day
}

// DueDate returns the concrete due date of a nominal day within the month.
func (m MonthKey) DueDate(day int) time.Time {
	return time.Date(m.Year(), time.Month(m.Month()), m.ClampDay(day), 0, 0, 0, 0, time.UTC)
}

// PaymentKey builds the deterministic BillPayment identifier for a
// (bill, month) pair. Using it as the record's primary key makes monthly
// provisioning an idempotent upsert rather than a blind insert.
func PaymentKey(billID string, month MonthKey) string {
	return billID + "_" + string(month)
}
