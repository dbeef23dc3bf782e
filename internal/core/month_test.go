package core

import (
	"testing"
	"time"
)

func TestCurrentMonth(t *testing.T) {
	cases := []struct {
		now  time.Time
		want MonthKey
	}{
		{time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), "2024-03"},
		{time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), "2024-12"},
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "2025-01"},
	}
	for _, tc := range cases {
		if got := CurrentMonth(tc.now); got != tc.want {
			t.Errorf("CurrentMonth(%v) = %s, want %s", tc.now, got, tc.want)
		}
	}
}

func TestParseMonthKey(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-03", true},
		{"2024-12", true},
		{"2024-13", false},
		{"2024-3", false},
		{"202403", false},
		{"", false},
	}
	for _, tc := range cases {
		got, err := ParseMonthKey(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("%q expected ok, got %v", tc.in, err)
			}
			if string(got) != tc.in {
				t.Fatalf("%q round-tripped to %q", tc.in, got)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestPaymentKeyDeterminism(t *testing.T) {
	month := MonthKey("2024-03")
	key := PaymentKey("bill-123", month)
	if key != "bill-123_2024-03" {
		t.Fatalf("unexpected key %q", key)
	}
	// Re-deriving for the same pair always yields the same string.
	if again := PaymentKey("bill-123", month); again != key {
		t.Fatalf("key not deterministic: %q != %q", again, key)
	}
}

func TestClampDay(t *testing.T) {
	cases := []struct {
		month MonthKey
		day   int
		want  int
	}{
		{"2024-02", 31, 29}, // leap year
		{"2023-02", 31, 28},
		{"2024-04", 31, 30},
		{"2024-03", 31, 31},
		{"2024-03", 5, 5},
		{"2024-03", 0, 1},
	}
	for _, tc := range cases {
		if got := tc.month.ClampDay(tc.day); got != tc.want {
			t.Errorf("%s.ClampDay(%d) = %d, want %d", tc.month, tc.day, got, tc.want)
		}
	}
}

func TestMonthName(t *testing.T) {
	if got := MonthKey("2024-03").Name(); got != "March 2024" {
		t.Fatalf("Name() = %q", got)
	}
}

func TestDueDate(t *testing.T) {
	d := MonthKey("2023-02").DueDate(30)
	if d.Day() != 28 || d.Month() != time.February || d.Year() != 2023 {
		t.Fatalf("DueDate clamped wrong: %v", d)
	}
}
