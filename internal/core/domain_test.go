package core

import "testing"

func validBill() RecurringBill {
	return RecurringBill{
		HouseholdID: "h1",
		OwnerID:     "u1",
		Name:        "Electric",
		Amount:      Money{Cents: 8000},
		Currency:    EUR,
		Category:    "Utilities",
		DayOfMonth:  5,
		IsActive:    true,
	}
}

func TestRecurringBillValidate(t *testing.T) {
	if err := validBill().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*RecurringBill)
	}{
		{"empty household", func(b *RecurringBill) { b.HouseholdID = "" }},
		{"empty name", func(b *RecurringBill) { b.Name = "  " }},
		{"zero amount", func(b *RecurringBill) { b.Amount = Money{} }},
		{"bad currency", func(b *RecurringBill) { b.Currency = "USD" }},
		{"day too low", func(b *RecurringBill) { b.DayOfMonth = 0 }},
		{"day too high", func(b *RecurringBill) { b.DayOfMonth = 32 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := validBill()
			tc.mutate(&b)
			if err := b.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoanValidate(t *testing.T) {
	good := Loan{
		HouseholdID: "h1",
		Name:        "Car",
		Lender:      "Bank",
		Original:    Money{Cents: 300000},
		Remaining:   Money{Cents: 300000},
		Currency:    EUR,
		Installment: Money{Cents: 15000},
		PaymentDay:  10,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Loan)
	}{
		{"empty household", func(l *Loan) { l.HouseholdID = "" }},
		{"empty name", func(l *Loan) { l.Name = "" }},
		{"zero original", func(l *Loan) { l.Original = Money{}; l.Remaining = Money{} }},
		{"remaining above original", func(l *Loan) { l.Remaining = Money{Cents: 300001} }},
		{"negative remaining", func(l *Loan) { l.Remaining = Money{Cents: -1} }},
		{"bad currency", func(l *Loan) { l.Currency = "GBP" }},
		{"payment day out of range", func(l *Loan) { l.PaymentDay = 32 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := good
			tc.mutate(&l)
			if err := l.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	// Zero payment day means unset and is valid.
	noDay := good
	noDay.PaymentDay = 0
	if err := noDay.Validate(); err != nil {
		t.Fatalf("zero payment day should validate, got %v", err)
	}
}

func TestSavingsWithdrawalValidate(t *testing.T) {
	good := SavingsWithdrawal{
		HouseholdID: "h1",
		Description: "New fridge",
		Withdrawn:   Money{Cents: 50000},
		Currency:    EUR,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.PaidBack = Money{Cents: -1}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for negative paid back")
	}
}

func TestOutstandingTotalsAdd(t *testing.T) {
	totals := OutstandingTotals{}
	totals.Add(EUR, Money{Cents: 100})
	totals.Add(EUR, Money{Cents: 250})
	totals.Add(HUF, Money{Cents: 5000})
	if totals[EUR].Cents != 350 {
		t.Fatalf("EUR total = %d", totals[EUR].Cents)
	}
	if totals[HUF].Cents != 5000 {
		t.Fatalf("HUF total = %d", totals[HUF].Cents)
	}
}
