package core

import "time"

const (
	DueBill DueKind = "bill"
	DueLoan DueKind = "loan"
)

type (
	DueKind string

	// DueItem is one row of the monthly settlement view: a recurring bill or
	// a loan installment due in a given month, annotated with paid status.
	DueItem struct {
		Kind        DueKind
		SourceID    string // bill or loan identifier
		PaymentID   string // bill payment key; placeholder until a loan payment exists
		HouseholdID string
		OwnerID     string
		Name        string
		Category    string
		Amount      Money
		Currency    Currency
		DayOfMonth  int
		IsPaid      bool
		PaidAt      *time.Time
	}

	// OutstandingTotals sums remaining balances per currency.
	OutstandingTotals map[Currency]Money
)

// Add accumulates an amount into the per-currency total.
func (t OutstandingTotals) Add(c Currency, m Money) {
	cur := t[c]
	cur.Cents += m.Cents
	t[c] = cur
}
