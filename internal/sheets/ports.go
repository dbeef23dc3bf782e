package sheets

import (
	"context"
	"time"
)

// Entry is one ledger row: a payment the household made, regardless of
// whether it settled a bill, a loan installment, or a savings payback.
type Entry struct {
	Kind        string
	PaymentID   string
	HouseholdID string
	Name        string
	AmountCents int64
	Currency    string
	Month       string
	PaidAt      time.Time
}

// Ports for outbound adapters.
type (
	LedgerWriter interface {
		Append(ctx context.Context, e Entry) (rowRef string, err error)
	}
)
