package amqp

import (
	"encoding/json"
	"time"
)

const (
	KindBill    = "bill"
	KindLoan    = "loan"
	KindPayback = "payback"
)

// PaymentEvent carries one recorded payment to the ledger export worker.
// It is a full snapshot rather than an ID reference, so the worker can
// append a ledger row without reading the database.
type PaymentEvent struct {
	Kind        string    `json:"kind"`
	PaymentID   string    `json:"payment_id"`
	HouseholdID string    `json:"household_id"`
	Name        string    `json:"name"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Month       string    `json:"month,omitempty"`
	PaidAt      time.Time `json:"paid_at"`
}

// ToJSON converts the event to JSON bytes
func (e *PaymentEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// PaymentEventFromJSON creates an event from JSON bytes
func PaymentEventFromJSON(data []byte) (*PaymentEvent, error) {
	var e PaymentEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
