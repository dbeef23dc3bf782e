// Package worker moves payment events from the queue into the household's
// ledger spreadsheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bollette/internal/amqp"
	"bollette/internal/sheets"
)

// ExportWorker appends one ledger row per consumed payment event.
type ExportWorker struct {
	ledger sheets.LedgerWriter
}

func NewExportWorker(ledger sheets.LedgerWriter) *ExportWorker {
	return &ExportWorker{ledger: ledger}
}

// HandlePaymentEvent processes a single payment event from AMQP. Returning
// an error requeues the delivery.
func (w *ExportWorker) HandlePaymentEvent(ctx context.Context, event *amqp.PaymentEvent) error {
	if w.ledger == nil {
		slog.WarnContext(ctx, "No ledger writer configured, dropping event",
			"payment_id", event.PaymentID)
		return nil
	}

	entry := sheets.Entry{
		Kind:        event.Kind,
		PaymentID:   event.PaymentID,
		HouseholdID: event.HouseholdID,
		Name:        event.Name,
		AmountCents: event.AmountCents,
		Currency:    event.Currency,
		Month:       event.Month,
		PaidAt:      event.PaidAt,
	}

	ref, err := w.ledger.Append(ctx, entry)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	slog.InfoContext(ctx, "Exported payment to ledger",
		"kind", event.Kind,
		"payment_id", event.PaymentID,
		"ledger_ref", ref,
		"amount_cents", event.AmountCents)

	return nil
}
