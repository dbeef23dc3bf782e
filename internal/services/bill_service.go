// Package services orchestrates the household's financial records across
// storage and AMQP. Services own the domain rules; handlers stay thin.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bollette/internal/amqp"
	"bollette/internal/core"
	"bollette/internal/storage"
)

// BillService manages recurring bills and their monthly payment records.
type BillService struct {
	storage    *storage.Repository
	amqpClient *amqp.Client
}

func NewBillService(storage *storage.Repository, amqpClient *amqp.Client) *BillService {
	return &BillService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateBill registers a recurring bill and provisions its payment record
// for the given month, so the bill shows up in the settlement view
// immediately instead of waiting for the next provisioning pass.
func (s *BillService) CreateBill(ctx context.Context, bill *core.RecurringBill, month core.MonthKey) error {
	if err := bill.Validate(); err != nil {
		return err
	}
	if err := month.Validate(); err != nil {
		return err
	}

	bill.IsActive = true
	if err := s.storage.CreateBill(ctx, bill); err != nil {
		return fmt.Errorf("create bill: %w", err)
	}

	payment := paymentRecordFor(*bill, month)
	if err := s.storage.UpsertBillPayment(ctx, payment); err != nil {
		return fmt.Errorf("provision payment record: %w", err)
	}

	slog.InfoContext(ctx, "Created recurring bill",
		"bill_id", bill.ID,
		"household_id", bill.HouseholdID,
		"amount_cents", bill.Amount.Cents,
		"day_of_month", bill.DayOfMonth,
		"month", month)

	return nil
}

func (s *BillService) GetBill(ctx context.Context, id string) (core.RecurringBill, error) {
	return s.storage.GetBill(ctx, id)
}

func (s *BillService) ListActiveBills(ctx context.Context, householdID string) ([]core.RecurringBill, error) {
	return s.storage.ListActiveBills(ctx, householdID)
}

func (s *BillService) GetBillPayment(ctx context.Context, paymentID string) (core.BillPayment, error) {
	return s.storage.GetBillPayment(ctx, paymentID)
}

// DeactivateBill soft-deletes the bill. Historical payment records survive.
func (s *BillService) DeactivateBill(ctx context.Context, id string) error {
	if err := s.storage.SetBillActive(ctx, id, false); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Deactivated recurring bill", "bill_id", id)
	return nil
}

// EnsureMonthlyRecords provisions payment records for every active bill in
// the month. Records are keyed deterministically, so re-running for the
// same month is a no-op and concurrent callers converge on one record per
// bill. Paid flags already set are never touched.
func (s *BillService) EnsureMonthlyRecords(ctx context.Context, householdID string, month core.MonthKey) error {
	if err := month.Validate(); err != nil {
		return err
	}

	bills, err := s.storage.ListActiveBills(ctx, householdID)
	if err != nil {
		return fmt.Errorf("list active bills: %w", err)
	}

	created := 0
	for _, bill := range bills {
		payment := paymentRecordFor(bill, month)
		if _, err := s.storage.GetBillPayment(ctx, payment.ID); err == nil {
			continue
		} else if !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("check payment record: %w", err)
		}
		if err := s.storage.UpsertBillPayment(ctx, payment); err != nil {
			return fmt.Errorf("provision payment record: %w", err)
		}
		created++
	}

	if created > 0 {
		slog.InfoContext(ctx, "Provisioned monthly payment records",
			"household_id", householdID,
			"month", month,
			"created", created,
			"active_bills", len(bills))
	}
	return nil
}

// SetPaidStatus toggles a bill payment record. Paying stamps paidAt;
// un-paying clears it. Marking paid publishes a payment event for the
// ledger export, best-effort.
func (s *BillService) SetPaidStatus(ctx context.Context, paymentID string, isPaid bool) error {
	var paidAt *time.Time
	if isPaid {
		now := time.Now().UTC()
		paidAt = &now
	}

	if err := s.storage.SetBillPaymentPaid(ctx, paymentID, isPaid, paidAt); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Updated bill payment status",
		"payment_id", paymentID, "is_paid", isPaid)

	if isPaid {
		s.publishBillPaid(ctx, paymentID, *paidAt)
	}
	return nil
}

func (s *BillService) publishBillPaid(ctx context.Context, paymentID string, paidAt time.Time) {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping payment event")
		return
	}

	payment, err := s.storage.GetBillPayment(ctx, paymentID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load payment for event",
			"payment_id", paymentID, "error", err)
		return
	}

	name := payment.BillID
	if bill, err := s.storage.GetBill(ctx, payment.BillID); err == nil {
		name = bill.Name
	}

	event := &amqp.PaymentEvent{
		Kind:        amqp.KindBill,
		PaymentID:   payment.ID,
		HouseholdID: payment.HouseholdID,
		Name:        name,
		AmountCents: payment.Amount.Cents,
		Currency:    string(payment.Currency),
		Month:       string(payment.Month),
		PaidAt:      paidAt,
	}
	if err := s.amqpClient.PublishPaymentEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish payment event",
			"payment_id", paymentID, "error", err)
		// Don't fail the request - the payment is recorded locally
	}
}

func paymentRecordFor(bill core.RecurringBill, month core.MonthKey) core.BillPayment {
	return core.BillPayment{
		ID:          core.PaymentKey(bill.ID, month),
		BillID:      bill.ID,
		HouseholdID: bill.HouseholdID,
		Amount:      bill.Amount,
		Currency:    bill.Currency,
		Month:       month,
		IsPaid:      false,
	}
}
