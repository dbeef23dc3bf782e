package services

import (
	"context"
	"fmt"
	"log/slog"

	"bollette/internal/amqp"
	"bollette/internal/core"
	"bollette/internal/storage"
)

// LoanService manages loans and their payment ledgers.
type LoanService struct {
	storage    *storage.Repository
	amqpClient *amqp.Client
}

func NewLoanService(storage *storage.Repository, amqpClient *amqp.Client) *LoanService {
	return &LoanService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateLoan registers a loan with its remaining balance equal to the
// original amount.
func (s *LoanService) CreateLoan(ctx context.Context, loan *core.Loan) error {
	loan.Remaining = loan.Original
	if err := loan.Validate(); err != nil {
		return err
	}

	if err := s.storage.CreateLoan(ctx, loan); err != nil {
		return fmt.Errorf("create loan: %w", err)
	}

	slog.InfoContext(ctx, "Created loan",
		"loan_id", loan.ID,
		"household_id", loan.HouseholdID,
		"original_cents", loan.Original.Cents,
		"installment_cents", loan.Installment.Cents)

	return nil
}

func (s *LoanService) GetLoan(ctx context.Context, id string) (core.Loan, error) {
	return s.storage.GetLoan(ctx, id)
}

func (s *LoanService) ListActiveLoans(ctx context.Context, householdID string) ([]core.Loan, error) {
	return s.storage.ListActiveLoans(ctx, householdID)
}

func (s *LoanService) ListAllLoans(ctx context.Context, householdID string) ([]core.Loan, error) {
	return s.storage.ListAllLoans(ctx, householdID)
}

// UpdateLoan rewrites descriptive fields. The balance stays untouched.
func (s *LoanService) UpdateLoan(ctx context.Context, loan core.Loan) error {
	if err := loan.Validate(); err != nil {
		return err
	}
	return s.storage.UpdateLoan(ctx, loan)
}

func (s *LoanService) DeleteLoan(ctx context.Context, id string) error {
	if err := s.storage.DeleteLoan(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Deleted loan", "loan_id", id)
	return nil
}

// RecordPayment appends a ledger entry and decrements the remaining
// balance, clamped at zero, in a single store transaction. A month tag
// marks the payment as that month's installment for the settlement view.
func (s *LoanService) RecordPayment(ctx context.Context, payment *core.LoanPayment) error {
	if err := payment.Amount.Validate(); err != nil {
		return err
	}
	if err := payment.Currency.Validate(); err != nil {
		return err
	}
	if payment.Month != "" {
		if err := payment.Month.Validate(); err != nil {
			return err
		}
	}

	loan, err := s.storage.GetLoan(ctx, payment.LoanID)
	if err != nil {
		return err
	}
	payment.HouseholdID = loan.HouseholdID

	if err := s.storage.AddLoanPayment(ctx, payment); err != nil {
		return fmt.Errorf("record loan payment: %w", err)
	}

	slog.InfoContext(ctx, "Recorded loan payment",
		"loan_id", payment.LoanID,
		"payment_id", payment.ID,
		"amount_cents", payment.Amount.Cents,
		"month", payment.Month)

	s.publishLoanPaid(ctx, loan, payment)
	return nil
}

func (s *LoanService) ListPayments(ctx context.Context, loanID string) ([]core.LoanPayment, error) {
	return s.storage.ListLoanPayments(ctx, loanID)
}

// OutstandingTotals sums remaining balances of active loans per currency.
func (s *LoanService) OutstandingTotals(ctx context.Context, householdID string) (core.OutstandingTotals, error) {
	loans, err := s.storage.ListActiveLoans(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}

	totals := core.OutstandingTotals{}
	for _, loan := range loans {
		totals.Add(loan.Currency, loan.Remaining)
	}
	return totals, nil
}

func (s *LoanService) publishLoanPaid(ctx context.Context, loan core.Loan, payment *core.LoanPayment) {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping payment event")
		return
	}

	event := &amqp.PaymentEvent{
		Kind:        amqp.KindLoan,
		PaymentID:   payment.ID,
		HouseholdID: payment.HouseholdID,
		Name:        loan.Name,
		AmountCents: payment.Amount.Cents,
		Currency:    string(payment.Currency),
		Month:       string(payment.Month),
		PaidAt:      payment.PaidAt,
	}
	if err := s.amqpClient.PublishPaymentEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish payment event",
			"payment_id", payment.ID, "error", err)
		// Don't fail the request - the payment is recorded locally
	}
}
