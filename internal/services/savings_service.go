package services

import (
	"context"
	"fmt"
	"log/slog"

	"bollette/internal/amqp"
	"bollette/internal/core"
	"bollette/internal/storage"
)

// SavingsService tracks money borrowed from the household's savings and
// its gradual return.
type SavingsService struct {
	storage    *storage.Repository
	amqpClient *amqp.Client
}

func NewSavingsService(storage *storage.Repository, amqpClient *amqp.Client) *SavingsService {
	return &SavingsService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

func (s *SavingsService) CreateWithdrawal(ctx context.Context, w *core.SavingsWithdrawal) error {
	w.PaidBack = core.Money{}
	w.FullyPaidBack = false
	if err := w.Validate(); err != nil {
		return err
	}

	if err := s.storage.CreateWithdrawal(ctx, w); err != nil {
		return fmt.Errorf("create withdrawal: %w", err)
	}

	slog.InfoContext(ctx, "Created savings withdrawal",
		"withdrawal_id", w.ID,
		"household_id", w.HouseholdID,
		"withdrawn_cents", w.Withdrawn.Cents)

	return nil
}

func (s *SavingsService) GetWithdrawal(ctx context.Context, id string) (core.SavingsWithdrawal, error) {
	return s.storage.GetWithdrawal(ctx, id)
}

func (s *SavingsService) ListOpenWithdrawals(ctx context.Context, householdID string) ([]core.SavingsWithdrawal, error) {
	return s.storage.ListOpenWithdrawals(ctx, householdID)
}

func (s *SavingsService) ListAllWithdrawals(ctx context.Context, householdID string) ([]core.SavingsWithdrawal, error) {
	return s.storage.ListAllWithdrawals(ctx, householdID)
}

func (s *SavingsService) DeleteWithdrawal(ctx context.Context, id string) error {
	return s.storage.DeleteWithdrawal(ctx, id)
}

// RecordPayback appends a payback entry and folds it into the withdrawal's
// running total in one store transaction; the fully-paid-back flag flips
// exactly when the total reaches the withdrawn amount.
func (s *SavingsService) RecordPayback(ctx context.Context, payback *core.SavingsPayback) error {
	if err := payback.Amount.Validate(); err != nil {
		return err
	}
	if err := payback.Currency.Validate(); err != nil {
		return err
	}

	withdrawal, err := s.storage.GetWithdrawal(ctx, payback.WithdrawalID)
	if err != nil {
		return err
	}
	payback.HouseholdID = withdrawal.HouseholdID

	if err := s.storage.AddPayback(ctx, payback); err != nil {
		return fmt.Errorf("record payback: %w", err)
	}

	slog.InfoContext(ctx, "Recorded savings payback",
		"withdrawal_id", payback.WithdrawalID,
		"payment_id", payback.ID,
		"amount_cents", payback.Amount.Cents)

	s.publishPayback(ctx, withdrawal, payback)
	return nil
}

func (s *SavingsService) ListPaybacks(ctx context.Context, withdrawalID string) ([]core.SavingsPayback, error) {
	return s.storage.ListPaybacks(ctx, withdrawalID)
}

// PaybackProgress returns how much of the withdrawal has been returned,
// as a percentage clamped to 0-100.
func PaybackProgress(w core.SavingsWithdrawal) float64 {
	if w.Withdrawn.Cents <= 0 {
		return 0
	}
	pct := float64(w.PaidBack.Cents) / float64(w.Withdrawn.Cents) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// OwedToSelfTotals sums the still-unreturned portion of open withdrawals
// per currency.
func (s *SavingsService) OwedToSelfTotals(ctx context.Context, householdID string) (core.OutstandingTotals, error) {
	open, err := s.storage.ListOpenWithdrawals(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("list open withdrawals: %w", err)
	}

	totals := core.OutstandingTotals{}
	for _, w := range open {
		owed := w.Withdrawn.Cents - w.PaidBack.Cents
		if owed < 0 {
			owed = 0
		}
		totals.Add(w.Currency, core.Money{Cents: owed})
	}
	return totals, nil
}

func (s *SavingsService) publishPayback(ctx context.Context, w core.SavingsWithdrawal, payback *core.SavingsPayback) {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping payment event")
		return
	}

	event := &amqp.PaymentEvent{
		Kind:        amqp.KindPayback,
		PaymentID:   payback.ID,
		HouseholdID: payback.HouseholdID,
		Name:        w.Description,
		AmountCents: payback.Amount.Cents,
		Currency:    string(payback.Currency),
		PaidAt:      payback.PaidAt,
	}
	if err := s.amqpClient.PublishPaymentEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish payment event",
			"payment_id", payback.ID, "error", err)
		// Don't fail the request - the payback is recorded locally
	}
}
