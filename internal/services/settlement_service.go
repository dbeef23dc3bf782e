package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"bollette/internal/core"
	"bollette/internal/storage"
)

// SettlementService assembles the monthly settlement view: every bill and
// loan installment due in a month, each annotated with its paid state.
type SettlementService struct {
	storage *storage.Repository
	bills   *BillService
	loans   *LoanService
}

func NewSettlementService(storage *storage.Repository, bills *BillService, loans *LoanService) *SettlementService {
	return &SettlementService{
		storage: storage,
		bills:   bills,
		loans:   loans,
	}
}

// MonthlyDueItems returns the settlement rows for the month, sorted by due
// day ascending with bills preceding loan installments on equal days.
// Payment records for the month are provisioned first, so a freshly created
// bill appears immediately.
func (s *SettlementService) MonthlyDueItems(ctx context.Context, householdID string, month core.MonthKey) ([]core.DueItem, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}

	if err := s.bills.EnsureMonthlyRecords(ctx, householdID, month); err != nil {
		return nil, fmt.Errorf("ensure monthly records: %w", err)
	}

	var (
		bills        []core.RecurringBill
		billPayments []core.BillPayment
		loans        []core.Loan
		loanPayments []core.LoanPayment
	)

	// The four record sets are independent; fetch them concurrently.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bills, err = s.storage.ListActiveBills(gctx, householdID)
		return err
	})
	g.Go(func() (err error) {
		billPayments, err = s.storage.ListBillPaymentsForMonth(gctx, householdID, month)
		return err
	})
	g.Go(func() (err error) {
		loans, err = s.storage.ListActiveLoans(gctx, householdID)
		return err
	})
	g.Go(func() (err error) {
		loanPayments, err = s.storage.ListInstallmentPayments(gctx, householdID, month)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch settlement records: %w", err)
	}

	paymentsByID := make(map[string]core.BillPayment, len(billPayments))
	for _, p := range billPayments {
		paymentsByID[p.ID] = p
	}
	installmentsByLoan := make(map[string]core.LoanPayment, len(loanPayments))
	for _, p := range loanPayments {
		installmentsByLoan[p.LoanID] = p
	}

	items := make([]core.DueItem, 0, len(bills)+len(loans))
	for _, bill := range bills {
		items = append(items, billDueItem(bill, month, paymentsByID))
	}
	for _, loan := range loans {
		if loan.Installment.Cents <= 0 {
			continue
		}
		items = append(items, loanDueItem(loan, installmentsByLoan))
	}

	// Stable sort keeps the bills-before-loans order on equal days.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DayOfMonth < items[j].DayOfMonth
	})

	return items, nil
}

// MarkBillPaid toggles a bill row of the settlement view.
func (s *SettlementService) MarkBillPaid(ctx context.Context, paymentID string, isPaid bool) error {
	return s.bills.SetPaidStatus(ctx, paymentID, isPaid)
}

// PayInstallment records the loan's installment for the month. Paying an
// already-paid installment is a no-op; the ledger never gets a duplicate
// entry for the same month.
func (s *SettlementService) PayInstallment(ctx context.Context, loanID string, month core.MonthKey) error {
	if err := month.Validate(); err != nil {
		return err
	}

	loan, err := s.storage.GetLoan(ctx, loanID)
	if err != nil {
		return err
	}
	if loan.Installment.Cents <= 0 {
		return core.ErrInvalidAmount
	}

	existing, err := s.storage.ListInstallmentPayments(ctx, loan.HouseholdID, month)
	if err != nil {
		return fmt.Errorf("check installment payments: %w", err)
	}
	for _, p := range existing {
		if p.LoanID == loanID {
			slog.InfoContext(ctx, "Installment already paid",
				"loan_id", loanID, "month", month)
			return nil
		}
	}

	payment := &core.LoanPayment{
		LoanID:   loanID,
		Amount:   loan.Installment,
		Currency: loan.Currency,
		Month:    month,
	}
	return s.loans.RecordPayment(ctx, payment)
}

// UnpayInstallment always fails: loan payments moved the balance and are
// immutable ledger entries.
func (s *SettlementService) UnpayInstallment(ctx context.Context, loanID string, month core.MonthKey) error {
	slog.WarnContext(ctx, "Rejected installment reversal",
		"loan_id", loanID, "month", month)
	return core.ErrPaymentReversal
}

func billDueItem(bill core.RecurringBill, month core.MonthKey, paymentsByID map[string]core.BillPayment) core.DueItem {
	item := core.DueItem{
		Kind:        core.DueBill,
		SourceID:    bill.ID,
		PaymentID:   core.PaymentKey(bill.ID, month),
		HouseholdID: bill.HouseholdID,
		OwnerID:     bill.OwnerID,
		Name:        bill.Name,
		Category:    bill.Category,
		Amount:      bill.Amount,
		Currency:    bill.Currency,
		DayOfMonth:  bill.DayOfMonth,
	}
	if payment, ok := paymentsByID[item.PaymentID]; ok {
		// The record snapshots the bill's amount at provisioning time.
		item.Amount = payment.Amount
		item.Currency = payment.Currency
		item.IsPaid = payment.IsPaid
		item.PaidAt = payment.PaidAt
	}
	return item
}

func loanDueItem(loan core.Loan, installmentsByLoan map[string]core.LoanPayment) core.DueItem {
	day := loan.PaymentDay
	if day == 0 {
		day = 1
	}
	item := core.DueItem{
		Kind:        core.DueLoan,
		SourceID:    loan.ID,
		HouseholdID: loan.HouseholdID,
		OwnerID:     loan.OwnerID,
		Name:        loan.Name + " (Installment)",
		Category:    "Loan",
		Amount:      loan.Installment,
		Currency:    loan.Currency,
		DayOfMonth:  day,
	}
	if payment, ok := installmentsByLoan[loan.ID]; ok {
		paidAt := payment.PaidAt
		item.PaymentID = payment.ID
		item.IsPaid = true
		item.PaidAt = &paidAt
	}
	return item
}
