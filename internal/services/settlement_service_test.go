package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bollette/internal/core"
	"bollette/internal/storage"
)

type testEnv struct {
	repo       *storage.Repository
	bills      *BillService
	loans      *LoanService
	savings    *SavingsService
	settlement *SettlementService
	households *HouseholdService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := storage.New(filepath.Join(t.TempDir(), "bollette_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	bills := NewBillService(repo, nil)
	loans := NewLoanService(repo, nil)
	return &testEnv{
		repo:       repo,
		bills:      bills,
		loans:      loans,
		savings:    NewSavingsService(repo, nil),
		settlement: NewSettlementService(repo, bills, loans),
		households: NewHouseholdService(repo),
	}
}

func TestMonthlyDueItemsMergesBillsAndLoans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	month := core.MonthKey("2024-03")

	bill := &core.RecurringBill{
		HouseholdID: "hh-1",
		OwnerID:     "user-1",
		Name:        "Electric",
		Amount:      core.Money{Cents: 8000},
		Currency:    core.EUR,
		Category:    "Utilities",
		DayOfMonth:  5,
	}
	require.NoError(t, env.bills.CreateBill(ctx, bill, month))

	loan := &core.Loan{
		HouseholdID: "hh-1",
		OwnerID:     "user-1",
		Name:        "Car loan",
		Original:    core.Money{Cents: 500000},
		Currency:    core.EUR,
		Installment: core.Money{Cents: 15000},
		PaymentDay:  10,
	}
	require.NoError(t, env.loans.CreateLoan(ctx, loan))

	items, err := env.settlement.MonthlyDueItems(ctx, "hh-1", month)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, core.DueBill, items[0].Kind)
	assert.Equal(t, "Electric", items[0].Name)
	assert.Equal(t, 5, items[0].DayOfMonth)
	assert.Equal(t, int64(8000), items[0].Amount.Cents)
	assert.False(t, items[0].IsPaid)
	assert.Equal(t, core.PaymentKey(bill.ID, month), items[0].PaymentID)

	assert.Equal(t, core.DueLoan, items[1].Kind)
	assert.Equal(t, "Car loan (Installment)", items[1].Name)
	assert.Equal(t, "Loan", items[1].Category)
	assert.Equal(t, 10, items[1].DayOfMonth)
	assert.Equal(t, int64(15000), items[1].Amount.Cents)
	assert.False(t, items[1].IsPaid)
}

func TestMonthlyDueItemsBillsPrecedeLoansOnEqualDays(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	month := core.MonthKey("2024-03")

	loan := &core.Loan{
		HouseholdID: "hh-1",
		OwnerID:     "user-1",
		Name:        "Car loan",
		Original:    core.Money{Cents: 500000},
		Currency:    core.EUR,
		Installment: core.Money{Cents: 15000},
		PaymentDay:  5,
	}
	require.NoError(t, env.loans.CreateLoan(ctx, loan))

	bill := &core.RecurringBill{
		HouseholdID: "hh-1",
		OwnerID:     "user-1",
		Name:        "Electric",
		Amount:      core.Money{Cents: 8000},
		Currency:    core.EUR,
		DayOfMonth:  5,
	}
	require.NoError(t, env.bills.CreateBill(ctx, bill, month))

	items, err := env.settlement.MonthlyDueItems(ctx, "hh-1", month)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, core.DueBill, items[0].Kind)
	assert.Equal(t, core.DueLoan, items[1].Kind)
}

func TestMonthlyDueItemsSkipsLoansWithoutInstallment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	loan := &core.Loan{
		HouseholdID: "hh-1",
		OwnerID:     "user-1",
		Name:        "Informal loan",
		Original:    core.Money{Cents: 100000},
		Currency:    core.EUR,
	}
	require.NoError(t, env.loans.CreateLoan(ctx, loan))

	items, err := env.settlement.MonthlyDueItems(ctx, "hh-1", core.MonthKey("2024-03"))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMonthlyDueItemsLoanWithoutPaymentDayDefaultsToFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	loan := &core.Loan{
		HouseholdID: "hh-1",
		OwnerID:     "user-1",
		Name:        "Car loan",
		Original:    core.Money{Cents: 500000},
		Currency:    core.EUR,
		Installment: core.Money{Cents: 15000},
	}
	require.NoError(t, env.loans.CreateLoan(ctx, loan))

	items, err := env.settlement.MonthlyDueItems(ctx, "hh-1", core.MonthKey("2024-03"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].DayOfMonth)
}

func TestMarkBillPaidTogglesBothWays(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	month := core.MonthKey("2024-03")

	bill := &core.RecurringBill{
		HouseholdID: "hh-1",
		OwnerID:     "user-1",
		Name:        "Electric",
		Amount:      core.Money{Cents: 8000},
		Currency:    core.EUR,
		DayOfMonth:  5,
	}
	require.NoError(t, env.bills.CreateBill(ctx, bill, month))

	paymentID := core.PaymentKey(bill.ID, month)
	require.NoError(t, env.settlement.MarkBillPaid(ctx, paymentID, true))

	items, err := env.settlement.MonthlyDueItems(ctx, "hh-1", month)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsPaid)
	assert.NotNil(t, items[0].PaidAt)

	require.NoError(t, env.settlement.MarkBillPaid(ctx, paymentID, false))

	items, err = env.settlement.MonthlyDueItems(ctx, "hh-1", month)
	require.NoError(t, err)
	assert.False(t, items[0].IsPaid)
	assert.Nil(t, items[0].PaidAt)
}

func TestPayInstallmentMarksLoanItemPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	month := core.MonthKey("2024-03")

	loan := &core.Loan{
		HouseholdID: "hh-1",
		OwnerID:     "user-1",
		Name:        "Car loan",
		Original:    core.Money{Cents: 500000},
		Currency:    core.EUR,
		Installment: core.Money{Cents: 15000},
		PaymentDay:  10,
	}
	require.NoError(t, env.loans.CreateLoan(ctx, loan))

	require.NoError(t, env.settlement.PayInstallment(ctx, loan.ID, month))

	items, err := env.settlement.MonthlyDueItems(ctx, "hh-1", month)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsPaid)
	assert.NotEmpty(t, items[0].PaymentID)

	got, err := env.loans.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(485000), got.Remaining.Cents)
}

func TestPayInstallmentTwiceIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	month := core.MonthKey("2024-03")

	loan := &core.Loan{
		HouseholdID: "hh-1",
		OwnerID:     "user-1",
		Name:        "Car loan",
		Original:    core.Money{Cents: 500000},
		Currency:    core.EUR,
		Installment: core.Money{Cents: 15000},
		PaymentDay:  10,
	}
	require.NoError(t, env.loans.CreateLoan(ctx, loan))

	require.NoError(t, env.settlement.PayInstallment(ctx, loan.ID, month))
	require.NoError(t, env.settlement.PayInstallment(ctx, loan.ID, month))

	got, err := env.loans.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(485000), got.Remaining.Cents)

	ledger, err := env.loans.ListPayments(ctx, loan.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
}

func TestUnpayInstallmentIsRejected(t *testing.T) {
	env := newTestEnv(t)

	err := env.settlement.UnpayInstallment(context.Background(), "loan-1", core.MonthKey("2024-03"))
	require.ErrorIs(t, err, core.ErrPaymentReversal)
}

func TestMonthlyDueItemsRejectsBadMonth(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.settlement.MonthlyDueItems(context.Background(), "hh-1", core.MonthKey("2024-13"))
	require.ErrorIs(t, err, core.ErrInvalidMonth)
}
