package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bollette/internal/core"
)

func TestCreateAndGetLoan(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	loan := newTestLoan("hh-1", 500000)
	require.NoError(t, repo.CreateLoan(ctx, loan))
	require.NotEmpty(t, loan.ID)

	got, err := repo.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Car loan", got.Name)
	assert.Equal(t, int64(500000), got.Original.Cents)
	assert.Equal(t, int64(500000), got.Remaining.Cents)
	assert.Equal(t, int64(15000), got.Installment.Cents)
	assert.Equal(t, 10, got.PaymentDay)
}

func TestListActiveLoansExcludesRepaid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	small := newTestLoan("hh-1", 10000)
	big := newTestLoan("hh-1", 900000)
	repaid := newTestLoan("hh-1", 50000)
	repaid.Remaining = core.Money{Cents: 0}
	for _, l := range []*core.Loan{small, big, repaid} {
		require.NoError(t, repo.CreateLoan(ctx, l))
	}

	loans, err := repo.ListActiveLoans(ctx, "hh-1")
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, big.ID, loans[0].ID)
	assert.Equal(t, small.ID, loans[1].ID)

	all, err := repo.ListAllLoans(ctx, "hh-1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListActiveLoansFallbackMatchesIndexed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, cents := range []int64{30000, 700000, 120000} {
		l := newTestLoan("hh-1", cents)
		require.NoError(t, repo.CreateLoan(ctx, l))
	}
	repaid := newTestLoan("hh-1", 5000)
	repaid.Remaining = core.Money{Cents: 0}
	require.NoError(t, repo.CreateLoan(ctx, repaid))

	indexed, err := repo.listActiveLoansIndexed(ctx, "hh-1")
	require.NoError(t, err)

	_, err = repo.db.ExecContext(ctx, `DROP INDEX idx_loans_household_remaining`)
	require.NoError(t, err)

	fallback, err := repo.ListActiveLoans(ctx, "hh-1")
	require.NoError(t, err)
	assert.Equal(t, indexed, fallback)
}

func TestUpdateAndDeleteLoan(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	loan := newTestLoan("hh-1", 500000)
	require.NoError(t, repo.CreateLoan(ctx, loan))

	loan.Name = "Refinanced car loan"
	loan.Installment = core.Money{Cents: 12000}
	loan.PaymentDay = 15
	require.NoError(t, repo.UpdateLoan(ctx, *loan))

	got, err := repo.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Refinanced car loan", got.Name)
	assert.Equal(t, int64(12000), got.Installment.Cents)
	assert.Equal(t, 15, got.PaymentDay)

	require.NoError(t, repo.DeleteLoan(ctx, loan.ID))
	_, err = repo.GetLoan(ctx, loan.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
	require.ErrorIs(t, repo.DeleteLoan(ctx, loan.ID), core.ErrNotFound)
}

func TestAddLoanPaymentDecrementsBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	loan := newTestLoan("hh-1", 500000)
	require.NoError(t, repo.CreateLoan(ctx, loan))

	payment := &core.LoanPayment{
		LoanID:      loan.ID,
		HouseholdID: "hh-1",
		Amount:      core.Money{Cents: 15000},
		Currency:    core.EUR,
		Month:       core.MonthKey("2024-03"),
	}
	require.NoError(t, repo.AddLoanPayment(ctx, payment))

	got, err := repo.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(485000), got.Remaining.Cents)

	ledger, err := repo.ListLoanPayments(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, core.MonthKey("2024-03"), ledger[0].Month)
}

func TestAddLoanPaymentClampsAtZero(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	loan := newTestLoan("hh-1", 10000)
	require.NoError(t, repo.CreateLoan(ctx, loan))

	payment := &core.LoanPayment{
		LoanID:      loan.ID,
		HouseholdID: "hh-1",
		Amount:      core.Money{Cents: 25000},
		Currency:    core.EUR,
	}
	require.NoError(t, repo.AddLoanPayment(ctx, payment))

	got, err := repo.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Remaining.Cents)
}

func TestAddLoanPaymentUnknownLoan(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.AddLoanPayment(context.Background(), &core.LoanPayment{
		LoanID:      "missing",
		HouseholdID: "hh-1",
		Amount:      core.Money{Cents: 100},
		Currency:    core.EUR,
	})
	require.ErrorIs(t, err, core.ErrNotFound)
}

// Two payments racing against the same balance must both land: the balance
// decrement happens inside the payment transaction, so neither writer can
// overwrite the other's read.
func TestConcurrentLoanPaymentsLoseNoUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	loan := newTestLoan("hh-1", 50000)
	require.NoError(t, repo.CreateLoan(ctx, loan))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.AddLoanPayment(ctx, &core.LoanPayment{
				LoanID:      loan.ID,
				HouseholdID: "hh-1",
				Amount:      core.Money{Cents: 10000},
				Currency:    core.EUR,
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), got.Remaining.Cents)

	ledger, err := repo.ListLoanPayments(ctx, loan.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 2)
}

func TestListInstallmentPayments(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	loan := newTestLoan("hh-1", 500000)
	require.NoError(t, repo.CreateLoan(ctx, loan))

	tagged := &core.LoanPayment{
		LoanID:      loan.ID,
		HouseholdID: "hh-1",
		Amount:      core.Money{Cents: 15000},
		Currency:    core.EUR,
		Month:       core.MonthKey("2024-03"),
	}
	adHoc := &core.LoanPayment{
		LoanID:      loan.ID,
		HouseholdID: "hh-1",
		Amount:      core.Money{Cents: 5000},
		Currency:    core.EUR,
	}
	require.NoError(t, repo.AddLoanPayment(ctx, tagged))
	require.NoError(t, repo.AddLoanPayment(ctx, adHoc))

	payments, err := repo.ListInstallmentPayments(ctx, "hh-1", core.MonthKey("2024-03"))
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, tagged.ID, payments[0].ID)
}
