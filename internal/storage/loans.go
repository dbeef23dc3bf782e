package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"bollette/internal/core"
)

const loanColumns = "id, household_id, owner_id, name, lender, original_cents, remaining_cents, currency, interest_rate, installment_cents, payment_day, created_at"

func (r *Repository) CreateLoan(ctx context.Context, l *core.Loan) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.HouseholdID, l.OwnerID, l.Name, l.Lender, l.Original.Cents,
		l.Remaining.Cents, string(l.Currency), l.InterestRate,
		l.Installment.Cents, l.PaymentDay, l.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (r *Repository) GetLoan(ctx context.Context, id string) (core.Loan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Loan{}, core.ErrNotFound
	}
	if err != nil {
		return core.Loan{}, fmt.Errorf("get loan: %w", err)
	}
	return l, nil
}

// ListActiveLoans returns loans with a balance left, largest debt first.
// Same indexed-or-scan structure as ListActiveBills.
func (r *Repository) ListActiveLoans(ctx context.Context, householdID string) ([]core.Loan, error) {
	loans, err := r.listActiveLoansIndexed(ctx, householdID)
	if err == nil {
		return loans, nil
	}
	slog.WarnContext(ctx, "Indexed loan query failed, using fallback scan",
		"household_id", householdID, "error", err)
	return r.listActiveLoansScan(ctx, householdID)
}

func (r *Repository) listActiveLoansIndexed(ctx context.Context, householdID string) ([]core.Loan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans INDEXED BY idx_loans_household_remaining
		 WHERE household_id = ? AND remaining_cents > 0
		 ORDER BY remaining_cents DESC`, householdID)
	if err != nil {
		return nil, fmt.Errorf("query active loans: %w", err)
	}
	defer rows.Close()
	return collectLoans(rows)
}

func (r *Repository) listActiveLoansScan(ctx context.Context, householdID string) ([]core.Loan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE household_id = ?`, householdID)
	if err != nil {
		return nil, fmt.Errorf("scan loans: %w", err)
	}
	defer rows.Close()

	all, err := collectLoans(rows)
	if err != nil {
		return nil, err
	}

	active := all[:0]
	for _, l := range all {
		if l.Remaining.Cents > 0 {
			active = append(active, l)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Remaining.Cents > active[j].Remaining.Cents
	})
	return active, nil
}

// ListAllLoans returns every loan of the household, newest first, including
// fully repaid ones.
func (r *Repository) ListAllLoans(ctx context.Context, householdID string) ([]core.Loan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE household_id = ? ORDER BY created_at DESC`,
		householdID)
	if err != nil {
		return nil, fmt.Errorf("query all loans: %w", err)
	}
	defer rows.Close()
	return collectLoans(rows)
}

// UpdateLoan rewrites the loan's descriptive fields. The balance is only
// ever moved through AddLoanPayment.
func (r *Repository) UpdateLoan(ctx context.Context, l core.Loan) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE loans SET name = ?, lender = ?, interest_rate = ?, installment_cents = ?, payment_day = ?
		 WHERE id = ?`,
		l.Name, l.Lender, l.InterestRate, l.Installment.Cents, l.PaymentDay, l.ID)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteLoan removes the loan for good. Unlike bills there is no soft
// delete; ledger entries stay behind as orphans.
func (r *Repository) DeleteLoan(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

const loanPaymentColumns = "id, loan_id, household_id, amount_cents, currency, note, month, paid_at"

// AddLoanPayment appends a ledger entry and decrements the loan balance in
// one transaction. The decrement is a single clamped UPDATE, so two
// concurrent payments serialize at the store instead of both reading the
// same pre-payment balance and losing one decrement.
func (r *Repository) AddLoanPayment(ctx context.Context, p *core.LoanPayment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now().UTC()
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE loans SET remaining_cents = MAX(0, remaining_cents - ?) WHERE id = ?`,
			p.Amount.Cents, p.LoanID)
		if err != nil {
			return fmt.Errorf("decrement loan balance: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.ErrNotFound
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO loan_payments (`+loanPaymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.LoanID, p.HouseholdID, p.Amount.Cents, string(p.Currency),
			p.Note, string(p.Month), p.PaidAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert loan payment: %w", err)
		}
		return nil
	})
}

// ListLoanPayments returns the loan's ledger, newest first.
func (r *Repository) ListLoanPayments(ctx context.Context, loanID string) ([]core.LoanPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanPaymentColumns+` FROM loan_payments WHERE loan_id = ? ORDER BY paid_at DESC`,
		loanID)
	if err != nil {
		return nil, fmt.Errorf("query loan payments: %w", err)
	}
	defer rows.Close()
	return collectLoanPayments(rows)
}

// ListInstallmentPayments returns the household's month-tagged payments,
// the ones that mark a settlement row as paid.
func (r *Repository) ListInstallmentPayments(ctx context.Context, householdID string, month core.MonthKey) ([]core.LoanPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanPaymentColumns+` FROM loan_payments WHERE household_id = ? AND month = ?`,
		householdID, string(month))
	if err != nil {
		return nil, fmt.Errorf("query installment payments: %w", err)
	}
	defer rows.Close()
	return collectLoanPayments(rows)
}

func scanLoan(row rowScanner) (core.Loan, error) {
	var (
		l         core.Loan
		currency  string
		createdAt int64
	)
	err := row.Scan(&l.ID, &l.HouseholdID, &l.OwnerID, &l.Name, &l.Lender,
		&l.Original.Cents, &l.Remaining.Cents, &currency, &l.InterestRate,
		&l.Installment.Cents, &l.PaymentDay, &createdAt)
	if err != nil {
		return core.Loan{}, err
	}
	l.Currency = core.Currency(currency)
	l.CreatedAt = time.Unix(createdAt, 0).UTC()
	return l, nil
}

func collectLoans(rows *sql.Rows) ([]core.Loan, error) {
	var out []core.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLoanPayment(row rowScanner) (core.LoanPayment, error) {
	var (
		p        core.LoanPayment
		currency string
		month    string
		paidAt   int64
	)
	err := row.Scan(&p.ID, &p.LoanID, &p.HouseholdID, &p.Amount.Cents,
		&currency, &p.Note, &month, &paidAt)
	if err != nil {
		return core.LoanPayment{}, err
	}
	p.Currency = core.Currency(currency)
	p.Month = core.MonthKey(month)
	p.PaidAt = time.Unix(paidAt, 0).UTC()
	return p, nil
}

func collectLoanPayments(rows *sql.Rows) ([]core.LoanPayment, error) {
	var out []core.LoanPayment
	for rows.Next() {
		p, err := scanLoanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
