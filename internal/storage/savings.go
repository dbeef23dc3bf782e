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

const withdrawalColumns = "id, household_id, owner_id, description, withdrawn_cents, paid_back_cents, currency, fully_paid_back, withdrawn_at"

func (r *Repository) CreateWithdrawal(ctx context.Context, w *core.SavingsWithdrawal) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.WithdrawnAt.IsZero() {
		w.WithdrawnAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO savings_withdrawals (`+withdrawalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.HouseholdID, w.OwnerID, w.Description, w.Withdrawn.Cents,
		w.PaidBack.Cents, string(w.Currency), boolToInt(w.FullyPaidBack),
		w.WithdrawnAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

func (r *Repository) GetWithdrawal(ctx context.Context, id string) (core.SavingsWithdrawal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM savings_withdrawals WHERE id = ?`, id)
	w, err := scanWithdrawal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SavingsWithdrawal{}, core.ErrNotFound
	}
	if err != nil {
		return core.SavingsWithdrawal{}, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

// ListOpenWithdrawals returns withdrawals still owed back, newest first.
// Same indexed-or-scan structure as ListActiveBills.
func (r *Repository) ListOpenWithdrawals(ctx context.Context, householdID string) ([]core.SavingsWithdrawal, error) {
	ws, err := r.listOpenWithdrawalsIndexed(ctx, householdID)
	if err == nil {
		return ws, nil
	}
	slog.WarnContext(ctx, "Indexed withdrawal query failed, using fallback scan",
		"household_id", householdID, "error", err)
	return r.listOpenWithdrawalsScan(ctx, householdID)
}

func (r *Repository) listOpenWithdrawalsIndexed(ctx context.Context, householdID string) ([]core.SavingsWithdrawal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+withdrawalColumns+` FROM savings_withdrawals INDEXED BY idx_withdrawals_household_open
		 WHERE household_id = ? AND fully_paid_back = 0
		 ORDER BY withdrawn_at DESC`, householdID)
	if err != nil {
		return nil, fmt.Errorf("query open withdrawals: %w", err)
	}
	defer rows.Close()
	return collectWithdrawals(rows)
}

func (r *Repository) listOpenWithdrawalsScan(ctx context.Context, householdID string) ([]core.SavingsWithdrawal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+withdrawalColumns+` FROM savings_withdrawals WHERE household_id = ?`, householdID)
	if err != nil {
		return nil, fmt.Errorf("scan withdrawals: %w", err)
	}
	defer rows.Close()

	all, err := collectWithdrawals(rows)
	if err != nil {
		return nil, err
	}

	open := all[:0]
	for _, w := range all {
		if !w.FullyPaidBack {
			open = append(open, w)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].WithdrawnAt.After(open[j].WithdrawnAt)
	})
	return open, nil
}

// ListAllWithdrawals returns the household's full withdrawal history,
// newest first.
func (r *Repository) ListAllWithdrawals(ctx context.Context, householdID string) ([]core.SavingsWithdrawal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+withdrawalColumns+` FROM savings_withdrawals
		 WHERE household_id = ? ORDER BY withdrawn_at DESC`, householdID)
	if err != nil {
		return nil, fmt.Errorf("query all withdrawals: %w", err)
	}
	defer rows.Close()
	return collectWithdrawals(rows)
}

func (r *Repository) DeleteWithdrawal(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM savings_withdrawals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete withdrawal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

const paybackColumns = "id, withdrawal_id, household_id, amount_cents, currency, paid_at"

// AddPayback appends a ledger entry and folds the amount into the
// withdrawal's running total in one transaction. The fully_paid_back flag
// is derived inside the same UPDATE, so concurrent paybacks cannot leave
// the flag out of step with the total.
func (r *Repository) AddPayback(ctx context.Context, p *core.SavingsPayback) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now().UTC()
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE savings_withdrawals
			 SET paid_back_cents = paid_back_cents + ?,
			     fully_paid_back = CASE WHEN paid_back_cents + ? >= withdrawn_cents THEN 1 ELSE 0 END
			 WHERE id = ?`,
			p.Amount.Cents, p.Amount.Cents, p.WithdrawalID)
		if err != nil {
			return fmt.Errorf("accumulate payback: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.ErrNotFound
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO savings_paybacks (`+paybackColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.WithdrawalID, p.HouseholdID, p.Amount.Cents,
			string(p.Currency), p.PaidAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert payback: %w", err)
		}
		return nil
	})
}

// ListPaybacks returns the withdrawal's ledger, newest first.
func (r *Repository) ListPaybacks(ctx context.Context, withdrawalID string) ([]core.SavingsPayback, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paybackColumns+` FROM savings_paybacks WHERE withdrawal_id = ? ORDER BY paid_at DESC`,
		withdrawalID)
	if err != nil {
		return nil, fmt.Errorf("query paybacks: %w", err)
	}
	defer rows.Close()

	var out []core.SavingsPayback
	for rows.Next() {
		p, err := scanPayback(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payback: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanWithdrawal(row rowScanner) (core.SavingsWithdrawal, error) {
	var (
		w           core.SavingsWithdrawal
		currency    string
		fullyPaid   int
		withdrawnAt int64
	)
	err := row.Scan(&w.ID, &w.HouseholdID, &w.OwnerID, &w.Description,
		&w.Withdrawn.Cents, &w.PaidBack.Cents, &currency, &fullyPaid, &withdrawnAt)
	if err != nil {
		return core.SavingsWithdrawal{}, err
	}
	w.Currency = core.Currency(currency)
	w.FullyPaidBack = fullyPaid != 0
	w.WithdrawnAt = time.Unix(withdrawnAt, 0).UTC()
	return w, nil
}

func collectWithdrawals(rows *sql.Rows) ([]core.SavingsWithdrawal, error) {
	var out []core.SavingsWithdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanPayback(row rowScanner) (core.SavingsPayback, error) {
	var (
		p        core.SavingsPayback
		currency string
		paidAt   int64
	)
	err := row.Scan(&p.ID, &p.WithdrawalID, &p.HouseholdID, &p.Amount.Cents,
		&currency, &paidAt)
	if err != nil {
		return core.SavingsPayback{}, err
	}
	p.Currency = core.Currency(currency)
	p.PaidAt = time.Unix(paidAt, 0).UTC()
	return p, nil
}
