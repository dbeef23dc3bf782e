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

const billColumns = "id, household_id, owner_id, name, amount_cents, currency, category, day_of_month, is_active, created_at"

// CreateBill persists a new recurring bill, assigning its ID and creation
// time when unset.
func (r *Repository) CreateBill(ctx context.Context, b *core.RecurringBill) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_bills (`+billColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.HouseholdID, b.OwnerID, b.Name, b.Amount.Cents, string(b.Currency),
		b.Category, b.DayOfMonth, boolToInt(b.IsActive), b.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

// GetBill fetches a bill by ID regardless of its active flag.
func (r *Repository) GetBill(ctx context.Context, id string) (core.RecurringBill, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+billColumns+` FROM recurring_bills WHERE id = ?`, id)
	b, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringBill{}, core.ErrNotFound
	}
	if err != nil {
		return core.RecurringBill{}, fmt.Errorf("get bill: %w", err)
	}
	return b, nil
}

// ListActiveBills returns the household's active bills ordered by day of
// month ascending. The primary query names its compound index; if that index
// is missing (mid-migration, rebuilt file) the query fails and we fall back
// to a household scan with in-memory filter and sort. Both paths return
// identical results.
func (r *Repository) ListActiveBills(ctx context.Context, householdID string) ([]core.RecurringBill, error) {
	bills, err := r.listActiveBillsIndexed(ctx, householdID)
	if err == nil {
		return bills, nil
	}
	slog.WarnContext(ctx, "Indexed bill query failed, using fallback scan",
		"household_id", householdID, "error", err)
	return r.listActiveBillsScan(ctx, householdID)
}

func (r *Repository) listActiveBillsIndexed(ctx context.Context, householdID string) ([]core.RecurringBill, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+billColumns+` FROM recurring_bills INDEXED BY idx_bills_household_active_day
		 WHERE household_id = ? AND is_active = 1
		 ORDER BY day_of_month ASC`, householdID)
	if err != nil {
		return nil, fmt.Errorf("query active bills: %w", err)
	}
	defer rows.Close()
	return collectBills(rows)
}

func (r *Repository) listActiveBillsScan(ctx context.Context, householdID string) ([]core.RecurringBill, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+billColumns+` FROM recurring_bills WHERE household_id = ?`, householdID)
	if err != nil {
		return nil, fmt.Errorf("scan bills: %w", err)
	}
	defer rows.Close()

	all, err := collectBills(rows)
	if err != nil {
		return nil, err
	}

	active := all[:0]
	for _, b := range all {
		if b.IsActive {
			active = append(active, b)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].DayOfMonth < active[j].DayOfMonth
	})
	return active, nil
}

// SetBillActive flips the soft-delete flag. Payment records are untouched.
func (r *Repository) SetBillActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_bills SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("update bill active flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

const billPaymentColumns = "id, bill_id, household_id, amount_cents, currency, month, is_paid, paid_at"

// UpsertBillPayment provisions a payment record under its deterministic key.
// An existing record is left untouched, which makes concurrent provisioning
// of the same (bill, month) pair converge without duplicates.
func (r *Repository) UpsertBillPayment(ctx context.Context, p core.BillPayment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bill_payments (`+billPaymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		p.ID, p.BillID, p.HouseholdID, p.Amount.Cents, string(p.Currency),
		string(p.Month), boolToInt(p.IsPaid), unixOrNil(p.PaidAt),
	)
	if err != nil {
		return fmt.Errorf("upsert bill payment: %w", err)
	}
	return nil
}

func (r *Repository) GetBillPayment(ctx context.Context, id string) (core.BillPayment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+billPaymentColumns+` FROM bill_payments WHERE id = ?`, id)
	p, err := scanBillPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BillPayment{}, core.ErrNotFound
	}
	if err != nil {
		return core.BillPayment{}, fmt.Errorf("get bill payment: %w", err)
	}
	return p, nil
}

// ListBillPaymentsForMonth returns all of a household's bill payment records
// for one month, paid or not.
func (r *Repository) ListBillPaymentsForMonth(ctx context.Context, householdID string, month core.MonthKey) ([]core.BillPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+billPaymentColumns+` FROM bill_payments WHERE household_id = ? AND month = ?`,
		householdID, string(month))
	if err != nil {
		return nil, fmt.Errorf("query bill payments: %w", err)
	}
	defer rows.Close()

	var out []core.BillPayment
	for rows.Next() {
		p, err := scanBillPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetBillPaymentPaid toggles the paid flag, stamping or clearing paid_at.
func (r *Repository) SetBillPaymentPaid(ctx context.Context, id string, isPaid bool, paidAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bill_payments SET is_paid = ?, paid_at = ? WHERE id = ?`,
		boolToInt(isPaid), unixOrNil(paidAt), id)
	if err != nil {
		return fmt.Errorf("update bill payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (core.RecurringBill, error) {
	var (
		b         core.RecurringBill
		currency  string
		active    int
		createdAt int64
	)
	err := row.Scan(&b.ID, &b.HouseholdID, &b.OwnerID, &b.Name, &b.Amount.Cents,
		&currency, &b.Category, &b.DayOfMonth, &active, &createdAt)
	if err != nil {
		return core.RecurringBill{}, err
	}
	b.Currency = core.Currency(currency)
	b.IsActive = active != 0
	b.CreatedAt = time.Unix(createdAt, 0).UTC()
	return b, nil
}

func collectBills(rows *sql.Rows) ([]core.RecurringBill, error) {
	var out []core.RecurringBill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBillPayment(row rowScanner) (core.BillPayment, error) {
	var (
		p        core.BillPayment
		currency string
		month    string
		paid     int
		paidAt   sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.BillID, &p.HouseholdID, &p.Amount.Cents,
		&currency, &month, &paid, &paidAt)
	if err != nil {
		return core.BillPayment{}, err
	}
	p.Currency = core.Currency(currency)
	p.Month = core.MonthKey(month)
	p.IsPaid = paid != 0
	p.PaidAt = timeFromUnixPtr(paidAt)
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
