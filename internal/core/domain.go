package core

import (
	"errors"
	"strings"
	"time"
)

const (
	EUR Currency = "EUR"
	HUF Currency = "HUF"
)

type (
	Currency string

	// RecurringBill is a standing monthly obligation shared by a household.
	// Bills are never removed; deactivation keeps historical payment records valid.
	RecurringBill struct {
		ID          string
		HouseholdID string
		OwnerID     string
		Name        string
		Amount      Money
		Currency    Currency
		Category    string
		DayOfMonth  int
		IsActive    bool
		CreatedAt   time.Time
	}

	// BillPayment records the paid state of one bill for one month.
	// Its ID is always PaymentKey(BillID, Month); amount and currency are
	// snapshots of the bill at provisioning time.
	BillPayment struct {
		ID          string
		BillID      string
		HouseholdID string
		Amount      Money
		Currency    Currency
		Month       MonthKey
		IsPaid      bool
		PaidAt      *time.Time
	}

	// Loan is a debt with a shrinking balance. Remaining only moves through
	// recorded payments and never goes below zero or above Original.
	Loan struct {
		ID           string
		HouseholdID  string
		OwnerID      string
		Name         string
		Lender       string
		Original     Money
		Remaining    Money
		Currency     Currency
		InterestRate float64
		Installment  Money // zero when the loan has no monthly installment
		PaymentDay   int   // zero when unset; the settlement view defaults to day 1
		CreatedAt    time.Time
	}

	// LoanPayment is an immutable ledger entry against a loan.
	LoanPayment struct {
		ID          string
		LoanID      string
		HouseholdID string
		Amount      Money
		Currency    Currency
		Note        string
		Month       MonthKey // set only when the payment covers a month's installment
		PaidAt      time.Time
	}

	// SavingsWithdrawal tracks money taken out of the household's savings
	// that should be paid back over time.
	SavingsWithdrawal struct {
		ID            string
		HouseholdID   string
		OwnerID       string
		Description   string
		Withdrawn     Money
		PaidBack      Money
		Currency      Currency
		FullyPaidBack bool
		WithdrawnAt   time.Time
	}

	// SavingsPayback is an immutable ledger entry against a withdrawal.
	SavingsPayback struct {
		ID           string
		WithdrawalID string
		HouseholdID  string
		Amount       Money
		Currency     Currency
		PaidAt       time.Time
	}

	// UserProfile identifies one household member.
	UserProfile struct {
		ID          string
		DisplayName string
		AvatarEmoji string
		HouseholdID string // empty until the user joins a household
		CreatedAt   time.Time
	}

	// Household groups members sharing one set of financial records.
	Household struct {
		ID         string
		Name       string
		Members    []string
		InviteCode string
		CreatedAt  time.Time
	}
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDay      = errors.New("invalid day of month")
	ErrEmptyName       = errors.New("empty name")
	ErrEmptyHousehold  = errors.New("empty household id")
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrInvalidMonth    = errors.New("invalid month token")
	ErrPaymentReversal = errors.New("loan installment payments cannot be undone")
)

func (c Currency) Validate() error {
	switch c {
	case EUR, HUF:
		return nil
	default:
		return ErrUnknownCurrency
	}
}

func (b RecurringBill) Validate() error {
	if strings.TrimSpace(b.HouseholdID) == "" {
		return ErrEmptyHousehold
	}
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if err := b.Currency.Validate(); err != nil {
		return err
	}
	if b.DayOfMonth < 1 || b.DayOfMonth > 31 {
		return ErrInvalidDay
	}
	return nil
}

func (l Loan) Validate() error {
	if strings.TrimSpace(l.HouseholdID) == "" {
		return ErrEmptyHousehold
	}
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyName
	}
	if err := l.Original.Validate(); err != nil {
		return err
	}
	if err := l.Currency.Validate(); err != nil {
		return err
	}
	if l.Remaining.Cents < 0 || l.Remaining.Cents > l.Original.Cents {
		return ErrInvalidAmount
	}
	if l.Installment.Cents < 0 {
		return ErrInvalidAmount
	}
	// PaymentDay zero means "not set"; the settlement view falls back to day 1.
	if l.PaymentDay < 0 || l.PaymentDay > 31 {
		return ErrInvalidDay
	}
	return nil
}

func (w SavingsWithdrawal) Validate() error {
	if strings.TrimSpace(w.HouseholdID) == "" {
		return ErrEmptyHousehold
	}
	if strings.TrimSpace(w.Description) == "" {
		return ErrEmptyName
	}
	if err := w.Withdrawn.Validate(); err != nil {
		return err
	}
	if err := w.Currency.Validate(); err != nil {
		return err
	}
	if w.PaidBack.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}
