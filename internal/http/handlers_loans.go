package http

import (
	"net/http"
	"time"

	"bollette/internal/core"
)

type createLoanRequest struct {
	HouseholdID  string  `json:"household_id"`
	OwnerID      string  `json:"owner_id"`
	Name         string  `json:"name"`
	Lender       string  `json:"lender"`
	Amount       string  `json:"amount"`
	Currency     string  `json:"currency"`
	InterestRate float64 `json:"interest_rate"`
	Installment  string  `json:"installment,omitempty"`
	PaymentDay   int     `json:"payment_day,omitempty"`
}

type updateLoanRequest struct {
	Name         string  `json:"name"`
	Lender       string  `json:"lender"`
	InterestRate float64 `json:"interest_rate"`
	Installment  string  `json:"installment,omitempty"`
	PaymentDay   int     `json:"payment_day,omitempty"`
}

type loanResponse struct {
	ID               string  `json:"id"`
	HouseholdID      string  `json:"household_id"`
	OwnerID          string  `json:"owner_id"`
	Name             string  `json:"name"`
	Lender           string  `json:"lender"`
	OriginalCents    int64   `json:"original_cents"`
	Original         string  `json:"original"`
	RemainingCents   int64   `json:"remaining_cents"`
	Remaining        string  `json:"remaining"`
	Currency         string  `json:"currency"`
	InterestRate     float64 `json:"interest_rate"`
	InstallmentCents int64   `json:"installment_cents,omitempty"`
	PaymentDay       int     `json:"payment_day,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

func toLoanResponse(l core.Loan) loanResponse {
	return loanResponse{
		ID:               l.ID,
		HouseholdID:      l.HouseholdID,
		OwnerID:          l.OwnerID,
		Name:             l.Name,
		Lender:           l.Lender,
		OriginalCents:    l.Original.Cents,
		Original:         l.Original.Format(l.Currency),
		RemainingCents:   l.Remaining.Cents,
		Remaining:        l.Remaining.Format(l.Currency),
		Currency:         string(l.Currency),
		InterestRate:     l.InterestRate,
		InstallmentCents: l.Installment.Cents,
		PaymentDay:       l.PaymentDay,
		CreatedAt:        l.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var installment core.Money
	if req.Installment != "" {
		if installment, err = parseAmount(req.Installment); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	loan := &core.Loan{
		HouseholdID:  req.HouseholdID,
		OwnerID:      req.OwnerID,
		Name:         sanitizeInput(req.Name),
		Lender:       sanitizeInput(req.Lender),
		Original:     amount,
		Currency:     core.Currency(req.Currency),
		InterestRate: req.InterestRate,
		Installment:  installment,
		PaymentDay:   req.PaymentDay,
	}
	if err := s.loans.CreateLoan(r.Context(), loan); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateSettlement(loan.HouseholdID, core.CurrentMonth(time.Now()))
	writeJSON(w, r, http.StatusCreated, toLoanResponse(*loan))
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	householdID := r.URL.Query().Get("household_id")
	if householdID == "" {
		writeError(w, r, http.StatusBadRequest, "household_id is required")
		return
	}

	var (
		loans []core.Loan
		err   error
	)
	if r.URL.Query().Get("all") == "true" {
		loans, err = s.loans.ListAllLoans(r.Context(), householdID)
	} else {
		loans, err = s.loans.ListActiveLoans(r.Context(), householdID)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanResponse(l))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := s.loans.GetLoan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toLoanResponse(loan))
}

func (s *Server) handleUpdateLoan(w http.ResponseWriter, r *http.Request) {
	var req updateLoanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	loan, err := s.loans.GetLoan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	loan.Name = sanitizeInput(req.Name)
	loan.Lender = sanitizeInput(req.Lender)
	loan.InterestRate = req.InterestRate
	loan.PaymentDay = req.PaymentDay
	loan.Installment = core.Money{}
	if req.Installment != "" {
		if loan.Installment, err = parseAmount(req.Installment); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	if err := s.loans.UpdateLoan(r.Context(), loan); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateSettlement(loan.HouseholdID, core.CurrentMonth(time.Now()))
	writeJSON(w, r, http.StatusOK, toLoanResponse(loan))
}

func (s *Server) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	loan, err := s.loans.GetLoan(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.loans.DeleteLoan(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateSettlement(loan.HouseholdID, core.CurrentMonth(time.Now()))
	w.WriteHeader(http.StatusNoContent)
}

type recordLoanPaymentRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Note     string `json:"note,omitempty"`
	Month    string `json:"month,omitempty"`
}

type loanPaymentResponse struct {
	ID          string `json:"id"`
	LoanID      string `json:"loan_id"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Note        string `json:"note,omitempty"`
	Month       string `json:"month,omitempty"`
	PaidAt      string `json:"paid_at"`
}

func toLoanPaymentResponse(p core.LoanPayment) loanPaymentResponse {
	return loanPaymentResponse{
		ID:          p.ID,
		LoanID:      p.LoanID,
		AmountCents: p.Amount.Cents,
		Amount:      p.Amount.Format(p.Currency),
		Currency:    string(p.Currency),
		Note:        p.Note,
		Month:       string(p.Month),
		PaidAt:      p.PaidAt.Format(time.RFC3339),
	}
}

func (s *Server) handleRecordLoanPayment(w http.ResponseWriter, r *http.Request) {
	var req recordLoanPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	payment := &core.LoanPayment{
		LoanID:   r.PathValue("id"),
		Amount:   amount,
		Currency: core.Currency(req.Currency),
		Note:     sanitizeInput(req.Note),
		Month:    core.MonthKey(req.Month),
	}
	if err := s.loans.RecordPayment(r.Context(), payment); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if payment.Month != "" {
		s.invalidateSettlement(payment.HouseholdID, payment.Month)
	}
	writeJSON(w, r, http.StatusCreated, toLoanPaymentResponse(*payment))
}

func (s *Server) handleListLoanPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.loans.ListPayments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]loanPaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toLoanPaymentResponse(p))
	}
	writeJSON(w, r, http.StatusOK, out)
}

type totalsResponse struct {
	Totals map[string]totalEntry `json:"totals"`
}

type totalEntry struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

func toTotalsResponse(totals core.OutstandingTotals) totalsResponse {
	out := totalsResponse{Totals: make(map[string]totalEntry, len(totals))}
	for currency, amount := range totals {
		out.Totals[string(currency)] = totalEntry{
			Cents:     amount.Cents,
			Formatted: amount.Format(currency),
		}
	}
	return out
}

func (s *Server) handleLoanTotals(w http.ResponseWriter, r *http.Request) {
	householdID := r.URL.Query().Get("household_id")
	if householdID == "" {
		writeError(w, r, http.StatusBadRequest, "household_id is required")
		return
	}

	totals, err := s.loans.OutstandingTotals(r.Context(), householdID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toTotalsResponse(totals))
}
