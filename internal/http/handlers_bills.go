package http

import (
	"net/http"
	"time"

	"bollette/internal/core"
)

type createBillRequest struct {
	HouseholdID string `json:"household_id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Category    string `json:"category"`
	DayOfMonth  int    `json:"day_of_month"`
	Month       string `json:"month,omitempty"`
}

type billResponse struct {
	ID          string `json:"id"`
	HouseholdID string `json:"household_id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Category    string `json:"category"`
	DayOfMonth  int    `json:"day_of_month"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
}

func toBillResponse(b core.RecurringBill) billResponse {
	return billResponse{
		ID:          b.ID,
		HouseholdID: b.HouseholdID,
		OwnerID:     b.OwnerID,
		Name:        b.Name,
		AmountCents: b.Amount.Cents,
		Amount:      b.Amount.Format(b.Currency),
		Currency:    string(b.Currency),
		Category:    b.Category,
		DayOfMonth:  b.DayOfMonth,
		IsActive:    b.IsActive,
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req createBillRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	month := core.CurrentMonth(time.Now())
	if req.Month != "" {
		if month, err = core.ParseMonthKey(req.Month); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	bill := &core.RecurringBill{
		HouseholdID: req.HouseholdID,
		OwnerID:     req.OwnerID,
		Name:        sanitizeInput(req.Name),
		Amount:      amount,
		Currency:    core.Currency(req.Currency),
		Category:    sanitizeInput(req.Category),
		DayOfMonth:  req.DayOfMonth,
	}
	if err := s.bills.CreateBill(r.Context(), bill, month); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateSettlement(bill.HouseholdID, month)
	writeJSON(w, r, http.StatusCreated, toBillResponse(*bill))
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	householdID := r.URL.Query().Get("household_id")
	if householdID == "" {
		writeError(w, r, http.StatusBadRequest, "household_id is required")
		return
	}

	bills, err := s.bills.ListActiveBills(r.Context(), householdID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]billResponse, 0, len(bills))
	for _, b := range bills {
		out = append(out, toBillResponse(b))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleDeactivateBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	bill, err := s.bills.GetBill(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.bills.DeactivateBill(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateSettlement(bill.HouseholdID, core.CurrentMonth(time.Now()))
	w.WriteHeader(http.StatusNoContent)
}

type setPaidRequest struct {
	IsPaid bool `json:"is_paid"`
}

func (s *Server) handleSetBillPaymentPaid(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("id")

	var req setPaidRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	payment, err := s.bills.GetBillPayment(r.Context(), paymentID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.bills.SetPaidStatus(r.Context(), paymentID, req.IsPaid); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateSettlement(payment.HouseholdID, payment.Month)
	w.WriteHeader(http.StatusNoContent)
}
