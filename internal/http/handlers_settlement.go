package http

import (
	"net/http"
	"time"

	"bollette/internal/core"
)

type dueItemResponse struct {
	Kind        string `json:"kind"`
	SourceID    string `json:"source_id"`
	PaymentID   string `json:"payment_id,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	DueDay      int    `json:"due_day"`
	DueDate     string `json:"due_date"`
	IsPaid      bool   `json:"is_paid"`
	PaidAt      string `json:"paid_at,omitempty"`
}

type settlementResponse struct {
	HouseholdID string            `json:"household_id"`
	Month       string            `json:"month"`
	MonthName   string            `json:"month_name"`
	Items       []dueItemResponse `json:"items"`
}

func toSettlementResponse(householdID string, month core.MonthKey, items []core.DueItem) settlementResponse {
	out := settlementResponse{
		HouseholdID: householdID,
		Month:       string(month),
		MonthName:   month.Name(),
		Items:       make([]dueItemResponse, 0, len(items)),
	}
	for _, item := range items {
		row := dueItemResponse{
			Kind:        string(item.Kind),
			SourceID:    item.SourceID,
			PaymentID:   item.PaymentID,
			OwnerID:     item.OwnerID,
			Name:        item.Name,
			Category:    item.Category,
			AmountCents: item.Amount.Cents,
			Amount:      item.Amount.Format(item.Currency),
			Currency:    string(item.Currency),
			DueDay:      item.DayOfMonth,
			DueDate:     month.DueDate(item.DayOfMonth).Format("2006-01-02"),
			IsPaid:      item.IsPaid,
		}
		if item.PaidAt != nil {
			row.PaidAt = item.PaidAt.Format(time.RFC3339)
		}
		out.Items = append(out.Items, row)
	}
	return out
}

func (s *Server) handleSettlementView(w http.ResponseWriter, r *http.Request) {
	householdID := r.URL.Query().Get("household_id")
	if householdID == "" {
		writeError(w, r, http.StatusBadRequest, "household_id is required")
		return
	}

	month, err := parseMonth(r, core.CurrentMonth(time.Now()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	key := settlementCacheKey(householdID, month)
	if items, ok := s.settlementCache.Get(key); ok {
		writeJSON(w, r, http.StatusOK, toSettlementResponse(householdID, month, items))
		return
	}

	items, err := s.settlement.MonthlyDueItems(r.Context(), householdID, month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.settlementCache.Set(key, items)
	writeJSON(w, r, http.StatusOK, toSettlementResponse(householdID, month, items))
}

func (s *Server) handleSettleBill(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("paymentID")

	var req setPaidRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	payment, err := s.bills.GetBillPayment(r.Context(), paymentID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.settlement.MarkBillPaid(r.Context(), paymentID, req.IsPaid); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateSettlement(payment.HouseholdID, payment.Month)
	w.WriteHeader(http.StatusNoContent)
}

type settleLoanRequest struct {
	Month  string `json:"month"`
	IsPaid bool   `json:"is_paid"`
}

func (s *Server) handleSettleLoan(w http.ResponseWriter, r *http.Request) {
	loanID := r.PathValue("loanID")

	var req settleLoanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	month, err := core.ParseMonthKey(req.Month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if !req.IsPaid {
		writeServiceError(w, r, s.settlement.UnpayInstallment(r.Context(), loanID, month))
		return
	}

	loan, err := s.loans.GetLoan(r.Context(), loanID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.settlement.PayInstallment(r.Context(), loanID, month); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateSettlement(loan.HouseholdID, month)
	w.WriteHeader(http.StatusNoContent)
}
