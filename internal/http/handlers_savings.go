package http

import (
	"net/http"
	"time"

	"bollette/internal/core"
	"bollette/internal/services"
)

type createWithdrawalRequest struct {
	HouseholdID string `json:"household_id"`
	OwnerID     string `json:"owner_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

type withdrawalResponse struct {
	ID             string  `json:"id"`
	HouseholdID    string  `json:"household_id"`
	OwnerID        string  `json:"owner_id"`
	Description    string  `json:"description"`
	WithdrawnCents int64   `json:"withdrawn_cents"`
	Withdrawn      string  `json:"withdrawn"`
	PaidBackCents  int64   `json:"paid_back_cents"`
	PaidBack       string  `json:"paid_back"`
	Currency       string  `json:"currency"`
	FullyPaidBack  bool    `json:"fully_paid_back"`
	Progress       float64 `json:"progress_percent"`
	WithdrawnAt    string  `json:"withdrawn_at"`
}

func toWithdrawalResponse(w core.SavingsWithdrawal) withdrawalResponse {
	return withdrawalResponse{
		ID:             w.ID,
		HouseholdID:    w.HouseholdID,
		OwnerID:        w.OwnerID,
		Description:    w.Description,
		WithdrawnCents: w.Withdrawn.Cents,
		Withdrawn:      w.Withdrawn.Format(w.Currency),
		PaidBackCents:  w.PaidBack.Cents,
		PaidBack:       w.PaidBack.Format(w.Currency),
		Currency:       string(w.Currency),
		FullyPaidBack:  w.FullyPaidBack,
		Progress:       services.PaybackProgress(w),
		WithdrawnAt:    w.WithdrawnAt.Format(time.RFC3339),
	}
}

func (s *Server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req createWithdrawalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	withdrawal := &core.SavingsWithdrawal{
		HouseholdID: req.HouseholdID,
		OwnerID:     req.OwnerID,
		Description: sanitizeInput(req.Description),
		Withdrawn:   amount,
		Currency:    core.Currency(req.Currency),
	}
	if err := s.savings.CreateWithdrawal(r.Context(), withdrawal); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toWithdrawalResponse(*withdrawal))
}

func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	householdID := r.URL.Query().Get("household_id")
	if householdID == "" {
		writeError(w, r, http.StatusBadRequest, "household_id is required")
		return
	}

	var (
		withdrawals []core.SavingsWithdrawal
		err         error
	)
	if r.URL.Query().Get("all") == "true" {
		withdrawals, err = s.savings.ListAllWithdrawals(r.Context(), householdID)
	} else {
		withdrawals, err = s.savings.ListOpenWithdrawals(r.Context(), householdID)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]withdrawalResponse, 0, len(withdrawals))
	for _, wd := range withdrawals {
		out = append(out, toWithdrawalResponse(wd))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleDeleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	if err := s.savings.DeleteWithdrawal(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recordPaybackRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type paybackResponse struct {
	ID           string `json:"id"`
	WithdrawalID string `json:"withdrawal_id"`
	AmountCents  int64  `json:"amount_cents"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	PaidAt       string `json:"paid_at"`
}

func toPaybackResponse(p core.SavingsPayback) paybackResponse {
	return paybackResponse{
		ID:           p.ID,
		WithdrawalID: p.WithdrawalID,
		AmountCents:  p.Amount.Cents,
		Amount:       p.Amount.Format(p.Currency),
		Currency:     string(p.Currency),
		PaidAt:       p.PaidAt.Format(time.RFC3339),
	}
}

func (s *Server) handleRecordPayback(w http.ResponseWriter, r *http.Request) {
	var req recordPaybackRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	payback := &core.SavingsPayback{
		WithdrawalID: r.PathValue("id"),
		Amount:       amount,
		Currency:     core.Currency(req.Currency),
	}
	if err := s.savings.RecordPayback(r.Context(), payback); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toPaybackResponse(*payback))
}

func (s *Server) handleListPaybacks(w http.ResponseWriter, r *http.Request) {
	paybacks, err := s.savings.ListPaybacks(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]paybackResponse, 0, len(paybacks))
	for _, p := range paybacks {
		out = append(out, toPaybackResponse(p))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleSavingsTotals(w http.ResponseWriter, r *http.Request) {
	householdID := r.URL.Query().Get("household_id")
	if householdID == "" {
		writeError(w, r, http.StatusBadRequest, "household_id is required")
		return
	}

	totals, err := s.savings.OwedToSelfTotals(r.Context(), householdID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toTotalsResponse(totals))
}
