package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bollette/internal/core"
	"bollette/internal/services"
	"bollette/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.New(filepath.Join(t.TempDir(), "bollette_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	bills := services.NewBillService(repo, nil)
	loans := services.NewLoanService(repo, nil)
	savings := services.NewSavingsService(repo, nil)
	settlement := services.NewSettlementService(repo, bills, loans)
	households := services.NewHouseholdService(repo)

	srv := NewServer("0", bills, loans, savings, settlement, households)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateBillReturnsFormattedAmounts(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/bills", map[string]any{
		"household_id": "hh-1",
		"owner_id":     "user-1",
		"name":         "Electric",
		"amount":       "80.00",
		"currency":     "EUR",
		"category":     "Utilities",
		"day_of_month": 5,
		"month":        "2024-03",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	bill := decodeBody[billResponse](t, rec)
	assert.NotEmpty(t, bill.ID)
	assert.Equal(t, int64(8000), bill.AmountCents)
	assert.Equal(t, "€80.00", bill.Amount)
	assert.True(t, bill.IsActive)
}

func TestCreateBillRejectsBadAmount(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/bills", map[string]any{
		"household_id": "hh-1",
		"owner_id":     "user-1",
		"name":         "Electric",
		"amount":       "not-a-number",
		"currency":     "EUR",
		"day_of_month": 5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLoanNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/loans/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettlementViewMergesBillsAndLoans(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/bills", map[string]any{
		"household_id": "hh-1",
		"owner_id":     "user-1",
		"name":         "Rent",
		"amount":       "950.00",
		"currency":     "EUR",
		"category":     "Housing",
		"day_of_month": 3,
		"month":        "2024-03",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/loans", map[string]any{
		"household_id":  "hh-1",
		"owner_id":      "user-1",
		"name":          "Car",
		"lender":        "Bank",
		"amount":        "5000.00",
		"currency":      "EUR",
		"interest_rate": 4.5,
		"installment":   "150.00",
		"payment_day":   10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodGet, "/api/settlement?household_id=hh-1&month=2024-03", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view := decodeBody[settlementResponse](t, rec)
	assert.Equal(t, "2024-03", view.Month)
	assert.Equal(t, "March 2024", view.MonthName)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "Rent", view.Items[0].Name)
	assert.Equal(t, "2024-03-03", view.Items[0].DueDate)
	assert.Equal(t, "Car (Installment)", view.Items[1].Name)
	assert.False(t, view.Items[0].IsPaid)
	assert.False(t, view.Items[1].IsPaid)
}

func TestSettleBillTogglesPaid(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/bills", map[string]any{
		"household_id": "hh-1",
		"owner_id":     "user-1",
		"name":         "Internet",
		"amount":       "29.90",
		"currency":     "EUR",
		"category":     "Utilities",
		"day_of_month": 7,
		"month":        "2024-03",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bill := decodeBody[billResponse](t, rec)

	paymentID := bill.ID + "_2024-03"
	rec = doJSON(t, srv, http.MethodPost, "/api/settlement/bills/"+paymentID, map[string]any{"is_paid": true})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodGet, "/api/settlement?household_id=hh-1&month=2024-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[settlementResponse](t, rec)
	require.Len(t, view.Items, 1)
	assert.True(t, view.Items[0].IsPaid)
	assert.NotEmpty(t, view.Items[0].PaidAt)
}

func TestSettleLoanRejectsReversal(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/loans", map[string]any{
		"household_id":  "hh-1",
		"owner_id":      "user-1",
		"name":          "Car",
		"lender":        "Bank",
		"amount":        "5000.00",
		"currency":      "EUR",
		"interest_rate": 4.5,
		"installment":   "150.00",
		"payment_day":   10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decodeBody[loanResponse](t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/api/settlement/loans/"+loan.ID, map[string]any{
		"month":   "2024-03",
		"is_paid": true,
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodGet, "/api/loans/"+loan.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[loanResponse](t, rec)
	assert.Equal(t, int64(485000), updated.RemainingCents)

	rec = doJSON(t, srv, http.MethodPost, "/api/settlement/loans/"+loan.ID, map[string]any{
		"month":   "2024-03",
		"is_paid": false,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSettlementViewRequiresHousehold(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/settlement", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettlementViewRejectsBadMonth(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/settlement?household_id=hh-1&month=2024-13", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSavingsPaybackFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/savings", map[string]any{
		"household_id": "hh-1",
		"owner_id":     "user-1",
		"description":  "Emergency fund dip",
		"amount":       "300.00",
		"currency":     "EUR",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	withdrawal := decodeBody[withdrawalResponse](t, rec)
	assert.Equal(t, int64(30000), withdrawal.WithdrawnCents)
	assert.InDelta(t, 0, withdrawal.Progress, 0.001)

	rec = doJSON(t, srv, http.MethodPost, "/api/savings/"+withdrawal.ID+"/paybacks", map[string]any{
		"amount":   "300.00",
		"currency": "EUR",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodGet, "/api/savings?household_id=hh-1&all=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[[]withdrawalResponse](t, rec)
	require.Len(t, all, 1)
	assert.True(t, all[0].FullyPaidBack)
	assert.InDelta(t, 100, all[0].Progress, 0.001)

	rec = doJSON(t, srv, http.MethodGet, "/api/savings?household_id=hh-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	open := decodeBody[[]withdrawalResponse](t, rec)
	assert.Empty(t, open)
}

func TestHouseholdJoinFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/profiles", map[string]any{
		"id":           "user-1",
		"display_name": "Anna",
		"avatar_emoji": "🦊",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/profiles", map[string]any{
		"id":           "user-2",
		"display_name": "Ben",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/households", map[string]any{
		"name":       "Home",
		"creator_id": "user-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	household := decodeBody[householdResponse](t, rec)
	require.Len(t, household.InviteCode, 6)

	rec = doJSON(t, srv, http.MethodPost, "/api/households/join", map[string]any{
		"invite_code": household.InviteCode,
		"user_id":     "user-2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	joined := decodeBody[householdResponse](t, rec)
	assert.ElementsMatch(t, []string{"user-1", "user-2"}, joined.Members)

	rec = doJSON(t, srv, http.MethodGet, "/api/households/"+household.ID+"/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decodeBody[[]profileResponse](t, rec)
	require.Len(t, members, 2)
	assert.Equal(t, "Anna", members[0].DisplayName)
}

func TestJoinWithUnknownCode(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/households/join", map[string]any{
		"invite_code": "ZZZZZZ",
		"user_id":     "user-1",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/bills", map[string]any{
		"household_id": "hh-1",
		"surprise":     true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimiterAllowsSixtyPerMinute(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := range 60 {
		assert.True(t, rl.allow("10.0.0.1"), "request %d should pass", i+1)
	}
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"))
}

func TestSanitizeInputStripsControlChars(t *testing.T) {
	got := sanitizeInput("  Rent\x00\x07 payment  ")
	assert.Equal(t, "Rent payment", got)
}

func TestSettlementCacheServesRepeatReads(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/bills", map[string]any{
		"household_id": "hh-1",
		"owner_id":     "user-1",
		"name":         "Water",
		"amount":       "15.00",
		"currency":     "EUR",
		"category":     "Utilities",
		"day_of_month": 12,
		"month":        "2024-03",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	url := "/api/settlement?household_id=hh-1&month=2024-03"
	first := decodeBody[settlementResponse](t, doJSON(t, srv, http.MethodGet, url, nil))
	second := decodeBody[settlementResponse](t, doJSON(t, srv, http.MethodGet, url, nil))
	assert.Equal(t, first, second)

	_, cached := srv.settlementCache.Get(settlementCacheKey("hh-1", core.MonthKey("2024-03")))
	assert.True(t, cached)
}

func TestMutationInvalidatesSettlementCache(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/bills", map[string]any{
		"household_id": "hh-1",
		"owner_id":     "user-1",
		"name":         "Gas",
		"amount":       "40.00",
		"currency":     "EUR",
		"category":     "Utilities",
		"day_of_month": 20,
		"month":        "2024-03",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bill := decodeBody[billResponse](t, rec)

	url := "/api/settlement?household_id=hh-1&month=2024-03"
	doJSON(t, srv, http.MethodGet, url, nil)

	paymentID := fmt.Sprintf("%s_2024-03", bill.ID)
	rec = doJSON(t, srv, http.MethodPost, "/api/bill-payments/"+paymentID+"/paid", map[string]any{"is_paid": true})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	view := decodeBody[settlementResponse](t, doJSON(t, srv, http.MethodGet, url, nil))
	require.Len(t, view.Items, 1)
	assert.True(t, view.Items[0].IsPaid)
}
