// Package http exposes the household finance services as a JSON API.
// Handlers stay thin: boundary parsing and validation here, domain rules
// in the services.
package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"bollette/internal/cache"
	"bollette/internal/core"
	"bollette/internal/services"
)

type Server struct {
	http.Server

	bills      *services.BillService
	loans      *services.LoanService
	savings    *services.SavingsService
	settlement *services.SettlementService
	households *services.HouseholdService

	rateLimiter *rateLimiter

	// Settlement views are read on every page load; a short-TTL cache
	// absorbs repeated reads between mutations.
	settlementCache *cache.LRUCache[[]core.DueItem]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

func NewServer(
	port string,
	bills *services.BillService,
	loans *services.LoanService,
	savings *services.SavingsService,
	settlement *services.SettlementService,
	households *services.HouseholdService,
) *Server {
	s := &Server{
		bills:            bills,
		loans:            loans,
		savings:          savings,
		settlement:       settlement,
		households:       households,
		rateLimiter:      newRateLimiter(),
		settlementCache:  cache.NewLRUCache[[]core.DueItem](256, 30*time.Second),
		stopCacheCleanup: make(chan struct{}),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/profiles", s.handleCreateProfile)
	mux.HandleFunc("GET /api/profiles/{id}", s.handleGetProfile)
	mux.HandleFunc("PUT /api/profiles/{id}", s.handleUpdateProfile)

	mux.HandleFunc("POST /api/households", s.handleCreateHousehold)
	mux.HandleFunc("GET /api/households/{id}", s.handleGetHousehold)
	mux.HandleFunc("POST /api/households/join", s.handleJoinHousehold)
	mux.HandleFunc("GET /api/households/{id}/members", s.handleListMembers)
	mux.HandleFunc("POST /api/households/{id}/invite-code", s.handleRegenerateInviteCode)

	mux.HandleFunc("POST /api/bills", s.handleCreateBill)
	mux.HandleFunc("GET /api/bills", s.handleListBills)
	mux.HandleFunc("DELETE /api/bills/{id}", s.handleDeactivateBill)
	mux.HandleFunc("POST /api/bill-payments/{id}/paid", s.handleSetBillPaymentPaid)

	mux.HandleFunc("POST /api/loans", s.handleCreateLoan)
	mux.HandleFunc("GET /api/loans", s.handleListLoans)
	mux.HandleFunc("GET /api/loans/totals", s.handleLoanTotals)
	mux.HandleFunc("GET /api/loans/{id}", s.handleGetLoan)
	mux.HandleFunc("PUT /api/loans/{id}", s.handleUpdateLoan)
	mux.HandleFunc("DELETE /api/loans/{id}", s.handleDeleteLoan)
	mux.HandleFunc("POST /api/loans/{id}/payments", s.handleRecordLoanPayment)
	mux.HandleFunc("GET /api/loans/{id}/payments", s.handleListLoanPayments)

	mux.HandleFunc("POST /api/savings", s.handleCreateWithdrawal)
	mux.HandleFunc("GET /api/savings", s.handleListWithdrawals)
	mux.HandleFunc("GET /api/savings/totals", s.handleSavingsTotals)
	mux.HandleFunc("DELETE /api/savings/{id}", s.handleDeleteWithdrawal)
	mux.HandleFunc("POST /api/savings/{id}/paybacks", s.handleRecordPayback)
	mux.HandleFunc("GET /api/savings/{id}/paybacks", s.handleListPaybacks)

	mux.HandleFunc("GET /api/settlement", s.handleSettlementView)
	mux.HandleFunc("POST /api/settlement/bills/{paymentID}", s.handleSettleBill)
	mux.HandleFunc("POST /api/settlement/loans/{loanID}", s.handleSettleLoan)

	s.Server = http.Server{
		Addr:         ":" + port,
		Handler:      s.withCommon(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go s.startCacheCleanup()

	return s
}

// withCommon applies rate limiting and request logging to every route.
func (s *Server) withCommon(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.rateLimiter.allow(ip) {
			slog.WarnContext(r.Context(), "Rate limit exceeded", "client_ip", ip)
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		start := time.Now()
		next.ServeHTTP(w, r)
		slog.InfoContext(r.Context(), "Handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Shutdown stops background goroutines and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		close(s.stopCacheCleanup)
	})
	return s.Server.Shutdown(ctx)
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.settlementCache.CleanExpired()
			if removed > 0 {
				slog.Info("Cleaned expired settlement cache entries", "removed", removed)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

func settlementCacheKey(householdID string, month core.MonthKey) string {
	return householdID + "|" + string(month)
}

func (s *Server) invalidateSettlement(householdID string, month core.MonthKey) {
	s.settlementCache.Delete(settlementCacheKey(householdID, month))
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
