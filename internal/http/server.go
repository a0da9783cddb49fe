// Package http exposes the JSON API: authentication, expense and category
// management, category prediction and spending reports.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"spendi/internal/auth"
	"spendi/internal/middleware/ratelimit"
	"spendi/internal/middleware/security"
	"spendi/internal/middleware/trace"
	"spendi/internal/services"
	"spendi/internal/storage"
)

// Config holds the server's tunables.
type Config struct {
	Addr              string
	RequestsPerMinute int
}

type Server struct {
	http.Server

	auth     *auth.Service
	expenses *services.ExpenseService
	reports  *services.ReportService
	repo     *storage.Repository

	limiter  *ratelimit.Limiter
	resolver *security.IPResolver

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, authSvc *auth.Service, expenses *services.ExpenseService, reports *services.ReportService, repo *storage.Repository) *Server {
	s := &Server{
		auth:     authSvc,
		expenses: expenses,
		reports:  reports,
		repo:     repo,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RequestsPerMinute}),
		resolver: security.NewIPResolver(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.requireUser(s.handleLogout))
	mux.HandleFunc("GET /api/auth/me", s.requireUser(s.handleMe))

	mux.HandleFunc("GET /api/admin/users", s.requireAdmin(s.handleListUsers))

	mux.HandleFunc("GET /api/expenses", s.requireUser(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.requireUser(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses/stats", s.requireUser(s.handleExpenseStats))
	mux.HandleFunc("GET /api/expenses/{id}", s.requireUser(s.handleGetExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.requireUser(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.requireUser(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/categories", s.requireUser(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.requireUser(s.handleCreateCategory))
	mux.HandleFunc("GET /api/categories/stats", s.requireUser(s.handleCategoryStats))
	mux.HandleFunc("PUT /api/categories/{id}", s.requireUser(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.requireUser(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/reports/monthly", s.requireUser(s.handleMonthlyReport))
	mux.HandleFunc("GET /api/reports/yearly", s.requireUser(s.handleYearlySummary))

	mux.HandleFunc("POST /api/predict", s.requireUser(s.handlePredict))
	mux.HandleFunc("POST /api/train", s.requireUser(s.handleTrain))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.resolver.ClientIP)
	limited := s.limiter.Middleware(s.resolver.ClientIP, nil)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           tracer.Middleware(headers.Middleware(limited(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
