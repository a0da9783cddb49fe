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
	"time"

	"spendi/internal/auth"
	"spendi/internal/core"
	"spendi/internal/ml"
	"spendi/internal/services"
	"spendi/internal/storage"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	return testServerWithLimit(t, 10000)
}

// do performs a request against the server's full middleware chain.
func do(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "127.0.0.1:9999"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// registerAndLogin creates a user through the API and returns its token.
func registerAndLogin(t *testing.T, srv *Server, email string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "name": "Test", "password": "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	decodeBody(t, rec, &resp)
	return resp.Token
}

func TestHealthAndReady(t *testing.T) {
	srv := testServer(t)

	if rec := do(t, srv, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz: %d", rec.Code)
	}
}

func TestSecurityHeadersPresent(t *testing.T) {
	srv := testServer(t)
	rec := do(t, srv, http.MethodGet, "/healthz", "", nil)
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options header")
	}
}

func TestAuthFlow(t *testing.T) {
	srv := testServer(t)
	token := registerAndLogin(t, srv, "mario@example.com")

	rec := do(t, srv, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status %d", rec.Code)
	}
	var me userResponse
	decodeBody(t, rec, &me)
	if me.Email != "mario@example.com" {
		t.Errorf("me email = %q", me.Email)
	}

	if rec := do(t, srv, http.MethodPost, "/api/auth/logout", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: status %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/auth/me", token, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("me after logout: status %d, want 401", rec.Code)
	}
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	srv := testServer(t)
	for _, path := range []string{"/api/expenses", "/api/categories", "/api/reports/monthly"} {
		if rec := do(t, srv, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status %d, want 401", path, rec.Code)
		}
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	srv := testServer(t)
	rec := do(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "a@b.com", "name": "A", "password": "short",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status %d, want 422", rec.Code)
	}
}

func TestRegisterDuplicateConflict(t *testing.T) {
	srv := testServer(t)
	registerAndLogin(t, srv, "dup@example.com")

	rec := do(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "dup@example.com", "name": "B", "password": "password123",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("status %d, want 409", rec.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	srv := testServer(t)
	registerAndLogin(t, srv, "mario@example.com")

	rec := do(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "mario@example.com", "password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status %d, want 401", rec.Code)
	}
}

func TestExpenseCRUD(t *testing.T) {
	srv := testServer(t)
	token := registerAndLogin(t, srv, "mario@example.com")

	// Create a category to attach expenses to.
	rec := do(t, srv, http.MethodPost, "/api/categories", token, map[string]string{"name": "Food"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category: status %d body %s", rec.Code, rec.Body.String())
	}
	var food categoryResponse
	decodeBody(t, rec, &food)

	rec = do(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"category_id":    food.ID,
		"description":    "Coffee shop",
		"amount_cents":   525,
		"date":           "2026-08-15",
		"payment_method": "cash",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense: status %d body %s", rec.Code, rec.Body.String())
	}
	var created expenseResponse
	decodeBody(t, rec, &created)
	if created.CategoryID != food.ID || created.AmountCents != 525 || created.Date != "2026-08-15" {
		t.Fatalf("unexpected expense: %+v", created)
	}

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/api/expenses/%d", created.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get expense: status %d", rec.Code)
	}

	rec = do(t, srv, http.MethodPut, fmt.Sprintf("/api/expenses/%d", created.ID), token, map[string]any{
		"category_id":  food.ID,
		"description":  "Coffee shop downtown",
		"amount_cents": 600,
		"date":         "2026-08-15",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update expense: status %d body %s", rec.Code, rec.Body.String())
	}
	var updated expenseResponse
	decodeBody(t, rec, &updated)
	if updated.Description != "Coffee shop downtown" || updated.AmountCents != 600 {
		t.Fatalf("unexpected update: %+v", updated)
	}

	rec = do(t, srv, http.MethodGet, "/api/expenses", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list expenses: status %d", rec.Code)
	}
	var list expenseListResponse
	decodeBody(t, rec, &list)
	if list.Total != 1 || len(list.Expenses) != 1 {
		t.Fatalf("list = %+v", list)
	}

	rec = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/expenses/%d", created.ID), token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete expense: status %d", rec.Code)
	}
	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/api/expenses/%d", created.ID), token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted expense: status %d, want 404", rec.Code)
	}
}

func TestExpenseValidation(t *testing.T) {
	srv := testServer(t)
	token := registerAndLogin(t, srv, "mario@example.com")

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing description", map[string]any{"amount_cents": 100, "date": "2026-08-15"}, http.StatusUnprocessableEntity},
		{"zero amount", map[string]any{"description": "x", "amount_cents": 0, "date": "2026-08-15"}, http.StatusUnprocessableEntity},
		{"bad date", map[string]any{"description": "x", "amount_cents": 100, "date": "15/08/2026"}, http.StatusUnprocessableEntity},
		{"bad payment method", map[string]any{"description": "x", "amount_cents": 100, "date": "2026-08-15", "payment_method": "iou"}, http.StatusUnprocessableEntity},
		{"unknown field", map[string]any{"description": "x", "amount_cents": 100, "date": "2026-08-15", "bogus": true}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/expenses", token, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestExpenseDecimalAmount(t *testing.T) {
	srv := testServer(t)
	token := registerAndLogin(t, srv, "mario@example.com")

	rec := do(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"description": "Pizza", "amount": "12,34", "date": "2026-08-15",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var created expenseResponse
	decodeBody(t, rec, &created)
	if created.AmountCents != 1234 {
		t.Errorf("amount_cents = %d, want 1234", created.AmountCents)
	}
}

func TestUncategorizedExpenseGetsDefaultCategory(t *testing.T) {
	srv := testServer(t)
	token := registerAndLogin(t, srv, "mario@example.com")

	rec := do(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"description":  "Mystery purchase",
		"amount_cents": 999,
		"date":         "2026-08-15",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	var created expenseResponse
	decodeBody(t, rec, &created)
	if created.CategoryID == 0 {
		t.Fatal("expense should fall back to the default category")
	}

	rec = do(t, srv, http.MethodGet, "/api/categories", token, nil)
	var categories []categoryResponse
	decodeBody(t, rec, &categories)
	found := false
	for _, c := range categories {
		if c.ID == created.CategoryID && c.IsDefault {
			found = true
		}
	}
	if !found {
		t.Errorf("default category not visible in list: %+v", categories)
	}
}

func TestUsersCannotSeeEachOthersExpenses(t *testing.T) {
	srv := testServer(t)
	marioToken := registerAndLogin(t, srv, "mario@example.com")
	luigiToken := registerAndLogin(t, srv, "luigi@example.com")

	rec := do(t, srv, http.MethodPost, "/api/expenses", marioToken, map[string]any{
		"description":  "Private dinner",
		"amount_cents": 4300,
		"date":         "2026-08-15",
	})
	var created expenseResponse
	decodeBody(t, rec, &created)

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/api/expenses/%d", created.ID), luigiToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-user get: status %d, want 404", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/api/expenses", luigiToken, nil)
	var list expenseListResponse
	decodeBody(t, rec, &list)
	if list.Total != 0 {
		t.Errorf("cross-user list total = %d, want 0", list.Total)
	}
}

func TestCategoryLifecycleAndStats(t *testing.T) {
	srv := testServer(t)
	token := registerAndLogin(t, srv, "mario@example.com")

	rec := do(t, srv, http.MethodPost, "/api/categories", token, map[string]string{
		"name": "Transport", "color": "#0000ff", "icon": "bus",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d", rec.Code)
	}
	var transport categoryResponse
	decodeBody(t, rec, &transport)

	// Duplicate name conflicts.
	rec = do(t, srv, http.MethodPost, "/api/categories", token, map[string]string{"name": "Transport"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate: status %d, want 409", rec.Code)
	}

	rec = do(t, srv, http.MethodPut, fmt.Sprintf("/api/categories/%d", transport.ID), token, map[string]string{
		"name": "Commute",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rec.Code, rec.Body.String())
	}

	do(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"category_id": transport.ID, "description": "Bus ticket", "amount_cents": 200, "date": "2026-08-10",
	})

	rec = do(t, srv, http.MethodGet, "/api/categories/stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status %d", rec.Code)
	}
	var stats []categoryStatResponse
	decodeBody(t, rec, &stats)
	if len(stats) != 1 || stats[0].ExpenseCount != 1 || stats[0].TotalCents != 200 {
		t.Fatalf("stats = %+v", stats)
	}

	rec = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/categories/%d", transport.ID), token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
}

func TestExpenseStats(t *testing.T) {
	srv := testServer(t)
	token := registerAndLogin(t, srv, "mario@example.com")

	for _, cents := range []int64{1000, 2500} {
		do(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
			"description": "Groceries", "amount_cents": cents, "date": "2026-08-10",
		})
	}

	rec := do(t, srv, http.MethodGet, "/api/expenses/stats?year=2026&month=8", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status %d body %s", rec.Code, rec.Body.String())
	}
	var stats statsResponse
	decodeBody(t, rec, &stats)
	if stats.TotalCents != 3500 {
		t.Errorf("total = %d, want 3500", stats.TotalCents)
	}

	rec = do(t, srv, http.MethodGet, "/api/expenses/stats?year=2026&month=13", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid month: status %d, want 400", rec.Code)
	}
}

func TestReports(t *testing.T) {
	srv := testServer(t)
	token := registerAndLogin(t, srv, "mario@example.com")

	do(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"description": "Rent", "amount_cents": 90000, "date": "2026-08-01",
	})

	rec := do(t, srv, http.MethodGet, "/api/reports/monthly?year=2026&month=8", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("monthly: status %d body %s", rec.Code, rec.Body.String())
	}
	var monthly monthlyReportResponse
	decodeBody(t, rec, &monthly)
	if monthly.TotalCents != 90000 {
		t.Errorf("monthly total = %d", monthly.TotalCents)
	}

	rec = do(t, srv, http.MethodGet, "/api/reports/yearly?year=2026", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("yearly: status %d", rec.Code)
	}
	var yearly yearlySummaryResponse
	decodeBody(t, rec, &yearly)
	if yearly.TotalCents != 90000 || yearly.TopMonth != 8 {
		t.Errorf("yearly = %+v", yearly)
	}
}

func TestPredictEndpoint(t *testing.T) {
	srv := testServer(t)
	token := registerAndLogin(t, srv, "mario@example.com")

	// No history yet: prediction is empty but the endpoint still succeeds.
	rec := do(t, srv, http.MethodPost, "/api/predict", token, map[string]any{
		"description": "Coffee shop", "amount_cents": 525,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("predict: status %d body %s", rec.Code, rec.Body.String())
	}
	var pred predictResponse
	decodeBody(t, rec, &pred)
	if pred.CategoryID != 0 || pred.Confidence != 0 {
		t.Errorf("cold prediction = %+v, want zero", pred)
	}

	rec = do(t, srv, http.MethodPost, "/api/predict", token, map[string]any{"amount_cents": 525})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("predict without description: status %d, want 422", rec.Code)
	}
}

func TestTrainEndpoint(t *testing.T) {
	srv := testServer(t)
	token := registerAndLogin(t, srv, "mario@example.com")

	rec := do(t, srv, http.MethodPost, "/api/train", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("train: status %d", rec.Code)
	}
	var resp trainResponse
	decodeBody(t, rec, &resp)
	if resp.Trained {
		t.Error("training should be refused without enough history")
	}
}

func TestRateLimiting(t *testing.T) {
	small := testServerWithLimit(t, 2)

	for i := 0; i < 2; i++ {
		if rec := do(t, small, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}
	if rec := do(t, small, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusTooManyRequests {
		t.Errorf("status %d, want 429", rec.Code)
	}
}

func TestAdminUserListing(t *testing.T) {
	srv := testServer(t)
	userToken := registerAndLogin(t, srv, "plain@example.com")
	adminToken := registerAndLogin(t, srv, "admin@example.com")

	if rec := do(t, srv, http.MethodGet, "/api/admin/users", userToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin listing: status %d, want 403", rec.Code)
	}

	admin, err := srv.repo.GetUserByEmail(context.Background(), "admin@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if err := srv.repo.SetUserRole(context.Background(), admin.ID, core.RoleAdmin); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}

	rec := do(t, srv, http.MethodGet, "/api/admin/users", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin listing: status %d body %s", rec.Code, rec.Body.String())
	}
	var users []userResponse
	decodeBody(t, rec, &users)
	if len(users) != 2 {
		t.Errorf("listed %d users, want 2", len(users))
	}
}

func testServerWithLimit(t *testing.T, perMinute int) *Server {
	t.Helper()
	dir := t.TempDir()
	repo, err := storage.NewRepository(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store := ml.NewStore(filepath.Join(dir, "models"))
	predictor := ml.NewPredictor(store, repo)
	trainer := ml.NewTrainer(store, repo, nil, ml.TrainingConfig{}, 0)
	reports := services.NewReportService(repo, nil)
	expenses := services.NewExpenseService(repo, predictor, trainer, reports)
	authSvc := auth.NewService(repo, time.Hour)

	srv := NewServer(Config{Addr: ":0", RequestsPerMinute: perMinute}, authSvc, expenses, reports, repo)
	t.Cleanup(func() { srv.limiter.Stop() })
	return srv
}
