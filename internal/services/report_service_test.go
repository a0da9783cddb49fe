package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"spendi/internal/core"
	"spendi/internal/storage"
)

func reportSetup(t *testing.T) (*ReportService, *storage.Repository, core.User) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	u, err := repo.CreateUser(context.Background(), "mario@example.com", "Mario", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return NewReportService(repo, nil), repo, u
}

func seedMonth(t *testing.T, repo *storage.Repository, userID, categoryID int64, year, month int, cents ...int64) {
	t.Helper()
	for i, c := range cents {
		_, err := repo.CreateExpense(context.Background(), core.Expense{
			UserID:        userID,
			CategoryID:    categoryID,
			Description:   "Seeded expense",
			Amount:        core.Money{Cents: c},
			Date:          core.NewDate(year, month, 1+i),
			PaymentMethod: core.PaymentCash,
		})
		if err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}
}

func TestMonthlyReport(t *testing.T) {
	svc, repo, u := reportSetup(t)
	ctx := context.Background()
	food, _ := repo.CreateCategory(ctx, core.Category{UserID: u.ID, Name: "Food"})

	seedMonth(t, repo, u.ID, food.ID, 2026, 7, 1000)
	seedMonth(t, repo, u.ID, food.ID, 2026, 8, 500, 1500, 8000)
	seedMonth(t, repo, u.ID, 0, 2026, 8, 300)

	report, err := svc.Monthly(ctx, u.ID, 2026, 8)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}

	if report.Total.Cents != 10300 {
		t.Fatalf("expected total 10300, got %d", report.Total.Cents)
	}
	if len(report.ByCategory) != 2 {
		t.Fatalf("expected 2 breakdown rows, got %d", len(report.ByCategory))
	}
	if report.ByCategory[0].Name != "Food" {
		t.Fatalf("expected Food first, got %q", report.ByCategory[0].Name)
	}
	if report.ByCategory[1].Name != core.UncategorizedName {
		t.Fatalf("uncategorized spending must be labeled, got %q", report.ByCategory[1].Name)
	}
	if report.Comparison.Difference != 9300 {
		t.Fatalf("expected comparison difference 9300, got %d", report.Comparison.Difference)
	}
	if report.Comparison.PercentageChange < 929.9 || report.Comparison.PercentageChange > 930.1 {
		t.Fatalf("expected +930%% change, got %v", report.Comparison.PercentageChange)
	}
	if len(report.TopExpenses) != 4 {
		t.Fatalf("expected 4 top expenses, got %d", len(report.TopExpenses))
	}
	if report.TopExpenses[0].Amount.Cents != 8000 {
		t.Fatalf("expected largest expense first, got %d", report.TopExpenses[0].Amount.Cents)
	}
	if len(report.Insights) == 0 || len(report.Recommendations) == 0 {
		t.Fatal("expected insights and recommendations")
	}
	if !strings.Contains(report.Insights[0], "increased") {
		t.Fatalf("expected increase insight, got %q", report.Insights[0])
	}
}

func TestMonthlyReportCachedAndInvalidated(t *testing.T) {
	svc, repo, u := reportSetup(t)
	ctx := context.Background()
	food, _ := repo.CreateCategory(ctx, core.Category{UserID: u.ID, Name: "Food"})
	seedMonth(t, repo, u.ID, food.ID, 2026, 8, 500)

	first, err := svc.Monthly(ctx, u.ID, 2026, 8)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}

	// New expense behind the cache's back: the stale total is served until
	// invalidation.
	seedMonth(t, repo, u.ID, food.ID, 2026, 8, 700)

	cached, err := svc.Monthly(ctx, u.ID, 2026, 8)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if cached.Total.Cents != first.Total.Cents {
		t.Fatal("expected cached report before invalidation")
	}

	svc.Invalidate(u.ID)

	fresh, err := svc.Monthly(ctx, u.ID, 2026, 8)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if fresh.Total.Cents != 1200 {
		t.Fatalf("expected fresh total 1200 after invalidation, got %d", fresh.Total.Cents)
	}
}

func TestMonthlyReportInvalidMonth(t *testing.T) {
	svc, _, u := reportSetup(t)
	if _, err := svc.Monthly(context.Background(), u.ID, 2026, 13); err == nil {
		t.Fatal("expected error for month 13")
	}
}

func TestYearlySummary(t *testing.T) {
	svc, repo, u := reportSetup(t)
	ctx := context.Background()
	food, _ := repo.CreateCategory(ctx, core.Category{UserID: u.ID, Name: "Food"})

	seedMonth(t, repo, u.ID, food.ID, 2026, 3, 1000)
	seedMonth(t, repo, u.ID, food.ID, 2026, 8, 500, 2500)

	summary, err := svc.Yearly(ctx, u.ID, 2026)
	if err != nil {
		t.Fatalf("Yearly: %v", err)
	}
	if summary.Total.Cents != 4000 {
		t.Fatalf("expected yearly total 4000, got %d", summary.Total.Cents)
	}
	if summary.TopMonth != 8 {
		t.Fatalf("expected August as top month, got %d", summary.TopMonth)
	}
	if len(summary.ByMonth) != 2 {
		t.Fatalf("expected 2 active months, got %d", len(summary.ByMonth))
	}
}

func TestYearlySummaryEmpty(t *testing.T) {
	svc, _, u := reportSetup(t)
	summary, err := svc.Yearly(context.Background(), u.ID, 2031)
	if err != nil {
		t.Fatalf("Yearly: %v", err)
	}
	if summary.Total.Cents != 0 || summary.TopMonth != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}
