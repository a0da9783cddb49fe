package services

import (
	"context"
	"fmt"
	"time"

	"spendi/internal/cache"
	"spendi/internal/core"
	"spendi/internal/storage"
)

const topExpenseLimit = 5

// ReportService builds monthly and yearly spending aggregates. Reports are
// cached per user+period and invalidated on expense writes.
type ReportService struct {
	repo    *storage.Repository
	monthly *cache.LRUCache[core.MonthlyReport]
	yearly  *cache.LRUCache[core.YearlySummary]
}

func NewReportService(repo *storage.Repository, manager *cache.Manager) *ReportService {
	s := &ReportService{
		repo:    repo,
		monthly: cache.NewLRUCache[core.MonthlyReport](256, 15*time.Minute),
		yearly:  cache.NewLRUCache[core.YearlySummary](128, 15*time.Minute),
	}
	if manager != nil {
		manager.Register(s.monthly)
		manager.Register(s.yearly)
	}
	return s
}

// Invalidate drops every cached report for the user.
func (s *ReportService) Invalidate(userID int64) {
	prefix := fmt.Sprintf("u%d:", userID)
	s.monthly.DeleteByPrefix(prefix)
	s.yearly.DeleteByPrefix(prefix)
}

// Monthly builds (or returns the cached) report for one month.
func (s *ReportService) Monthly(ctx context.Context, userID int64, year, month int) (core.MonthlyReport, error) {
	if month < 1 || month > 12 {
		return core.MonthlyReport{}, fmt.Errorf("invalid month: %d", month)
	}

	key := fmt.Sprintf("u%d:m%04d-%02d", userID, year, month)
	if cached, ok := s.monthly.Get(key); ok {
		return cached, nil
	}

	report, err := s.buildMonthly(ctx, userID, year, month)
	if err != nil {
		return core.MonthlyReport{}, err
	}
	s.monthly.Set(key, report)
	return report, nil
}

// Yearly builds (or returns the cached) summary for one calendar year.
func (s *ReportService) Yearly(ctx context.Context, userID int64, year int) (core.YearlySummary, error) {
	key := fmt.Sprintf("u%d:y%04d", userID, year)
	if cached, ok := s.yearly.Get(key); ok {
		return cached, nil
	}

	months, err := s.repo.MonthlyTotals(ctx, userID, year)
	if err != nil {
		return core.YearlySummary{}, err
	}

	summary := core.YearlySummary{Year: year, ByMonth: months}
	var topCents int64
	for _, m := range months {
		summary.Total.Cents += m.Amount.Cents
		if m.Amount.Cents > topCents {
			topCents = m.Amount.Cents
			summary.TopMonth = m.Month
		}
	}

	s.yearly.Set(key, summary)
	return summary, nil
}

func (s *ReportService) buildMonthly(ctx context.Context, userID int64, year, month int) (core.MonthlyReport, error) {
	total, err := s.repo.MonthTotalCents(ctx, userID, year, month)
	if err != nil {
		return core.MonthlyReport{}, err
	}

	breakdown, err := s.repo.CategoryBreakdown(ctx, userID, year, month)
	if err != nil {
		return core.MonthlyReport{}, err
	}
	for i := range breakdown {
		if breakdown[i].Name == "" {
			breakdown[i].Name = core.UncategorizedName
		}
		if total > 0 {
			breakdown[i].Percentage = float64(breakdown[i].Amount.Cents) / float64(total) * 100
		}
	}

	prevYear, prevMonth := year, month-1
	if prevMonth == 0 {
		prevYear, prevMonth = year-1, 12
	}
	prevTotal, err := s.repo.MonthTotalCents(ctx, userID, prevYear, prevMonth)
	if err != nil {
		return core.MonthlyReport{}, err
	}

	comparison := core.MonthComparison{Difference: total - prevTotal}
	if prevTotal > 0 {
		comparison.PercentageChange = float64(total-prevTotal) / float64(prevTotal) * 100
	}

	top, err := s.repo.TopExpenses(ctx, userID, year, month, topExpenseLimit)
	if err != nil {
		return core.MonthlyReport{}, err
	}

	daily, err := s.repo.DailyTotals(ctx, userID, year, month)
	if err != nil {
		return core.MonthlyReport{}, err
	}

	report := core.MonthlyReport{
		Year:            year,
		Month:           month,
		Total:           core.Money{Cents: total},
		ByCategory:      breakdown,
		DailyTrend:      daily,
		TopExpenses:     top,
		Comparison:      comparison,
		Insights:        buildInsights(total, prevTotal, breakdown, daily, year, month),
		Recommendations: buildRecommendations(breakdown, comparison),
		GeneratedAt:     time.Now().UTC(),
	}
	return report, nil
}

func buildInsights(total, prevTotal int64, breakdown []core.CategoryAmount, daily []core.DailyAmount, year, month int) []string {
	var insights []string

	switch {
	case total > prevTotal:
		insights = append(insights, fmt.Sprintf(
			"Your spending increased by %s compared to last month.", core.Money{Cents: total - prevTotal}))
	case total < prevTotal:
		insights = append(insights, fmt.Sprintf(
			"Your spending decreased by %s compared to last month.", core.Money{Cents: prevTotal - total}))
	default:
		insights = append(insights, "Your spending is the same as last month.")
	}

	if len(breakdown) > 0 {
		top := breakdown[0]
		insights = append(insights, fmt.Sprintf(
			"Your highest spending category was %s at %s (%.1f%% of total).",
			top.Name, top.Amount, top.Percentage))
	}

	if len(daily) > 0 {
		highest := daily[0]
		for _, d := range daily[1:] {
			if d.Amount.Cents > highest.Amount.Cents {
				highest = d
			}
		}
		if highest.Amount.Cents > 0 {
			insights = append(insights, fmt.Sprintf(
				"Your highest spending day was %04d-%02d-%02d with %s spent.",
				year, month, highest.Day, highest.Amount))
		}
	}

	return insights
}

func buildRecommendations(breakdown []core.CategoryAmount, comparison core.MonthComparison) []string {
	var recommendations []string

	if len(breakdown) > 0 && breakdown[0].Percentage > 40 {
		top := breakdown[0]
		recommendations = append(recommendations, fmt.Sprintf(
			"Your %s expenses are %.1f%% of your total spending. Consider if you can reduce this category.",
			top.Name, top.Percentage))
	}

	if comparison.PercentageChange > 20 {
		recommendations = append(recommendations,
			"Your spending increased significantly from last month. Review your expenses to identify areas to cut back.")
	} else if comparison.PercentageChange < -20 {
		recommendations = append(recommendations,
			"Great job reducing your spending from last month! Keep up the good work.")
	}

	recommendations = append(recommendations,
		"Track your expenses regularly to stay on top of your financial goals.",
		"Review recurring subscriptions and services to eliminate unused ones.")

	return recommendations
}
