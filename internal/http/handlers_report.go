package http

import (
	"net/http"
	"time"

	"spendi/internal/core"
)

type topExpenseResponse struct {
	ExpenseID   int64  `json:"expense_id"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	Date        string `json:"date"`
	Category    string `json:"category"`
}

type comparisonResponse struct {
	DifferenceCents  int64   `json:"difference_cents"`
	PercentageChange float64 `json:"percentage_change"`
}

type monthlyReportResponse struct {
	Year            int                      `json:"year"`
	Month           int                      `json:"month"`
	TotalCents      int64                    `json:"total_cents"`
	ByCategory      []categoryAmountResponse `json:"by_category"`
	DailyTrend      []dailyAmountResponse    `json:"daily_trend"`
	TopExpenses     []topExpenseResponse     `json:"top_expenses"`
	Comparison      comparisonResponse       `json:"comparison"`
	Insights        []string                 `json:"insights"`
	Recommendations []string                 `json:"recommendations"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

func toMonthlyReportResponse(rep core.MonthlyReport) monthlyReportResponse {
	top := make([]topExpenseResponse, 0, len(rep.TopExpenses))
	for _, t := range rep.TopExpenses {
		top = append(top, topExpenseResponse{
			ExpenseID:   t.ExpenseID,
			Description: t.Description,
			AmountCents: t.Amount.Cents,
			Date:        t.Date.Format("2006-01-02"),
			Category:    t.Category,
		})
	}
	return monthlyReportResponse{
		Year:        rep.Year,
		Month:       rep.Month,
		TotalCents:  rep.Total.Cents,
		ByCategory:  toCategoryAmounts(rep.ByCategory),
		DailyTrend:  toDailyAmounts(rep.DailyTrend),
		TopExpenses: top,
		Comparison: comparisonResponse{
			DifferenceCents:  rep.Comparison.Difference,
			PercentageChange: rep.Comparison.PercentageChange,
		},
		Insights:        rep.Insights,
		Recommendations: rep.Recommendations,
		GeneratedAt:     rep.GeneratedAt,
	}
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	report, err := s.reports.Monthly(r.Context(), currentUser(r).ID, year, month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toMonthlyReportResponse(report))
}

type monthTotalResponse struct {
	Month       int   `json:"month"`
	AmountCents int64 `json:"amount_cents"`
}

type yearlySummaryResponse struct {
	Year       int                  `json:"year"`
	TotalCents int64                `json:"total_cents"`
	ByMonth    []monthTotalResponse `json:"by_month"`
	TopMonth   int                  `json:"top_month"`
}

func (s *Server) handleYearlySummary(w http.ResponseWriter, r *http.Request) {
	year := queryInt(r, "year", time.Now().Year())

	summary, err := s.reports.Yearly(r.Context(), currentUser(r).ID, year)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	byMonth := make([]monthTotalResponse, 0, len(summary.ByMonth))
	for _, m := range summary.ByMonth {
		byMonth = append(byMonth, monthTotalResponse{Month: m.Month, AmountCents: m.Amount.Cents})
	}

	writeJSON(w, http.StatusOK, yearlySummaryResponse{
		Year:       summary.Year,
		TotalCents: summary.Total.Cents,
		ByMonth:    byMonth,
		TopMonth:   summary.TopMonth,
	})
}
