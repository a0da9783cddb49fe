package core

import "time"

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID int64
	Name       string
	Color      string
	Icon       string
	Amount     Money
	Percentage float64
}

// DailyAmount is one day's total within a month.
type DailyAmount struct {
	Day    int // 1-31
	Amount Money
}

// TopExpense is one of the largest expenses in a reporting period.
type TopExpense struct {
	ExpenseID   int64
	Description string
	Amount      Money
	Date        Date
	Category    string
}

// MonthComparison compares a month's total against the previous month.
type MonthComparison struct {
	Difference       int64 // cents, may be negative
	PercentageChange float64
}

// MonthlyReport is the full aggregate for a specific year+month.
type MonthlyReport struct {
	Year            int
	Month           int // 1-12
	Total           Money
	ByCategory      []CategoryAmount
	DailyTrend      []DailyAmount
	TopExpenses     []TopExpense
	Comparison      MonthComparison
	Insights        []string
	Recommendations []string
	GeneratedAt     time.Time
}

// YearlySummary aggregates a calendar year month by month.
type YearlySummary struct {
	Year     int
	Total    Money
	ByMonth  []MonthTotal
	TopMonth int // 1-12, 0 when the year has no expenses
}

// MonthTotal is one month's total within a year.
type MonthTotal struct {
	Month  int // 1-12
	Amount Money
}
