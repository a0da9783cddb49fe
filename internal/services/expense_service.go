// Package services orchestrates the domain operations that span storage,
// the categorization engine and the report aggregates.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"spendi/internal/core"
	"spendi/internal/ml"
	"spendi/internal/storage"
)

// ExpenseService coordinates expense writes with category prediction and
// training scheduling.
type ExpenseService struct {
	repo      *storage.Repository
	predictor *ml.Predictor
	trainer   *ml.Trainer
	reports   *ReportService // invalidated on writes, may be nil
}

func NewExpenseService(repo *storage.Repository, predictor *ml.Predictor, trainer *ml.Trainer, reports *ReportService) *ExpenseService {
	return &ExpenseService{
		repo:      repo,
		predictor: predictor,
		trainer:   trainer,
		reports:   reports,
	}
}

// Create validates and stores an expense. An expense without a category is
// run through the predictor; if no category can be suggested it lands in
// the user's default category. Categorized writes schedule training.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.PaymentMethod == "" {
		e.PaymentMethod = core.PaymentOther
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("validate expense: %w", err)
	}

	if e.CategoryID == 0 {
		e = s.categorize(ctx, e)
	} else {
		// A caller-supplied category must belong to the user.
		if _, err := s.repo.GetCategory(ctx, e.UserID, e.CategoryID); err != nil {
			return core.Expense{}, fmt.Errorf("resolve category: %w", err)
		}
		e.MLConfidence = 0
	}

	created, err := s.repo.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, err
	}

	s.afterWrite(ctx, created)
	return created, nil
}

// Update validates and stores changes to an expense.
func (s *ExpenseService) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.PaymentMethod == "" {
		e.PaymentMethod = core.PaymentOther
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("validate expense: %w", err)
	}
	if e.CategoryID != 0 {
		if _, err := s.repo.GetCategory(ctx, e.UserID, e.CategoryID); err != nil {
			return core.Expense{}, fmt.Errorf("resolve category: %w", err)
		}
	}

	updated, err := s.repo.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, err
	}

	s.afterWrite(ctx, updated)
	return updated, nil
}

// Delete removes an expense.
func (s *ExpenseService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteExpense(ctx, userID, id); err != nil {
		return err
	}
	if s.reports != nil {
		s.reports.Invalidate(userID)
	}
	return nil
}

// Get fetches one expense.
func (s *ExpenseService) Get(ctx context.Context, userID, id int64) (core.Expense, error) {
	return s.repo.GetExpense(ctx, userID, id)
}

// List returns a filtered page of expenses plus the filter's total count.
func (s *ExpenseService) List(ctx context.Context, userID int64, f storage.ExpenseFilter) ([]core.Expense, int64, error) {
	return s.repo.ListExpenses(ctx, userID, f)
}

// Suggestion is a category prediction offered to the client before an
// expense is saved.
type Suggestion struct {
	CategoryID   int64
	CategoryName string
	Confidence   float64
}

// Predict suggests a category for a prospective expense. A zero Suggestion
// means nothing could be suggested.
func (s *ExpenseService) Predict(ctx context.Context, userID int64, description string, amountCents int64) Suggestion {
	result := s.predictor.PredictCategory(ctx, description, amountCents, userID)
	if result.CategoryID == "" {
		return Suggestion{}
	}

	categoryID, err := strconv.ParseInt(result.CategoryID, 10, 64)
	if err != nil {
		slog.ErrorContext(ctx, "Predicted category key is not numeric",
			"user_id", userID, "category_key", result.CategoryID)
		return Suggestion{}
	}

	category, err := s.repo.GetCategory(ctx, userID, categoryID)
	if err != nil {
		// The model can lag behind category deletions.
		slog.WarnContext(ctx, "Predicted category no longer exists",
			"user_id", userID, "category_id", categoryID, "error", err)
		return Suggestion{}
	}

	return Suggestion{
		CategoryID:   category.ID,
		CategoryName: category.Name,
		Confidence:   result.Confidence,
	}
}

// Train runs a training pipeline for the user synchronously and reports
// whether a new model artifact was produced.
func (s *ExpenseService) Train(ctx context.Context, userID int64) bool {
	return s.trainer.Train(ctx, userID)
}

// Stats aggregates one month for the client dashboard.
type Stats struct {
	Year       int
	Month      int
	Total      core.Money
	ByCategory []core.CategoryAmount
	Daily      []core.DailyAmount
}

// MonthlyStats returns the month's total, per-category totals and daily
// series.
func (s *ExpenseService) MonthlyStats(ctx context.Context, userID int64, year, month int) (Stats, error) {
	total, err := s.repo.MonthTotalCents(ctx, userID, year, month)
	if err != nil {
		return Stats{}, err
	}
	byCategory, err := s.repo.CategoryBreakdown(ctx, userID, year, month)
	if err != nil {
		return Stats{}, err
	}
	daily, err := s.repo.DailyTotals(ctx, userID, year, month)
	if err != nil {
		return Stats{}, err
	}
	for i := range byCategory {
		if total > 0 {
			byCategory[i].Percentage = float64(byCategory[i].Amount.Cents) / float64(total) * 100
		}
	}
	return Stats{
		Year:       year,
		Month:      month,
		Total:      core.Money{Cents: total},
		ByCategory: byCategory,
		Daily:      daily,
	}, nil
}

// categorize runs the predictor for an uncategorized expense and falls
// back to the user's default category. Prediction failures never block the
// save.
func (s *ExpenseService) categorize(ctx context.Context, e core.Expense) core.Expense {
	suggestion := s.Predict(ctx, e.UserID, e.Description, e.Amount.Cents)
	if suggestion.CategoryID != 0 {
		e.CategoryID = suggestion.CategoryID
		e.MLConfidence = suggestion.Confidence
		slog.InfoContext(ctx, "Expense auto-categorized",
			"user_id", e.UserID,
			"category_id", suggestion.CategoryID,
			"confidence", suggestion.Confidence)
		return e
	}

	fallback, err := s.ensureDefaultCategory(ctx, e.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to resolve default category",
			"user_id", e.UserID, "error", err)
		return e
	}
	e.CategoryID = fallback.ID
	e.MLConfidence = 0
	return e
}

// ensureDefaultCategory returns the user's catch-all category, creating it
// on first use.
func (s *ExpenseService) ensureDefaultCategory(ctx context.Context, userID int64) (core.Category, error) {
	category, err := s.repo.GetCategoryByName(ctx, userID, core.UncategorizedName)
	if err == nil {
		return category, nil
	}

	category, err = s.repo.CreateCategory(ctx, core.Category{
		UserID:    userID,
		Name:      core.UncategorizedName,
		Color:     "#95a5a6",
		IsDefault: true,
	})
	if err != nil {
		// A concurrent request may have created it first.
		if existing, getErr := s.repo.GetCategoryByName(ctx, userID, core.UncategorizedName); getErr == nil {
			return existing, nil
		}
		return core.Category{}, err
	}
	return category, nil
}

// afterWrite invalidates cached reports and schedules training when the
// write left the expense categorized.
func (s *ExpenseService) afterWrite(ctx context.Context, e core.Expense) {
	if s.reports != nil {
		s.reports.Invalidate(e.UserID)
	}
	if e.CategoryID != 0 {
		s.trainer.ScheduleTraining(ctx, e.UserID)
	}
}
