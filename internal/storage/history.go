package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"spendi/internal/ml"
)

// RecentCategorized implements ml.History: up to limit categorized
// expenses, newest first.
func (r *Repository) RecentCategorized(ctx context.Context, userID int64, limit int) ([]ml.Example, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT description, amount_cents, category_id
		   FROM expenses
		  WHERE user_id = ? AND category_id IS NOT NULL
		  ORDER BY expense_date DESC, id DESC
		  LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent categorized expenses: %w", err)
	}
	return scanExamples(rows)
}

// AllCategorized implements ml.History: the user's full categorized
// corpus, newest first.
func (r *Repository) AllCategorized(ctx context.Context, userID int64) ([]ml.Example, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT description, amount_cents, category_id
		   FROM expenses
		  WHERE user_id = ? AND category_id IS NOT NULL
		  ORDER BY expense_date DESC, id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("all categorized expenses: %w", err)
	}
	return scanExamples(rows)
}

// CategorizedCount implements ml.History.
func (r *Repository) CategorizedCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses WHERE user_id = ? AND category_id IS NOT NULL`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count categorized expenses: %w", err)
	}
	return count, nil
}

func scanExamples(rows *sql.Rows) ([]ml.Example, error) {
	defer rows.Close()

	var examples []ml.Example
	for rows.Next() {
		var (
			ex         ml.Example
			categoryID int64
		)
		if err := rows.Scan(&ex.Description, &ex.AmountCents, &categoryID); err != nil {
			return nil, fmt.Errorf("scan categorized expense: %w", err)
		}
		ex.CategoryID = strconv.FormatInt(categoryID, 10)
		examples = append(examples, ex)
	}
	return examples, rows.Err()
}
