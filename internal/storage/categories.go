package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"spendi/internal/core"
)

const categoryColumns = `id, user_id, name, description, color, icon, is_default, created_at`

// CreateCategory inserts a category for a user. Names are unique per user.
func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, description, color, icon, is_default)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.UserID, c.Name, c.Description, c.Color, c.Icon, c.IsDefault)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("category %q: %w", c.Name, ErrConflict)
		}
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: last insert id: %w", err)
	}
	return r.GetCategory(ctx, c.UserID, id)
}

// GetCategory fetches one of the user's categories.
func (r *Repository) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	return scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID))
}

// GetCategoryByName fetches one of the user's categories by name.
func (r *Repository) GetCategoryByName(ctx context.Context, userID int64, name string) (core.Category, error) {
	return scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? AND name = ?`, userID, name))
}

// ListCategories returns the user's categories sorted by name.
func (r *Repository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		c, err := scanCategoryRow(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory updates a category's mutable fields.
func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ?, color = ?, icon = ?, is_default = ?
		 WHERE id = ? AND user_id = ?`,
		c.Name, c.Description, c.Color, c.Icon, c.IsDefault, c.ID, c.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("category %q: %w", c.Name, ErrConflict)
		}
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: rows affected: %w", err)
	}
	if n == 0 {
		return core.Category{}, ErrNotFound
	}
	return r.GetCategory(ctx, c.UserID, c.ID)
}

// DeleteCategory removes a category and reassigns its expenses to the
// given fallback category (0 leaves them uncategorized).
func (r *Repository) DeleteCategory(ctx context.Context, userID, id, fallbackID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete category: %w", err)
	}
	defer tx.Rollback()

	var reassign any
	if fallbackID > 0 {
		reassign = fallbackID
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE expenses SET category_id = ? WHERE user_id = ? AND category_id = ?`,
		reassign, userID, id); err != nil {
		return fmt.Errorf("reassign expenses: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete category: %w", err)
	}

	slog.InfoContext(ctx, "Category deleted",
		"user_id", userID, "category_id", id, "reassigned_to", fallbackID)
	return nil
}

// CategoryStats aggregates expense count and total per category for a user.
func (r *Repository) CategoryStats(ctx context.Context, userID int64) ([]CategoryStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.color, c.icon, COUNT(e.id), COALESCE(SUM(e.amount_cents), 0)
		   FROM categories c
		   LEFT JOIN expenses e ON e.category_id = c.id AND e.user_id = c.user_id
		  WHERE c.user_id = ?
		  GROUP BY c.id, c.name, c.color, c.icon
		  ORDER BY SUM(e.amount_cents) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	defer rows.Close()

	var stats []CategoryStat
	for rows.Next() {
		var s CategoryStat
		if err := rows.Scan(&s.CategoryID, &s.Name, &s.Color, &s.Icon, &s.ExpenseCount, &s.TotalCents); err != nil {
			return nil, fmt.Errorf("scan category stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// CategoryStat is one row of the per-category aggregate.
type CategoryStat struct {
	CategoryID   int64
	Name         string
	Color        string
	Icon         string
	ExpenseCount int64
	TotalCents   int64
}

func scanCategory(row *sql.Row) (core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.Color, &c.Icon, &c.IsDefault, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	return c, nil
}

func scanCategoryRow(rows *sql.Rows) (core.Category, error) {
	var c core.Category
	if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.Color, &c.Icon, &c.IsDefault, &c.CreatedAt); err != nil {
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	return c, nil
}
