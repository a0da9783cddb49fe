package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"spendi/internal/core"
)

const expenseColumns = `id, user_id, category_id, description, amount_cents, expense_date,
	payment_method, location, notes, ml_confidence, created_at`

// ExpenseFilter narrows and pages an expense listing. Zero values mean
// "no constraint".
type ExpenseFilter struct {
	From       core.Date
	To         core.Date
	CategoryID int64
	MinCents   int64
	MaxCents   int64
	Search     string // substring match on description, case-insensitive
	Limit      int
	Offset     int
}

// CreateExpense inserts an expense and returns it with its assigned ID.
func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, category_id, description, amount_cents, expense_date,
		                       payment_method, location, notes, ml_confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, nullableID(e.CategoryID), e.Description, e.Amount.Cents, dateString(e.Date),
		string(e.PaymentMethod), e.Location, e.Notes, e.MLConfidence)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: last insert id: %w", err)
	}

	created, err := r.GetExpense(ctx, e.UserID, id)
	if err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", created.ID,
		"user_id", created.UserID,
		"description", created.Description,
		"amount_cents", created.Amount.Cents,
		"category_id", created.CategoryID)
	return created, nil
}

// GetExpense fetches one of the user's expenses.
func (r *Repository) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// ListExpenses returns a filtered page of the user's expenses, newest
// first, along with the total row count for the filter.
func (r *Repository) ListExpenses(ctx context.Context, userID int64, f ExpenseFilter) ([]core.Expense, int64, error) {
	where, args := expenseFilterClause(userID, f)

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count expenses: %w", err)
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses ` + where +
		` ORDER BY expense_date DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpenseRow(rows)
		if err != nil {
			return nil, 0, err
		}
		expenses = append(expenses, e)
	}
	return expenses, total, rows.Err()
}

// UpdateExpense updates an expense's mutable fields.
func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses
		    SET category_id = ?, description = ?, amount_cents = ?, expense_date = ?,
		        payment_method = ?, location = ?, notes = ?, ml_confidence = ?
		  WHERE id = ? AND user_id = ?`,
		nullableID(e.CategoryID), e.Description, e.Amount.Cents, dateString(e.Date),
		string(e.PaymentMethod), e.Location, e.Notes, e.MLConfidence, e.ID, e.UserID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: rows affected: %w", err)
	}
	if n == 0 {
		return core.Expense{}, ErrNotFound
	}
	return r.GetExpense(ctx, e.UserID, e.ID)
}

// DeleteExpense removes one of the user's expenses.
func (r *Repository) DeleteExpense(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MonthTotalCents sums the user's spending for one month.
func (r *Repository) MonthTotalCents(ctx context.Context, userID int64, year, month int) (int64, error) {
	from, to := monthBounds(year, month)
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		  WHERE user_id = ? AND expense_date >= ? AND expense_date < ?`,
		userID, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("month total: %w", err)
	}
	return total, nil
}

// CategoryBreakdown sums one month's spending per category, largest first.
// Uncategorized expenses are reported under the empty name.
func (r *Repository) CategoryBreakdown(ctx context.Context, userID int64, year, month int) ([]core.CategoryAmount, error) {
	from, to := monthBounds(year, month)
	rows, err := r.db.QueryContext(ctx,
		`SELECT COALESCE(e.category_id, 0), COALESCE(c.name, ''), COALESCE(c.color, ''),
		        COALESCE(c.icon, ''), SUM(e.amount_cents)
		   FROM expenses e
		   LEFT JOIN categories c ON c.id = e.category_id
		  WHERE e.user_id = ? AND e.expense_date >= ? AND e.expense_date < ?
		  GROUP BY e.category_id
		  ORDER BY SUM(e.amount_cents) DESC`,
		userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()

	var breakdown []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.CategoryID, &ca.Name, &ca.Color, &ca.Icon, &ca.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category breakdown: %w", err)
		}
		breakdown = append(breakdown, ca)
	}
	return breakdown, rows.Err()
}

// DailyTotals sums one month's spending per day.
func (r *Repository) DailyTotals(ctx context.Context, userID int64, year, month int) ([]core.DailyAmount, error) {
	from, to := monthBounds(year, month)
	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(substr(expense_date, 9, 2) AS INTEGER), SUM(amount_cents)
		   FROM expenses
		  WHERE user_id = ? AND expense_date >= ? AND expense_date < ?
		  GROUP BY expense_date
		  ORDER BY expense_date`,
		userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	var days []core.DailyAmount
	for rows.Next() {
		var d core.DailyAmount
		if err := rows.Scan(&d.Day, &d.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// TopExpenses returns the user's largest expenses of the month.
func (r *Repository) TopExpenses(ctx context.Context, userID int64, year, month, limit int) ([]core.TopExpense, error) {
	from, to := monthBounds(year, month)
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.description, e.amount_cents, e.expense_date, COALESCE(c.name, '')
		   FROM expenses e
		   LEFT JOIN categories c ON c.id = e.category_id
		  WHERE e.user_id = ? AND e.expense_date >= ? AND e.expense_date < ?
		  ORDER BY e.amount_cents DESC
		  LIMIT ?`,
		userID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("top expenses: %w", err)
	}
	defer rows.Close()

	var top []core.TopExpense
	for rows.Next() {
		var (
			t       core.TopExpense
			dateStr string
		)
		if err := rows.Scan(&t.ExpenseID, &t.Description, &t.Amount.Cents, &dateStr, &t.Category); err != nil {
			return nil, fmt.Errorf("scan top expense: %w", err)
		}
		t.Date = parseDate(dateStr)
		top = append(top, t)
	}
	return top, rows.Err()
}

// MonthlyTotals sums a year's spending per month.
func (r *Repository) MonthlyTotals(ctx context.Context, userID int64, year int) ([]core.MonthTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(substr(expense_date, 6, 2) AS INTEGER), SUM(amount_cents)
		   FROM expenses
		  WHERE user_id = ? AND expense_date >= ? AND expense_date < ?
		  GROUP BY substr(expense_date, 1, 7)
		  ORDER BY substr(expense_date, 1, 7)`,
		userID, fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-01-01", year+1))
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	var months []core.MonthTotal
	for rows.Next() {
		var m core.MonthTotal
		if err := rows.Scan(&m.Month, &m.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

func expenseFilterClause(userID int64, f ExpenseFilter) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}

	if !f.From.IsZero() {
		clauses = append(clauses, "expense_date >= ?")
		args = append(args, dateString(f.From))
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "expense_date <= ?")
		args = append(args, dateString(f.To))
	}
	if f.CategoryID > 0 {
		clauses = append(clauses, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.MinCents > 0 {
		clauses = append(clauses, "amount_cents >= ?")
		args = append(args, f.MinCents)
	}
	if f.MaxCents > 0 {
		clauses = append(clauses, "amount_cents <= ?")
		args = append(args, f.MaxCents)
	}
	if f.Search != "" {
		clauses = append(clauses, "description LIKE ? COLLATE NOCASE")
		args = append(args, "%"+f.Search+"%")
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanExpense(row *sql.Row) (core.Expense, error) {
	var (
		e          core.Expense
		categoryID sql.NullInt64
		dateStr    string
	)
	err := row.Scan(&e.ID, &e.UserID, &categoryID, &e.Description, &e.Amount.Cents, &dateStr,
		&e.PaymentMethod, &e.Location, &e.Notes, &e.MLConfidence, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.CategoryID = categoryID.Int64
	e.Date = parseDate(dateStr)
	return e, nil
}

func scanExpenseRow(rows *sql.Rows) (core.Expense, error) {
	var (
		e          core.Expense
		categoryID sql.NullInt64
		dateStr    string
	)
	if err := rows.Scan(&e.ID, &e.UserID, &categoryID, &e.Description, &e.Amount.Cents, &dateStr,
		&e.PaymentMethod, &e.Location, &e.Notes, &e.MLConfidence, &e.CreatedAt); err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.CategoryID = categoryID.Int64
	e.Date = parseDate(dateStr)
	return e, nil
}

func nullableID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

// dateString renders a date as the YYYY-MM-DD form the expense_date column
// stores.
func dateString(d core.Date) string {
	return d.Format("2006-01-02")
}

func parseDate(s string) core.Date {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return core.Date{}
	}
	return core.Date{Time: t}
}

// monthBounds returns the inclusive start and exclusive end date strings
// for a month.
func monthBounds(year, month int) (string, string) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start.Format("2006-01-02"), start.AddDate(0, 1, 0).Format("2006-01-02")
}
