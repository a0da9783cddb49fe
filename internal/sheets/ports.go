// Package sheets defines the outbound spreadsheet-export ports.
package sheets

import (
	"context"

	"spendi/internal/core"
)

// ExportRow is one expense as it appears in the exported spreadsheet.
type ExportRow struct {
	Date        core.Date
	Description string
	Amount      core.Money
	Category    string
	Confidence  float64
}

// ExpenseAppender appends a user's expense rows to an external spreadsheet.
type ExpenseAppender interface {
	AppendExpenses(ctx context.Context, userEmail string, rows []ExportRow) error
}
