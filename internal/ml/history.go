package ml

import "context"

// Example is one categorized expense drawn from a user's history.
// CategoryID is opaque to this package; the service layer maps it to and
// from storage keys at the boundary.
type Example struct {
	Description string
	AmountCents int64
	CategoryID  string
}

// PredictionResult is the outcome of a category prediction.
// An empty CategoryID means no category could be suggested; Confidence is
// always within [0, 1].
type PredictionResult struct {
	CategoryID string
	Confidence float64
}

// History is the storage collaborator this package reads expense history
// through. Implementations must return only categorized expenses, sorted by
// date descending.
type History interface {
	// RecentCategorized returns up to limit categorized expenses, newest first.
	RecentCategorized(ctx context.Context, userID int64, limit int) ([]Example, error)

	// AllCategorized returns the user's full categorized corpus, newest first.
	AllCategorized(ctx context.Context, userID int64) ([]Example, error)

	// CategorizedCount returns the number of categorized expenses for the user.
	CategorizedCount(ctx context.Context, userID int64) (int64, error)
}
