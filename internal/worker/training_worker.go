// Package worker runs the background side of the system: consuming
// training jobs from AMQP and periodically exporting expenses to the
// configured spreadsheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spendi/internal/amqp"
	"spendi/internal/core"
	"spendi/internal/ml"
	"spendi/internal/sheets"
	"spendi/internal/storage"
)

// TrainingWorker drives model training jobs and the periodic export sweep.
type TrainingWorker struct {
	trainer  *ml.Trainer
	repo     *storage.Repository
	exporter sheets.ExpenseAppender // nil disables export
}

func NewTrainingWorker(trainer *ml.Trainer, repo *storage.Repository, exporter sheets.ExpenseAppender) *TrainingWorker {
	return &TrainingWorker{
		trainer:  trainer,
		repo:     repo,
		exporter: exporter,
	}
}

// HandleTrainMessage processes a single training job from AMQP. Training
// failures are absorbed: the job is acked either way, because retraining
// will be re-triggered by the next categorized expense.
func (w *TrainingWorker) HandleTrainMessage(ctx context.Context, msg *amqp.TrainModelMessage) error {
	slog.InfoContext(ctx, "Processing training job",
		"user_id", msg.UserID,
		"enqueued_at", msg.Timestamp)

	if ok := w.trainer.Train(ctx, msg.UserID); !ok {
		slog.InfoContext(ctx, "Training job produced no artifact", "user_id", msg.UserID)
	}
	return nil
}

// StartupCheck verifies the database is reachable and prunes expired
// sessions left over from previous runs.
func (w *TrainingWorker) StartupCheck(ctx context.Context) error {
	if err := w.repo.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	pruned, err := w.repo.DeleteExpiredSessions(ctx)
	if err != nil {
		return fmt.Errorf("prune expired sessions: %w", err)
	}
	if pruned > 0 {
		slog.InfoContext(ctx, "Pruned expired sessions on startup", "count", pruned)
	}
	return nil
}

// PruneSessions removes expired sessions. Called periodically.
func (w *TrainingWorker) PruneSessions(ctx context.Context) {
	pruned, err := w.repo.DeleteExpiredSessions(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to prune expired sessions", "error", err)
		return
	}
	if pruned > 0 {
		slog.InfoContext(ctx, "Pruned expired sessions", "count", pruned)
	}
}

// ExportCurrentMonth appends every user's categorized expenses for the
// current month to the spreadsheet. Best effort per user: one user's
// failure does not stop the sweep.
func (w *TrainingWorker) ExportCurrentMonth(ctx context.Context) error {
	if w.exporter == nil {
		return nil
	}

	users, err := w.repo.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users for export: %w", err)
	}

	now := time.Now()
	exported := 0
	for _, user := range users {
		rows, err := w.exportRows(ctx, user.ID, now.Year(), int(now.Month()))
		if err != nil {
			slog.ErrorContext(ctx, "Failed to collect expenses for export",
				"user_id", user.ID, "error", err)
			continue
		}
		if len(rows) == 0 {
			continue
		}
		if err := w.exporter.AppendExpenses(ctx, user.Email, rows); err != nil {
			slog.ErrorContext(ctx, "Failed to export expenses",
				"user_id", user.ID, "error", err)
			continue
		}
		exported += len(rows)
	}

	slog.InfoContext(ctx, "Export sweep completed",
		"users", len(users), "rows", exported)
	return nil
}

func (w *TrainingWorker) exportRows(ctx context.Context, userID int64, year, month int) ([]sheets.ExportRow, error) {
	from := core.NewDate(year, month, 1)
	to := core.Date{Time: from.AddDate(0, 1, -1)}

	expenses, _, err := w.repo.ListExpenses(ctx, userID, storage.ExpenseFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	categories, err := w.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	rows := make([]sheets.ExportRow, 0, len(expenses))
	for _, e := range expenses {
		if e.CategoryID == 0 {
			continue
		}
		rows = append(rows, sheets.ExportRow{
			Date:        e.Date,
			Description: e.Description,
			Amount:      e.Amount,
			Category:    names[e.CategoryID],
			Confidence:  e.MLConfidence,
		})
	}
	return rows, nil
}
