// Package ml implements per-user expense auto-categorization: text
// normalization, feature vectorization, a small trainable classifier with
// durable per-user artifacts, a similarity fallback for users without a
// trained model, and the policy deciding when to (re)train.
package ml

import (
	"context"
	"errors"
	"log/slog"
)

// Predictor is the public entry point for category prediction. It composes
// the model store with the trained classifier, falling back to the
// nearest-neighbor matcher when no model exists. Prediction is advisory:
// every internal failure degrades to an empty result instead of an error.
type Predictor struct {
	store   *Store
	history History
}

// NewPredictor creates a predictor over the given store and history source.
func NewPredictor(store *Store, history History) *Predictor {
	return &Predictor{store: store, history: history}
}

// PredictCategory predicts the category for an uncategorized expense.
// With a trained model the input is normalized, vectorized against the
// model's vocabulary and run through the network; without one the fallback
// matcher scans recent history. The returned confidence is always in [0, 1].
func (p *Predictor) PredictCategory(ctx context.Context, description string, amountCents int64, userID int64) PredictionResult {
	artifact, err := p.store.Load(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrModelNotFound) {
			slog.WarnContext(ctx, "Model artifact unusable, falling back to similarity matching",
				"user_id", userID, "error", err)
		}
		return p.matchSimilar(ctx, description, amountCents, userID)
	}

	features := Vectorize(Normalize(description), amountCents, artifact.Vocabulary)
	slot, confidence, err := artifact.Network.Predict(features)
	if err != nil {
		slog.ErrorContext(ctx, "Inference failed",
			"user_id", userID, "error", err)
		return PredictionResult{}
	}
	categoryID, ok := artifact.Categories.CategoryAt(slot)
	if !ok {
		slog.ErrorContext(ctx, "Predicted output slot has no category",
			"user_id", userID, "slot", slot)
		return PredictionResult{}
	}

	return PredictionResult{CategoryID: categoryID, Confidence: confidence}
}

func (p *Predictor) matchSimilar(ctx context.Context, description string, amountCents int64, userID int64) PredictionResult {
	history, err := p.history.RecentCategorized(ctx, userID, HistoryLimit)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch expense history for similarity matching",
			"user_id", userID, "error", err)
		return PredictionResult{}
	}
	return Match(description, amountCents, history)
}
