package ml

import (
	"context"
	"testing"
)

func TestPredictCategoryColdStartUsesSimilarity(t *testing.T) {
	store := NewStore(t.TempDir())
	history := &fakeHistory{examples: []Example{
		{Description: "Coffee shop", AmountCents: 500, CategoryID: "A"},
		{Description: "Coffee shop", AmountCents: 550, CategoryID: "A"},
	}}
	predictor := NewPredictor(store, history)

	got := predictor.PredictCategory(context.Background(), "Coffee shop", 525, 1)
	if got.CategoryID != "A" {
		t.Fatalf("expected similarity fallback to suggest A, got %q", got.CategoryID)
	}
	if history.recentCalls != 1 {
		t.Fatalf("expected one history scan, got %d", history.recentCalls)
	}
	if history.allCalls != 0 {
		t.Fatal("prediction must never fetch the full corpus")
	}
}

func TestPredictCategoryColdStartNoMatch(t *testing.T) {
	store := NewStore(t.TempDir())
	history := &fakeHistory{}
	predictor := NewPredictor(store, history)

	got := predictor.PredictCategory(context.Background(), "Coffee shop", 525, 1)
	if got.CategoryID != "" || got.Confidence != 0 {
		t.Fatalf("expected empty result without model or history, got %+v", got)
	}
}

func TestPredictCategoryWithTrainedModel(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Save(1, trainedArtifact(t)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	history := &fakeHistory{}
	predictor := NewPredictor(store, history)

	got := predictor.PredictCategory(context.Background(), "Coffee shop downtown", 450, 1)
	if got.CategoryID != "food" {
		t.Fatalf("expected food, got %q", got.CategoryID)
	}
	if got.Confidence <= 0 || got.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", got.Confidence)
	}
	if history.recentCalls != 0 {
		t.Fatal("a trained model must not hit the similarity fallback")
	}
}

func TestPredictCategoryDeterministic(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Save(1, trainedArtifact(t)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	predictor := NewPredictor(store, &fakeHistory{})

	first := predictor.PredictCategory(context.Background(), "Rent payment", 95000, 1)
	second := predictor.PredictCategory(context.Background(), "Rent payment", 95000, 1)
	if first != second {
		t.Fatalf("identical input must yield identical results: %+v vs %+v", first, second)
	}
}
