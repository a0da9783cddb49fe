package ml

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTrainThreshold is how many categorized expenses a user needs before
// the first training run, and how often retraining happens thereafter.
const DefaultTrainThreshold = 20

// TrainingPublisher hands a training job to a broker so it runs outside the
// request path. A nil publisher makes the trainer fall back to an in-process
// goroutine.
type TrainingPublisher interface {
	PublishTrainModel(ctx context.Context, userID int64) error
}

// Trainer decides when a user's model should be (re)trained and drives the
// training pipeline. Per user, at most one run is in flight in this process
// at a time; a trigger that arrives while a run is active is dropped.
type Trainer struct {
	store     *Store
	history   History
	publisher TrainingPublisher
	cfg       TrainingConfig
	threshold int64

	mu       sync.Mutex
	inFlight map[int64]bool
}

// NewTrainer creates a trainer. publisher may be nil; threshold <= 0 uses
// DefaultTrainThreshold.
func NewTrainer(store *Store, history History, publisher TrainingPublisher, cfg TrainingConfig, threshold int64) *Trainer {
	if threshold <= 0 {
		threshold = DefaultTrainThreshold
	}
	return &Trainer{
		store:     store,
		history:   history,
		publisher: publisher,
		cfg:       cfg,
		threshold: threshold,
		inFlight:  make(map[int64]bool),
	}
}

// ScheduleTraining applies the threshold policy after a categorized expense
// was recorded and dispatches a training run when it fires. It never blocks
// on training and never surfaces failures to the caller.
func (t *Trainer) ScheduleTraining(ctx context.Context, userID int64) {
	count, err := t.history.CategorizedCount(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to count categorized expenses",
			"user_id", userID, "error", err)
		return
	}

	if count < t.threshold {
		return
	}
	if t.store.Has(userID) && count%t.threshold != 0 {
		return
	}

	if t.publisher != nil {
		if err := t.publisher.PublishTrainModel(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish training job",
				"user_id", userID, "error", err)
		}
		return
	}

	// No broker configured: run in-process, detached from the request.
	bg := context.WithoutCancel(ctx)
	go func() {
		if ok := t.Train(bg, userID); !ok {
			slog.Debug("Background training run did not produce an artifact", "user_id", userID)
		}
	}()
}

// Train runs the full pipeline for the user: fetch the categorized corpus,
// rebuild the vocabulary and category index, fit the network and persist the
// three artifact documents together. It returns true only when a new
// artifact was generated; on any failure the previously persisted artifact
// is left untouched.
func (t *Trainer) Train(ctx context.Context, userID int64) bool {
	if !t.begin(userID) {
		slog.InfoContext(ctx, "Training already in flight, skipping", "user_id", userID)
		return false
	}
	defer t.end(userID)

	start := time.Now()
	artifact, err := t.buildArtifact(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrInsufficientData) {
			slog.InfoContext(ctx, "Not enough data to train model",
				"user_id", userID, "error", err)
		} else {
			slog.ErrorContext(ctx, "Training run failed",
				"user_id", userID, "error", err)
		}
		return false
	}

	if err := t.store.Save(userID, artifact); err != nil {
		slog.ErrorContext(ctx, "Failed to persist model artifact",
			"user_id", userID, "error", err)
		return false
	}

	slog.InfoContext(ctx, "Model trained",
		"user_id", userID,
		"examples", artifact.Examples,
		"vocabulary_size", len(artifact.Vocabulary),
		"categories", len(artifact.Categories),
		"duration_ms", time.Since(start).Milliseconds())
	return true
}

func (t *Trainer) buildArtifact(ctx context.Context, userID int64) (*Artifact, error) {
	examples, err := t.history.AllCategorized(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch categorized expenses: %w", err)
	}

	vocab := BuildVocabulary(examples)
	cats := BuildCategoryIndex(examples)

	cfg := t.cfg
	if cfg.Epochs == 0 {
		cfg = DefaultTrainingConfig()
	}
	network, err := TrainNetwork(examples, vocab, cats, cfg)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Network:    network,
		Vocabulary: vocab,
		Categories: cats,
		TrainedAt:  time.Now().UTC(),
		Examples:   len(examples),
	}, nil
}

func (t *Trainer) begin(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight[userID] {
		return false
	}
	t.inFlight[userID] = true
	return true
}

func (t *Trainer) end(userID int64) {
	t.mu.Lock()
	delete(t.inFlight, userID)
	t.mu.Unlock()
}
