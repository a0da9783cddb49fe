package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"spendi/internal/amqp"
	"spendi/internal/config"
	applog "spendi/internal/log"
	"spendi/internal/ml"
	"spendi/internal/sheets"
	gsheet "spendi/internal/sheets/google"
	"spendi/internal/storage"
	"spendi/internal/worker"
)

const (
	sessionPruneInterval = time.Hour
	exportInterval       = 24 * time.Hour
)

func main() {
	// Load .env for local development (absent in production)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting spendi-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// The monthly Sheets export is optional.
	var exporter sheets.ExpenseAppender
	if cfg.SheetsExportEnabled() {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	store := ml.NewStore(cfg.ModelDir)
	trainer := ml.NewTrainer(store, repo, nil, ml.TrainingConfig{}, int64(cfg.TrainThreshold))
	trainingWorker := worker.NewTrainingWorker(trainer, repo, exporter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := trainingWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup check failed", "error", err)
		os.Exit(1)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return amqpClient.ConsumeTrainModel(ctx, func(msg *amqp.TrainModelMessage) error {
			return trainingWorker.HandleTrainMessage(ctx, msg)
		})
	})

	group.Go(func() error {
		ticker := time.NewTicker(sessionPruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				trainingWorker.PruneSessions(ctx)
			}
		}
	})

	if exporter != nil {
		group.Go(func() error {
			ticker := time.NewTicker(exportInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := trainingWorker.ExportCurrentMonth(ctx); err != nil {
						logger.Error("Monthly export failed", "error", err)
					}
				}
			}
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}
