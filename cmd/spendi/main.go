package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendi/internal/amqp"
	"spendi/internal/auth"
	"spendi/internal/cache"
	"spendi/internal/config"
	apphttp "spendi/internal/http"
	applog "spendi/internal/log"
	"spendi/internal/ml"
	"spendi/internal/services"
	"spendi/internal/storage"
)

func main() {
	// Load .env for local development (absent in production)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentApp})
	applog.SetDefault(logger)

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

	// Training jobs go through AMQP when a broker is reachable; otherwise
	// the trainer falls back to in-process background runs.
	var publisher ml.TrainingPublisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, training will run in-process", "error", err)
	} else {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	store := ml.NewStore(cfg.ModelDir)
	predictor := ml.NewPredictor(store, repo)
	trainer := ml.NewTrainer(store, repo, publisher, ml.TrainingConfig{}, int64(cfg.TrainThreshold))

	cacheManager := cache.NewManager()
	cacheManager.StartCleanup(10 * time.Minute)
	reports := services.NewReportService(repo, cacheManager)
	expenses := services.NewExpenseService(repo, predictor, trainer, reports)
	authSvc := auth.NewService(repo, cfg.SessionTTL)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:              cfg.Addr(),
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, authSvc, expenses, reports, repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		cancel()
	}()

	logger.Info("Starting spendi server", "port", cfg.Port, "model_dir", cfg.ModelDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
