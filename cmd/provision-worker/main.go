package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bollette/internal/config"
	"bollette/internal/log"
	"bollette/internal/services"
	"bollette/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.Setup()
	logger.Info("Starting provision-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	bills := services.NewBillService(repo, nil)
	processor := services.NewProvisionProcessor(repo, bills)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Monthly record provisioner configured",
		"interval", cfg.ProvisionInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.ProvisionInterval)
	defer ticker.Stop()

	// Run initial provisioning on startup
	logger.Info("Running initial monthly record provisioning...")
	if count, err := processor.ProcessHouseholds(ctx, time.Now()); err != nil {
		logger.Error("Initial provisioning failed", "error", err)
	} else {
		logger.Info("Initial provisioning complete", "households_processed", count)
	}

	// Start periodic provisioning
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				logger.Info("Provisioning monthly payment records...")
				count, err := processor.ProcessHouseholds(ctx, now)
				if err != nil {
					logger.Error("Periodic provisioning failed", "error", err)
				} else {
					logger.Info("Periodic provisioning complete",
						"households_processed", count,
						"next_check", now.Add(cfg.ProvisionInterval).Format("15:04:05"))
				}
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down provision-worker...")
	cancel()
	logger.Info("Provision-worker shutdown complete")
}
